package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"anon-sync/feature/audit"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Flags for the verify command
	repairMirror bool
	purgeMirror  bool
	dryRunVerify bool
	yesConfirm   bool
)

// verifyCmd audits the mirror against the anonymized source.
var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Audit the mirror against the source (report + optionally repair/purge)",
	Long: `Compares every mirror record with the anonymized form of its source record.

Reports records missing in the mirror, orphans whose source record is gone,
and stale records (for example in-place updates made while sync was offline).
Optionally repair (upsert) missing and stale records, or purge orphans.

Examples:
  # Report only
  anon-sync verify

  # Repair with interactive confirmation
  anon-sync verify --repair

  # Repair and purge with auto-confirm (non-interactive)
  anon-sync verify --repair --purge --yes`,
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().BoolVar(&repairMirror, "repair", false, "Upsert missing and mismatched mirror records")
	verifyCmd.Flags().BoolVar(&purgeMirror, "purge", false, "Delete mirror records without a source record")
	verifyCmd.Flags().BoolVar(&dryRunVerify, "dry-run", false, "Force dry-run (no mutations even with --yes)")
	verifyCmd.Flags().BoolVar(&yesConfirm, "yes", false, "Auto-confirm mutations (non-interactive)")

	RootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	rt, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = rt.shutdown(true) }()
	l := rt.log

	opts := audit.Options{
		DoRepair:  repairMirror,
		DoPurge:   purgeMirror,
		DryRun:    dryRunVerify,
		ChunkSize: rt.cfg.Sync.ReindexChunkSize,
	}

	if err := rt.source.Verify(ctx); err != nil {
		return err
	}
	if err := rt.mirror.Migrate(ctx); err != nil {
		return err
	}

	// Step 1: Plan (always runs)
	l.Info("Planning audit...")
	plan, err := audit.PlanAudit(ctx, rt.source, rt.mirror, opts)
	if err != nil {
		return fmt.Errorf("failed to plan audit: %w", err)
	}

	// Step 2: Print report
	printAuditReport(l, plan)

	// Step 3: Check if actions are requested
	if !repairMirror && !purgeMirror {
		l.Info("No actions requested. Use --repair to fix missing or stale records or --purge to delete orphans.")
		return nil
	}
	if dryRunVerify {
		l.Info("Dry-run mode: No changes were made.")
		return nil
	}
	if len(plan.Actions) == 0 {
		l.Info("No actions required based on current flags.")
		return nil
	}

	// Step 4: Apply (if confirmed)
	if !confirmMutation() {
		l.Warn("Operation cancelled by user. No changes were made.")
		return nil
	}
	opts.Confirmed = true

	l.Info("Applying actions...")
	executed, err := audit.Apply(ctx, rt.mirror, plan, opts)
	if err != nil {
		return fmt.Errorf("failed to apply plan after %d actions: %w", executed, err)
	}

	l.Info("Successfully executed actions", zap.Int("count", executed))
	return nil
}

// printAuditReport prints a formatted audit report using logger.
func printAuditReport(l *zap.Logger, plan *audit.Plan) {
	s := plan.Summary

	l.Info("Audit report",
		zap.Int("total_items", s.TotalItems),
		zap.Int("missing_mirror", s.MissingMirror),
		zap.Int("orphans", s.Orphans),
		zap.Int("mismatches", s.Mismatches),
	)

	if len(plan.Actions) == 0 {
		return
	}

	l.Info("Planned actions",
		zap.Int("repair_actions", s.RepairActions),
		zap.Int("purge_actions", s.PurgeActions),
		zap.Int("total_actions", len(plan.Actions)),
	)

	// Show sample of actions (max 5 for logger)
	maxShow := min(5, len(plan.Actions))
	for _, action := range plan.Actions[:maxShow] {
		l.Info("Sample action",
			zap.String("type", string(action.Type)),
			zap.String("key", action.Key),
			zap.String("reason", action.Reason),
		)
	}
	if len(plan.Actions) > maxShow {
		l.Info("Additional actions not shown", zap.Int("count", len(plan.Actions)-maxShow))
	}
}

// confirmMutation prompts the user for confirmation or uses --yes flag.
func confirmMutation() bool {
	if yesConfirm {
		fmt.Println("\n✓ Auto-confirmed via --yes flag")
		return true
	}

	fmt.Print("\n⚠️  Type 'yes' to confirm changes to the mirror: ")
	reader := bufio.NewReader(os.Stdin)
	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	return strings.TrimSpace(response) == "yes"
}
