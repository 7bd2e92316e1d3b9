package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"anon-sync/core/logger"
	"anon-sync/feature/syncer"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// fullReindex selects the one-shot rebuild instead of incremental sync.
var fullReindex bool

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "anon-sync",
	Short: "Anonymizing mirror sync engine",
	Long: `anon-sync keeps an anonymized mirror of the customers collection.

Without flags it catches up on records created while it was offline and then
follows the change feed, upserting anonymized records in batches. With
--full-reindex it drops the mirror, rebuilds it from the source and exits.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runSync,
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		// Use the application's standard logger for error reporting
		// We default to console format to match user expectations (CLI tool)
		cfg := &logger.Config{
			Level:  "debug",
			Format: "console",
		}

		l, logErr := logger.New(cfg)
		if logErr == nil {
			l.Error("command failed", zap.Error(err))
			_ = l.Sync()
		} else {
			// Absolute fallback if logger creation fails (rare)
			fmt.Println(err)
		}
		os.Exit(1)
	}
}

func init() {
	RootCmd.Flags().BoolVar(&fullReindex, "full-reindex", false, "Drop the mirror, rebuild it from the source and exit")
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap(ctx)
	if err != nil {
		return err
	}

	if err := rt.source.Verify(ctx); err != nil {
		return errors.Join(err, rt.shutdown(true))
	}

	mode := syncer.ModeIncremental
	if fullReindex {
		mode = syncer.ModeFullReindex
	}

	srv := rt.statusServer()
	if err := srv.Start(); err != nil {
		return errors.Join(err, rt.shutdown(true))
	}

	orch := syncer.New(rt.cfg.Sync, rt.source, rt.mirror, rt.feed, rt.log, rt.metrics)
	runErr := orch.Run(ctx, mode)
	if runErr == nil && ctx.Err() != nil {
		rt.log.Info("Shutting down")
	}

	closeErr := orch.Close()
	_ = srv.Shutdown()
	return errors.Join(runErr, closeErr, rt.shutdown(false))
}
