package audit

import (
	"context"
	"fmt"
	"sort"

	"anon-sync/feature/customers/models"
)

// Mutator applies repairs to the mirror.
type Mutator interface {
	Upsert(ctx context.Context, c models.Customer) error
	Delete(ctx context.Context, ids []string) (int, error)
}

// PlanAudit compares source and mirror and returns a plan with results and
// actions. It does NOT execute actions; use Apply for that.
func PlanAudit(ctx context.Context, source SourceReader, mirror MirrorReader, opts Options) (*Plan, error) {
	idx, err := BuildIndex(ctx, source, mirror, opts.ChunkSize)
	if err != nil {
		return nil, err
	}

	results := buildResults(idx)
	summary, actions := buildPlanFromResults(results, idx, opts)

	return &Plan{
		Results: results,
		Actions: actions,
		Summary: summary,
	}, nil
}

// Apply executes the actions of plan and returns how many were executed.
// Requires opts.Confirmed=true and opts.DryRun=false to actually execute.
func Apply(ctx context.Context, mirror Mutator, plan *Plan, opts Options) (executed int, err error) {
	// Safety check: do not execute if not confirmed or dry-run
	if !opts.Confirmed || opts.DryRun {
		return 0, nil
	}

	var deleteKeys []string
	for _, action := range plan.Actions {
		switch action.Type {
		case ActionUpsertMirror:
			if err := mirror.Upsert(ctx, action.Record); err != nil {
				return executed, fmt.Errorf("failed to repair %s: %w", action.Key, err)
			}
			executed++
		case ActionDeleteMirror:
			deleteKeys = append(deleteKeys, action.Key)
		}
	}

	// Deletions go out in one statement per chunk
	for start := 0; start < len(deleteKeys); start += 500 {
		end := min(start+500, len(deleteKeys))
		if _, err := mirror.Delete(ctx, deleteKeys[start:end]); err != nil {
			return executed, fmt.Errorf("failed to purge orphans: %w", err)
		}
		executed += end - start
	}

	return executed, nil
}

// PlanAndApply is a convenience wrapper that plans and optionally applies actions.
func PlanAndApply(ctx context.Context, source SourceReader, mirror interface {
	MirrorReader
	Mutator
}, opts Options) (*Plan, int, error) {
	plan, err := PlanAudit(ctx, source, mirror, opts)
	if err != nil {
		return nil, 0, err
	}

	executed, err := Apply(ctx, mirror, plan, opts)
	return plan, executed, err
}

// buildResults creates one result per ID in the union of both tables,
// sorted by ID for deterministic output.
func buildResults(idx *Index) []Result {
	union := make(map[string]struct{}, len(idx.Expected)+len(idx.Mirror))
	for key := range idx.Expected {
		union[key] = struct{}{}
	}
	for key := range idx.Mirror {
		union[key] = struct{}{}
	}

	results := make([]Result, 0, len(union))
	for key := range union {
		want, inSource := idx.Expected[key]
		got, inMirror := idx.Mirror[key]

		result := Result{
			ID:            key,
			SourcePresent: inSource,
			MirrorPresent: inMirror,
			Mismatch:      []string{},
		}
		if inSource && inMirror {
			if diff := compareFields(want, got); diff != nil {
				result.Mismatch = diff
			}
		}
		results = append(results, result)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].ID < results[j].ID
	})
	return results
}

// buildPlanFromResults generates a summary and action plan from audit results.
func buildPlanFromResults(results []Result, idx *Index, opts Options) (Summary, []Action) {
	var summary Summary
	var actions []Action

	summary.TotalItems = len(results)

	for _, result := range results {
		switch {
		case result.SourcePresent && !result.MirrorPresent:
			summary.MissingMirror++
			if opts.DoRepair {
				actions = append(actions, Action{
					Type:   ActionUpsertMirror,
					Key:    result.ID,
					Reason: "missing in mirror",
					Record: idx.Expected[result.ID],
				})
				summary.RepairActions++
			}

		case !result.SourcePresent && result.MirrorPresent:
			summary.Orphans++
			if opts.DoPurge {
				actions = append(actions, Action{
					Type:   ActionDeleteMirror,
					Key:    result.ID,
					Reason: "missing in source",
				})
				summary.PurgeActions++
			}

		case len(result.Mismatch) > 0:
			summary.Mismatches++
			if opts.DoRepair {
				actions = append(actions, Action{
					Type:   ActionUpsertMirror,
					Key:    result.ID,
					Reason: fmt.Sprintf("mismatch: %v", result.Mismatch),
					Record: idx.Expected[result.ID],
				})
				summary.RepairActions++
			}
		}
	}

	return summary, actions
}
