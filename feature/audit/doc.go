// Package audit compares the mirror against the anonymized source and plans
// repairs.
//
// Incremental sync never replays in-place updates made while the engine was
// offline and never propagates deletions. An audit finds the resulting drift:
//
//   - missing: source records absent from the mirror
//   - orphans: mirror records whose source record is gone
//   - mismatches: mirror records that differ from the anonymized source
//
// # Workflow
//
//	plan, err := audit.PlanAudit(ctx, source, mirror, opts) // read-only
//	n, err := audit.Apply(ctx, mirror, plan, opts)         // needs Confirmed
//
// Apply does nothing unless opts.Confirmed is set and opts.DryRun is not.
package audit
