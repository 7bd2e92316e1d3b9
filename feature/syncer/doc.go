// Package syncer keeps the anonymized mirror in step with the source
// customer collection.
//
// In incremental mode the Orchestrator subscribes to the change feed,
// copies records created while the engine was offline (Reconciler) and
// feeds every insert or update through the anonymizer into a Scheduler,
// which upserts buffered records in batches. In full reindex mode the
// Reindexer drops the mirror and rebuilds it from the source.
package syncer
