// Package store persists customers in the source collection and in its
// anonymized mirror.
//
// Source is the write path used by producers: every insert or update is
// followed by a change event on the feed. It also offers the chunked scan
// used by full reindex and catch-up.
//
// Mirror exposes the operations the sync engine needs against the anonymized
// copy: upsert by ID, insert-many, the createdAt high-water mark, count and
// reset.
package store
