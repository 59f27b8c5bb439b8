// Package catalog implements the single-file product catalog store.
//
// The document is a JSON array of products kept at one path. All mutation
// goes through Store.UpsertBatch, which validates the whole batch, takes the
// advisory lock, snapshots the current document, merges by product_id and
// atomically replaces the file before pruning old snapshots:
//
//	validate -> lock -> snapshot -> load -> merge -> save -> prune -> unlock
//
// Readers call Load without locking. Save writes a temporary file beside the
// document, syncs it and renames it over the real path, so a reader sees
// either the previous or the new document and never a partial one.
//
// A Store is not safe for concurrent mutation from several goroutines beyond
// the serialization it does internally; cross-process exclusion comes from
// the lock package.
package catalog
