// Package export implements the provenance export pipeline: a resumable
// cursor over the local event log, event filtering, serialization into the
// canonical wire envelope, and transactional batch delivery to a remote
// collector.
//
// # Delivery model
//
// Delivery is at-least-once. The persisted cursor (statestore key
// "last_event_id") advances only after a batch's transaction has fully
// committed on the collector; any failure between fetch and commit leaves the
// cursor untouched so the next scheduled cycle re-attempts the identical
// batch. Events excluded by the filter still advance the scan position so
// they are never re-examined.
//
// # Pipeline
//
//	log → Consumer (cursor + filter + bound) → Serialize → Transmitter → Commit
//
// One scheduled invocation (Cycle.Run) processes at most one batch; the
// Runner serializes invocations so no two cycles ever race on the cursor.
package export
