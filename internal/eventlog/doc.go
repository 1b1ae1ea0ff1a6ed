// Package eventlog implements the local append-only provenance event log.
//
// # Overview
//
// Events are persisted in Pebble under lexicographically ordered keys so that
// bounded forward scans after a given ordinal are cheap:
//   - plog/m           (log metadata: last assigned ordinal)
//   - plog/e/{seq_be8} (event records)
//
// Records are stored as JSON framed with a trailing crc32c checksum.
//
// API surface (internal)
//
//	l, _ := eventlog.Open(db)
//	// Append a batch atomically; ordinals are assigned at append time
//	seqs, _ := l.Append(ctx, []provenance.Event{{EventType: provenance.EventCreate}})
//
//	// Bounded forward fetch strictly after an ordinal
//	events, _ := l.FetchAfter(ctx, seqs[0], 100)
//
//	// Boundary ordinals for cursor start policies
//	oldest, ok := l.OldestID()
//	newest, ok := l.NewestID()
//
// The export pipeline's durable cursor does not live here; it is owned by the
// statestore so that the log stays a read-only collaborator of the exporter.
package eventlog
