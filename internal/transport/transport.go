// Package transport defines the transactional send channel used to deliver
// provenance batches to a remote collector, and provides the HTTP
// implementation of it.
//
// A Session is a single-use transaction: Send exactly once, then Confirm,
// then Complete. Completing an unconfirmed session is a protocol error on
// both ends; the collector refuses it. Abort releases the transaction after
// a failure and is best-effort.
package transport

import "context"

// Metadata keys attached to every batch payload.
const (
	MetadataTransactionID = "reporting.task.transaction.id"
	MetadataMimeType      = "mime.type"
)

// Session is one transactional send. Implementations are not safe for
// concurrent use; the export pipeline drives one session at a time.
type Session interface {
	// Send transmits the payload and its metadata as a single unit.
	Send(ctx context.Context, payload []byte, metadata map[string]string) error
	// Confirm has the peer acknowledge receipt and integrity of the payload.
	Confirm(ctx context.Context) error
	// Complete commits the transaction; only after it returns nil is the
	// batch durably accepted by the peer.
	Complete(ctx context.Context) error
	// Abort releases the transaction after a failure. Best-effort.
	Abort(ctx context.Context, reason string) error
}

// Client opens transactional sessions against a collector.
//
// OpenSession returns (nil, nil) when no peer can currently accept a
// transaction (unreachable or overloaded); that is an expected, recoverable
// condition and not an error.
type Client interface {
	OpenSession(ctx context.Context) (Session, error)
}
