package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rzbill/provex/internal/transport"
	logpkg "github.com/rzbill/provex/pkg/log"
)

// ErrNoSession reports that no transactional session is currently obtainable.
// It is an expected, recoverable condition: the cursor stays put and the next
// scheduled cycle retries the same batch.
var ErrNoSession = errors.New("export: no transactional session available")

// Ack summarizes one successful batch delivery; operational tracing only.
type Ack struct {
	TransactionID string
	Events        int
	FirstOrdinal  uint64
	Elapsed       time.Duration
}

// Transmitter delivers one serialized batch per transactional session:
// send, confirm, complete, in that order. Any I/O failure aborts the whole
// batch; there is no partial commit because confirm and complete are
// sequential checkpoints on the same session.
type Transmitter struct {
	client  transport.Client
	logger  logpkg.Logger
	newTxID func() string
}

// NewTransmitter builds a Transmitter over the given transport client.
func NewTransmitter(client transport.Client, logger logpkg.Logger) *Transmitter {
	if logger == nil {
		logger = logpkg.NewLogger().With(logpkg.Component("export"))
	}
	return &Transmitter{client: client, logger: logger, newTxID: uuid.NewString}
}

// Send delivers the records as one JSON array payload. Returns ErrNoSession
// when no session is obtainable; any other error is fatal for the cycle.
func (t *Transmitter) Send(ctx context.Context, records []WireRecord, firstOrdinal uint64) (*Ack, error) {
	start := time.Now()

	payload, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("export: encode batch: %w", err)
	}

	session, err := t.client.OpenSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("export: open session: %w", err)
	}
	if session == nil {
		sessionUnavailableTotal.Inc()
		return nil, ErrNoSession
	}

	txID := t.newTxID()
	metadata := map[string]string{
		transport.MetadataTransactionID: txID,
		transport.MetadataMimeType:      "application/json",
	}

	if err := t.deliver(ctx, session, payload, metadata); err != nil {
		deliveryFailuresTotal.Inc()
		_ = session.Abort(ctx, err.Error())
		return nil, err
	}

	elapsed := time.Since(start)
	batchesDeliveredTotal.Inc()
	eventsDeliveredTotal.Add(float64(len(records)))
	deliveryDuration.Observe(elapsed.Seconds())

	t.logger.Info("successfully sent provenance events to destination",
		logpkg.Int("events", len(records)),
		logpkg.Int64("transfer_ms", elapsed.Milliseconds()),
		logpkg.Str("transaction_id", txID),
		logpkg.Uint64("first_event_id", firstOrdinal),
	)

	return &Ack{
		TransactionID: txID,
		Events:        len(records),
		FirstOrdinal:  firstOrdinal,
		Elapsed:       elapsed,
	}, nil
}

func (t *Transmitter) deliver(ctx context.Context, session transport.Session, payload []byte, metadata map[string]string) error {
	if err := session.Send(ctx, payload, metadata); err != nil {
		return fmt.Errorf("export: send batch: %w", err)
	}
	if err := session.Confirm(ctx); err != nil {
		return fmt.Errorf("export: confirm batch: %w", err)
	}
	if err := session.Complete(ctx); err != nil {
		return fmt.Errorf("export: commit batch: %w", err)
	}
	return nil
}
