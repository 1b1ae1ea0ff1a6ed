package export

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rzbill/provex/internal/provenance"
	"github.com/rzbill/provex/internal/statestore"
	logpkg "github.com/rzbill/provex/pkg/log"
)

// StateKeyLastEventID is the state-store key holding the ordinal of the last
// event covered by a committed delivery.
const StateKeyLastEventID = "last_event_id"

// StartPosition selects where a pipeline with no persisted cursor begins.
type StartPosition int

const (
	// StartBeginning resumes from the oldest event still present in the log.
	StartBeginning StartPosition = iota
	// StartEnd skips all currently queued history and exports only events
	// appended after the first cycle.
	StartEnd
)

// ParseStartPosition parses the configuration token "beginning" or "end".
func ParseStartPosition(s string) (StartPosition, error) {
	switch s {
	case "beginning", "":
		return StartBeginning, nil
	case "end":
		return StartEnd, nil
	default:
		return StartBeginning, fmt.Errorf("export: unknown start position %q", s)
	}
}

// EventSource is the read-only event log collaborator.
type EventSource interface {
	// FetchAfter returns up to limit events with ordinal > after, ascending.
	FetchAfter(ctx context.Context, after uint64, limit int) ([]provenance.Event, error)
	// OldestID returns the lowest ordinal still present, if any.
	OldestID() (uint64, bool)
	// NewestID returns the highest ordinal ever assigned, if any.
	NewestID() (uint64, bool)
}

// Batch is one bounded, filtered slice of the log prepared for delivery.
// LastScanned is the ordinal of the last event examined while building the
// batch, qualifying or not; committing it guarantees skipped events are never
// re-examined while nothing scanned-but-undelivered is ever marked done
// before its batch commits.
type Batch struct {
	Events       []provenance.Event
	FirstOrdinal uint64
	LastScanned  uint64
}

// Consumer drives the resumable cursor over the event log: resolve the
// persisted position, fetch forward, filter, and hand back one bounded batch.
// The cursor only moves via Commit, strictly after the batch's transaction
// has fully committed.
type Consumer struct {
	source    EventSource
	store     statestore.Store
	filter    *Filter
	batchSize int
	start     StartPosition
	logger    logpkg.Logger
}

// NewConsumer builds a Consumer. batchSize must be positive.
func NewConsumer(source EventSource, store statestore.Store, filter *Filter, batchSize int, start StartPosition, logger logpkg.Logger) (*Consumer, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("export: batch size must be positive, got %d", batchSize)
	}
	if filter == nil {
		var err error
		filter, err = NewFilter(FilterConfig{})
		if err != nil {
			return nil, err
		}
	}
	if logger == nil {
		logger = logpkg.NewLogger().With(logpkg.Component("export"))
	}
	return &Consumer{
		source:    source,
		store:     store,
		filter:    filter,
		batchSize: batchSize,
		start:     start,
		logger:    logger,
	}, nil
}

// resolveAfter returns the ordinal strictly before the next event to scan.
func (c *Consumer) resolveAfter() (uint64, error) {
	v, ok, err := c.store.GetState(StateKeyLastEventID)
	if err != nil {
		return 0, fmt.Errorf("export: read cursor: %w", err)
	}
	if ok {
		id, perr := strconv.ParseUint(v, 10, 64)
		if perr != nil {
			return 0, fmt.Errorf("export: corrupt cursor value %q: %w", v, perr)
		}
		return id, nil
	}

	switch c.start {
	case StartEnd:
		newest, ok := c.source.NewestID()
		if !ok {
			return 0, nil
		}
		return newest, nil
	default:
		oldest, ok := c.source.OldestID()
		if !ok || oldest == 0 {
			return 0, nil
		}
		return oldest - 1, nil
	}
}

// NextBatch fetches and filters the next bounded batch. It returns (nil, nil)
// when there is nothing to deliver this cycle. When every fetched event is
// filtered out, the scan position is persisted immediately — nothing was
// handed out, so nothing can be lost — and the skipped events are never
// reconsidered.
func (c *Consumer) NextBatch(ctx context.Context) (*Batch, error) {
	after, err := c.resolveAfter()
	if err != nil {
		return nil, err
	}

	events, err := c.source.FetchAfter(ctx, after, c.batchSize)
	if err != nil {
		return nil, fmt.Errorf("export: fetch events: %w", err)
	}
	if len(events) == 0 {
		return nil, nil
	}
	lastScanned := events[len(events)-1].EventID

	qualifying := events[:0:0]
	for _, ev := range events {
		if c.filter.Matches(ev) {
			qualifying = append(qualifying, ev)
		}
	}
	if skipped := len(events) - len(qualifying); skipped > 0 {
		eventsFilteredTotal.Add(float64(skipped))
	}

	if len(qualifying) == 0 {
		if err := c.writeCursor(lastScanned); err != nil {
			return nil, err
		}
		c.logger.Debug("all fetched events filtered out; advanced scan position",
			logpkg.Uint64("last_scanned", lastScanned))
		return nil, nil
	}

	return &Batch{
		Events:       qualifying,
		FirstOrdinal: qualifying[0].EventID,
		LastScanned:  lastScanned,
	}, nil
}

// Commit durably advances the cursor past the batch. Call only after the
// batch's transaction has fully committed on the collector.
func (c *Consumer) Commit(batch *Batch) error {
	if err := c.writeCursor(batch.LastScanned); err != nil {
		return err
	}
	cursorOrdinal.Set(float64(batch.LastScanned))
	return nil
}

func (c *Consumer) writeCursor(id uint64) error {
	if err := c.store.SetState(StateKeyLastEventID, strconv.FormatUint(id, 10)); err != nil {
		return fmt.Errorf("export: persist cursor: %w", err)
	}
	return nil
}
