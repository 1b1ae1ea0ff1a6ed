package eventlog

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"

	"github.com/rzbill/provex/internal/provenance"
	pebblestore "github.com/rzbill/provex/internal/storage/pebble"
)

// Log is the append-only provenance event log. Ordinals are assigned at
// append time, start at 1, and are strictly increasing.
type Log struct {
	db *pebblestore.DB

	mu      sync.Mutex
	lastSeq uint64
}

// Open initializes a Log and loads the last assigned ordinal from metadata (if any).
func Open(db *pebblestore.DB) (*Log, error) {
	l := &Log{db: db}
	meta, err := db.Get(KeyMeta())
	if err != nil {
		if err != pebblestore.ErrNotFound {
			return nil, err
		}
		return l, nil
	}
	if len(meta) >= 8 {
		l.lastSeq = binary.BigEndian.Uint64(meta[:8])
	}
	return l, nil
}

// Append appends the provided events as a single atomic batch, assigning each
// its ordinal. Returns the assigned ordinals.
func (l *Log) Append(ctx context.Context, events []provenance.Event) ([]uint64, error) {
	if len(events) == 0 {
		return nil, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.db.NewBatch()
	defer b.Close()

	seqs := make([]uint64, len(events))
	for i := range events {
		l.lastSeq++
		events[i].EventID = l.lastSeq
		payload, err := json.Marshal(&events[i])
		if err != nil {
			return nil, fmt.Errorf("eventlog: encode event: %w", err)
		}
		if err := b.Set(KeyEntry(l.lastSeq), EncodeRecord(payload), nil); err != nil {
			return nil, err
		}
		seqs[i] = l.lastSeq
	}

	var meta [8]byte
	binary.BigEndian.PutUint64(meta[:], l.lastSeq)
	if err := b.Set(KeyMeta(), meta[:], nil); err != nil {
		return nil, err
	}

	if err := l.db.CommitBatch(ctx, b); err != nil {
		return nil, err
	}
	return seqs, nil
}

// FetchAfter returns up to limit events with ordinal > after, in ascending
// ordinal order. A limit <= 0 means no bound.
func (l *Log) FetchAfter(ctx context.Context, after uint64, limit int) ([]provenance.Event, error) {
	low := KeyEntry(after + 1)
	hi := KeyEntry(^uint64(0))
	iter, err := l.db.NewIter(&pebble.IterOptions{LowerBound: low, UpperBound: append(hi, 0x00)})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var events []provenance.Event
	for ok := iter.First(); ok && (limit <= 0 || len(events) < limit); ok = iter.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		payload, okDec := DecodeRecord(iter.Value())
		if !okDec {
			return nil, fmt.Errorf("eventlog: corrupt record at ordinal %d", entrySeq(iter.Key()))
		}
		var ev provenance.Event
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, fmt.Errorf("eventlog: decode event at ordinal %d: %w", entrySeq(iter.Key()), err)
		}
		ev.EventID = entrySeq(iter.Key())
		events = append(events, ev)
	}
	return events, iter.Error()
}

// OldestID returns the lowest ordinal present in the log, if any.
func (l *Log) OldestID() (uint64, bool) {
	low := KeyEntry(0)
	hi := KeyEntry(^uint64(0))
	iter, err := l.db.NewIter(&pebble.IterOptions{LowerBound: low, UpperBound: append(hi, 0x00)})
	if err != nil {
		return 0, false
	}
	defer iter.Close()
	if !iter.First() {
		return 0, false
	}
	return entrySeq(iter.Key()), true
}

// NewestID returns the highest ordinal ever assigned, if any.
func (l *Log) NewestID() (uint64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.lastSeq == 0 {
		return 0, false
	}
	return l.lastSeq, true
}
