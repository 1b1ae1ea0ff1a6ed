// Package collector implements the receiving side of the provenance batch
// transaction protocol: open transaction, receive payload, confirm by
// checksum, then commit to a Sink. It backs the dev collector subcommand and
// the transport integration tests.
package collector

import (
	"encoding/json"
	"hash/crc32"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rzbill/provex/internal/transport"
	logpkg "github.com/rzbill/provex/pkg/log"
)

// Batch is one committed payload with its metadata.
type Batch struct {
	Payload  []byte
	Metadata map[string]string
}

// Sink receives committed batches. A Sink error fails the commit; the sender
// keeps its cursor and retries the same batch.
type Sink interface {
	AcceptBatch(batch Batch) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(batch Batch) error

// AcceptBatch implements Sink.
func (f SinkFunc) AcceptBatch(batch Batch) error { return f(batch) }

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

const sessionTTL = 5 * time.Minute

type txn struct {
	payload   []byte
	metadata  map[string]string
	checksum  uint32
	received  bool
	confirmed bool
	opened    time.Time
}

// Server holds in-flight transactions and hands committed batches to a Sink.
type Server struct {
	sink        Sink
	logger      logpkg.Logger
	maxInFlight int

	mu   sync.Mutex
	txns map[string]*txn
}

// NewServer builds a Server. maxInFlight bounds concurrent open transactions;
// beyond it the server answers 503 and senders back off until their next
// scheduled cycle.
func NewServer(sink Sink, logger logpkg.Logger, maxInFlight int) *Server {
	if logger == nil {
		logger = logpkg.NewLogger().With(logpkg.Component("collector"))
	}
	if maxInFlight <= 0 {
		maxInFlight = 16
	}
	return &Server{sink: sink, logger: logger, maxInFlight: maxInFlight, txns: map[string]*txn{}}
}

// Handler returns the HTTP handler implementing the transaction protocol.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+transport.TransactionsPath, s.handleOpen)
	mux.HandleFunc("POST "+transport.TransactionsPath+"/{id}/payload", s.handlePayload)
	mux.HandleFunc("POST "+transport.TransactionsPath+"/{id}/confirm", s.handleConfirm)
	mux.HandleFunc("POST "+transport.TransactionsPath+"/{id}/commit", s.handleCommit)
	mux.HandleFunc("DELETE "+transport.TransactionsPath+"/{id}", s.handleAbort)
	return mux
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	for id, t := range s.txns {
		if time.Since(t.opened) > sessionTTL {
			delete(s.txns, id)
		}
	}
	if len(s.txns) >= s.maxInFlight {
		s.mu.Unlock()
		http.Error(w, "too many open transactions", http.StatusServiceUnavailable)
		return
	}
	id := uuid.NewString()
	s.txns[id] = &txn{opened: time.Now()}
	s.mu.Unlock()

	s.logger.Debug("transaction opened", logpkg.Str("tx", id))
	w.Header().Set("Location", transport.TransactionsPath+"/"+id)
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) lookup(r *http.Request) (string, *txn) {
	id := r.PathValue("id")
	s.mu.Lock()
	defer s.mu.Unlock()
	return id, s.txns[id]
}

func (s *Server) handlePayload(w http.ResponseWriter, r *http.Request) {
	id, t := s.lookup(r)
	if t == nil {
		http.NotFound(w, r)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read payload", http.StatusBadRequest)
		return
	}

	metadata := map[string]string{}
	for k, vs := range r.Header {
		if strings.HasPrefix(k, transport.MetaHeaderPrefix) && len(vs) > 0 {
			// Header canonicalization mangles key case; metadata keys are
			// lowercase by convention.
			metadata[strings.ToLower(strings.TrimPrefix(k, transport.MetaHeaderPrefix))] = vs[0]
		}
	}

	s.mu.Lock()
	t.payload = body
	t.metadata = metadata
	t.checksum = crc32.Checksum(body, castagnoli)
	t.received = true
	s.mu.Unlock()

	s.logger.Debug("payload received", logpkg.Str("tx", id), logpkg.Int("bytes", len(body)))
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	id, t := s.lookup(r)
	if t == nil {
		http.NotFound(w, r)
		return
	}
	if !t.received {
		http.Error(w, "no payload to confirm", http.StatusConflict)
		return
	}
	claimed, err := strconv.ParseUint(r.Header.Get(transport.ChecksumHeader), 10, 32)
	if err != nil || uint32(claimed) != t.checksum {
		s.logger.Warn("checksum mismatch", logpkg.Str("tx", id))
		http.Error(w, "checksum mismatch", http.StatusConflict)
		return
	}
	s.mu.Lock()
	t.confirmed = true
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	id, t := s.lookup(r)
	if t == nil {
		http.NotFound(w, r)
		return
	}
	if !t.confirmed {
		// Committing an unconfirmed transaction is a protocol violation.
		http.Error(w, "transaction not confirmed", http.StatusConflict)
		return
	}
	if err := s.sink.AcceptBatch(Batch{Payload: t.payload, Metadata: t.metadata}); err != nil {
		s.logger.Error("sink rejected batch", logpkg.Str("tx", id), logpkg.Err(err))
		http.Error(w, "sink failure", http.StatusInternalServerError)
		return
	}
	s.mu.Lock()
	delete(s.txns, id)
	s.mu.Unlock()
	s.logger.Info("batch committed", logpkg.Str("tx", id), logpkg.Int("bytes", len(t.payload)))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAbort(w http.ResponseWriter, r *http.Request) {
	id, t := s.lookup(r)
	if t == nil {
		http.NotFound(w, r)
		return
	}
	s.mu.Lock()
	delete(s.txns, id)
	s.mu.Unlock()
	s.logger.Debug("transaction aborted", logpkg.Str("tx", id))
	w.WriteHeader(http.StatusNoContent)
}

// LogSink logs each committed batch's event count; the dev collector default.
type LogSink struct {
	Logger logpkg.Logger
}

// AcceptBatch implements Sink.
func (s LogSink) AcceptBatch(batch Batch) error {
	var events []json.RawMessage
	if err := json.Unmarshal(batch.Payload, &events); err != nil {
		return err
	}
	s.Logger.Info("received provenance batch",
		logpkg.Int("events", len(events)),
		logpkg.Str("tx", batch.Metadata[transport.MetadataTransactionID]),
	)
	return nil
}

// FileSink appends each committed payload as one line of NDJSON.
type FileSink struct {
	mu   sync.Mutex
	file *os.File
}

// NewFileSink opens (or creates) the output file in append mode.
func NewFileSink(path string) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &FileSink{file: f}, nil
}

// AcceptBatch implements Sink.
func (s *FileSink) AcceptBatch(batch Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.file.Write(append(batch.Payload, '\n')); err != nil {
		return err
	}
	return s.file.Sync()
}

// Close closes the underlying file.
func (s *FileSink) Close() error { return s.file.Close() }
