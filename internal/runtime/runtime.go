package runtime

import (
	"context"
	"errors"
	"fmt"

	cfgpkg "github.com/rzbill/provex/internal/config"
	"github.com/rzbill/provex/internal/eventlog"
	"github.com/rzbill/provex/internal/statestore"
	pebblestore "github.com/rzbill/provex/internal/storage/pebble"
)

// Options for building the Runtime.
type Options struct {
	DataDir string
	Fsync   pebblestore.FsyncMode
	Config  cfgpkg.Config
}

// ParseFsyncMode maps the config token to a storage fsync mode.
func ParseFsyncMode(s string) (pebblestore.FsyncMode, error) {
	switch s {
	case "always":
		return pebblestore.FsyncModeAlways, nil
	case "interval", "":
		return pebblestore.FsyncModeInterval, nil
	case "never":
		return pebblestore.FsyncModeNever, nil
	default:
		return pebblestore.FsyncModeUnspecified, fmt.Errorf("runtime: unknown fsync mode %q", s)
	}
}

// Runtime wires storage, the event log, and pipeline state for a single-node
// agent instance.
type Runtime struct {
	db     *pebblestore.DB
	log    *eventlog.Log
	config cfgpkg.Config
}

// Open initializes the underlying storage and opens the event log.
func Open(opts Options) (*Runtime, error) {
	db, err := pebblestore.Open(pebblestore.Options{
		DataDir: opts.DataDir,
		Fsync:   opts.Fsync,
		Metrics: storageMetrics{},
	})
	if err != nil {
		return nil, err
	}
	log, err := eventlog.Open(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Runtime{db: db, log: log, config: opts.Config}, nil
}

// Close closes underlying resources.
func (r *Runtime) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// CheckHealth performs a simple health check.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if r.db == nil {
		return errors.New("db not open")
	}
	it, err := r.db.NewIter(nil)
	if err != nil {
		return err
	}
	it.Close()
	return nil
}

// Log returns the provenance event log.
func (r *Runtime) Log() *eventlog.Log { return r.log }

// StateStore returns a durable state store scoped to the given pipeline.
func (r *Runtime) StateStore(scope string) statestore.Store {
	return statestore.NewPebble(r.db, scope)
}

// DB exposes the underlying DB for advanced operations (internal use only).
func (r *Runtime) DB() *pebblestore.DB { return r.db }

// Config returns the runtime configuration.
func (r *Runtime) Config() cfgpkg.Config { return r.config }
