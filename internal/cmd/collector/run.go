package collectorrun

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rzbill/provex/internal/collector"
	logpkg "github.com/rzbill/provex/pkg/log"
)

// Options configures the dev collector.
type Options struct {
	// Addr is the listen address, e.g. ":8099".
	Addr string
	// OutPath appends committed payloads as NDJSON when non-empty; otherwise
	// batches are logged and discarded.
	OutPath string
	// MaxInFlight bounds concurrent open transactions.
	MaxInFlight int
	// Logger defaults to a component-scoped logger when nil.
	Logger logpkg.Logger
}

// Run serves the collector until ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewLogger().With(logpkg.Component("collector"))
	}

	var sink collector.Sink = collector.LogSink{Logger: logger}
	if opts.OutPath != "" {
		fileSink, err := collector.NewFileSink(opts.OutPath)
		if err != nil {
			return err
		}
		defer fileSink.Close()
		sink = fileSink
	}

	srv := &http.Server{
		Addr:    opts.Addr,
		Handler: collector.NewServer(sink, logger, opts.MaxInFlight).Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("collector listening", logpkg.Str("addr", opts.Addr), logpkg.Str("out", opts.OutPath))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-sctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
