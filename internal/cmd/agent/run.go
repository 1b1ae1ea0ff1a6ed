package agentrun

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	cfgpkg "github.com/rzbill/provex/internal/config"
	"github.com/rzbill/provex/internal/export"
	"github.com/rzbill/provex/internal/provenance"
	"github.com/rzbill/provex/internal/runtime"
	"github.com/rzbill/provex/internal/topology"
	"github.com/rzbill/provex/internal/transport"
	logpkg "github.com/rzbill/provex/pkg/log"
)

// Options configures one agent run.
type Options struct {
	DataDir string
	Config  cfgpkg.Config
}

// Run starts the export pipeline and blocks until ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	// Be robust to callers that don't pass a signal-aware context.
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return err
	}
	if opts.DataDir == "" {
		opts.DataDir = cfg.DataDir
	}
	if opts.DataDir == "" {
		opts.DataDir = cfgpkg.DefaultDataDir()
	}

	procLogger, err := logpkg.ApplyConfig(&cfg.Log)
	if err != nil {
		procLogger = logpkg.NewLogger(logpkg.WithLevel(logpkg.InfoLevel), logpkg.WithFormatter(&logpkg.TextFormatter{}))
	}
	// Redirect stdlib logs (e.g., Pebble) to our logger
	logpkg.RedirectStdLog(procLogger)

	fsync, err := runtime.ParseFsyncMode(cfg.Fsync)
	if err != nil {
		return err
	}
	storeDir := filepath.Join(opts.DataDir, "store")
	rt, err := runtime.Open(runtime.Options{DataDir: storeDir, Fsync: fsync, Config: cfg})
	if err != nil {
		return err
	}
	defer rt.Close()

	filter, err := buildFilter(cfg, procLogger)
	if err != nil {
		return err
	}
	start, err := export.ParseStartPosition(cfg.StartPosition)
	if err != nil {
		return err
	}
	consumer, err := export.NewConsumer(rt.Log(), rt.StateStore("export"), filter, cfg.BatchSize, start, procLogger.With(logpkg.Component("export")))
	if err != nil {
		return err
	}

	client, err := transport.NewHTTPClient(cfg.CollectorURL, time.Duration(cfg.RequestTimeoutMs)*time.Millisecond, procLogger.With(logpkg.Component("transport")))
	if err != nil {
		return err
	}
	transmitter := export.NewTransmitter(client, procLogger.With(logpkg.Component("export")))

	var topo topology.Provider = topology.Static{}
	if cfg.TopologyPath != "" {
		topo = topology.FileProvider{Path: cfg.TopologyPath}
	}

	cycle := export.NewCycle(consumer, transmitter, topo, export.CycleConfig{
		Clustered:      cfg.Clustered,
		NodeID:         func() string { return cfg.NodeID },
		DestinationURL: cfg.DestinationURL,
		Platform:       cfgpkg.ExpandPlatform(cfg.Platform),
	}, procLogger.With(logpkg.Component("export")))
	runner := export.NewRunner(cycle, time.Duration(cfg.IntervalMs)*time.Millisecond, procLogger.With(logpkg.Component("export")))

	procLogger.Info("starting provex agent",
		logpkg.Str("data_dir", opts.DataDir),
		logpkg.Str("collector", cfg.CollectorURL),
		logpkg.Int("batch_size", cfg.BatchSize),
		logpkg.Int("interval_ms", cfg.IntervalMs),
		logpkg.Str("start_position", cfg.StartPosition),
		logpkg.Bool("clustered", cfg.Clustered),
	)

	var wg sync.WaitGroup
	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				procLogger.Error("metrics listener failed", logpkg.Err(err))
			}
		}()
	}

	err = runner.Run(sctx)

	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = metricsSrv.Shutdown(shutdownCtx)
		cancel()
	}
	wg.Wait()
	return err
}

// buildFilter assembles the event filter from the config's four filter
// dimensions. Unknown event type tokens are logged and skipped rather than
// failing startup.
func buildFilter(cfg cfgpkg.Config, logger logpkg.Logger) (*export.Filter, error) {
	types, rejected := provenance.ParseEventTypes(cfg.EventTypeFilter)
	for _, token := range rejected {
		logger.Warn("ignoring unknown event type in filter", logpkg.Str("token", token))
	}

	var componentIDs []string
	for _, id := range strings.Split(cfg.ComponentIDFilter, ",") {
		if id = strings.TrimSpace(id); id != "" {
			componentIDs = append(componentIDs, id)
		}
	}

	return export.NewFilter(export.FilterConfig{
		EventTypes:         types,
		ComponentIDs:       componentIDs,
		ComponentTypeRegex: cfg.ComponentTypeFilter,
		Expression:         cfg.FilterExpression,
	})
}
