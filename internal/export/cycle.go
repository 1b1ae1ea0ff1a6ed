package export

import (
	"context"
	"errors"
	"fmt"

	"github.com/rzbill/provex/internal/topology"
	logpkg "github.com/rzbill/provex/pkg/log"
)

// CycleConfig carries the per-instance context the cycle resolves each run.
type CycleConfig struct {
	// Clustered marks this instance as part of a cluster. When set, cycles
	// are deferred until NodeID yields a non-empty identifier.
	Clustered bool
	// NodeID returns this node's cluster identifier, or "" until assigned.
	NodeID func() string
	// DestinationURL is the engine UI URL content URIs are derived from;
	// optional. When set it must end with DestinationURLSuffix.
	DestinationURL string
	// Platform is the value for each record's platform field.
	Platform string
}

// Cycle orchestrates one scheduled export invocation: resolve context, pull
// one batch, serialize, transmit, and advance the cursor on success. A single
// cycle processes at most one batch; backlog drains across repeated
// invocations.
type Cycle struct {
	consumer    *Consumer
	transmitter *Transmitter
	topo        topology.Provider
	cfg         CycleConfig
	logger      logpkg.Logger
}

// NewCycle wires the pipeline stages into one orchestrated cycle.
func NewCycle(consumer *Consumer, transmitter *Transmitter, topo topology.Provider, cfg CycleConfig, logger logpkg.Logger) *Cycle {
	if logger == nil {
		logger = logpkg.NewLogger().With(logpkg.Component("export"))
	}
	if topo == nil {
		topo = topology.Static{}
	}
	return &Cycle{
		consumer:    consumer,
		transmitter: transmitter,
		topo:        topo,
		cfg:         cfg,
		logger:      logger,
	}
}

// Run executes one export cycle. A nil return means the cycle completed or
// ended on an expected condition (nothing to send, cluster role pending, no
// session); a non-nil return is a processing failure to surface to the
// scheduler. The cursor is untouched on every failure path, so the next
// invocation retries the identical batch.
func (c *Cycle) Run(ctx context.Context) error {
	nodeID := ""
	if c.cfg.NodeID != nil {
		nodeID = c.cfg.NodeID()
	}
	if c.cfg.Clustered && nodeID == "" {
		c.logger.Debug("cluster node identifier not yet assigned; deferring export cycle")
		return nil
	}

	root, err := c.topo.CurrentSnapshot()
	if err != nil {
		return fmt.Errorf("export cycle: topology snapshot: %w", err)
	}

	sctx := SerializeContext{
		Names:    topology.BuildNameIndex(root),
		Platform: c.cfg.Platform,
	}
	if root != nil {
		sctx.Application = root.Name
	}
	if c.cfg.Clustered {
		sctx.NodeID = nodeID
	}
	if c.cfg.DestinationURL != "" {
		prefix, hostname, err := SplitDestinationURL(c.cfg.DestinationURL)
		if err != nil {
			return fmt.Errorf("export cycle: %w", err)
		}
		sctx.DestinationPrefix = prefix
		sctx.Hostname = hostname
	}

	batch, err := c.consumer.NextBatch(ctx)
	if err != nil {
		return fmt.Errorf("export cycle: %w", err)
	}
	if batch == nil {
		return nil
	}

	records := make([]WireRecord, len(batch.Events))
	for i, ev := range batch.Events {
		records[i] = Serialize(ev, sctx)
	}

	if _, err := c.transmitter.Send(ctx, records, batch.FirstOrdinal); err != nil {
		if errors.Is(err, ErrNoSession) {
			c.logger.Debug("all destination peers unavailable; will attempt to send data later")
			return nil
		}
		return fmt.Errorf("export cycle: %w", err)
	}

	if err := c.consumer.Commit(batch); err != nil {
		// The batch was delivered but the cursor did not move; the next cycle
		// redelivers the same events, which at-least-once permits.
		return fmt.Errorf("export cycle: %w", err)
	}
	return nil
}
