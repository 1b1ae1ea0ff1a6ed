package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/rzbill/provex/internal/export"
	logpkg "github.com/rzbill/provex/pkg/log"
)

// Config is the top-level agent configuration loaded from file/env.
type Config struct {
	// DataDir holds the event log and pipeline state.
	DataDir string `json:"dataDir"`

	// CollectorURL is the base URL batches are delivered to.
	CollectorURL string `json:"collectorUrl"`
	// RequestTimeoutMs bounds each transaction-protocol HTTP request.
	RequestTimeoutMs int `json:"requestTimeoutMs"`

	// DestinationURL is the engine UI URL content URIs are derived from.
	// Optional; when set it must end with "/ui".
	DestinationURL string `json:"destinationUrl"`
	// Platform names this instance in every exported record. Supports
	// ${hostname} and ${env:NAME} substitution.
	Platform string `json:"platform"`

	// EventTypeFilter is a comma-separated allowlist of event types.
	EventTypeFilter string `json:"eventTypeFilter"`
	// ComponentIDFilter is a comma-separated allowlist of component ids.
	ComponentIDFilter string `json:"componentIdFilter"`
	// ComponentTypeFilter is a regular expression matched against component
	// types.
	ComponentTypeFilter string `json:"componentTypeFilter"`
	// FilterExpression is a CEL expression evaluated per event.
	FilterExpression string `json:"filterExpression"`

	// StartPosition is "beginning" or "end"; consulted only when no cursor
	// has been persisted yet.
	StartPosition string `json:"startPosition"`
	// BatchSize bounds the number of events fetched per cycle.
	BatchSize int `json:"batchSize"`
	// IntervalMs is the scheduling period between export cycles.
	IntervalMs int `json:"intervalMs"`

	// Clustered defers cycles until NodeID is known.
	Clustered bool `json:"clustered"`
	// NodeID is this node's cluster identifier.
	NodeID string `json:"nodeId"`

	// TopologyPath points at the JSON component-tree snapshot used to resolve
	// component names; optional.
	TopologyPath string `json:"topologyPath"`

	// Fsync selects the event log durability mode: always, interval, never.
	Fsync string `json:"fsync"`

	// MetricsAddr exposes Prometheus metrics when non-empty, e.g. ":9090".
	MetricsAddr string `json:"metricsAddr"`

	// Log configures level and format of the agent logger.
	Log logpkg.Config `json:"log"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		DataDir:          DefaultDataDir(),
		RequestTimeoutMs: 30_000,
		Platform:         "provex",
		StartPosition:    "beginning",
		BatchSize:        1000,
		IntervalMs:       30_000,
		Fsync:            "interval",
		Log:              logpkg.Config{Level: "info", Format: "text"},
	}
}

// Load reads configuration from a JSON file, overlaying defaults. An empty
// path returns defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := json.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects values the pipeline cannot start with.
func (c Config) Validate() error {
	if c.CollectorURL == "" {
		return fmt.Errorf("config: collectorUrl is required")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("config: batchSize must be positive, got %d", c.BatchSize)
	}
	if c.IntervalMs <= 0 {
		return fmt.Errorf("config: intervalMs must be positive, got %d", c.IntervalMs)
	}
	if c.DestinationURL != "" {
		if _, _, err := export.SplitDestinationURL(c.DestinationURL); err != nil {
			return err
		}
	}
	if _, err := export.ParseStartPosition(c.StartPosition); err != nil {
		return err
	}
	switch c.Fsync {
	case "", "always", "interval", "never":
	default:
		return fmt.Errorf("config: unknown fsync mode %q", c.Fsync)
	}
	return nil
}

var substitutionRe = regexp.MustCompile(`\$\{([^}]+)\}`)

// ExpandPlatform resolves ${hostname} and ${env:NAME} references in the
// platform value. Unresolvable references expand to the empty string.
func ExpandPlatform(platform string) string {
	return substitutionRe.ReplaceAllStringFunc(platform, func(m string) string {
		ref := strings.TrimSuffix(strings.TrimPrefix(m, "${"), "}")
		switch {
		case ref == "hostname":
			h, err := os.Hostname()
			if err != nil {
				return ""
			}
			return h
		case strings.HasPrefix(ref, "env:"):
			return os.Getenv(strings.TrimPrefix(ref, "env:"))
		default:
			return ""
		}
	})
}
