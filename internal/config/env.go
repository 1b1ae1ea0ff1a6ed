package config

import (
	"os"
	"strconv"
	"strings"
)

// FromEnv overlays PROVEX_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	if v := os.Getenv("PROVEX_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("PROVEX_COLLECTOR_URL"); v != "" {
		cfg.CollectorURL = v
	}
	if v := os.Getenv("PROVEX_REQUEST_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RequestTimeoutMs = n
		}
	}
	if v := os.Getenv("PROVEX_DESTINATION_URL"); v != "" {
		cfg.DestinationURL = v
	}
	if v := os.Getenv("PROVEX_PLATFORM"); v != "" {
		cfg.Platform = v
	}
	if v := os.Getenv("PROVEX_EVENT_TYPE_FILTER"); v != "" {
		cfg.EventTypeFilter = v
	}
	if v := os.Getenv("PROVEX_COMPONENT_ID_FILTER"); v != "" {
		cfg.ComponentIDFilter = v
	}
	if v := os.Getenv("PROVEX_COMPONENT_TYPE_FILTER"); v != "" {
		cfg.ComponentTypeFilter = v
	}
	if v := os.Getenv("PROVEX_FILTER_EXPRESSION"); v != "" {
		cfg.FilterExpression = v
	}
	if v := os.Getenv("PROVEX_START_POSITION"); v != "" {
		cfg.StartPosition = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv("PROVEX_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.BatchSize = n
		}
	}
	if v := os.Getenv("PROVEX_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.IntervalMs = n
		}
	}
	if v := os.Getenv("PROVEX_CLUSTERED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Clustered = b
		}
	}
	if v := os.Getenv("PROVEX_NODE_ID"); v != "" {
		cfg.NodeID = v
	}
	if v := os.Getenv("PROVEX_TOPOLOGY_PATH"); v != "" {
		cfg.TopologyPath = v
	}
	if v := os.Getenv("PROVEX_FSYNC"); v != "" {
		cfg.Fsync = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv("PROVEX_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
	if v := os.Getenv("PROVEX_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("PROVEX_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}
