package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	agentrun "github.com/rzbill/provex/internal/cmd/agent"
	collectorrun "github.com/rzbill/provex/internal/cmd/collector"
	cfgpkg "github.com/rzbill/provex/internal/config"
	"github.com/rzbill/provex/internal/export"
	"github.com/rzbill/provex/internal/provenance"
	"github.com/rzbill/provex/internal/runtime"
	logpkg "github.com/rzbill/provex/pkg/log"
)

func main() {
	// initialize logger for CLI
	// Respect PROVEX_LOG_LEVEL for both CLI and agent start output
	level := os.Getenv("PROVEX_LOG_LEVEL")
	parsed, err := logpkg.ParseLevel(level)
	if err != nil || level == "" {
		parsed = logpkg.InfoLevel
	}
	logger := logpkg.NewLogger(
		logpkg.WithLevel(parsed),
		logpkg.WithFormatter(&logpkg.TextFormatter{}),
		logpkg.WithOutput(logpkg.NewConsoleOutput()),
	)

	// Redirect standard library logs (used by Pebble) to our logger
	logpkg.RedirectStdLog(logger)

	rootCmd := &cobra.Command{
		Use:   "provex",
		Short: "Provex provenance export agent CLI",
		Long:  "Provex is a single-binary provenance export agent. This CLI runs the agent, a dev collector, and basic log/state operations.",
	}

	rootCmd.AddCommand(newAgentCommand())
	rootCmd.AddCommand(newCollectorCommand())
	rootCmd.AddCommand(newEventsCommand())
	rootCmd.AddCommand(newStateCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newAgentCommand() *cobra.Command {
	agentCmd := &cobra.Command{Use: "agent", Short: "Agent commands"}
	runCmd := &cobra.Command{
		Use:     "run",
		Short:   "Run the export agent",
		Aliases: []string{"start"},
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			cfg, err := cfgpkg.Load(configPath)
			if err != nil {
				return err
			}
			cfgpkg.FromEnv(&cfg)

			// Flag overrides win over file and env.
			if v, _ := cmd.Flags().GetString("data-dir"); v != "" {
				cfg.DataDir = v
			}
			if v, _ := cmd.Flags().GetString("collector-url"); v != "" {
				cfg.CollectorURL = v
			}
			if v, _ := cmd.Flags().GetString("destination-url"); v != "" {
				cfg.DestinationURL = v
			}
			if v, _ := cmd.Flags().GetString("event-types"); v != "" {
				cfg.EventTypeFilter = v
			}
			if v, _ := cmd.Flags().GetString("start-position"); v != "" {
				cfg.StartPosition = v
			}
			if v, _ := cmd.Flags().GetInt("batch-size"); v > 0 {
				cfg.BatchSize = v
			}
			if v, _ := cmd.Flags().GetInt("interval-ms"); v > 0 {
				cfg.IntervalMs = v
			}
			if v, _ := cmd.Flags().GetString("fsync"); v != "" {
				cfg.Fsync = v
			}
			if v, _ := cmd.Flags().GetString("metrics"); v != "" {
				cfg.MetricsAddr = v
			}
			if v, _ := cmd.Flags().GetString("topology"); v != "" {
				cfg.TopologyPath = v
			}
			if v, _ := cmd.Flags().GetString("log-level"); v != "" {
				cfg.Log.Level = v
			}
			if v, _ := cmd.Flags().GetString("log-format"); v != "" {
				cfg.Log.Format = v
			}

			return agentrun.Run(cmd.Context(), agentrun.Options{DataDir: cfg.DataDir, Config: cfg})
		},
	}
	runCmd.Flags().String("config", os.Getenv("PROVEX_CONFIG"), "Path to JSON config file")
	runCmd.Flags().String("data-dir", "", "Data directory (if not specified, uses OS-specific application data directory)")
	runCmd.Flags().String("collector-url", "", "Collector base URL, e.g. http://collector:8099")
	runCmd.Flags().String("destination-url", "", "Engine UI URL content URIs are derived from (must end with /ui)")
	runCmd.Flags().String("event-types", "", "Comma-separated event type allowlist, e.g. SEND,RECEIVE")
	runCmd.Flags().String("start-position", "", "Where to start with no persisted cursor: beginning|end")
	runCmd.Flags().Int("batch-size", 0, "Events fetched per cycle (default 1000)")
	runCmd.Flags().Int("interval-ms", 0, "Export cycle period in ms (default 30000)")
	runCmd.Flags().String("fsync", "", "Fsync mode: always|interval|never")
	runCmd.Flags().String("metrics", "", "Prometheus listen address, e.g. :9090 (disabled when empty)")
	runCmd.Flags().String("topology", "", "Path to JSON topology snapshot for component name resolution")
	runCmd.Flags().String("log-level", os.Getenv("PROVEX_LOG_LEVEL"), "Log level: debug|info|warn|error")
	runCmd.Flags().String("log-format", os.Getenv("PROVEX_LOG_FORMAT"), "Log format: text|json (default text)")
	agentCmd.AddCommand(runCmd)
	return agentCmd
}

func newCollectorCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collector",
		Short: "Run a dev collector that accepts provenance batches",
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			out, _ := cmd.Flags().GetString("out")
			maxInFlight, _ := cmd.Flags().GetInt("max-in-flight")
			return collectorrun.Run(cmd.Context(), collectorrun.Options{
				Addr:        addr,
				OutPath:     out,
				MaxInFlight: maxInFlight,
			})
		},
	}
	cmd.Flags().String("addr", ":8099", "Listen address")
	cmd.Flags().String("out", "", "Append committed payloads as NDJSON to this file (logged when empty)")
	cmd.Flags().Int("max-in-flight", 16, "Maximum concurrent open transactions")
	return cmd
}

func openRuntime(cmd *cobra.Command) (*runtime.Runtime, error) {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	if dataDir == "" {
		dataDir = cfgpkg.DefaultDataDir()
	}
	fsync, err := runtime.ParseFsyncMode("")
	if err != nil {
		return nil, err
	}
	return runtime.Open(runtime.Options{
		DataDir: filepath.Join(dataDir, "store"),
		Fsync:   fsync,
		Config:  cfgpkg.Default(),
	})
}

func newEventsCommand() *cobra.Command {
	eventsCmd := &cobra.Command{Use: "events", Short: "Local event log operations"}

	appendCmd := &cobra.Command{
		Use:   "append",
		Short: "Append one event to the local log",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			typ, _ := cmd.Flags().GetString("type")
			eventType, err := provenance.ParseEventType(typ)
			if err != nil {
				return err
			}
			ev := provenance.Event{EventType: eventType}
			ev.ComponentID, _ = cmd.Flags().GetString("component-id")
			ev.ComponentType, _ = cmd.Flags().GetString("component-type")
			ev.FlowEntityID, _ = cmd.Flags().GetString("entity-id")
			ev.TransitURI, _ = cmd.Flags().GetString("transit-uri")
			ev.Details, _ = cmd.Flags().GetString("details")
			if ts, _ := cmd.Flags().GetInt64("timestamp-ms"); ts > 0 {
				ev.TimestampMillis = ts
			} else {
				ev.TimestampMillis = time.Now().UnixMilli()
			}
			if size, _ := cmd.Flags().GetInt64("size"); size >= 0 && cmd.Flags().Changed("size") {
				ev.EntitySize = &size
			}
			attrs, _ := cmd.Flags().GetStringArray("attr")
			for _, a := range attrs {
				k, v, ok := strings.Cut(a, "=")
				if !ok {
					return fmt.Errorf("invalid --attr %q; use key=value", a)
				}
				if ev.UpdatedAttributes == nil {
					ev.UpdatedAttributes = map[string]string{}
				}
				ev.UpdatedAttributes[k] = v
			}

			ids, err := rt.Log().Append(context.Background(), []provenance.Event{ev})
			if err != nil {
				return err
			}
			fmt.Println("appended ordinal:", ids[0])
			return nil
		},
	}
	appendCmd.Flags().String("type", "CREATE", "Event type")
	appendCmd.Flags().String("component-id", "", "Component id")
	appendCmd.Flags().String("component-type", "", "Component type")
	appendCmd.Flags().String("entity-id", "", "Flow entity id")
	appendCmd.Flags().String("transit-uri", "", "Transit URI")
	appendCmd.Flags().String("details", "", "Free-form details")
	appendCmd.Flags().Int64("timestamp-ms", 0, "Event time in unix ms (defaults to append time)")
	appendCmd.Flags().Int64("size", -1, "Entity size in bytes")
	appendCmd.Flags().StringArray("attr", nil, "Updated attribute key=value (repeatable)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List events from the local log",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			after, _ := cmd.Flags().GetUint64("after")
			limit, _ := cmd.Flags().GetInt("limit")
			events, err := rt.Log().FetchAfter(context.Background(), after, limit)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			for _, ev := range events {
				if err := enc.Encode(ev); err != nil {
					return err
				}
			}
			return nil
		},
	}
	listCmd.Flags().Uint64("after", 0, "Return events with ordinal greater than this")
	listCmd.Flags().Int("limit", 100, "Maximum events to return")

	for _, c := range []*cobra.Command{appendCmd, listCmd} {
		c.Flags().String("data-dir", "", "Data directory (defaults to the OS-specific application data directory)")
		eventsCmd.AddCommand(c)
	}
	return eventsCmd
}

func newStateCommand() *cobra.Command {
	stateCmd := &cobra.Command{Use: "state", Short: "Export pipeline state operations"}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the persisted export cursor",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			v, ok, err := rt.StateStore("export").GetState(export.StateKeyLastEventID)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("cursor: (none)")
				return nil
			}
			fmt.Println("cursor:", v)
			return nil
		},
	}

	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Reset the export cursor so delivery restarts from an earlier ordinal",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			to, _ := cmd.Flags().GetUint64("to")
			if err := rt.StateStore("export").SetState(export.StateKeyLastEventID, strconv.FormatUint(to, 10)); err != nil {
				return err
			}
			fmt.Println("cursor reset to:", to)
			return nil
		},
	}
	resetCmd.Flags().Uint64("to", 0, "Ordinal to resume after (0 re-exports the whole retained log)")

	for _, c := range []*cobra.Command{showCmd, resetCmd} {
		c.Flags().String("data-dir", "", "Data directory (defaults to the OS-specific application data directory)")
		stateCmd.AddCommand(c)
	}
	return stateCmd
}
