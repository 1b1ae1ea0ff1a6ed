package agentrun

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	cfgpkg "github.com/rzbill/provex/internal/config"
	"github.com/rzbill/provex/internal/provenance"
	logpkg "github.com/rzbill/provex/pkg/log"
)

func TestBuildFilterSkipsUnknownTokens(t *testing.T) {
	cfg := cfgpkg.Default()
	cfg.EventTypeFilter = "SEND, bogus ,RECEIVE"

	filter, err := buildFilter(cfg, logpkg.NewLogger())
	if err != nil {
		t.Fatalf("build filter: %v", err)
	}
	if !filter.Matches(provenance.Event{EventType: provenance.EventSend}) {
		t.Fatalf("SEND should match")
	}
	if !filter.Matches(provenance.Event{EventType: provenance.EventReceive}) {
		t.Fatalf("RECEIVE should match")
	}
	if filter.Matches(provenance.Event{EventType: provenance.EventDrop}) {
		t.Fatalf("DROP should not match")
	}
}

func TestBuildFilterComponentIDsFromCSV(t *testing.T) {
	cfg := cfgpkg.Default()
	cfg.ComponentIDFilter = "proc-1, proc-2 ,"

	filter, err := buildFilter(cfg, logpkg.NewLogger())
	if err != nil {
		t.Fatalf("build filter: %v", err)
	}
	if !filter.Matches(provenance.Event{ComponentID: "proc-2"}) {
		t.Fatalf("proc-2 should match")
	}
	if filter.Matches(provenance.Event{ComponentID: "proc-9"}) {
		t.Fatalf("proc-9 should not match")
	}
}

func TestBuildFilterBadExpressionFails(t *testing.T) {
	cfg := cfgpkg.Default()
	cfg.FilterExpression = "event_type =="
	if _, err := buildFilter(cfg, logpkg.NewLogger()); err == nil {
		t.Fatalf("expected bad expression to fail")
	}
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	cfg := cfgpkg.Default()
	cfg.CollectorURL = "" // required
	err := Run(context.Background(), Options{DataDir: t.TempDir(), Config: cfg})
	if err == nil {
		t.Fatalf("expected invalid config to fail")
	}
}

// TestRunIntegration verifies Run starts the pipeline and shuts down cleanly
// on context cancellation, with no collector reachable.
func TestRunIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	cfg := cfgpkg.Default()
	cfg.CollectorURL = "http://127.0.0.1:1" // nothing listens here
	cfg.IntervalMs = 10
	cfg.Fsync = "never"
	cfg.Log = logpkg.Config{Level: "error", Format: "text"}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	dataDir := filepath.Join(t.TempDir(), "agent")
	if err := Run(ctx, Options{DataDir: dataDir, Config: cfg}); err != nil {
		t.Fatalf("run: %v", err)
	}
}
