package runtime

import (
	"context"
	"testing"

	cfgpkg "github.com/rzbill/provex/internal/config"
	"github.com/rzbill/provex/internal/provenance"
	pebblestore "github.com/rzbill/provex/internal/storage/pebble"
)

func TestOpenCloseHealth(t *testing.T) {
	dir := t.TempDir()
	rt, err := Open(Options{DataDir: dir, Fsync: pebblestore.FsyncModeAlways, Config: cfgpkg.Default()})
	if err != nil {
		t.Fatalf("open runtime: %v", err)
	}
	defer rt.Close()
	if err := rt.CheckHealth(context.Background()); err != nil {
		t.Fatalf("health: %v", err)
	}
}

func TestLogAndStateAccessors(t *testing.T) {
	dir := t.TempDir()
	rt, err := Open(Options{DataDir: dir, Fsync: pebblestore.FsyncModeAlways, Config: cfgpkg.Default()})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rt.Close()

	ids, err := rt.Log().Append(context.Background(), []provenance.Event{{EventType: provenance.EventCreate}})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if len(ids) != 1 || ids[0] != 1 {
		t.Fatalf("expected first ordinal 1, got %v", ids)
	}

	store := rt.StateStore("export")
	if err := store.SetState("k", "v"); err != nil {
		t.Fatalf("set state: %v", err)
	}
	v, ok, err := store.GetState("k")
	if err != nil || !ok || v != "v" {
		t.Fatalf("get state: %v %v %v", v, ok, err)
	}
}

func TestParseFsyncMode(t *testing.T) {
	cases := map[string]pebblestore.FsyncMode{
		"always":   pebblestore.FsyncModeAlways,
		"interval": pebblestore.FsyncModeInterval,
		"":         pebblestore.FsyncModeInterval,
		"never":    pebblestore.FsyncModeNever,
	}
	for in, want := range cases {
		got, err := ParseFsyncMode(in)
		if err != nil {
			t.Fatalf("parse %q: %v", in, err)
		}
		if got != want {
			t.Fatalf("parse %q: got %v want %v", in, got, want)
		}
	}
	if _, err := ParseFsyncMode("sometimes"); err == nil {
		t.Fatalf("expected unknown mode to fail")
	}
}
