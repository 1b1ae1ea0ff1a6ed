package statestore

import (
	"testing"

	pebblestore "github.com/rzbill/provex/internal/storage/pebble"
)

func TestMemoryStore(t *testing.T) {
	s := NewMemory()
	if _, ok, err := s.GetState("missing"); ok || err != nil {
		t.Fatalf("missing key should be absent, err=%v", err)
	}
	if err := s.SetState("k", "v"); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, ok, err := s.GetState("k")
	if err != nil || !ok || v != "v" {
		t.Fatalf("get: %q %v %v", v, ok, err)
	}
}

func TestPebbleStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: dir, Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	s := NewPebble(db, "export")
	if err := s.SetState("last_event_id", "42"); err != nil {
		t.Fatalf("set: %v", err)
	}
	_ = db.Close()

	db2, err := pebblestore.Open(pebblestore.Options{DataDir: dir, Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = db2.Close() })
	s2 := NewPebble(db2, "export")
	v, ok, err := s2.GetState("last_event_id")
	if err != nil || !ok || v != "42" {
		t.Fatalf("state not persisted: %q %v %v", v, ok, err)
	}
}

func TestPebbleStoreScopesAreIsolated(t *testing.T) {
	db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeNever})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	a := NewPebble(db, "a")
	b := NewPebble(db, "b")
	if err := a.SetState("k", "1"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, ok, _ := b.GetState("k"); ok {
		t.Fatalf("scope b should not see scope a's key")
	}
}
