// Package runtime wires storage, the event log, and pipeline state into a
// single-node Provex agent instance. It exposes Open/Close, basic health
// checks, and accessors for the components the export pipeline builds on.
//
// Example:
//
//	cfg := config.Default()
//	rt, _ := runtime.Open(runtime.Options{DataDir: "./data", Fsync: pebblestore.FsyncModeInterval, Config: cfg})
//	defer rt.Close()
//	// Health
//	_ = rt.CheckHealth(context.Background())
//	// Append to the provenance log
//	_, _ = rt.Log().Append(context.Background(), []provenance.Event{{EventType: provenance.EventCreate}})
package runtime
