// Package agentrun exposes a shared Run entrypoint used by the CLI to start
// the Provex export agent, handling lifecycle and shutdown.
//
// Example:
//
//	cfg := config.Default()
//	cfg.CollectorURL = "http://collector:8099"
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	_ = agentrun.Run(ctx, agentrun.Options{DataDir: "./data", Config: cfg})
package agentrun
