// Package log provides Provex's structured logging facade.
//
// # Overview
//
// The package exposes a small Logger interface with leveled methods and a
// simple Field type for structured context. Formatting (text or JSON) and
// output destinations are pluggable, and stdlib log output from embedded
// libraries such as Pebble can be redirected through the facade.
//
// Quick start
//
//	l := log.NewLogger(
//	    log.WithLevel(log.InfoLevel),
//	    log.WithFormatter(&log.TextFormatter{}),
//	    log.WithOutput(log.NewConsoleOutput()),
//	)
//	l = l.With(log.Component("export"))
//	l.Info("batch delivered", log.Int("events", 42))
//
// # Configuration
//
// Use ApplyConfig to build a logger from a declarative Config, supporting
// text or JSON formatting. Use RedirectStdLog to route standard library logs
// through the facade.
package log
