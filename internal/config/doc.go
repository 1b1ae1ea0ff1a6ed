// Package config provides loading and environment overlay for the Provex
// agent configuration. It exposes a Default() baseline, JSON file loading,
// and a PROVEX_* environment overlay.
//
// Example:
//
//	cfg := config.Default()
//	// Optionally load from file and overlay env vars
//	if fileCfg, err := config.Load("/etc/provex.json"); err == nil {
//	    cfg = fileCfg
//	}
//	config.FromEnv(&cfg)
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
//	// Pass cfg into runtime.Options and the export pipeline constructors.
package config
