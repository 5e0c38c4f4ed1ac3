// Package config provides configuration management for the GC simulation
// platform.
//
// Configuration is assembled from layered JSON files plus environment
// variable overrides, validated, and then served to the rest of the process
// through a thread-safe snapshot wrapper.
//
// # Core Components
//
// Config: the complete application configuration: instrument identity, NATS
// connection details, HTTP gateway and metrics endpoints, catalog and
// template data files, run-store settings, and per-service configuration.
//
// SafeConfig: thread-safe wrapper using RWMutex and deep cloning so readers
// can never observe or cause a partial update.
//
// Loader: loads configuration with layer merging (base + overrides) and
// INTELLILAB_* environment variable substitution for deployment-specific
// values.
//
// # Basic Usage
//
// Loading configuration from files with layer merging:
//
//	loader := config.NewLoader()
//	loader.AddLayer("config/base.json")
//	loader.AddLayer("config/lab-7.json") // overrides base
//	loader.EnableValidation(true)
//
//	cfg, err := loader.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Layers merge with last-wins semantics:
//
//	base.json:
//	  {"instrument": {"id": "gc-sim-1", "environment": "dev"}}
//
//	lab-7.json:
//	  {"instrument": {"id": "gc-7"}}
//
//	Result:
//	  {"instrument": {"id": "gc-7", "environment": "dev"}}
//
// # Environment Variable Overrides
//
// Deployment values can be overridden without editing files:
//
//	# Override the instrument identity
//	export INTELLILAB_INSTRUMENT_ID="gc-7"
//
//	# Override NATS URLs (comma-separated)
//	export INTELLILAB_NATS_URLS="nats://server1:4222,nats://server2:4222"
//
// # Thread-Safe Access
//
//	safe := config.NewSafeConfig(cfg)
//
//	// Read config (deep copy returned, safe to use)
//	snapshot := safe.Get()
//
//	// Replace the snapshot after validating the candidate
//	if err := safe.Update(next); err != nil {
//		log.Fatal(err)
//	}
//
// Reloading is an explicit administrative action: load a fresh Config with a
// Loader and hand it to SafeConfig.Update. Nothing in this package watches
// files or the message bus for changes.
//
// # Security
//
// File handling is defensive:
//   - File size limits (10MB max) to prevent memory exhaustion
//   - JSON depth validation (100 levels max) to prevent parser abuse
//   - Path validation to prevent directory traversal
//   - Regular file checks (no symlinks or device files)
package config
