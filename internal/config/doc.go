// Package config provides the configuration system for Tally.
//
// Configuration is organized in layers with higher layers overriding lower:
//
//	┌─────────────────────────────┐
//	│  4. Command Line Arguments  │  ← Highest priority (applied by cmd/tally)
//	├─────────────────────────────┤
//	│  3. Environment Variables   │  ← TALLY_ENGINE_MAX_ENTRIES, TALLY_LOG_LEVEL, ...
//	├─────────────────────────────┤
//	│  2. Config File             │  ← ~/.config/tally/config.toml
//	├─────────────────────────────┤
//	│  1. Built-in Defaults       │  ← Lowest priority
//	└─────────────────────────────┘
//
// # Sub-packages
//
//   - loader: TOML file and environment variable loading
//   - watcher: file change notification for live reload
//
// # Basic Usage
//
//	cfg, err := config.Load(config.DefaultPath())
//	if err != nil {
//	    return err
//	}
//
// # File Format
//
//	[engine]
//	initial_value = 0
//	max_entries = 1000
//	read_only = false
//
//	[logging]
//	level = "info"   # debug, info, warn, error
//	format = "text"  # text, json
//
//	[script]
//	instruction_limit = 1000000
package config
