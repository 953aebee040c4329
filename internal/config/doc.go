// Package config provides configuration loading, merging, and path management for Lace.
//
// This package handles the configuration system that supports multiple sources
// and formats, with a hierarchical loading strategy that ensures proper precedence.
//
// # Configuration Loading
//
// The Load function merges configuration from multiple sources in priority
// order, later sources overriding earlier ones:
//
//  1. Global config: lace.json, then lace.jsonc, in the Paths.Config directory
//     (~/.config/lace/, XDG compatible)
//  2. Project config: .lace/lace.json, then .lace/lace.jsonc, under the given
//     directory
//  3. LACE_CONFIG file
//  4. LACE_CONFIG_CONTENT inline JSON
//  5. Environment variables
//
// Only the given directory is consulted for project config; Load does not walk
// up to parent directories. A file that is missing or does not parse is skipped.
//
// # Supported Formats
//
// The package supports both JSON and JSONC (JSON with Comments) formats:
//   - lace.json - Standard JSON configuration
//   - lace.jsonc - JSON with comments, processed using tidwall/jsonc
//
// # Variable Interpolation
//
// Load does not expand placeholders such as {env:VAR_NAME} or {file:path};
// string values are taken literally as written.
//
// # Configuration Merging
//
// Each source is merged into the result field by field:
//   - Model and SmallModel are replaced when the source sets them
//   - Provider and Agent maps are merged by key; a source entry replaces the
//     whole entry of the same key
//   - LSP, Watcher and Experimental are replaced when the source sets them
//
// No other Config field is merged; fields such as Schema, Username,
// Instructions, Command, Permission and MCP are not carried into the result.
//
// # Path Management
//
// The package provides XDG Base Directory Specification compliant path management
// through the Paths type:
//   - Data: ~/.local/share/lace (XDG_DATA_HOME)
//   - Config: ~/.config/lace (XDG_CONFIG_HOME)
//   - Cache: ~/.cache/lace (XDG_CACHE_HOME)
//   - State: ~/.local/state/lace (XDG_STATE_HOME)
//
// On Windows, these paths are adapted to use APPDATA as appropriate.
//
// # Environment Variable Overrides
//
// Several environment variables provide direct configuration overrides:
//   - ANTHROPIC_API_KEY, OPENAI_API_KEY, GOOGLE_API_KEY, AWS_ACCESS_KEY_ID -
//     Fill the matching provider's APIKey when the config leaves it empty
//   - LACE_MODEL - Override the default model
//   - LACE_SMALL_MODEL - Override the small model
//   - LACE_CONFIG - Path to a specific config file
//   - LACE_CONFIG_CONTENT - Inline JSON configuration
//   - LACE_CONFIG_DIR - Override the config directory location
//
// # Usage Example
//
//	// Load configuration from the current directory
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Get standard paths
//	paths := config.GetPaths()
//	err = paths.EnsurePaths() // Create directories if they don't exist
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Save configuration
//	err = config.Save(cfg, config.GlobalConfigPath())
//	if err != nil {
//	    log.Fatal(err)
//	}
package config