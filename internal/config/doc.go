// Package config provides configuration loading, merging, and path
// management for CodeForge.
//
// # Configuration Loading
//
// The Load function searches for and merges configuration from multiple
// sources in priority order:
//
//  1. Global config (~/.codeforge/)
//  2. Global config (~/.config/codeforge/ - XDG compatible)
//  3. Project config (<dir> and <dir>/.codeforge/)
//  4. CODEFORGE_CONFIG file
//  5. CODEFORGE_CONFIG_CONTENT inline JSON
//  6. Environment variables
//
// Later sources override earlier ones. Scalar settings replace wholesale;
// permission rules merge per pattern, so a project config can tighten one
// pattern without restating the global rule set.
//
// # Supported Formats
//
// Each cascade directory is probed for codeforge.json, codeforge.jsonc,
// codeforge.yaml, and codeforge.yml. JSONC comments are stripped using
// tidwall/jsonc; YAML files are parsed with yaml.v3.
//
// # Variable Interpolation
//
// Configuration files support two types of variable interpolation:
//   - {env:VAR_NAME} - Expands to environment variable values
//   - {file:path} - Expands to file contents, escaped for use inside a
//     quoted string
//
// File paths in {file:path} placeholders support:
//   - Absolute paths
//   - Relative paths (resolved relative to config file directory)
//   - Home directory expansion (~/)
//
// Example:
//
//	{
//	  "shell": "{env:CODEFORGE_TEST_SHELL}",
//	  "permission": {
//	    "git push*": "ask",
//	    "rm *": "deny"
//	  }
//	}
//
// # Environment Variable Overrides
//
// Several environment variables provide direct configuration overrides:
//   - CODEFORGE_LOG_LEVEL - Override the log level
//   - CODEFORGE_SHELL - Override the shell binary
//   - CODEFORGE_PERMISSION - JSON object of pattern -> allow|deny|ask
//   - CODEFORGE_CONFIG - Path to a specific config file
//   - CODEFORGE_CONFIG_CONTENT - Inline JSON configuration
//   - CODEFORGE_CONFIG_DIR - Override the config directory location
//
// # Path Management
//
// The package provides XDG Base Directory Specification compliant path
// management through the Paths type:
//   - Data: ~/.local/share/codeforge (XDG_DATA_HOME)
//   - Config: ~/.config/codeforge (XDG_CONFIG_HOME)
//   - Cache: ~/.cache/codeforge (XDG_CACHE_HOME)
//   - State: ~/.local/state/codeforge (XDG_STATE_HOME)
//
// On Windows, these paths are adapted to use APPDATA as appropriate.
//
// # Usage Example
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	paths := config.GetPaths()
//	if err := paths.EnsurePaths(); err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := config.Save(cfg, config.GlobalConfigPath()); err != nil {
//	    log.Fatal(err)
//	}
package config
