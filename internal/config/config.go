package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Defaults applied before any file or environment source merges over them.
const (
	DefaultLogLevel       = "info"
	DefaultTimeoutMillis  = 120000
	DefaultMaxOutputBytes = 30000
)

// Config holds the execution engine settings.
type Config struct {
	// LogLevel is a zerolog level name: trace, debug, info, warn, error.
	LogLevel string `json:"logLevel,omitempty" yaml:"logLevel,omitempty"`

	// Shell overrides shell selection with an explicit binary path.
	Shell string `json:"shell,omitempty" yaml:"shell,omitempty"`

	// TimeoutMillis is the default command timeout in milliseconds.
	TimeoutMillis int `json:"timeoutMillis,omitempty" yaml:"timeoutMillis,omitempty"`

	// MaxOutputBytes caps captured command output.
	MaxOutputBytes int `json:"maxOutputBytes,omitempty" yaml:"maxOutputBytes,omitempty"`

	// Permission maps command patterns to "allow", "deny", or "ask".
	Permission map[string]string `json:"permission,omitempty" yaml:"permission,omitempty"`
}

// Default returns a config with engine defaults and no permission rules.
func Default() *Config {
	return &Config{
		LogLevel:       DefaultLogLevel,
		TimeoutMillis:  DefaultTimeoutMillis,
		MaxOutputBytes: DefaultMaxOutputBytes,
		Permission:     make(map[string]string),
	}
}

// Timeout returns the default command timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutMillis) * time.Millisecond
}

// configNames are the file names probed in each cascade directory, in load
// order.
var configNames = []string{
	"codeforge.json",
	"codeforge.jsonc",
	"codeforge.yaml",
	"codeforge.yml",
}

// Load loads configuration from multiple sources (priority order):
// 1. Global config (~/.codeforge/)
// 2. Global config (~/.config/codeforge/ - XDG compatible)
// 3. Project config (<dir> and <dir>/.codeforge/)
// 4. CODEFORGE_CONFIG file
// 5. CODEFORGE_CONFIG_CONTENT inline JSON
// 6. Environment variables
func Load(directory string) (*Config, error) {
	config := Default()

	// Track loaded files to avoid duplicates
	loaded := make(map[string]bool)

	loadOnce := func(path string, baseDir string) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return
		}
		if loaded[absPath] {
			return
		}
		if loadConfigFile(path, config, baseDir) == nil {
			loaded[absPath] = true
		}
	}

	// 1. Home dot directory (~/.codeforge/)
	if home := os.Getenv("HOME"); home != "" {
		dotDir := filepath.Join(home, ".codeforge")
		for _, name := range configNames {
			loadOnce(filepath.Join(dotDir, name), dotDir)
		}
	}

	// 2. XDG-compatible global config (~/.config/codeforge/)
	globalPath := GetPaths().Config
	for _, name := range configNames {
		loadOnce(filepath.Join(globalPath, name), globalPath)
	}

	// 3. Project config
	if directory != "" {
		projectDir := filepath.Join(directory, ".codeforge")
		for _, name := range configNames {
			loadOnce(filepath.Join(directory, name), directory)
		}
		for _, name := range configNames {
			loadOnce(filepath.Join(projectDir, name), projectDir)
		}
	}

	// 4. CODEFORGE_CONFIG file override
	if configPath := os.Getenv("CODEFORGE_CONFIG"); configPath != "" {
		loadOnce(configPath, filepath.Dir(configPath))
	}

	// 5. CODEFORGE_CONFIG_CONTENT inline JSON
	if content := os.Getenv("CODEFORGE_CONFIG_CONTENT"); content != "" {
		var inline Config
		if err := json.Unmarshal(jsonc.ToJSON([]byte(content)), &inline); err == nil {
			merge(config, &inline)
		}
	}

	// 6. Environment variables (highest priority)
	applyEnvOverrides(config)

	return config, nil
}

// loadConfigFile loads a single config file with interpolation support. The
// extension picks the parser: .yaml/.yml go through yaml.v3, everything else
// through jsonc.
func loadConfigFile(path string, config *Config, baseDir string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err // File doesn't exist, skip
	}

	data = interpolate(data, baseDir)

	var fileConfig Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &fileConfig); err != nil {
			return err
		}
	default:
		if err := json.Unmarshal(jsonc.ToJSON(data), &fileConfig); err != nil {
			return err
		}
	}

	merge(config, &fileConfig)
	return nil
}

// interpolate processes {env:VAR} and {file:path} placeholders.
func interpolate(data []byte, baseDir string) []byte {
	str := string(data)

	// Handle {env:VAR_NAME} placeholders
	envPattern := regexp.MustCompile(`\{env:([^}]+)\}`)
	str = envPattern.ReplaceAllStringFunc(str, func(match string) string {
		varName := envPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})

	// Handle {file:path} placeholders
	filePattern := regexp.MustCompile(`\{file:([^}]+)\}`)
	str = filePattern.ReplaceAllStringFunc(str, func(match string) string {
		filePath := filePattern.FindStringSubmatch(match)[1]

		if strings.HasPrefix(filePath, "~/") {
			home := os.Getenv("HOME")
			filePath = filepath.Join(home, filePath[2:])
		} else if !filepath.IsAbs(filePath) {
			filePath = filepath.Join(baseDir, filePath)
		}

		content, err := os.ReadFile(filePath)
		if err != nil {
			return match // Keep original if file not found
		}

		// Escape for a quoted string. Valid in JSON and in YAML
		// double-quoted scalars, so {file:} values belong inside quotes.
		escaped := strings.ReplaceAll(strings.TrimSpace(string(content)), "\\", "\\\\")
		escaped = strings.ReplaceAll(escaped, "\"", "\\\"")
		escaped = strings.ReplaceAll(escaped, "\n", "\\n")
		escaped = strings.ReplaceAll(escaped, "\r", "\\r")
		escaped = strings.ReplaceAll(escaped, "\t", "\\t")

		return escaped
	})

	return []byte(str)
}

// merge merges source config into target. Scalar fields replace when set;
// permission rules merge per pattern so later sources can override a single
// pattern without dropping the rest.
func merge(target, source *Config) {
	if source.LogLevel != "" {
		target.LogLevel = source.LogLevel
	}
	if source.Shell != "" {
		target.Shell = source.Shell
	}
	if source.TimeoutMillis > 0 {
		target.TimeoutMillis = source.TimeoutMillis
	}
	if source.MaxOutputBytes > 0 {
		target.MaxOutputBytes = source.MaxOutputBytes
	}
	if source.Permission != nil {
		if target.Permission == nil {
			target.Permission = make(map[string]string)
		}
		for pattern, action := range source.Permission {
			target.Permission[pattern] = action
		}
	}
}

// applyEnvOverrides applies environment variable overrides.
func applyEnvOverrides(config *Config) {
	if level := os.Getenv("CODEFORGE_LOG_LEVEL"); level != "" {
		config.LogLevel = level
	}
	if shell := os.Getenv("CODEFORGE_SHELL"); shell != "" {
		config.Shell = shell
	}

	// Permission override (JSON object: pattern -> action)
	if permJSON := os.Getenv("CODEFORGE_PERMISSION"); permJSON != "" {
		var perm map[string]string
		if err := json.Unmarshal([]byte(permJSON), &perm); err == nil {
			merge(config, &Config{Permission: perm})
		}
	}
}

// Save writes the configuration to a file. The extension picks the format,
// .yaml/.yml for YAML and JSON otherwise.
func Save(config *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	var data []byte
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(config)
	default:
		data, err = json.MarshalIndent(config, "", "  ")
	}
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}

// GetConfigDir returns the config directory to use.
// Prefers CODEFORGE_CONFIG_DIR, then ~/.codeforge, then ~/.config/codeforge.
func GetConfigDir() string {
	if dir := os.Getenv("CODEFORGE_CONFIG_DIR"); dir != "" {
		return dir
	}

	if home := os.Getenv("HOME"); home != "" {
		dotDir := filepath.Join(home, ".codeforge")
		if _, err := os.Stat(dotDir); err == nil {
			return dotDir
		}
	}

	return GetPaths().Config
}
