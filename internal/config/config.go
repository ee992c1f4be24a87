package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	// GameDir is the game installation directory the favorites artifact is
	// written beneath. Empty means the current working directory.
	GameDir  string `toml:"game_dir"`
	LocalDir string `toml:"local_dir"`
	LogDir   string `toml:"log_dir"`
}

// Master contains configuration for the server directory endpoint.
type Master struct {
	URL    string `toml:"url"`
	GameID string `toml:"game_id"`
}

// Location contains configuration for the IP-geolocation endpoint.
type Location struct {
	URL string `toml:"url"`
	// APIKey is appended verbatim to lookup URLs, including any query
	// separator the provider expects.
	APIKey string `toml:"api_key"`
}

// Favorites contains configuration for the favorites artifact.
type Favorites struct {
	Limit int `toml:"limit"`
}

// Console contains configuration for the game console subprocess.
type Console struct {
	Binary string `toml:"binary"`
}

// Release contains configuration for the startup version check.
type Release struct {
	ManifestURL    string `toml:"manifest_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Workflow contains timing configuration for background work.
type Workflow struct {
	CacheFlushInterval int `toml:"cache_flush_interval"`
	RequestTimeout     int `toml:"request_timeout"`
}

// Runtime contains execution-model configuration.
type Runtime struct {
	// SingleThreaded pins the process to one OS thread's worth of
	// parallelism. Concurrency is preserved, parallelism is not.
	SingleThreaded bool `toml:"single_threaded"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for scout.
//
// Configuration sections by subsystem:
//   - Paths: game, local-data, and log directories
//   - Master: server directory endpoint and game identifier
//   - Location: IP-geolocation endpoint and key
//   - Favorites: artifact size cap
//   - Console: game console subprocess binary
//   - Release: startup version check
//   - Workflow: cache flush interval and HTTP timeouts
//   - Runtime: single-threaded execution toggle
//   - Logging: log format and level
type Config struct {
	Paths     Paths     `toml:"paths"`
	Master    Master    `toml:"master"`
	Location  Location  `toml:"location"`
	Favorites Favorites `toml:"favorites"`
	Console   Console   `toml:"console"`
	Release   Release   `toml:"release"`
	Workflow  Workflow  `toml:"workflow"`
	Runtime   Runtime   `toml:"runtime"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/scout/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("scout.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories scout writes into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.LocalDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
