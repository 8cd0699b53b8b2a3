// Package config loads the Inkdex sidecar configuration.
//
// The sidecar config describes the process itself: socket paths, the
// indexing engine endpoint, polling cadence, and logging. Per-workspace
// indexing preferences live in each workspace's settings document and
// are handled by the settings package, not here.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete Inkdex sidecar configuration.
type Config struct {
	Version int           `yaml:"version" json:"version"`
	Daemon  DaemonConfig  `yaml:"daemon" json:"daemon"`
	Engine  EngineConfig  `yaml:"engine" json:"engine"`
	Poll    PollConfig    `yaml:"poll" json:"poll"`
	Watcher WatcherConfig `yaml:"watcher" json:"watcher"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// DaemonConfig configures the UI-facing daemon socket.
type DaemonConfig struct {
	// SocketPath is the Unix socket the desktop shell connects to.
	SocketPath string `yaml:"socket_path" json:"socket_path"`
	// PIDPath stores the daemon's process ID.
	PIDPath string `yaml:"pid_path" json:"pid_path"`
	// ShutdownTimeout is the grace period for in-flight requests.
	ShutdownTimeout string `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// EngineConfig configures the connection to the indexing engine.
type EngineConfig struct {
	// SocketPath is the Unix socket the engine daemon listens on.
	SocketPath string `yaml:"socket_path" json:"socket_path"`
	// DialTimeout bounds connection establishment.
	DialTimeout string `yaml:"dial_timeout" json:"dial_timeout"`
	// CallTimeout bounds a single engine command. Workspace indexing
	// can take minutes on large vaults, so this is generous.
	CallTimeout string `yaml:"call_timeout" json:"call_timeout"`
}

// PollConfig configures indexing metadata polling.
type PollConfig struct {
	// Interval between metadata fetches for the tracked workspace.
	Interval string `yaml:"interval" json:"interval"`
}

// WatcherConfig configures the auto-index note watcher.
type WatcherConfig struct {
	// Debounce coalesces rapid note saves before indexing.
	Debounce string `yaml:"debounce" json:"debounce"`
	// Extensions lists note file extensions to watch.
	Extensions []string `yaml:"extensions" json:"extensions"`
}

// LoggingConfig configures daemon logging.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// Defaults used when the config file or a field is absent.
const (
	DefaultPollInterval    = 5 * time.Second
	DefaultWatchDebounce   = 500 * time.Millisecond
	DefaultDialTimeout     = 2 * time.Second
	DefaultCallTimeout     = 10 * time.Minute
	DefaultShutdownTimeout = 10 * time.Second
)

var defaultNoteExtensions = []string{".md", ".markdown", ".txt"}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Daemon: DaemonConfig{
			SocketPath:      filepath.Join(runtimeDir(), "inkdex.sock"),
			PIDPath:         filepath.Join(runtimeDir(), "inkdex.pid"),
			ShutdownTimeout: "10s",
		},
		Engine: EngineConfig{
			SocketPath:  filepath.Join(runtimeDir(), "engine.sock"),
			DialTimeout: "2s",
			CallTimeout: "10m",
		},
		Poll: PollConfig{
			Interval: "5s",
		},
		Watcher: WatcherConfig{
			Debounce:   "500ms",
			Extensions: defaultNoteExtensions,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// runtimeDir returns the directory for sockets and PID files (~/.inkdex).
func runtimeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".inkdex")
	}
	return filepath.Join(home, ".inkdex")
}

// GetUserConfigPath returns the path to the user configuration file.
// It follows XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/inkdex/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/inkdex/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "inkdex", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "inkdex", "config.yaml")
	}
	return filepath.Join(home, ".config", "inkdex", "config.yaml")
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// Load loads configuration with increasing precedence:
//  1. Hardcoded defaults
//  2. Config file (explicit path, or the user config when path is empty)
//  3. Environment variables (INKDEX_*)
//
// A missing config file is fine; defaults are used.
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		path = GetUserConfigPath()
	}
	if fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.Daemon.SocketPath != "" {
		c.Daemon.SocketPath = other.Daemon.SocketPath
	}
	if other.Daemon.PIDPath != "" {
		c.Daemon.PIDPath = other.Daemon.PIDPath
	}
	if other.Daemon.ShutdownTimeout != "" {
		c.Daemon.ShutdownTimeout = other.Daemon.ShutdownTimeout
	}

	if other.Engine.SocketPath != "" {
		c.Engine.SocketPath = other.Engine.SocketPath
	}
	if other.Engine.DialTimeout != "" {
		c.Engine.DialTimeout = other.Engine.DialTimeout
	}
	if other.Engine.CallTimeout != "" {
		c.Engine.CallTimeout = other.Engine.CallTimeout
	}

	if other.Poll.Interval != "" {
		c.Poll.Interval = other.Poll.Interval
	}

	if other.Watcher.Debounce != "" {
		c.Watcher.Debounce = other.Watcher.Debounce
	}
	if len(other.Watcher.Extensions) > 0 {
		c.Watcher.Extensions = other.Watcher.Extensions
	}

	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
	if other.Logging.File != "" {
		c.Logging.File = other.Logging.File
	}
}

// applyEnvOverrides applies INKDEX_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("INKDEX_DAEMON_SOCKET"); v != "" {
		c.Daemon.SocketPath = v
	}
	if v := os.Getenv("INKDEX_DAEMON_PID"); v != "" {
		c.Daemon.PIDPath = v
	}
	if v := os.Getenv("INKDEX_ENGINE_SOCKET"); v != "" {
		c.Engine.SocketPath = v
	}
	if v := os.Getenv("INKDEX_POLL_INTERVAL"); v != "" {
		if _, err := time.ParseDuration(v); err == nil {
			c.Poll.Interval = v
		}
	}
	if v := os.Getenv("INKDEX_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.Daemon.SocketPath == "" {
		return fmt.Errorf("daemon.socket_path cannot be empty")
	}
	if c.Daemon.PIDPath == "" {
		return fmt.Errorf("daemon.pid_path cannot be empty")
	}
	if c.Engine.SocketPath == "" {
		return fmt.Errorf("engine.socket_path cannot be empty")
	}

	for name, value := range map[string]string{
		"daemon.shutdown_timeout": c.Daemon.ShutdownTimeout,
		"engine.dial_timeout":     c.Engine.DialTimeout,
		"engine.call_timeout":     c.Engine.CallTimeout,
		"poll.interval":           c.Poll.Interval,
		"watcher.debounce":        c.Watcher.Debounce,
	} {
		if value == "" {
			continue
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%s must be a duration like '5s', got %q", name, value)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %q", name, value)
		}
	}

	for _, ext := range c.Watcher.Extensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("watcher.extensions entries must start with '.', got %q", ext)
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}

	return nil
}

// PollInterval returns the parsed poll interval.
func (c *Config) PollInterval() time.Duration {
	return durationOr(c.Poll.Interval, DefaultPollInterval)
}

// WatchDebounce returns the parsed watcher debounce window.
func (c *Config) WatchDebounce() time.Duration {
	return durationOr(c.Watcher.Debounce, DefaultWatchDebounce)
}

// EngineDialTimeout returns the parsed engine dial timeout.
func (c *Config) EngineDialTimeout() time.Duration {
	return durationOr(c.Engine.DialTimeout, DefaultDialTimeout)
}

// EngineCallTimeout returns the parsed engine call timeout.
func (c *Config) EngineCallTimeout() time.Duration {
	return durationOr(c.Engine.CallTimeout, DefaultCallTimeout)
}

// ShutdownTimeout returns the parsed daemon shutdown grace period.
func (c *Config) ShutdownTimeout() time.Duration {
	return durationOr(c.Daemon.ShutdownTimeout, DefaultShutdownTimeout)
}

// NoteExtensions returns the watched note extensions, lowercased.
func (c *Config) NoteExtensions() []string {
	exts := c.Watcher.Extensions
	if len(exts) == 0 {
		exts = defaultNoteExtensions
	}
	out := make([]string, len(exts))
	for i, e := range exts {
		out[i] = strings.ToLower(e)
	}
	return out
}

// durationOr parses s, falling back to def when empty or invalid.
func durationOr(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
