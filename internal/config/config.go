// Package config holds the on-disk configuration and its manager. The
// config file lives at ~/.config/hoverfocus/config.yaml and is created
// with defaults on first run.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hoverfocus/hoverfocus/internal/logger"
)

// ManagedListConfig configures the external managed-window list.
type ManagedListConfig struct {
	// Path to a line-oriented file of numeric window handles maintained
	// by an external window manager. Empty disables filtering entirely.
	Path string `json:"path" yaml:"path"`

	// CheckIntervalMs is how often the file's modification state is
	// re-examined. Coarser than the tick interval so list I/O never
	// gates focus responsiveness.
	CheckIntervalMs int `json:"check_interval_ms" yaml:"check_interval_ms"`

	// FailOpen treats an unreadable or never-loaded list as "no
	// restriction" instead of "nothing eligible".
	FailOpen bool `json:"fail_open" yaml:"fail_open"`
}

// HistoryConfig configures the optional focus-change history store.
type HistoryConfig struct {
	Enabled       bool   `json:"enabled" yaml:"enabled"`
	DBPath        string `json:"db_path" yaml:"db_path"`
	RetentionDays int    `json:"retention_days" yaml:"retention_days"`
}

// APIConfig configures the optional introspection HTTP server.
type APIConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Listen  string `json:"listen" yaml:"listen"`
}

// Config is the application configuration.
type Config struct {
	// IntervalMs is the engine tick cadence in milliseconds.
	IntervalMs int `json:"interval_ms" yaml:"interval_ms"`

	// IgnoreClasses lists WM_CLASS values that are never focused,
	// beyond the dock/desktop surfaces the resolver already filters.
	IgnoreClasses []string `json:"ignore_classes" yaml:"ignore_classes"`

	// PauseClasses lists WM_CLASS values that suspend all focus changes
	// while one of them holds focus.
	PauseClasses []string `json:"pause_classes" yaml:"pause_classes"`

	ManagedList ManagedListConfig `json:"managed_list" yaml:"managed_list"`
	History     HistoryConfig     `json:"history" yaml:"history"`
	API         APIConfig         `json:"api" yaml:"api"`

	LogLevel string `json:"log_level" yaml:"log_level"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		IntervalMs: 50,
		ManagedList: ManagedListConfig{
			CheckIntervalMs: 2000,
		},
		History: HistoryConfig{
			RetentionDays: 30,
		},
		API: APIConfig{
			Listen: "127.0.0.1:7818",
		},
		LogLevel: "info",
	}
}

// TickInterval returns the engine tick interval.
func (c *Config) TickInterval() time.Duration {
	if c.IntervalMs <= 0 {
		return 50 * time.Millisecond
	}
	return time.Duration(c.IntervalMs) * time.Millisecond
}

// ManagedCheckInterval returns the managed list re-check interval.
func (c *Config) ManagedCheckInterval() time.Duration {
	if c.ManagedList.CheckIntervalMs <= 0 {
		return 2 * time.Second
	}
	return time.Duration(c.ManagedList.CheckIntervalMs) * time.Millisecond
}

// Manager handles loading and saving the configuration file.
type Manager struct {
	configPath string
	config     *Config
	mu         sync.RWMutex
}

// NewManager creates a configuration manager. An empty configFile selects
// the default path; a missing file is created with defaults.
func NewManager(configFile string) (*Manager, error) {
	actualPath := configFile
	if actualPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir := filepath.Join(homeDir, ".config", "hoverfocus")
		if err := os.MkdirAll(configDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create config directory: %w", err)
		}
		actualPath = filepath.Join(configDir, "config.yaml")
	}

	m := &Manager{configPath: actualPath}

	if err := m.load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load config from %s: %w", actualPath, err)
		}
		logger.WithComponent("config").Info().
			Str("path", actualPath).
			Msg("no config file found, creating defaults")
		m.config = Default()
		if err := m.Save(); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// GetConfigPath returns the path of the backing config file.
func (m *Manager) GetConfigPath() string {
	return m.configPath
}

// Get returns a copy of the current configuration.
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return *m.config
}

// SetLogLevel overrides the configured log level (not persisted).
func (m *Manager) SetLogLevel(level string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config.LogLevel = level
}

// SetManagedListPath overrides the managed list path (not persisted).
func (m *Manager) SetManagedListPath(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config.ManagedList.Path = path
}

// SetInterval overrides the tick interval (not persisted).
func (m *Manager) SetInterval(ms int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config.IntervalMs = ms
}

// Save writes the current configuration to disk.
func (m *Manager) Save() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, err := yaml.Marshal(m.config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(m.configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func (m *Manager) load() error {
	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
	return nil
}
