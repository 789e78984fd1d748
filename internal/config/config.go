// Package config handles tribe configuration loading and validation.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
	BackendBolt   = "bolt"
)

// Themes.
const (
	ThemeDefault      = "default"
	ThemeHighContrast = "high-contrast"
)

// Config is the root configuration structure for tribe.
type Config struct {
	// API settings for the remote chat service
	API APIConfig `yaml:"api" mapstructure:"api"`

	// Storage settings for persisted client state
	Storage StorageConfig `yaml:"storage" mapstructure:"storage"`

	// Sync settings
	Sync SyncConfig `yaml:"sync" mapstructure:"sync"`

	// Logging settings
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`

	// TUI settings
	TUI TUIConfig `yaml:"tui" mapstructure:"tui"`

	// Metrics settings
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
}

// APIConfig describes the remote service.
type APIConfig struct {
	// BaseURL is the API root, e.g. https://host/api.
	BaseURL string `yaml:"base_url" mapstructure:"base_url" validate:"required,url"`

	// Timeout bounds each request.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout" validate:"gte=100ms"`

	// RateLimit caps requests per second; 0 disables limiting.
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit" validate:"gte=0"`
}

// StorageConfig selects where the timeline is persisted.
type StorageConfig struct {
	// Backend is one of memory, file, sqlite, badger, bolt.
	Backend string `yaml:"backend" mapstructure:"backend" validate:"required,oneof=memory file sqlite badger bolt"`

	// Path is the data directory (default: ~/.local/share/tribe).
	Path string `yaml:"path" mapstructure:"path"`
}

// SyncConfig tunes polling and pagination.
type SyncConfig struct {
	// PollInterval is how often new and edited messages are fetched.
	PollInterval time.Duration `yaml:"poll_interval" mapstructure:"poll_interval" validate:"gte=500ms"`

	// PageSize is the server's page size; shorter pages end history.
	PageSize int `yaml:"page_size" mapstructure:"page_size" validate:"gte=1,lte=500"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `yaml:"level" mapstructure:"level" validate:"oneof=trace debug info warn warning error fatal disabled off"`

	// Format is the output format (json, console).
	Format string `yaml:"format" mapstructure:"format" validate:"oneof=console json"`

	// File is an optional log file path. The TUI logs here, or nowhere.
	File string `yaml:"file" mapstructure:"file"`

	// EnableCaller adds caller information to logs.
	EnableCaller bool `yaml:"enable_caller" mapstructure:"enable_caller"`
}

// TUIConfig contains terminal UI settings.
type TUIConfig struct {
	// Theme is default or high-contrast.
	Theme string `yaml:"theme" mapstructure:"theme" validate:"oneof=default high-contrast"`

	// SelfID marks the local user's messages.
	SelfID string `yaml:"self_id" mapstructure:"self_id"`

	// ShowTimestamps shows the send time in run headers.
	ShowTimestamps bool `yaml:"show_timestamps" mapstructure:"show_timestamps"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	// Addr, when set, serves /metrics on host:port.
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: "https://dummy-chat-server.tribechat.com/api",
			Timeout: 10 * time.Second,
		},
		Storage: StorageConfig{
			Backend: BackendFile,
			Path:    defaultDataDir(),
		},
		Sync: SyncConfig{
			PollInterval: 5 * time.Second,
			PageSize:     25,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		TUI: TUIConfig{
			Theme:          ThemeDefault,
			ShowTimestamps: true,
		},
	}
}

func defaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "tribe")
	}
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".local", "share", "tribe")
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	return v
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, describeFieldError(fe))
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}

	if c.Storage.Backend != BackendMemory && strings.TrimSpace(c.Storage.Path) == "" {
		return fmt.Errorf("storage.path is required for the %s backend", c.Storage.Backend)
	}

	if addr := strings.TrimSpace(c.Metrics.Addr); addr != "" {
		if _, port, err := net.SplitHostPort(addr); err != nil || port == "" {
			return fmt.Errorf("metrics.addr must be host:port, got %q", addr)
		}
	}

	return nil
}

// describeFieldError renders "api.timeout must be gte 100ms" from a
// validator error whose namespace starts at Config.
func describeFieldError(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "url":
		return field + " must be a valid URL"
	default:
		return fmt.Sprintf("%s must be %s %s", field, fe.Tag(), fe.Param())
	}
}

// EnsureDirectories creates required directories.
func (c *Config) EnsureDirectories() error {
	if c.Storage.Backend == BackendMemory {
		return nil
	}
	if err := os.MkdirAll(c.Storage.Path, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", c.Storage.Path, err)
	}
	return nil
}

// YAML renders the configuration as a config file. Durations are written in
// their string form so the file stays hand-editable.
func (c *Config) YAML() ([]byte, error) {
	doc := map[string]any{
		"api": map[string]any{
			"base_url":   c.API.BaseURL,
			"timeout":    c.API.Timeout.String(),
			"rate_limit": c.API.RateLimit,
		},
		"storage": map[string]any{
			"backend": c.Storage.Backend,
			"path":    c.Storage.Path,
		},
		"sync": map[string]any{
			"poll_interval": c.Sync.PollInterval.String(),
			"page_size":     c.Sync.PageSize,
		},
		"logging": map[string]any{
			"level":         c.Logging.Level,
			"format":        c.Logging.Format,
			"file":          c.Logging.File,
			"enable_caller": c.Logging.EnableCaller,
		},
		"tui": map[string]any{
			"theme":           c.TUI.Theme,
			"self_id":         c.TUI.SelfID,
			"show_timestamps": c.TUI.ShowTimestamps,
		},
		"metrics": map[string]any{
			"addr": c.Metrics.Addr,
		},
	}
	return yaml.Marshal(doc)
}

// WriteFile writes the configuration to path, refusing to overwrite an
// existing file unless force is set.
func (c *Config) WriteFile(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}
	data, err := c.YAML()
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// DefaultConfigPath is where `config init` writes by default.
func DefaultConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "tribe", "config.yaml")
	}
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".config", "tribe", "config.yaml")
}
