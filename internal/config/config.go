package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"schedwidget/internal/reminder"
)

// NOTE: This file provides the configuration model and full YAML-based
// load/save behavior, including first-run config creation and 0600
// permissions.

// BasicAuthConfig holds HTTP Basic Auth credentials for the widget host.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// TelegramConfig enables the Telegram notification sink when both token
// and chat id are set.
type TelegramConfig struct {
	Token      string `yaml:"token" json:"token"`
	ChatID     int64  `yaml:"chat_id" json:"chat_id"`
	RatePerSec int    `yaml:"rate_per_sec" json:"rate_per_sec"`
}

// NotifyConfig selects notification sinks.
type NotifyConfig struct {
	// Web queues notices for the widget page.
	Web bool `yaml:"web" json:"web"`
	// Log writes notices to the application log.
	Log      bool            `yaml:"log" json:"log"`
	Telegram *TelegramConfig `yaml:"telegram,omitempty" json:"telegram,omitempty"`
}

// BackendConfig configures the bundled reference backend.
type BackendConfig struct {
	Listen        string `yaml:"listen" json:"listen"`
	DBPath        string `yaml:"db_path" json:"db_path"`
	AdminPassword string `yaml:"admin_password" json:"admin_password"`
	CORS          bool   `yaml:"cors" json:"cors"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the widget host.
	Listen string `yaml:"listen" json:"listen"`

	// BackendURL is the base URL of the schedule backend.
	BackendURL string `yaml:"backend_url" json:"backend_url"`

	// RequestTimeout bounds each backend call.
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`

	// Timezone is the IANA zone used to interpret item date/time.
	// "Local" uses the host zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// Poll is a cron-style schedule for the reminder poller
	// (e.g. "@every 10s").
	Poll string `yaml:"poll" json:"poll"`

	// Windows overrides the reminder threshold table.
	Windows []reminder.Window `yaml:"windows,omitempty" json:"windows,omitempty"`

	// LegacyPassword is the default password for the /schedule?password= view.
	LegacyPassword string `yaml:"legacy_password,omitempty" json:"-"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	Notify  NotifyConfig  `yaml:"notify" json:"notify"`
	Backend BackendConfig `yaml:"backend" json:"backend"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:         "127.0.0.1:8080",
		BackendURL:     "http://127.0.0.1:5000",
		RequestTimeout: 15 * time.Second,
		Timezone:       "Local",
		Poll:           reminder.DefaultSchedule,
		LogLevel:       "info",
		Notify: NotifyConfig{
			Web: true,
			Log: true,
		},
		Backend: BackendConfig{
			Listen: "127.0.0.1:5000",
			DBPath: "./var/schedule.db",
			CORS:   true,
		},
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	d := DefaultConfig()
	if c.Listen == "" {
		c.Listen = d.Listen
	}
	if c.BackendURL == "" {
		c.BackendURL = d.BackendURL
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = d.RequestTimeout
	}
	if c.Timezone == "" {
		c.Timezone = d.Timezone
	}
	if c.Poll == "" {
		c.Poll = d.Poll
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	if c.Backend.Listen == "" {
		c.Backend.Listen = d.Backend.Listen
	}
	if c.Backend.DBPath == "" {
		c.Backend.DBPath = d.Backend.DBPath
	}
	if c.Notify.Telegram != nil && c.Notify.Telegram.RatePerSec <= 0 {
		c.Notify.Telegram.RatePerSec = 1
	}
}

// Validate reports settings that cannot be normalized away.
func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return err
	}
	if c.Windows != nil {
		if err := reminder.ValidateWindows(c.Windows); err != nil {
			return err
		}
	}
	return nil
}

// Location resolves Timezone, falling back to time.Local.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	return Parse(data)
}

// Parse decodes YAML config bytes and normalizes them.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".schedwidget-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
