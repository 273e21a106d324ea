package model

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// envPrefix is prepended to every environment override, so api.base_url
// becomes MARKETBELL_API_BASE_URL.
const envPrefix = "MARKETBELL"

// MinWatchInterval is the shortest accepted watcher period, in seconds.
const MinWatchInterval = 30

// APIConfig describes the remote marketplace API.
type APIConfig struct {
	BaseURL    string `mapstructure:"base_url" yaml:"base_url"`
	TimeoutSec int    `mapstructure:"timeout_sec" yaml:"timeout_sec"`
}

// WebConfig describes the marketplace web front-end used for action links.
type WebConfig struct {
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
}

// PollingConfig holds the background cadences.
type PollingConfig struct {
	WatchIntervalSec  int `mapstructure:"watch_interval_sec" yaml:"watch_interval_sec"`
	UnreadIntervalSec int `mapstructure:"unread_interval_sec" yaml:"unread_interval_sec"`
}

// ToastConfig controls how announcements are displayed.
type ToastConfig struct {
	DurationSec int  `mapstructure:"duration_sec" yaml:"duration_sec"`
	Desktop     bool `mapstructure:"desktop" yaml:"desktop"`
}

// LogConfig controls the log file.
type LogConfig struct {
	File  string `mapstructure:"file" yaml:"file"`
	Level string `mapstructure:"level" yaml:"level"`
}

// ServerConfig holds settings for the local development backend.
type ServerConfig struct {
	Addr          string `mapstructure:"addr" yaml:"addr"`
	DBPath        string `mapstructure:"db_path" yaml:"db_path"`
	JWTSecret     string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	TokenTTLHours int    `mapstructure:"token_ttl_hours" yaml:"token_ttl_hours"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	API     APIConfig     `mapstructure:"api" yaml:"api"`
	Web     WebConfig     `mapstructure:"web" yaml:"web"`
	Polling PollingConfig `mapstructure:"polling" yaml:"polling"`
	Toast   ToastConfig   `mapstructure:"toast" yaml:"toast"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
}

// WatchInterval returns the watcher polling period.
func (c *AppConfig) WatchInterval() time.Duration {
	return time.Duration(c.Polling.WatchIntervalSec) * time.Second
}

// UnreadInterval returns the unread count refresh period.
func (c *AppConfig) UnreadInterval() time.Duration {
	return time.Duration(c.Polling.UnreadIntervalSec) * time.Second
}

// ToastDuration returns how long a toast stays on screen.
func (c *AppConfig) ToastDuration() time.Duration {
	return time.Duration(c.Toast.DurationSec) * time.Second
}

// APITimeout returns the per-request HTTP timeout.
func (c *AppConfig) APITimeout() time.Duration {
	return time.Duration(c.API.TimeoutSec) * time.Second
}

// ConfigDir returns ~/.config/marketbell, or "." when no home is known.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "marketbell")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/marketbell/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "http://localhost:8080/api")
	v.SetDefault("api.timeout_sec", 30)
	v.SetDefault("web.base_url", "http://localhost:3000")
	v.SetDefault("polling.watch_interval_sec", 120)
	v.SetDefault("polling.unread_interval_sec", 60)
	v.SetDefault("toast.duration_sec", 5)
	v.SetDefault("toast.desktop", false)
	v.SetDefault("log.file", filepath.Join(ConfigDir(), "marketbell.log"))
	v.SetDefault("log.level", "info")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.db_path", filepath.Join(ConfigDir(), "devserver.db"))
	v.SetDefault("server.jwt_secret", "marketbell-dev-secret")
	v.SetDefault("server.token_ttl_hours", 24)
}

// loadDotEnv loads env files (.env by default) into the process
// environment. A missing file is the common case and stays silent.
func loadDotEnv(log logrus.FieldLogger, files ...string) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.WithError(err).Warn("loading .env")
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// A missing file yields the defaults. Environment variables prefixed with
// MARKETBELL_ override file values; a .env file in the working directory
// is loaded first when present.
func LoadConfig(path string) (*AppConfig, error) {
	loadDotEnv(logrus.StandardLogger())

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		_, isPathErr := err.(*os.PathError)
		_, isNotFound := err.(viper.ConfigFileNotFoundError)
		if !isPathErr && !isNotFound {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	cfg.normalize()

	return cfg, nil
}

// DefaultConfig returns the configuration used when no file or env is set.
func DefaultConfig() *AppConfig {
	v := viper.New()
	setDefaults(v)
	cfg := &AppConfig{}
	_ = v.Unmarshal(cfg)
	cfg.normalize()
	return cfg
}

func (c *AppConfig) normalize() {
	c.API.BaseURL = strings.TrimRight(c.API.BaseURL, "/")
	c.Web.BaseURL = strings.TrimRight(c.Web.BaseURL, "/")
	if c.API.TimeoutSec <= 0 {
		c.API.TimeoutSec = 30
	}
	if c.Polling.WatchIntervalSec < MinWatchInterval {
		c.Polling.WatchIntervalSec = MinWatchInterval
	}
	if c.Polling.UnreadIntervalSec <= 0 {
		c.Polling.UnreadIntervalSec = 60
	}
	if c.Toast.DurationSec <= 0 {
		c.Toast.DurationSec = 5
	}
	if c.Server.TokenTTLHours <= 0 {
		c.Server.TokenTTLHours = 24
	}
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("api", cfg.API)
	v.Set("web", cfg.Web)
	v.Set("polling", cfg.Polling)
	v.Set("toast", cfg.Toast)
	v.Set("log", cfg.Log)
	v.Set("server", cfg.Server)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
