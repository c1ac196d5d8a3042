// Package config loads argus configuration from a YAML file, .env files and
// ARGUS_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/mmcdole/argus/internal/domain"
	"github.com/mmcdole/argus/internal/engine/frigate"
	applog "github.com/mmcdole/argus/internal/log"
	"github.com/mmcdole/argus/internal/player"
)

// ErrInvalidConfig is returned by Validate
var ErrInvalidConfig = errors.New("invalid configuration")

// EnvPrefix prefixes every environment override, e.g. ARGUS_HASS_TOKEN
const EnvPrefix = "ARGUS"

// Config holds all application configuration
type Config struct {
	HASS     HASSConfig            `mapstructure:"hass"`
	Cameras  []domain.CameraConfig `mapstructure:"cameras"`
	Frigate  FrigateConfig         `mapstructure:"frigate"`
	Timeline TimelineConfig        `mapstructure:"timeline"`
	Store    StoreConfig           `mapstructure:"store"`
	Metrics  MetricsConfig         `mapstructure:"metrics"`
	Tracing  TracingConfig         `mapstructure:"tracing"`
	Player   player.Config         `mapstructure:"player"`
	Logging  applog.Config         `mapstructure:"logging"`
}

// HASSConfig locates the Home Assistant instance
type HASSConfig struct {
	URL   string `mapstructure:"url"`
	Token string `mapstructure:"token"` // Long-lived access token
}

// FrigateConfig tunes the Frigate engine
type FrigateConfig struct {
	TimeZone   string        `mapstructure:"time_zone"` // Zone Frigate reports recording hours in; empty = local
	EventLimit int           `mapstructure:"event_limit"`
	GCInterval time.Duration `mapstructure:"gc_interval"`
}

// TimelineConfig drives the watch command
type TimelineConfig struct {
	Window          time.Duration `mapstructure:"window"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	Media           string        `mapstructure:"media"` // all, clips or snapshots
}

// StoreConfig holds the on-disk cache location
type StoreConfig struct {
	Dir string `mapstructure:"dir"` // Empty keeps everything in memory
}

// MetricsConfig holds the Prometheus listener
type MetricsConfig struct {
	Addr string `mapstructure:"addr"` // e.g. ":9090"; empty disables
}

// TracingConfig enables span export
type TracingConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	File    string `mapstructure:"file"` // Empty writes to stderr
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Frigate: FrigateConfig{
			EventLimit: frigate.DefaultEventLimit,
			GCInterval: frigate.DefaultGCInterval,
		},
		Timeline: TimelineConfig{
			Window:          6 * time.Hour,
			RefreshInterval: 30 * time.Second,
			Media:           "all",
		},
		Store: StoreConfig{
			Dir: defaultCachePath(),
		},
		Player: player.Config{
			Args: []string{},
		},
		Logging: applog.Config{
			File:   defaultLogPath(),
			Level:  "INFO",
			Format: "json",
		},
	}
}

// defaultLogPath returns the default log file path for the current OS
func defaultLogPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "argus", "argus.log")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "argus", "argus.log")
	}
}

// defaultConfigPath returns the default config directory for the current OS
func defaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "argus")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "argus")
	}
}

// defaultCachePath returns the default cache directory for the current OS
func defaultCachePath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("LOCALAPPDATA"), "argus", "cache")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "argus", "cache")
	}
}

// loadDotEnv loads .env then .env.local from the working directory. Variables
// already set in the environment win.
func loadDotEnv() {
	for _, name := range []string{".env", ".env.local"} {
		if _, err := os.Stat(name); err != nil {
			continue
		}
		if err := godotenv.Load(name); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to load %s: %v\n", name, err)
		}
	}
}

// Load reads configuration from file and environment. An empty path searches
// the default config directory and the working directory for config.yaml.
func Load(path string) (*Config, error) {
	loadDotEnv()

	cfg := DefaultConfig()
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(defaultConfigPath())
		v.AddConfigPath(".")
	}

	// Environment variable overrides
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	return cfg, nil
}

// setDefaults registers every scalar key so AutomaticEnv can override it
// even when the file does not mention it.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("hass.url", cfg.HASS.URL)
	v.SetDefault("hass.token", cfg.HASS.Token)
	v.SetDefault("frigate.time_zone", cfg.Frigate.TimeZone)
	v.SetDefault("frigate.event_limit", cfg.Frigate.EventLimit)
	v.SetDefault("frigate.gc_interval", cfg.Frigate.GCInterval)
	v.SetDefault("timeline.window", cfg.Timeline.Window)
	v.SetDefault("timeline.refresh_interval", cfg.Timeline.RefreshInterval)
	v.SetDefault("timeline.media", cfg.Timeline.Media)
	v.SetDefault("store.dir", cfg.Store.Dir)
	v.SetDefault("metrics.addr", cfg.Metrics.Addr)
	v.SetDefault("tracing.enabled", cfg.Tracing.Enabled)
	v.SetDefault("tracing.file", cfg.Tracing.File)
	v.SetDefault("player.command", cfg.Player.Command)
	v.SetDefault("player.start_flag", cfg.Player.StartFlag)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
}

// IsConfigured returns true if the Home Assistant URL and token are set
func (c *Config) IsConfigured() bool {
	return c.HASS.URL != "" && c.HASS.Token != ""
}

// Validate reports the first setting that prevents argus from running.
func (c *Config) Validate() error {
	if !c.IsConfigured() {
		return fmt.Errorf("%w: hass.url and hass.token are required", ErrInvalidConfig)
	}
	if len(c.Cameras) == 0 {
		return fmt.Errorf("%w: no cameras configured", ErrInvalidConfig)
	}
	if c.Frigate.EventLimit <= 0 {
		return fmt.Errorf("%w: frigate.event_limit must be positive", ErrInvalidConfig)
	}
	if c.Frigate.GCInterval <= 0 {
		return fmt.Errorf("%w: frigate.gc_interval must be positive", ErrInvalidConfig)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	switch c.Timeline.Media {
	case "all", "clips", "snapshots":
	default:
		return fmt.Errorf("%w: timeline.media must be all, clips or snapshots", ErrInvalidConfig)
	}
	return nil
}

// Location resolves the Frigate time zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Frigate.TimeZone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Frigate.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("unknown time zone %q: %w", c.Frigate.TimeZone, err)
	}
	return loc, nil
}

// FrigateOptions translates the engine settings into frigate options.
func (c *Config) FrigateOptions() ([]frigate.Option, error) {
	loc, err := c.Location()
	if err != nil {
		return nil, err
	}
	return []frigate.Option{
		frigate.WithLocation(loc),
		frigate.WithEventLimit(c.Frigate.EventLimit),
		frigate.WithGCInterval(c.Frigate.GCInterval),
	}, nil
}
