package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete service configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Logging    LoggingConfig    `yaml:"logging"`
	Display    DisplayConfig    `yaml:"display"`
	Thumbnails ThumbnailsConfig `yaml:"thumbnails"`
	Upstream   UpstreamConfig   `yaml:"upstream"`
}

// ServerConfig contains HTTP listener settings.
type ServerConfig struct {
	Addr      string `yaml:"addr"`
	AdminUser string `yaml:"admin_user"`
}

// DatabaseConfig contains the SQLite location.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	File string `yaml:"file"`
}

// DisplayConfig controls how pages present data.
type DisplayConfig struct {
	// Timezone is an IANA name; asset timestamps are shown in this zone.
	// Empty means the server's local zone.
	Timezone string `yaml:"timezone"`
}

// ThumbnailsConfig controls thumbnail loading on the submission page.
type ThumbnailsConfig struct {
	// MaxConcurrent caps parallel thumbnail fetches per page. 0 is unbounded.
	MaxConcurrent int           `yaml:"max_concurrent"`
	FetchTimeout  time.Duration `yaml:"fetch_timeout"`
}

// UpstreamConfig points the web UI at a remote API instead of the local
// database.
type UpstreamConfig struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server:   ServerConfig{Addr: ":8080", AdminUser: "Admin"},
		Database: DatabaseConfig{Path: "skladnost.sqlite3"},
		Thumbnails: ThumbnailsConfig{
			FetchTimeout: 10 * time.Second,
		},
	}
}

// Load reads a YAML configuration file on top of the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks values that cannot be caught by the YAML decoder.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr must not be empty")
	}
	if c.Database.Path == "" && c.Upstream.URL == "" {
		return errors.New("database.path must not be empty")
	}
	if c.Thumbnails.MaxConcurrent < 0 {
		return errors.New("thumbnails.max_concurrent must not be negative")
	}
	if c.Thumbnails.FetchTimeout <= 0 {
		return errors.New("thumbnails.fetch_timeout must be positive")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves the display time zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Display.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Display.Timezone)
	if err != nil {
		return nil, fmt.Errorf("display.timezone: %w", err)
	}
	return loc, nil
}
