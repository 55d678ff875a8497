// Package config loads quark configuration.
//
// Configuration comes from a single file named by the --config flag or the
// QUARK_CONFIG environment variable. There is no discovery: when neither is
// set the built-in defaults are used, which match a stock engine
// installation on localhost.
//
// Files ending in .json or .jsonc are read as JSON with comments; anything
// else is YAML.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// EnvConfig names the environment variable holding the config file path.
const EnvConfig = "QUARK_CONFIG"

// Config is the complete quark configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	// Router is the engine's router PB endpoint.
	Router EndpointConfig `yaml:"router"`
	// SMPP is the engine's SMPP client manager PB endpoint.
	SMPP     EndpointConfig `yaml:"smpp"`
	Persist  PersistConfig  `yaml:"persist"`
	Sealing  SealingConfig  `yaml:"sealing"`
	Snapshot SnapshotConfig `yaml:"snapshot"`
	Audit    AuditConfig    `yaml:"audit"`
	Log      LogConfig      `yaml:"log"`
}

// DatabaseConfig selects the local store.
type DatabaseConfig struct {
	// Driver is "sqlite3" or "pgx".
	Driver string `yaml:"driver"`
	// DSN is a file path for sqlite3 or a postgres:// URL for pgx.
	DSN string `yaml:"dsn"`
}

// EndpointConfig is one engine PB service.
type EndpointConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	// Timeout bounds dialing and each request, e.g. "30s".
	Timeout string `yaml:"timeout"`
	// MaxReply caps the bytes of one engine reply. Zero uses the client
	// default.
	MaxReply int64 `yaml:"max_reply"`
}

// TimeoutDuration parses Timeout. Empty means zero.
func (e EndpointConfig) TimeoutDuration() (time.Duration, error) {
	if e.Timeout == "" {
		return 0, nil
	}
	return time.ParseDuration(e.Timeout)
}

// PersistConfig controls whether mutations are persisted on the engine.
type PersistConfig struct {
	Enabled bool   `yaml:"enabled"`
	Profile string `yaml:"profile"`
}

// SealingConfig enables at-rest encryption of stored passwords.
type SealingConfig struct {
	// IdentityFile is an age identity file. Empty stores passwords as given.
	IdentityFile string `yaml:"identity_file"`
}

// SnapshotConfig configures the bulk-read snapshot cache.
type SnapshotConfig struct {
	// RedisURL selects the redis cache; empty keeps snapshots in memory.
	RedisURL string `yaml:"redis_url"`
	// TTL is how long a snapshot stays usable, e.g. "1h". Empty keeps it
	// until replaced.
	TTL string `yaml:"ttl"`
	// Compression is "zstd", "lz4" or "none".
	Compression string `yaml:"compression"`
}

// TTLDuration parses TTL. Empty means zero.
func (s SnapshotConfig) TTLDuration() (time.Duration, error) {
	if s.TTL == "" {
		return 0, nil
	}
	return time.ParseDuration(s.TTL)
}

// AuditConfig configures the kafka audit sink. No brokers disables it.
type AuditConfig struct {
	KafkaBrokers []string `yaml:"kafka_brokers"`
	Topic        string   `yaml:"topic"`
}

// LogConfig configures the default logger.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level"`
	// Format is text or json.
	Format string `yaml:"format"`
}

// SlogLevel returns the configured level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", l.Level)
	}
	return level, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Driver: "sqlite3", DSN: "quark.db"},
		Router: EndpointConfig{
			Host:     "127.0.0.1",
			Port:     8988,
			Username: "radmin",
			Password: "rpwd",
			Timeout:  "30s",
		},
		SMPP: EndpointConfig{
			Host:     "127.0.0.1",
			Port:     8989,
			Username: "cmadmin",
			Password: "cmpwd",
			Timeout:  "30s",
		},
		Persist:  PersistConfig{Enabled: true, Profile: "jcli-prod"},
		Snapshot: SnapshotConfig{Compression: "zstd"},
		Audit:    AuditConfig{Topic: "quark.audit"},
		Log:      LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads the file at path, or at $QUARK_CONFIG when path is empty.
// With neither, it returns the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile reads a config file over the defaults and expands ${VAR} and
// ${VAR:-default} references in paths and DSNs.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		data = jsonc.ToJSON(data)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.expandVariables()
	return cfg, nil
}

func (c *Config) expandVariables() {
	c.Database.DSN = expandVars(c.Database.DSN)
	c.Sealing.IdentityFile = expandVars(c.Sealing.IdentityFile)
	c.Snapshot.RedisURL = expandVars(c.Snapshot.RedisURL)
	c.Router.Password = expandVars(c.Router.Password)
	c.SMPP.Password = expandVars(c.SMPP.Password)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	switch c.Database.Driver {
	case "sqlite3", "pgx":
	default:
		errs = append(errs, fmt.Errorf("database.driver: unknown driver %q", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn is required"))
	}

	errs = append(errs, c.Router.validate("router")...)
	errs = append(errs, c.SMPP.validate("smpp")...)

	if c.Persist.Enabled && c.Persist.Profile == "" {
		errs = append(errs, errors.New("persist.profile is required when persist is enabled"))
	}
	if _, err := c.Snapshot.TTLDuration(); err != nil {
		errs = append(errs, fmt.Errorf("snapshot.ttl: %w", err))
	}
	switch c.Snapshot.Compression {
	case "", "zstd", "lz4", "none":
	default:
		errs = append(errs, fmt.Errorf("snapshot.compression: unknown algorithm %q", c.Snapshot.Compression))
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

func (e EndpointConfig) validate(section string) []error {
	var errs []error
	if strings.TrimSpace(e.Host) == "" {
		errs = append(errs, fmt.Errorf("%s.host is required", section))
	}
	if e.Port < 1 || e.Port > 65535 {
		errs = append(errs, fmt.Errorf("%s.port %d out of range 1..65535", section, e.Port))
	}
	if e.Username == "" {
		errs = append(errs, fmt.Errorf("%s.username is required", section))
	}
	if _, err := e.TimeoutDuration(); err != nil {
		errs = append(errs, fmt.Errorf("%s.timeout: %w", section, err))
	}
	if e.MaxReply < 0 {
		errs = append(errs, fmt.Errorf("%s.max_reply must not be negative", section))
	}
	return errs
}
