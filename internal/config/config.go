// Package config loads the vecsearch command configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/vecsearch/snapshot"
	"github.com/hupe1980/vecsearch/source/sqlite"
)

// EnvPath names the environment variable that points at the config file.
const EnvPath = "VECSEARCH_CONFIG"

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverBadger   = "badger"
)

// Snapshot drivers. An empty driver disables snapshots.
const (
	SnapshotLocal = "local"
	SnapshotS3    = "s3"
	SnapshotMinIO = "minio"
)

// Store selects the point store.
type Store struct {
	Driver string `yaml:"driver"`
	// DSN is the SQLite path or the PostgreSQL connection string.
	DSN string `yaml:"dsn,omitempty"`
	// Dir is the Badger data directory.
	Dir string `yaml:"dir,omitempty"`
}

// Snapshots selects where built graphs are persisted.
type Snapshots struct {
	Driver      string `yaml:"driver,omitempty"`
	Dir         string `yaml:"dir,omitempty"`
	Bucket      string `yaml:"bucket,omitempty"`
	Prefix      string `yaml:"prefix,omitempty"`
	Endpoint    string `yaml:"endpoint,omitempty"`
	Region      string `yaml:"region,omitempty"`
	AccessKey   string `yaml:"access_key,omitempty"`
	SecretKey   string `yaml:"secret_key,omitempty"`
	Secure      bool   `yaml:"secure,omitempty"`
	PathStyle   bool   `yaml:"path_style,omitempty"`
	Compression string `yaml:"compression,omitempty"`
	// CacheBytes keeps recently read snapshots in memory. 0 disables it.
	CacheBytes int64 `yaml:"cache_bytes,omitempty"`
	// WriteBytesPerSec throttles snapshot uploads. 0 means unthrottled.
	WriteBytesPerSec int64 `yaml:"write_bytes_per_sec,omitempty"`
}

// Cache bounds the index cache.
type Cache struct {
	MaxEntries          int     `yaml:"max_entries,omitempty"`
	MaxConcurrentBuilds int64   `yaml:"max_concurrent_builds,omitempty"`
	BuildsPerSecond     float64 `yaml:"builds_per_second,omitempty"`
	MemoryLimitBytes    int64   `yaml:"memory_limit_bytes,omitempty"`
	Seed                int64   `yaml:"seed,omitempty"`
}

// Log configures the process logger.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Server configures the HTTP API.
type Server struct {
	Addr string `yaml:"addr"`
}

// Config is the in-memory representation of vecsearch.yaml.
type Config struct {
	Store     Store     `yaml:"store"`
	Snapshots Snapshots `yaml:"snapshots,omitempty"`
	Cache     Cache     `yaml:"cache,omitempty"`
	Log       Log       `yaml:"log"`
	Server    Server    `yaml:"server"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Store: Store{
			Driver: DriverSQLite,
			DSN:    sqlite.DefaultPath,
		},
		Log: Log{
			Level:  "info",
			Format: "text",
		},
		Server: Server{
			Addr: ":8000",
		},
	}
}

// Load reads path over the defaults. An empty path falls back to
// $VECSEARCH_CONFIG and then to Default.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvPath)
	}

	if path == "" {
		return cfg, nil
	}

	path, err := ExpandPath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid YAML in %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	return cfg, nil
}

// Save marshals cfg and writes it to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("cannot create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("cannot write config %s: %w", path, err)
	}

	return nil
}

// Validate reports every inconsistent setting.
func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Driver {
	case DriverMemory, DriverSQLite:
	case DriverPostgres:
		if c.Store.DSN == "" {
			errs = append(errs, errors.New("store.dsn is required for postgres"))
		}
	case DriverBadger:
		if c.Store.Dir == "" {
			errs = append(errs, errors.New("store.dir is required for badger"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store.driver %q", c.Store.Driver))
	}

	switch c.Snapshots.Driver {
	case "":
	case SnapshotLocal:
		if c.Snapshots.Dir == "" {
			errs = append(errs, errors.New("snapshots.dir is required for local snapshots"))
		}
	case SnapshotS3, SnapshotMinIO:
		if c.Snapshots.Bucket == "" {
			errs = append(errs, fmt.Errorf("snapshots.bucket is required for %s snapshots", c.Snapshots.Driver))
		}
		if c.Snapshots.Driver == SnapshotMinIO && c.Snapshots.Endpoint == "" {
			errs = append(errs, errors.New("snapshots.endpoint is required for minio snapshots"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown snapshots.driver %q", c.Snapshots.Driver))
	}

	if _, err := snapshot.ParseCompression(c.Snapshots.Compression); err != nil {
		errs = append(errs, fmt.Errorf("snapshots.compression: %w", err))
	}

	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}

	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log.format %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

// SlogLevel parses the configured level name.
func (l Log) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if l.Level == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(p string) (string, error) {
	if !strings.HasPrefix(p, "~") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot expand ~: %w", err)
	}
	return filepath.Join(home, p[1:]), nil
}
