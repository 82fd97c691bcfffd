package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, ":8000", cfg.Server.Addr)

	level, err := cfg.Log.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, level)
}

func TestLoadEmptyPath(t *testing.T) {
	t.Setenv(EnvPath, "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vecsearch.yaml")

	require.NoError(t, os.WriteFile(path, []byte(`
store:
  driver: badger
  dir: /var/lib/vecsearch
snapshots:
  driver: minio
  endpoint: localhost:9000
  bucket: graphs
  compression: lz4
cache:
  max_entries: 8
  builds_per_second: 2.5
log:
  level: debug
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DriverBadger, cfg.Store.Driver)
	assert.Equal(t, "/var/lib/vecsearch", cfg.Store.Dir)
	assert.Equal(t, SnapshotMinIO, cfg.Snapshots.Driver)
	assert.Equal(t, "lz4", cfg.Snapshots.Compression)
	assert.Equal(t, 8, cfg.Cache.MaxEntries)
	assert.InDelta(t, 2.5, cfg.Cache.BuildsPerSecond, 0)
	assert.Equal(t, "text", cfg.Log.Format, "unset fields keep their defaults")
	assert.Equal(t, ":8000", cfg.Server.Addr)

	level, err := cfg.Log.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestLoadFromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vecsearch.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  driver: memory\n"), 0o644))

	t.Setenv(EnvPath, path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, cfg.Store.Driver)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("store: ["), 0o644))
	_, err = Load(bad)
	require.ErrorContains(t, err, "invalid YAML")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"UnknownDriver", func(c *Config) { c.Store.Driver = "mysql" }, "store.driver"},
		{"PostgresWithoutDSN", func(c *Config) { c.Store = Store{Driver: DriverPostgres} }, "store.dsn"},
		{"BadgerWithoutDir", func(c *Config) { c.Store = Store{Driver: DriverBadger} }, "store.dir"},
		{"LocalWithoutDir", func(c *Config) { c.Snapshots.Driver = SnapshotLocal }, "snapshots.dir"},
		{"S3WithoutBucket", func(c *Config) { c.Snapshots.Driver = SnapshotS3 }, "snapshots.bucket"},
		{"MinIOWithoutEndpoint", func(c *Config) { c.Snapshots = Snapshots{Driver: SnapshotMinIO, Bucket: "b"} }, "snapshots.endpoint"},
		{"UnknownSnapshotDriver", func(c *Config) { c.Snapshots.Driver = "gcs" }, "snapshots.driver"},
		{"BadCompression", func(c *Config) { c.Snapshots.Compression = "gzip" }, "snapshots.compression"},
		{"BadLevel", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"BadFormat", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			require.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "vecsearch.yaml")

	want := Default()
	want.Snapshots = Snapshots{Driver: SnapshotLocal, Dir: "data/snapshots", Compression: "zstd"}

	require.NoError(t, Save(path, want))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
