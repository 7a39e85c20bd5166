package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	var cfg Config
	cfg.ApplyDefaults()
	return cfg
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestApplyDefaults(t *testing.T) {
	cfg := validConfig()

	assert.Equal(t, "stdio", cfg.Server.Transport)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 300*time.Second, cfg.CacheTTL())
	assert.Equal(t, 100, cfg.Cache.Capacity)
	assert.Equal(t, 5, cfg.Fetch.Workers)
	assert.Equal(t, 800000, cfg.Delivery.FullLimit)
	assert.Equal(t, 800000, cfg.Delivery.ChunkThreshold)
	assert.Equal(t, 1048576, cfg.Delivery.HardCeiling)
	assert.Equal(t, 100000, cfg.Delivery.ChunkSize)
	assert.Equal(t, 1000, cfg.Delivery.Overlap)
	assert.Equal(t, 10, cfg.Hierarchy.MaxDepth)
	assert.Equal(t, 50, cfg.Search.MaxResults)
	assert.Equal(t, 10000, cfg.Parser.MaxDepth)
	assert.NoError(t, cfg.Validate())
}

func TestApplyDefaults_SSEGetsListener(t *testing.T) {
	cfg := Config{Server: ServerConfig{Transport: "sse"}}
	cfg.ApplyDefaults()
	assert.Equal(t, ":8080", cfg.Server.HTTPAddr)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"bad transport", func(c *Config) { c.Server.Transport = "grpc" }, `server.transport must be one of: stdio sse, got "grpc"`},
		{"bad driver", func(c *Config) { c.Store.Driver = "s3" }, "store.driver must be one of"},
		{"http store needs url", func(c *Config) { c.Store.Driver = "http" }, "store.url is required when Driver http"},
		{"http store bad url", func(c *Config) { c.Store.Driver = "http"; c.Store.URL = "not a url" }, "store.url must be a valid URL"},
		{"overlap not below chunk size", func(c *Config) { c.Delivery.Overlap = c.Delivery.ChunkSize }, "delivery.overlap must be less than chunk_size"},
		{"full limit above threshold", func(c *Config) { c.Delivery.FullLimit = c.Delivery.ChunkThreshold + 1 }, "delivery.full_limit must not exceed chunk_threshold"},
		{"chunk size above ceiling", func(c *Config) { c.Delivery.ChunkSize = c.Delivery.HardCeiling }, "delivery.chunk_size must be less than hard_ceiling"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level must be one of"},
		{"breaker threshold", func(c *Config) { c.Store.Breaker.FailureThreshold = 1.5 }, "store.breaker.failure_threshold must be lte 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
server:
  transport: sse
  http_addr: ":9090"
store:
  driver: http
  url: ${TEST_MINDMUP_URL:-http://localhost:7000/api}
  token: ${TEST_MINDMUP_TOKEN}
cache:
  ttl_sec: 60
delivery:
  chunk_size: 50000
`)
	t.Setenv("MINDMUP_CONFIG", path)
	t.Setenv("TEST_MINDMUP_TOKEN", "s3cret")

	cfg, err := Load("local")
	require.NoError(t, err)
	assert.Equal(t, "sse", cfg.Server.Transport)
	assert.Equal(t, ":9090", cfg.Server.HTTPAddr)
	assert.Equal(t, "http://localhost:7000/api", cfg.Store.URL)
	assert.Equal(t, "s3cret", cfg.Store.Token)
	assert.Equal(t, time.Minute, cfg.CacheTTL())
	assert.Equal(t, 50000, cfg.ChunkerConfig().ChunkSize)
	assert.Equal(t, 1000, cfg.ChunkerConfig().Overlap)

	hc := cfg.HTTPStoreConfig()
	assert.Equal(t, int64(cfg.Fetch.MaxFileBytes), hc.MaxContentBytes)
	assert.Equal(t, 60*time.Second, hc.Breaker.Timeout)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "store:\n  driver: sqlite\n  db_path: /tmp/a.db\n")
	t.Setenv("MINDMUP_CONFIG", path)
	t.Setenv("MINDMUP_DB_PATH", "/tmp/b.db")
	t.Setenv("MINDMUP_LOG_LEVEL", "debug")

	cfg, err := Load("local")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/b.db", cfg.Store.DBPath)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_MissingEnvFileUsesDefaults(t *testing.T) {
	t.Setenv("MINDMUP_CONFIG", "")
	t.Chdir(t.TempDir())

	cfg, err := Load("no-such-env")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
}

func TestLoad_ExplicitMissingFileFails(t *testing.T) {
	t.Setenv("MINDMUP_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))

	_, err := Load("local")
	assert.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	t.Setenv("MINDMUP_CONFIG", writeConfig(t, "server: [unclosed"))

	_, err := Load("local")
	assert.ErrorContains(t, err, "failed to parse config")
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TEST_EXPAND_SET", "value")

	got := expandEnvVars([]byte("a=${TEST_EXPAND_SET} b=${TEST_EXPAND_UNSET:-fallback} c=${TEST_EXPAND_UNSET}"))
	assert.Equal(t, "a=value b=fallback c=", string(got))
}

func TestGetEnv(t *testing.T) {
	t.Setenv("ENV", "")
	assert.Equal(t, "local", GetEnv())
	t.Setenv("ENV", "prod")
	assert.Equal(t, "prod", GetEnv())
}
