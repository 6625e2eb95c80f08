package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"OXIFORMS_ADDR", "STORE_BACKEND", "OXIDB_PORT", "OXIDB_POOL_SIZE", "DEBUG", "SHUTDOWN_TIMEOUT"} {
		t.Setenv(k, "")
	}
	cfg := Load()
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, BackendOxiDB, cfg.Backend)
	assert.Equal(t, 4444, cfg.OxiDBPort)
	assert.Equal(t, 3, cfg.PoolSize)
	assert.Equal(t, 100, cfg.MaxBatchOps)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.False(t, cfg.Debug)
	require.NoError(t, cfg.Validate())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "Memory")
	t.Setenv("OXIDB_POOL_SIZE", "8")
	t.Setenv("DEBUG", "true")
	t.Setenv("SHUTDOWN_TIMEOUT", "3s")
	t.Setenv("STORE_PAGE_SIZE", "not-a-number")

	cfg := Load()
	assert.Equal(t, BackendMemory, cfg.Backend)
	assert.Equal(t, 8, cfg.PoolSize)
	assert.True(t, cfg.Debug)
	assert.Equal(t, 3*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 500, cfg.PageSize)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"unknown backend", func(c *Config) { c.Backend = "cosmos" }, `unknown STORE_BACKEND "cosmos"`},
		{"bad port", func(c *Config) { c.OxiDBPort = 70000 }, "OXIDB_PORT 70000 out of range"},
		{"empty pool", func(c *Config) { c.PoolSize = 0 }, "OXIDB_POOL_SIZE must be positive"},
		{"mongo without uri", func(c *Config) { c.Backend = BackendMongo; c.MongoURI = "" }, "MONGO_URI is required"},
		{"zero batch", func(c *Config) { c.MaxBatchOps = 0 }, "STORE_MAX_BATCH_OPS must be positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Load()
			cfg.Backend = BackendOxiDB
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.errMsg)
		})
	}
}
