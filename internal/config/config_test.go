package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9080", cfg.Port)
	assert.Equal(t, BackendSQLite, cfg.StoreBackend)
	assert.Equal(t, 5*time.Minute, cfg.CacheFreshTTL)
	assert.Equal(t, time.Hour, cfg.CacheEvictTTL)
	assert.Equal(t, 0.85, cfg.BatchConfidenceThreshold)
}

func TestLoadConfig_FromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "8081")
	t.Setenv("STORE_BACKEND", "bolt")
	t.Setenv("BOLT_PATH", "/tmp/test.bolt")
	t.Setenv("CACHE_FRESH_TTL", "30s")
	t.Setenv("BATCH_CONFIDENCE_THRESHOLD", "0.9")
	t.Setenv("RATE_LIMIT_RPS", "50")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8081", cfg.Port)
	assert.Equal(t, BackendBolt, cfg.StoreBackend)
	assert.Equal(t, "/tmp/test.bolt", cfg.BoltPath)
	assert.Equal(t, 30*time.Second, cfg.CacheFreshTTL)
	assert.Equal(t, 0.9, cfg.BatchConfidenceThreshold)
	assert.Equal(t, float64(50), cfg.RateLimitRPS)
}

func TestLoadConfig_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("DB_MAX_OPEN_CONNS", "not-a-number")
	t.Setenv("CACHE_EVICT_TTL", "garbage")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	// Непарсящиеся значения заменяются значениями по умолчанию
	assert.Equal(t, 25, cfg.MaxOpenConns)
	assert.Equal(t, time.Hour, cfg.CacheEvictTTL)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Port:                     "9080",
			StoreBackend:             BackendSQLite,
			DatabasePath:             "survey.db",
			CacheFreshTTL:            time.Minute,
			CacheEvictTTL:            time.Hour,
			BatchConfidenceThreshold: 0.85,
			RateLimitRPS:             100,
			RateLimitBurst:           200,
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty port", func(c *Config) { c.Port = "" }},
		{"non-numeric port", func(c *Config) { c.Port = "abc" }},
		{"unknown backend", func(c *Config) { c.StoreBackend = "redis" }},
		{"empty sqlite path", func(c *Config) { c.DatabasePath = "" }},
		{"evict before fresh", func(c *Config) { c.CacheEvictTTL = time.Second }},
		{"threshold above one", func(c *Config) { c.BatchConfidenceThreshold = 1.5 }},
		{"zero threshold", func(c *Config) { c.BatchConfidenceThreshold = 0 }},
		{"zero rps", func(c *Config) { c.RateLimitRPS = 0 }},
	}

	require.NoError(t, valid().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
