package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Поддерживаемые бэкенды хранилища
const (
	BackendSQLite = "sqlite"
	BackendBolt   = "bolt"
)

// Config конфигурация сервера
type Config struct {
	// Сервер
	Port     string `json:"port"`
	LogLevel string `json:"log_level"`

	// Хранилище
	StoreBackend string `json:"store_backend"` // sqlite или bolt
	DatabasePath string `json:"database_path"`
	BoltPath     string `json:"bolt_path"`

	// Connection pooling (только SQLite)
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`

	// Кэш
	CacheFreshTTL          time.Duration `json:"cache_fresh_ttl"`
	CacheEvictTTL          time.Duration `json:"cache_evict_ttl"`
	SnapshotPath           string        `json:"snapshot_path"`
	SnapshotRestoreTimeout time.Duration `json:"snapshot_restore_timeout"`

	// Пакетное разрешение
	BatchConfidenceThreshold float64 `json:"batch_confidence_threshold"`

	// Ограничение частоты запросов
	RateLimitRPS   float64 `json:"rate_limit_rps"`
	RateLimitBurst int     `json:"rate_limit_burst"`
}

// LoadConfig загружает конфигурацию из переменных окружения
func LoadConfig() (*Config, error) {
	config := &Config{
		Port:     getEnv("SERVER_PORT", "9080"),
		LogLevel: getEnv("LOG_LEVEL", "INFO"),

		StoreBackend: getEnv("STORE_BACKEND", BackendSQLite),
		DatabasePath: getEnv("DATABASE_PATH", "survey.db"),
		BoltPath:     getEnv("BOLT_PATH", "survey.bolt"),

		MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),

		CacheFreshTTL:          getEnvDuration("CACHE_FRESH_TTL", 5*time.Minute),
		CacheEvictTTL:          getEnvDuration("CACHE_EVICT_TTL", time.Hour),
		SnapshotPath:           getEnv("SNAPSHOT_PATH", "cache_snapshot.json"),
		SnapshotRestoreTimeout: getEnvDuration("SNAPSHOT_RESTORE_TIMEOUT", 2*time.Second),

		BatchConfidenceThreshold: getEnvFloat("BATCH_CONFIDENCE_THRESHOLD", 0.85),

		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 100),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 200),
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return config, nil
}

// Validate проверяет согласованность конфигурации
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("server port is empty")
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("server port %q is not a number", c.Port)
	}

	switch c.StoreBackend {
	case BackendSQLite:
		if c.DatabasePath == "" {
			return fmt.Errorf("DATABASE_PATH is empty")
		}
	case BackendBolt:
		if c.BoltPath == "" {
			return fmt.Errorf("BOLT_PATH is empty")
		}
	default:
		return fmt.Errorf("unknown store backend %q (want %s or %s)", c.StoreBackend, BackendSQLite, BackendBolt)
	}

	if c.CacheFreshTTL <= 0 {
		return fmt.Errorf("cache fresh TTL must be positive, got %v", c.CacheFreshTTL)
	}
	if c.CacheEvictTTL <= c.CacheFreshTTL {
		return fmt.Errorf("cache evict TTL %v must exceed fresh TTL %v", c.CacheEvictTTL, c.CacheFreshTTL)
	}

	if c.BatchConfidenceThreshold <= 0 || c.BatchConfidenceThreshold > 1 {
		return fmt.Errorf("batch confidence threshold must be in (0, 1], got %g", c.BatchConfidenceThreshold)
	}

	if c.RateLimitRPS <= 0 {
		return fmt.Errorf("rate limit RPS must be positive, got %g", c.RateLimitRPS)
	}
	if c.RateLimitBurst <= 0 {
		return fmt.Errorf("rate limit burst must be positive, got %d", c.RateLimitBurst)
	}

	return nil
}

// getEnv получает переменную окружения или возвращает значение по умолчанию
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt получает переменную окружения как int или возвращает значение по умолчанию
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat получает переменную окружения как float64 или возвращает значение по умолчанию
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvDuration получает переменную окружения как Duration или возвращает значение по умолчанию
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
