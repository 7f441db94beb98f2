package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/claimcheck/internal/domain"
)

// Manager loads and holds the application configuration via Viper.
type Manager struct {
	config *domain.Config
}

// NewManager creates a configuration manager and loads configuration from
// file, environment, and defaults.
func NewManager() (*Manager, error) {
	m := &Manager{}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

func (m *Manager) loadConfig() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/claimcheck/")

	viper.SetEnvPrefix("CLAIMCHECK")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	m.setDefaults()

	// Config file is optional; defaults and environment cover standalone runs.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := viper.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

func (m *Manager) setDefaults() {
	viper.SetDefault("store.backend", "sqlite")
	viper.SetDefault("store.sqlite_path", "data/claimcheck.db")

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.database", "claimcheck")
	viper.SetDefault("database.username", "postgres")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_conns", 25)
	viper.SetDefault("database.min_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "5m")
	viper.SetDefault("database.conn_max_idle_time", "30m")
	viper.SetDefault("database.migrations_path", "migrations")

	viper.SetDefault("cache.lru_size", 4096)
	viper.SetDefault("cache.redis_enabled", false)
	viper.SetDefault("cache.redis_url", "redis://localhost:6379")
	viper.SetDefault("cache.default_ttl", "24h")
	viper.SetDefault("cache.pool_size", 10)
	viper.SetDefault("cache.pool_timeout", "4s")
	viper.SetDefault("cache.max_retries", 3)

	viper.SetDefault("batch.input_dir", "claims/incoming")
	viper.SetDefault("batch.success_dir", "claims/approved")
	viper.SetDefault("batch.fail_dir", "claims/denied")
	viper.SetDefault("batch.error_dir", "claims/errored")
	viper.SetDefault("batch.workers", 4)

	viper.SetDefault("validation.bundles_file", "config/bundles.json")
	viper.SetDefault("validation.equivalence_file", "config/equivalence.json")
	viper.SetDefault("validation.global_unit_limit", 12)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output", "stdout")
}

// GetConfig returns the complete configuration.
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// Reload reloads the configuration.
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate checks the loaded configuration for unusable values.
func (m *Manager) Validate() error {
	config := m.config

	switch config.Store.Backend {
	case "postgres":
		if config.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if config.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
		if config.Database.Username == "" {
			return fmt.Errorf("database username is required")
		}
	case "sqlite":
		if config.Store.SQLitePath == "" {
			return fmt.Errorf("sqlite path is required")
		}
	default:
		return fmt.Errorf("unknown store backend: %s", config.Store.Backend)
	}

	if config.Cache.RedisEnabled && config.Cache.RedisURL == "" {
		return fmt.Errorf("Redis URL is required when the Redis cache tier is enabled")
	}

	if config.Batch.Workers <= 0 {
		return fmt.Errorf("batch workers must be positive, got %d", config.Batch.Workers)
	}
	if config.Batch.InputDir == "" {
		return fmt.Errorf("batch input directory is required")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}

// GetDatabaseConnectionString returns a formatted PostgreSQL connection
// string for the migration runner.
func (m *Manager) GetDatabaseConnectionString() string {
	db := m.config.Database
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		db.Username, db.Password, db.Host, db.Port, db.Database, db.SSLMode)
}
