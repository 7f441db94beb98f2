package domain

import "time"

// Config is the full application configuration, loaded by internal/config.
type Config struct {
	Store      StoreConfig      `mapstructure:"store"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Batch      BatchConfig      `mapstructure:"batch"`
	Validation ValidationConfig `mapstructure:"validation"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// StoreConfig selects the reference store backend.
type StoreConfig struct {
	// Backend is "postgres" or "sqlite".
	Backend string `mapstructure:"backend"`
	// SQLitePath is the database file for the sqlite backend.
	SQLitePath string `mapstructure:"sqlite_path"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// CacheConfig holds reference-data cache settings. The in-process LRU tier is
// always on; the Redis tier is optional and shared across batch workers.
type CacheConfig struct {
	LRUSize      int           `mapstructure:"lru_size"`
	RedisEnabled bool          `mapstructure:"redis_enabled"`
	RedisURL     string        `mapstructure:"redis_url"`
	DefaultTTL   time.Duration `mapstructure:"default_ttl"`
	PoolSize     int           `mapstructure:"pool_size"`
	PoolTimeout  time.Duration `mapstructure:"pool_timeout"`
	MaxRetries   int           `mapstructure:"max_retries"`
}

// BatchConfig holds directory-intake settings for the batch runner.
type BatchConfig struct {
	InputDir   string `mapstructure:"input_dir"`
	SuccessDir string `mapstructure:"success_dir"`
	FailDir    string `mapstructure:"fail_dir"`
	ErrorDir   string `mapstructure:"error_dir"`
	Workers    int    `mapstructure:"workers"`
}

// ValidationConfig holds the validator-facing configuration files and limits.
type ValidationConfig struct {
	BundlesFile     string `mapstructure:"bundles_file"`
	EquivalenceFile string `mapstructure:"equivalence_file"`
	// GlobalUnitLimit is the safety cap applied to multi-unit-exempt and
	// ancillary lines.
	GlobalUnitLimit int `mapstructure:"global_unit_limit"`
}

// LoggingConfig holds structured-logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
