// Package config provides configuration management for the vanity grinder
// application. It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Generator GeneratorConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
	Benchmark BenchmarkConfig
	Logging   LoggingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds all database connection configuration
type DatabaseConfig struct {
	Postgres   PostgresConfig
	ClickHouse ClickHouseConfig
	Redis      RedisConfig
}

// PostgresConfig holds Postgres connection parameters
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	MaxConns int32
	MinConns int32
}

// ClickHouseConfig holds ClickHouse connection parameters.
// ClickHouse is optional; when disabled, search telemetry is not recorded.
type ClickHouseConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Database string
	Username string
	Password string
}

// RedisConfig holds Redis connection parameters.
// Redis is optional; when disabled, job reads skip the cache and the
// submission budget is not enforced.
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
}

// GeneratorConfig holds generator manager tuning
type GeneratorConfig struct {
	// MaxTotalThreads caps the sum of thread counts across all dispatched jobs
	MaxTotalThreads int
	// MaxQueueDepth caps the FIFO of jobs waiting for capacity
	MaxQueueDepth int
	// DefaultThreadCount is used when a submission does not specify one
	DefaultThreadCount int
	// DefaultCPULimitPercent is used when a submission does not specify one
	DefaultCPULimitPercent int
	// BatchSize is the number of keypairs a worker tries between control checks
	BatchSize int
	// ProgressFlushInterval is how often aggregated attempts are persisted
	ProgressFlushInterval time.Duration
	// LeaseTTL is how long a persisted job lease remains valid without renewal
	LeaseTTL time.Duration
	// ReaperInterval is how often expired leases are scanned for resubmission
	ReaperInterval time.Duration
}

// CacheConfig holds job cache TTLs
type CacheConfig struct {
	JobTTL         time.Duration
	TerminalJobTTL time.Duration
}

// RateLimitConfig holds API rate limiting configuration
type RateLimitConfig struct {
	// RequestsPerSecond and Burst drive the in-memory per-client limiter
	RequestsPerSecond float64
	Burst             int
	// SubmitLimit and SubmitWindow drive the Redis submission budget
	SubmitLimit  int
	SubmitWindow time.Duration
}

// BenchmarkConfig holds baselines for timeout recommendations
type BenchmarkConfig struct {
	// BaselineTime is the observed search time for a pattern of BaselineLength
	BaselineTime   time.Duration
	BaselineLength int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from environment variables.
// A .env file in the working directory is loaded first if present.
func LoadConfig() (*Config, error) {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnv("SERVER_PORT", "8080"),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:     getEnv("POSTGRES_HOST", "localhost"),
				Port:     getEnv("POSTGRES_PORT", "5432"),
				User:     getEnv("POSTGRES_USER", "postgres"),
				Password: getEnv("POSTGRES_PASSWORD", "postgres"),
				Database: getEnv("POSTGRES_DB", "vanity_grinder"),
				MaxConns: int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
				MinConns: int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			},
			ClickHouse: ClickHouseConfig{
				Enabled:  getEnvAsBool("CLICKHOUSE_ENABLED", false),
				Host:     getEnv("CLICKHOUSE_HOST", "localhost"),
				Port:     getEnv("CLICKHOUSE_PORT", "9000"),
				Database: getEnv("CLICKHOUSE_DB", "vanity_grinder"),
				Username: getEnv("CLICKHOUSE_USER", "default"),
				Password: getEnv("CLICKHOUSE_PASSWORD", ""),
			},
			Redis: RedisConfig{
				Enabled:  getEnvAsBool("REDIS_ENABLED", true),
				Host:     getEnv("REDIS_HOST", "localhost"),
				Port:     getEnv("REDIS_PORT", "6379"),
				Password: getEnv("REDIS_PASSWORD", ""),
				DB:       getEnvAsInt("REDIS_DB", 0),
			},
		},
		Generator: GeneratorConfig{
			MaxTotalThreads:        getEnvAsInt("GENERATOR_MAX_TOTAL_THREADS", runtime.NumCPU()),
			MaxQueueDepth:          getEnvAsInt("GENERATOR_MAX_QUEUE_DEPTH", 100),
			DefaultThreadCount:     getEnvAsInt("GENERATOR_DEFAULT_THREAD_COUNT", 4),
			DefaultCPULimitPercent: getEnvAsInt("GENERATOR_DEFAULT_CPU_LIMIT", 80),
			BatchSize:              getEnvAsInt("GENERATOR_BATCH_SIZE", 500),
			ProgressFlushInterval:  getEnvAsDuration("GENERATOR_PROGRESS_FLUSH_INTERVAL", 2*time.Second),
			LeaseTTL:               getEnvAsDuration("GENERATOR_LEASE_TTL", 30*time.Second),
			ReaperInterval:         getEnvAsDuration("GENERATOR_REAPER_INTERVAL", 15*time.Second),
		},
		Cache: CacheConfig{
			JobTTL:         getEnvAsDuration("CACHE_JOB_TTL", 2*time.Second),
			TerminalJobTTL: getEnvAsDuration("CACHE_TERMINAL_JOB_TTL", 5*time.Minute),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvAsFloat("RATE_LIMIT_RPS", 20),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 40),
			SubmitLimit:       getEnvAsInt("RATE_LIMIT_SUBMIT_PER_WINDOW", 10),
			SubmitWindow:      getEnvAsDuration("RATE_LIMIT_SUBMIT_WINDOW", time.Minute),
		},
		Benchmark: BenchmarkConfig{
			BaselineTime:   getEnvAsDuration("BENCHMARK_BASELINE_TIME", 5*time.Second),
			BaselineLength: getEnvAsInt("BENCHMARK_BASELINE_LENGTH", 1),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks configuration consistency
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("SERVER_PORT must not be empty")
	}
	if c.Generator.MaxTotalThreads < 1 {
		return fmt.Errorf("GENERATOR_MAX_TOTAL_THREADS must be >= 1, got %d", c.Generator.MaxTotalThreads)
	}
	if c.Generator.MaxQueueDepth < 0 {
		return fmt.Errorf("GENERATOR_MAX_QUEUE_DEPTH must be >= 0, got %d", c.Generator.MaxQueueDepth)
	}
	if c.Generator.DefaultThreadCount < 1 {
		return fmt.Errorf("GENERATOR_DEFAULT_THREAD_COUNT must be >= 1, got %d", c.Generator.DefaultThreadCount)
	}
	if c.Generator.DefaultCPULimitPercent < 1 || c.Generator.DefaultCPULimitPercent > 100 {
		return fmt.Errorf("GENERATOR_DEFAULT_CPU_LIMIT must be in [1,100], got %d", c.Generator.DefaultCPULimitPercent)
	}
	if c.Generator.BatchSize < 1 {
		return fmt.Errorf("GENERATOR_BATCH_SIZE must be >= 1, got %d", c.Generator.BatchSize)
	}
	if c.Generator.ProgressFlushInterval <= 0 {
		return fmt.Errorf("GENERATOR_PROGRESS_FLUSH_INTERVAL must be positive")
	}
	if c.Generator.LeaseTTL <= c.Generator.ProgressFlushInterval {
		return fmt.Errorf("GENERATOR_LEASE_TTL (%s) must exceed the progress flush interval (%s)",
			c.Generator.LeaseTTL, c.Generator.ProgressFlushInterval)
	}
	if c.Benchmark.BaselineLength < 1 {
		return fmt.Errorf("BENCHMARK_BASELINE_LENGTH must be >= 1, got %d", c.Benchmark.BaselineLength)
	}
	if c.Benchmark.BaselineTime <= 0 {
		return fmt.Errorf("BENCHMARK_BASELINE_TIME must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
