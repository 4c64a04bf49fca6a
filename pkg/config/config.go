package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/biocompute/bcodb/pkg/observability"
	"github.com/biocompute/bcodb/pkg/storage"
)

// Config holds all application configuration
type Config struct {
	Server  ServerConfig   `yaml:"server"`
	Storage storage.Config `yaml:"storage"`
	Redis   RedisConfig    `yaml:"redis"`
	Schemas SchemaConfig   `yaml:"schemas"`
	Sweeper SweeperConfig  `yaml:"sweeper"`

	LogLevel       observability.LogLevel `yaml:"-"`
	LogLevelName   string                 `yaml:"log_level"`
	MetricsEnabled bool                   `yaml:"metrics_enabled"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Health/metrics server (separate port for k8s probes)
	HealthPort string `yaml:"health_port"`
}

// RedisConfig holds the permission decision cache settings
type RedisConfig struct {
	Enabled     bool          `yaml:"enabled"`
	URL         string        `yaml:"url"`
	DecisionTTL time.Duration `yaml:"decision_ttl"`
}

// SchemaConfig holds the schema tree settings
type SchemaConfig struct {
	// Workdir is the root the schema loader resolves file: refs against
	Workdir string `yaml:"workdir"`
	// Watch reloads the tree when files change on disk
	Watch bool `yaml:"watch"`
}

// SweeperConfig holds the expired-prefix sweep schedule
type SweeperConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Schedule string `yaml:"schedule"`
}

// LoadConfig loads configuration from the environment. When BCODB_CONFIG_FILE
// names a YAML file, its values are applied first and the environment
// overrides them.
func LoadConfig() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("BCODB_CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	cfg.LogLevel = parseLogLevel(cfg.LogLevelName)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func defaultConfig() *Config {
	store := storage.DefaultConfig()
	store.DSN = "postgres://localhost:5432/bcodb?sslmode=disable"
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			HealthPort:      "9090",
		},
		Storage: store,
		Redis: RedisConfig{
			URL:         "redis://localhost:6379/0",
			DecisionTTL: 30 * time.Second,
		},
		Schemas: SchemaConfig{
			Workdir: ".",
		},
		Sweeper: SweeperConfig{
			Schedule: "@hourly",
		},
		LogLevelName:   "info",
		MetricsEnabled: true,
	}
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Host = getEnv("BCODB_HOST", c.Server.Host)
	c.Server.Port = getEnv("BCODB_PORT", c.Server.Port)
	c.Server.ReadTimeout = getEnvDuration("BCODB_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getEnvDuration("BCODB_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.IdleTimeout = getEnvDuration("BCODB_IDLE_TIMEOUT", c.Server.IdleTimeout)
	c.Server.ShutdownTimeout = getEnvDuration("BCODB_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)
	c.Server.HealthPort = getEnv("BCODB_HEALTH_PORT", c.Server.HealthPort)

	c.Storage.Driver = getEnv("BCODB_DB_DRIVER", c.Storage.Driver)
	c.Storage.DSN = getEnv("BCODB_DB_DSN", c.Storage.DSN)
	c.Storage.MaxConns = getEnvInt("BCODB_DB_MAX_CONNS", c.Storage.MaxConns)
	c.Storage.MinConns = getEnvInt("BCODB_DB_MIN_CONNS", c.Storage.MinConns)
	c.Storage.PingTimeout = getEnvDuration("BCODB_DB_PING_TIMEOUT", c.Storage.PingTimeout)

	c.Redis.Enabled = getEnvBool("BCODB_REDIS_ENABLED", c.Redis.Enabled)
	c.Redis.URL = getEnv("BCODB_REDIS_URL", c.Redis.URL)
	c.Redis.DecisionTTL = getEnvDuration("BCODB_REDIS_DECISION_TTL", c.Redis.DecisionTTL)

	c.Schemas.Workdir = getEnv("BCODB_SCHEMA_WORKDIR", c.Schemas.Workdir)
	c.Schemas.Watch = getEnvBool("BCODB_SCHEMA_WATCH", c.Schemas.Watch)

	c.Sweeper.Enabled = getEnvBool("BCODB_SWEEPER_ENABLED", c.Sweeper.Enabled)
	c.Sweeper.Schedule = getEnv("BCODB_SWEEPER_SCHEDULE", c.Sweeper.Schedule)

	c.LogLevelName = getEnv("BCODB_LOG_LEVEL", c.LogLevelName)
	c.MetricsEnabled = getEnvBool("BCODB_METRICS_ENABLED", c.MetricsEnabled)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	switch c.Storage.Driver {
	case "postgres", "sqlite3":
	default:
		return fmt.Errorf("invalid db driver: %s (must be postgres or sqlite3)", c.Storage.Driver)
	}
	if c.Storage.DSN == "" {
		return fmt.Errorf("db DSN is required")
	}

	if c.Redis.Enabled && c.Redis.URL == "" {
		return fmt.Errorf("redis URL is required when the decision cache is enabled")
	}
	if c.Schemas.Workdir == "" {
		return fmt.Errorf("schema workdir is required")
	}
	if c.Sweeper.Enabled && c.Sweeper.Schedule == "" {
		return fmt.Errorf("sweeper schedule is required when the sweeper is enabled")
	}
	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
