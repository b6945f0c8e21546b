package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	ServerPort     int      `yaml:"port"`
	DatabaseDriver string   `yaml:"database_driver"` // "sqlite" or "pgx"
	DatabaseDSN    string   `yaml:"database_dsn"`
	CORSOrigins    []string `yaml:"cors_origins"`

	// FeedFanOut bounds how many posts are enriched concurrently per feed request.
	// Zero means unbounded.
	FeedFanOut  int           `yaml:"feed_fan_out"`
	FeedTimeout time.Duration `yaml:"feed_timeout"`

	GraphWriteRetries  int           `yaml:"graph_write_retries"`
	GraphRetryInterval time.Duration `yaml:"graph_retry_interval"`
	ReconcileSchedule  string        `yaml:"reconcile_schedule"`

	RedisAddr    string        `yaml:"redis_addr"`
	NameCacheTTL time.Duration `yaml:"name_cache_ttl"`

	KafkaBrokers []string `yaml:"kafka_brokers"`
	KafkaTopic   string   `yaml:"kafka_topic"`

	OTLPEndpoint string `yaml:"otlp_endpoint"`
	ServiceName  string `yaml:"service_name"`

	LogLevel  string `yaml:"log_level"`
	LogPretty bool   `yaml:"log_pretty"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		ServerPort:         8080,
		DatabaseDriver:     "sqlite",
		DatabaseDSN:        "./ender-feed.db",
		CORSOrigins:        []string{"http://localhost:3000"},
		FeedFanOut:         16,
		FeedTimeout:        10 * time.Second,
		GraphWriteRetries:  3,
		GraphRetryInterval: 50 * time.Millisecond,
		ReconcileSchedule:  "@every 10m",
		NameCacheTTL:       5 * time.Minute,
		KafkaTopic:         "feed.activity",
		ServiceName:        "ender-feed",
		LogLevel:           "info",
		LogPretty:          true,
	}
}

// Load builds the configuration from defaults, an optional YAML file named by
// CONFIG_FILE, and finally environment variables.
func Load() (*Config, error) {
	cfg := Default()

	if path := getEnv("CONFIG_FILE", ""); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	var err error
	if c.ServerPort, err = getEnvInt("PORT", c.ServerPort); err != nil {
		return err
	}
	c.DatabaseDriver = getEnv("DATABASE_DRIVER", c.DatabaseDriver)
	c.DatabaseDSN = getEnv("DATABASE_DSN", c.DatabaseDSN)
	c.CORSOrigins = getEnvList("CORS_ORIGINS", c.CORSOrigins)

	if c.FeedFanOut, err = getEnvInt("FEED_FAN_OUT", c.FeedFanOut); err != nil {
		return err
	}
	if c.FeedTimeout, err = getEnvDuration("FEED_TIMEOUT", c.FeedTimeout); err != nil {
		return err
	}
	if c.GraphWriteRetries, err = getEnvInt("GRAPH_WRITE_RETRIES", c.GraphWriteRetries); err != nil {
		return err
	}
	if c.GraphRetryInterval, err = getEnvDuration("GRAPH_RETRY_INTERVAL", c.GraphRetryInterval); err != nil {
		return err
	}
	c.ReconcileSchedule = getEnv("RECONCILE_SCHEDULE", c.ReconcileSchedule)

	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)
	if c.NameCacheTTL, err = getEnvDuration("NAME_CACHE_TTL", c.NameCacheTTL); err != nil {
		return err
	}
	c.KafkaBrokers = getEnvList("KAFKA_BROKERS", c.KafkaBrokers)
	c.KafkaTopic = getEnv("KAFKA_TOPIC", c.KafkaTopic)

	c.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", c.OTLPEndpoint)
	c.ServiceName = getEnv("OTEL_SERVICE_NAME", c.ServiceName)

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	if v, ok := os.LookupEnv("LOG_PRETTY"); ok {
		pretty, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("LOG_PRETTY: %w", err)
		}
		c.LogPretty = pretty
	}
	return nil
}

func (c *Config) validate() error {
	switch c.DatabaseDriver {
	case "sqlite", "pgx":
	default:
		return fmt.Errorf("unsupported database driver %q", c.DatabaseDriver)
	}
	if c.FeedFanOut < 0 {
		return fmt.Errorf("feed fan-out must not be negative, got %d", c.FeedFanOut)
	}
	if c.GraphWriteRetries < 0 {
		return fmt.Errorf("graph write retries must not be negative, got %d", c.GraphWriteRetries)
	}
	return nil
}

// Helper to get an environment variable with a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getEnvList(key string, fallback []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
