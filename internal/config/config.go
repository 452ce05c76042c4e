// Package config loads service configuration from defaults, an optional
// YAML file and the environment, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/tezbet/pool-engine/internal/fee"
	"github.com/tezbet/pool-engine/internal/ledger"
)

// Config holds all configuration for the pool engine service.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Engine    EngineConfig    `yaml:"engine"`
	Lifecycle LifecycleConfig `yaml:"lifecycle"`
}

type ServerConfig struct {
	Port            string        `yaml:"port"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type StorageConfig struct {
	DatabaseURL string        `yaml:"database_url"`
	RedisURL    string        `yaml:"redis_url"`
	CacheTTL    time.Duration `yaml:"cache_ttl"`
}

type KafkaConfig struct {
	Brokers string `yaml:"brokers"` // "a:9092,b:9092"; empty disables publishing
	Topic   string `yaml:"topic"`
}

// EngineConfig holds the ledger parameters.
type EngineConfig struct {
	Admin           string       `yaml:"admin"`
	Resolver        string       `yaml:"resolver"`
	MinStake        int64        `yaml:"min_stake"`
	LeaderboardSize int          `yaml:"leaderboard_size"`
	Fee             fee.Schedule `yaml:"fee"`
}

// LifecycleConfig controls the auto-lock ticker.
type LifecycleConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			RequestTimeout:  30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Storage: StorageConfig{
			CacheTTL: 30 * time.Second,
		},
		Kafka: KafkaConfig{
			Topic: "pool.ledger",
		},
		Engine: EngineConfig{
			MinStake:        ledger.DefaultMinStake,
			LeaderboardSize: 10,
			Fee:             fee.DefaultSchedule(),
		},
		Lifecycle: LifecycleConfig{
			Interval: 5 * time.Second,
		},
	}
}

// Load reads a .env file if present, overlays CONFIG_FILE if set, then
// applies environment overrides.
func Load() (*Config, error) {
	_ = godotenv.Load() // a missing .env is fine

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Storage.DatabaseURL = getEnv("DATABASE_URL", c.Storage.DatabaseURL)
	c.Storage.RedisURL = getEnv("REDIS_URL", c.Storage.RedisURL)
	c.Kafka.Brokers = getEnv("KAFKA_BROKERS", c.Kafka.Brokers)
	c.Kafka.Topic = getEnv("KAFKA_TOPIC", c.Kafka.Topic)
	c.Engine.Admin = getEnv("POOL_ADMIN", c.Engine.Admin)
	c.Engine.Resolver = getEnv("POOL_RESOLVER", c.Engine.Resolver)

	var err error
	if c.Engine.MinStake, err = getEnvInt64("POOL_MIN_STAKE", c.Engine.MinStake); err != nil {
		return err
	}
	if c.Engine.Fee.MaxRate, err = getEnvInt64("POOL_FEE_MAX_RATE", c.Engine.Fee.MaxRate); err != nil {
		return err
	}
	if c.Engine.Fee.Window, err = getEnvDuration("POOL_FEE_WINDOW", c.Engine.Fee.Window); err != nil {
		return err
	}
	if c.Lifecycle.Interval, err = getEnvDuration("LOCK_INTERVAL", c.Lifecycle.Interval); err != nil {
		return err
	}
	return nil
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.Engine.Admin == "" {
		return fmt.Errorf("config: engine admin is required (POOL_ADMIN)")
	}
	if c.Engine.MinStake < 0 {
		return fmt.Errorf("config: negative min stake %d", c.Engine.MinStake)
	}
	if c.Lifecycle.Interval <= 0 {
		return fmt.Errorf("config: lifecycle interval must be positive")
	}
	if err := c.Engine.Fee.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Ledger returns the engine parameters.
func (c *Config) Ledger() ledger.Config {
	return ledger.Config{
		Admin:           c.Engine.Admin,
		Resolver:        c.Engine.Resolver,
		MinStake:        c.Engine.MinStake,
		Fee:             c.Engine.Fee,
		LeaderboardSize: c.Engine.LeaderboardSize,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) (int64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	i, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return i, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}
