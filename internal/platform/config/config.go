package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName  string
	HTTPPort     string
	StoreDriver  string
	PostgresDSN  string
	SQLitePath   string
	KafkaBrokers []string
	JWTSecret    string

	CatalogBaseURL    string
	CatalogRatePerSec float64
	CatalogTimeout    time.Duration

	StorageTimeout      time.Duration
	EnforceSessionItems bool
	OutboxPollInterval  time.Duration
	IdempotencyTTL      time.Duration
}

// fileConfig mirrors Config for the optional YAML overlay named by
// CONFIG_FILE. Unset keys keep their defaults.
type fileConfig struct {
	ServiceName  string   `yaml:"service_name"`
	HTTPPort     string   `yaml:"http_port"`
	StoreDriver  string   `yaml:"store_driver"`
	PostgresDSN  string   `yaml:"postgres_dsn"`
	SQLitePath   string   `yaml:"sqlite_path"`
	KafkaBrokers []string `yaml:"kafka_brokers"`
	JWTSecret    string   `yaml:"jwt_secret"`
	Catalog      struct {
		BaseURL    string  `yaml:"base_url"`
		RatePerSec float64 `yaml:"rate_per_sec"`
		Timeout    string  `yaml:"timeout"`
	} `yaml:"catalog"`
	StorageTimeout      string `yaml:"storage_timeout"`
	EnforceSessionItems *bool  `yaml:"enforce_session_items"`
	OutboxPollInterval  string `yaml:"outbox_poll_interval"`
	IdempotencyTTL      string `yaml:"idempotency_ttl"`
}

func Default() Config {
	return Config{
		ServiceName:         "animevote",
		HTTPPort:            "8080",
		StoreDriver:         StoreSQLite,
		SQLitePath:          "animevote.db",
		KafkaBrokers:        []string{"localhost:9092"},
		CatalogBaseURL:      "https://api.bgm.tv",
		CatalogRatePerSec:   5,
		CatalogTimeout:      10 * time.Second,
		StorageTimeout:      5 * time.Second,
		EnforceSessionItems: true,
		OutboxPollInterval:  2 * time.Second,
		IdempotencyTTL:      7 * 24 * time.Hour,
	}
}

// Load resolves configuration from defaults, then the CONFIG_FILE overlay,
// then the environment. A .env file in the working directory is loaded into
// the environment first without replacing variables that are already set.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}
	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.StoreDriver {
	case StoreMemory, StoreSQLite:
	case StorePostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			return errors.New("config: POSTGRES_DSN is required when STORE_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("config: unsupported STORE_DRIVER %q", c.StoreDriver)
	}
	if c.StoreDriver == StoreSQLite && strings.TrimSpace(c.SQLitePath) == "" {
		return errors.New("config: SQLITE_PATH is required when STORE_DRIVER=sqlite")
	}
	if c.StorageTimeout <= 0 {
		return errors.New("config: STORAGE_TIMEOUT must be positive")
	}
	if c.OutboxPollInterval <= 0 {
		return errors.New("config: OUTBOX_POLL_INTERVAL must be positive")
	}
	return nil
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	var file fileConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}

	setString(&cfg.ServiceName, file.ServiceName)
	setString(&cfg.HTTPPort, file.HTTPPort)
	setString(&cfg.StoreDriver, strings.ToLower(file.StoreDriver))
	setString(&cfg.PostgresDSN, file.PostgresDSN)
	setString(&cfg.SQLitePath, file.SQLitePath)
	setString(&cfg.JWTSecret, file.JWTSecret)
	setString(&cfg.CatalogBaseURL, file.Catalog.BaseURL)
	if len(file.KafkaBrokers) > 0 {
		cfg.KafkaBrokers = file.KafkaBrokers
	}
	if file.Catalog.RatePerSec > 0 {
		cfg.CatalogRatePerSec = file.Catalog.RatePerSec
	}
	if file.EnforceSessionItems != nil {
		cfg.EnforceSessionItems = *file.EnforceSessionItems
	}
	for _, item := range []struct {
		name   string
		raw    string
		target *time.Duration
	}{
		{"catalog.timeout", file.Catalog.Timeout, &cfg.CatalogTimeout},
		{"storage_timeout", file.StorageTimeout, &cfg.StorageTimeout},
		{"outbox_poll_interval", file.OutboxPollInterval, &cfg.OutboxPollInterval},
		{"idempotency_ttl", file.IdempotencyTTL, &cfg.IdempotencyTTL},
	} {
		if strings.TrimSpace(item.raw) == "" {
			continue
		}
		value, err := time.ParseDuration(strings.TrimSpace(item.raw))
		if err != nil {
			return fmt.Errorf("parsing config: %s: %w", item.name, err)
		}
		*item.target = value
	}
	return nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.ServiceName, os.Getenv("SERVICE_NAME"))
	setString(&cfg.HTTPPort, os.Getenv("HTTP_PORT"))
	setString(&cfg.StoreDriver, strings.ToLower(os.Getenv("STORE_DRIVER")))
	setString(&cfg.PostgresDSN, os.Getenv("POSTGRES_DSN"))
	setString(&cfg.SQLitePath, os.Getenv("SQLITE_PATH"))
	setString(&cfg.JWTSecret, os.Getenv("JWT_SECRET"))
	setString(&cfg.CatalogBaseURL, os.Getenv("CATALOG_BASE_URL"))

	var brokers []string
	for _, value := range strings.Split(os.Getenv("KAFKA_BROKERS"), ",") {
		value = strings.TrimSpace(value)
		if value != "" {
			brokers = append(brokers, value)
		}
	}
	if len(brokers) > 0 {
		cfg.KafkaBrokers = brokers
	}

	cfg.CatalogRatePerSec = envFloat("CATALOG_RATE_PER_SEC", cfg.CatalogRatePerSec)
	cfg.CatalogTimeout = envDuration("CATALOG_TIMEOUT", cfg.CatalogTimeout)
	cfg.StorageTimeout = envDuration("STORAGE_TIMEOUT", cfg.StorageTimeout)
	cfg.EnforceSessionItems = envBool("ENFORCE_SESSION_ITEMS", cfg.EnforceSessionItems)
	cfg.OutboxPollInterval = envDuration("OUTBOX_POLL_INTERVAL", cfg.OutboxPollInterval)
	cfg.IdempotencyTTL = envDuration("IDEMPOTENCY_TTL", cfg.IdempotencyTTL)
}

func setString(target *string, value string) {
	if value = strings.TrimSpace(value); value != "" {
		*target = value
	}
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func envDuration(name string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func envFloat(name string, fallback float64) float64 {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}
