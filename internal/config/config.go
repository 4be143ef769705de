package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Pricing  PricingConfig
}

type AppConfig struct {
	Port string
}

type PostgresConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MigrationsPath  string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type PricingConfig struct {
	ShippingThreshold decimal.Decimal
	ShippingFee       decimal.Decimal
	TaxRate           decimal.Decimal
	PriceStaleAge     time.Duration
}

// NewConfig reads configuration from the environment, loading .env first if
// present.
func NewConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	cfg.App.Port = getEnv("APP_PORT", "8080")

	var err error
	if cfg.Postgres, err = loadPostgres(); err != nil {
		return nil, err
	}
	if cfg.Pricing, err = loadPricing(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadPostgres() (PostgresConfig, error) {
	cfg := PostgresConfig{
		Host:           os.Getenv("DB_HOST"),
		Port:           getEnv("DB_PORT", "5432"),
		User:           os.Getenv("DB_USER"),
		Password:       os.Getenv("DB_PASSWORD"),
		DBName:         os.Getenv("DB_NAME"),
		SSLMode:        getEnv("DB_SSLMODE", "disable"),
		MigrationsPath: getEnv("DB_MIGRATIONS_PATH", "migrations"),
	}

	for key, val := range map[string]string{
		"DB_HOST":     cfg.Host,
		"DB_USER":     cfg.User,
		"DB_PASSWORD": cfg.Password,
		"DB_NAME":     cfg.DBName,
	} {
		if val == "" {
			return PostgresConfig{}, fmt.Errorf("config: %s is required", key)
		}
	}

	maxConns, err := getEnvInt("DB_MAX_CONNS", 10)
	if err != nil {
		return PostgresConfig{}, err
	}
	minConns, err := getEnvInt("DB_MIN_CONNS", 2)
	if err != nil {
		return PostgresConfig{}, err
	}
	cfg.MaxConns = int32(maxConns)
	cfg.MinConns = int32(minConns)
	cfg.MaxConnLifetime = 30 * time.Minute

	return cfg, nil
}

func loadPricing() (PricingConfig, error) {
	cfg := PricingConfig{}

	var err error
	if cfg.ShippingThreshold, err = getEnvDecimal("SHIPPING_THRESHOLD", "50"); err != nil {
		return PricingConfig{}, err
	}
	if cfg.ShippingFee, err = getEnvDecimal("SHIPPING_FEE", "5"); err != nil {
		return PricingConfig{}, err
	}
	if cfg.TaxRate, err = getEnvDecimal("TAX_RATE", "0.088"); err != nil {
		return PricingConfig{}, err
	}

	staleMinutes, err := getEnvInt("PRICE_STALE_MINUTES", 15)
	if err != nil {
		return PricingConfig{}, err
	}
	cfg.PriceStaleAge = time.Duration(staleMinutes) * time.Minute

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be an integer: %w", key, err)
	}
	return parsed, nil
}

func getEnvDecimal(key, fallback string) (decimal.Decimal, error) {
	val := os.Getenv(key)
	if val == "" {
		val = fallback
	}
	parsed, err := decimal.NewFromString(val)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("config: %s must be a decimal number: %w", key, err)
	}
	return parsed, nil
}
