// Package config содержит логику чтения конфигурации сервиса заказов кейтеринга.
package config

import (
	"flag"
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/caarlos0/env/v11"
	"github.com/shopspring/decimal"
)

// Config содержит параметры конфигурации сервиса заказов.
type Config struct {
	RunAddress  string `env:"RUN_ADDRESS"`
	DatabaseURI string `env:"DATABASE_URI"`
	MongoURI    string `env:"MONGO_URI"`
	NATSURL     string `env:"NATS_URL"`

	MongoDatabase string `env:"MONGO_DATABASE" envDefault:"catering"`
	SESRegion     string `env:"SES_REGION"`
	SESSender     string `env:"SES_SENDER"`
	JWTSecret     string `env:"JWT_SECRET"`
	AdminEmail    string `env:"ADMIN_EMAIL"`

	ServiceTimezone   string          `env:"SERVICE_TIMEZONE" envDefault:"Europe/Paris"`
	PenaltyAmount     decimal.Decimal `env:"PENALTY_AMOUNT" envDefault:"600"`
	PenaltyWindowDays int             `env:"PENALTY_WINDOW_DAYS" envDefault:"10"`
	SweepInterval     time.Duration   `env:"SWEEP_INTERVAL" envDefault:"24h"`
	NotifyStatuses    []string        `env:"NOTIFY_STATUSES" envSeparator:"," envDefault:"accepted,in_delivery,completed"`
	HomeCity          string          `env:"HOME_CITY" envDefault:"Bordeaux"`
	DeliveryFee       decimal.Decimal `env:"DELIVERY_FEE" envDefault:"5.00"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envMongoURI := cfg.MongoURI
	envNATSURL := cfg.NATSURL

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.MongoURI, "m", "", "MongoDB URI for the activity log")
	flag.StringVar(&cfg.NATSURL, "n", "", "NATS server URL for notifications")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envMongoURI != "" {
		cfg.MongoURI = envMongoURI
	}
	if envNATSURL != "" {
		cfg.NATSURL = envNATSURL
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.PenaltyWindowDays <= 0 {
		return fmt.Errorf("PENALTY_WINDOW_DAYS must be positive, got %d", c.PenaltyWindowDays)
	}
	if c.PenaltyAmount.IsNegative() {
		return fmt.Errorf("PENALTY_AMOUNT must not be negative, got %s", c.PenaltyAmount)
	}
	if c.DeliveryFee.IsNegative() {
		return fmt.Errorf("DELIVERY_FEE must not be negative, got %s", c.DeliveryFee)
	}
	if c.SweepInterval < 0 {
		return fmt.Errorf("SWEEP_INTERVAL must not be negative, got %s", c.SweepInterval)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location возвращает часовой пояс, в котором считаются календарные дни.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.ServiceTimezone)
	if err != nil {
		return nil, fmt.Errorf("load SERVICE_TIMEZONE %q: %w", c.ServiceTimezone, err)
	}
	return loc, nil
}
