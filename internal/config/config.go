// Package config содержит логику чтения конфигурации сервиса лояльности.
package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации сервиса лояльности.
type Config struct {
	RunAddress        string        `env:"RUN_ADDRESS"`
	DatabaseURI       string        `env:"DATABASE_URI"`
	NotifyAddress     string        `env:"NOTIFY_ADDRESS"`
	AuthSecret        string        `env:"AUTH_SECRET"`
	ReconcileInterval time.Duration `env:"RECONCILE_INTERVAL"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envNotifyAddress := cfg.NotifyAddress
	envAuthSecret := cfg.AuthSecret
	envReconcileInterval := cfg.ReconcileInterval

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.NotifyAddress, "n", "", "notification gateway address")
	flag.StringVar(&cfg.AuthSecret, "s", "", "secret key for auth cookies")
	flag.DurationVar(&cfg.ReconcileInterval, "i", 0, "balance reconciliation interval (0 disables)")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envNotifyAddress != "" {
		cfg.NotifyAddress = envNotifyAddress
	}
	if envAuthSecret != "" {
		cfg.AuthSecret = envAuthSecret
	}
	if envReconcileInterval != 0 {
		cfg.ReconcileInterval = envReconcileInterval
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}

	return cfg, nil
}
