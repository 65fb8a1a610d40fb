// Package config содержит логику чтения конфигурации сервиса доверия.
package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации сервиса доверия.
type Config struct {
	RunAddress      string        `env:"RUN_ADDRESS"`
	DatabaseURI     string        `env:"DATABASE_URI"`
	NotifierAddress string        `env:"NOTIFIER_ADDRESS"`
	AdminToken      string        `env:"ADMIN_TOKEN"`
	AuthSecret      string        `env:"AUTH_SECRET"`
	SweepInterval   time.Duration `env:"SWEEP_INTERVAL"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envNotifierAddress := cfg.NotifierAddress
	envAdminToken := cfg.AdminToken
	envAuthSecret := cfg.AuthSecret
	envSweepInterval := cfg.SweepInterval

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.NotifierAddress, "n", "", "notification service address")
	flag.StringVar(&cfg.AdminToken, "t", "", "admin API token")
	flag.StringVar(&cfg.AuthSecret, "s", "", "auth cookie signing secret")
	flag.DurationVar(&cfg.SweepInterval, "i", time.Hour, "background sweep interval, 0 disables sweeps")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envNotifierAddress != "" {
		cfg.NotifierAddress = envNotifierAddress
	}
	if envAdminToken != "" {
		cfg.AdminToken = envAdminToken
	}
	if envAuthSecret != "" {
		cfg.AuthSecret = envAuthSecret
	}
	if envSweepInterval != 0 {
		cfg.SweepInterval = envSweepInterval
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}

	return cfg, nil
}
