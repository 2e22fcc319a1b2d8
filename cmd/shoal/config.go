package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shoaldb/shoal/internal/migrate"
	"github.com/shoaldb/shoal/internal/store"
	"github.com/shoaldb/shoal/migrations"
)

// Display time formats.
const (
	TimeDisplay = "2006-01-02 15:04:05"
	TimeJSON    = time.RFC3339
)

// Config represents the shoal.yaml configuration file.
type Config struct {
	StoreURL string `yaml:"store_url"`
}

// loadConfig loads configuration from file, env vars, and CLI flags.
// Precedence: CLI flags > env vars > config file.
func loadConfig() (*Config, error) {
	cfg := &Config{}

	if data, err := os.ReadFile(configFile); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		// ${VAR} interpolation for secrets kept out of the file.
		cfg.StoreURL = os.Expand(cfg.StoreURL, os.Getenv)
	}

	if envURL := os.Getenv("SHOAL_STORE_URL"); envURL != "" {
		cfg.StoreURL = envURL
	}
	if storeURL != "" {
		cfg.StoreURL = storeURL
	}

	return cfg, nil
}

// openStore opens the configured store.
func openStore(ctx context.Context) (*store.DB, *Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if cfg.StoreURL == "" {
		return nil, nil, fmt.Errorf("no store URL configured; set store_url in %s, SHOAL_STORE_URL, or --store-url", configFile)
	}
	db, err := store.Open(ctx, cfg.StoreURL)
	if err != nil {
		return nil, nil, err
	}
	return db, cfg, nil
}

// newRunner opens the store and wires the changeset repository to it.
func newRunner(ctx context.Context) (*migrate.Runner, *store.DB, *Config, error) {
	db, cfg, err := openStore(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	return migrate.NewRunner(db, migrations.Registry), db, cfg, nil
}
