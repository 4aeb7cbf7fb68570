// Package config loads server settings from the environment and optional
// .env files.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const Production = "production"

// Store backends accepted in STORE.
const (
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

type PayrollOptions struct {
	CloseEnabled  bool          `env:"PAYROLL_CLOSE_ENABLED" envDefault:"true"`
	CloseInterval time.Duration `env:"PAYROLL_CLOSE_INTERVAL" envDefault:"1h"`
}

type Config struct {
	Port           int      `env:"PORT" envDefault:"8080"`
	DBPath         string   `env:"DB_PATH" envDefault:"leave.db"`
	Store          string   `env:"STORE" envDefault:"sqlite"`
	LogLevel       string   `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv         string   `env:"APP_ENV" envDefault:"development"`
	CORSOrigins    []string `env:"CORS_ORIGINS" envSeparator:","`
	MetricsEnabled bool     `env:"METRICS_ENABLED" envDefault:"true"`

	Payroll PayrollOptions
}

// LoadEnv loads the env files that exist and returns how many did.
// Variables already set in the process environment win.
func LoadEnv(envFiles []string) (int, error) {
	existing := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			existing = append(existing, file)
		}
	}
	if len(existing) == 0 {
		return 0, nil
	}
	return len(existing), godotenv.Load(existing...)
}

// Load reads .env and .env.local, then the environment.
func Load() (*Config, error) {
	if _, err := LoadEnv([]string{".env", ".env.local"}); err != nil {
		return nil, fmt.Errorf("failed to load env files: %w", err)
	}
	return Parse()
}

// Parse reads the process environment only.
func Parse() (*Config, error) {
	c := &Config{}
	if err := env.Parse(c); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}
	c.Store = strings.ToLower(strings.TrimSpace(c.Store))
	if c.Store != StoreSQLite && c.Store != StoreMemory {
		return fmt.Errorf("STORE must be %q or %q, got %q", StoreSQLite, StoreMemory, c.Store)
	}
	if c.Store == StoreSQLite && c.DBPath == "" {
		return fmt.Errorf("DB_PATH is required when STORE is %q", StoreSQLite)
	}
	if c.Payroll.CloseInterval <= 0 {
		return fmt.Errorf("PAYROLL_CLOSE_INTERVAL must be positive, got %s", c.Payroll.CloseInterval)
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == Production
}

func (c *Config) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}
