package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds the runtime's environment-driven configuration.
type Config struct {
	// Environment names the deployment environment (ENVIRONMENT, default
	// "development"). Load records it; neither logging nor Validate reads it.
	Environment string

	// MetricsAddr is the listen address for the prometheus /metrics
	// endpoint, e.g. ":9400". Empty disables the metrics server.
	MetricsAddr string

	Bus     BusConfig
	Gateway GatewayConfig
}

// BusConfig controls the event bus's timer goroutine.
type BusConfig struct {
	// TimerInterval is how often EventTimer fires. Zero disables the timer
	// goroutine entirely.
	TimerInterval string
}

// GatewayConfig controls the paper gateway's starting ledger state.
type GatewayConfig struct {
	InitialCash float64
}

// Load loads configuration from environment variables, falling back to a
// .env file in the working directory if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		MetricsAddr: getEnv("METRICS_ADDR", ""),

		Bus: BusConfig{
			TimerInterval: getEnv("BUS_TIMER_INTERVAL", "1s"),
		},

		Gateway: GatewayConfig{
			InitialCash: getEnvAsFloat("GATEWAY_INITIAL_CASH", 100_000.0),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that configuration values are internally consistent.
func (c *Config) Validate() error {
	if c.Gateway.InitialCash < 0 {
		return fmt.Errorf("GATEWAY_INITIAL_CASH must not be negative, got %v", c.Gateway.InitialCash)
	}
	return nil
}

func getEnv(key string, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsFloat(key string, defaultVal float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultVal
}
