package config

import (
	"os"
	"strconv"
)

// Config represents the complete application configuration
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Simulation SimulationConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port string
}

// DatabaseConfig holds database connection settings; persistence is optional
// and disabled when URL is empty.
type DatabaseConfig struct {
	URL string
}

// SimulationConfig holds pipeline defaults overridable per request
type SimulationConfig struct {
	Reps     int
	Parallel int
}

// Load reads configuration from the environment with sensible defaults
func Load() Config {
	return Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
		},
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		Simulation: SimulationConfig{
			Reps:     getEnvInt("GODFI_REPS", 500),
			Parallel: getEnvInt("GODFI_PARALLEL", 0),
		},
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
