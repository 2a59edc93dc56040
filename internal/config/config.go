package config

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// ServerConfig holds configuration for the reference master-data server.
type ServerConfig struct {
	Addr      string // Listen address (default ":8080")
	LogLevel  string // Log level: debug, info, warn, error
	LogFormat string // Log format: text, json
	DBPath    string // SQLite database path (default ~/.mdconsole/masterdata.db, ":memory:" for testing)
	SeedFile  string // Optional YAML fixture loaded into an empty database
	Metrics   bool   // Serve /metrics
}

// DefaultServerConfig returns sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:      ":8080",
		LogLevel:  "info",
		LogFormat: "text",
		Metrics:   true,
	}
}

// ApplyEnv overrides fields from MDSERVER_* environment variables.
func (c *ServerConfig) ApplyEnv() {
	c.Addr = getEnvWithDefault("MDSERVER_ADDR", c.Addr)
	c.LogLevel = getEnvWithDefault("MDSERVER_LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnvWithDefault("MDSERVER_LOG_FORMAT", c.LogFormat)
	c.DBPath = getEnvWithDefault("MDSERVER_DB", c.DBPath)
	c.SeedFile = getEnvWithDefault("MDSERVER_SEED", c.SeedFile)
}

// LoadDotenv loads .env files into the process environment without
// overriding variables that are already set. Missing files are ignored.
func LoadDotenv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// getEnvWithDefault gets an environment variable with a default fallback.
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
