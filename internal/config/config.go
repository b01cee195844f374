package config

import (
	"os"
)

// Config holds the process configuration, read from the environment.
type Config struct {
	Port         string
	DatabasePath string
	BackupDir    string
	JWTSecret    string
	APIKey       string
	APISecret    string
	Env          string
}

// Load reads configuration from environment with sensible defaults.
// Precedence: explicit env var > .env file (loaded by main) > default.
func Load() Config {
	return Config{
		Port:         getEnv("PORT", "8080"),
		DatabasePath: getEnv("DATABASE_PATH", "store.db"),
		BackupDir:    getEnv("BACKUP_DIR", "backups"),
		JWTSecret:    getEnv("JWT_SECRET", "storepos-secret-key"),
		APIKey:       getEnv("API_KEY", "test-api-key"),
		APISecret:    getEnv("API_SECRET", "test-api-secret"),
		Env:          getEnv("APP_ENV", "development"),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
