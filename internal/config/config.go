// Package config reads server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends.
const (
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config holds all configuration for the server
type Config struct {
	Port        string
	Store       string
	DBPath      string
	DatabaseURL string
	JWTSecret   string
	TokenTTL    time.Duration
	LogLevel    string

	InviteCodeLength int
	CORSOrigins      []string
}

// Load reads a .env file when one exists, then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from environment variables alone.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Port:        getEnvOrDefault("PORT", "8080"),
		Store:       strings.ToLower(getEnvOrDefault("STORE", StoreSQLite)),
		DBPath:      getEnvOrDefault("DB_PATH", "./data/ledger.db"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		LogLevel:    getEnvOrDefault("LOG_LEVEL", "info"),
		CORSOrigins: strings.Split(getEnvOrDefault("CORS_ORIGINS", "*"), ","),
	}

	if cfg.JWTSecret = os.Getenv("JWT_SECRET"); cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}

	ttl, err := time.ParseDuration(getEnvOrDefault("TOKEN_TTL", "24h"))
	if err != nil {
		return nil, fmt.Errorf("invalid TOKEN_TTL: %w", err)
	}
	cfg.TokenTTL = ttl

	n, err := strconv.Atoi(getEnvOrDefault("INVITE_CODE_LENGTH", "6"))
	if err != nil || n <= 0 {
		return nil, fmt.Errorf("invalid INVITE_CODE_LENGTH %q", os.Getenv("INVITE_CODE_LENGTH"))
	}
	cfg.InviteCodeLength = n

	switch cfg.Store {
	case StoreSQLite, StoreMemory:
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL environment variable is required for STORE=postgres")
		}
	default:
		return nil, fmt.Errorf("unknown STORE %q", cfg.Store)
	}

	return cfg, nil
}

// getEnvOrDefault returns environment variable value or default if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
