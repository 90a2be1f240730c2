// Package config reads varsel's settings from the environment.
//
// A .env file in the working directory is loaded first; variables already
// set in the environment win over it.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables.
const (
	EnvDB       = "VARSEL_DB"
	EnvLocale   = "VARSEL_LOCALE"
	EnvLogLevel = "VARSEL_LOG_LEVEL"
)

// Defaults.
const (
	DefaultDB     = "varsel.db"
	DefaultLocale = "en"
)

// Config holds the process-wide settings.
type Config struct {
	DBPath   string
	Locale   string
	LogLevel slog.Level
}

// Load reads .env (if present) and the environment.
func Load() (Config, error) {
	return LoadFile(".env")
}

// LoadFile is Load with an explicit dotenv path. A missing file is not an
// error.
func LoadFile(path string) (Config, error) {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", path, err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() (Config, error) {
	cfg := Config{
		DBPath: getEnvOrDefault(EnvDB, DefaultDB),
		Locale: getEnvOrDefault(EnvLocale, DefaultLocale),
	}

	level, err := ParseLevel(os.Getenv(EnvLogLevel))
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", EnvLogLevel, err)
	}
	cfg.LogLevel = level
	return cfg, nil
}

// ParseLevel maps "debug", "info", "warn" and "error" to a slog level.
// The empty string is info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// Logger returns a text logger writing to w at the configured level.
func (c Config) Logger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: c.LogLevel}))
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
