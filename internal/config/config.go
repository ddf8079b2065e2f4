package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

type Config struct {
	DatabaseURL string
	LogLevel    string
	HistoryFile string
	MaxParams   int
}

func Load() (Config, error) {
	cfg := Config{
		DatabaseURL: getEnv("DATABASE_URL", ""),
		LogLevel:    strings.TrimSpace(getEnv("LOG_LEVEL", "warn")),
		HistoryFile: getEnv("SQLPOS_HISTORY", defaultHistory()),
	}

	if raw := getEnv("SQLPOS_MAX_PARAMS", ""); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return Config{}, fmt.Errorf("SQLPOS_MAX_PARAMS must be an integer, got %q", raw)
		}
		cfg.MaxParams = n
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "warn"
	}

	return cfg, nil
}

func defaultHistory() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".sqlpos_history")
}

func getEnv(key, defaultValue string) string {
	v, ok := os.LookupEnv(key)
	if !ok {
		return defaultValue
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return defaultValue
	}
	return v
}
