package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DBPath   string
	HTTPAddr string

	LogLevel  string
	LogFormat string

	IngestBatchSize int

	DefaultVATRate         string
	DefaultValuePercentage string
	DefaultCurrency        string
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBPath:   getEnv("DB_PATH", filepath.Join(cwd, "data", "app.db")),
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		IngestBatchSize: getEnvInt("INGEST_BATCH_SIZE", 100),

		DefaultVATRate:         getEnv("DEFAULT_VAT_RATE", "23"),
		DefaultValuePercentage: getEnv("DEFAULT_VALUE_PERCENTAGE", "100"),
		DefaultCurrency:        getEnv("DEFAULT_CURRENCY", "PLN"),
	}

	if cfg.IngestBatchSize < 1 {
		cfg.IngestBatchSize = 100
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := strings.TrimSpace(getEnv(key, ""))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
