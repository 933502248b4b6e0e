// Package config loads runtime configuration from environment variables,
// with an optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all runtime settings for the analytics platform.
type Config struct {
	// API server
	APIPort int
	DevMode bool

	// Logging
	LogLevel string

	// Data
	FundSymbols       []string
	DataDirectory     string
	ProcessedDataPath string
	DatabasePath      string
	ReportsDirectory  string

	// ETL
	LookbackYears            int
	DataRefreshIntervalHours int

	// Analytics
	RiskFreeRate          float64
	RollingWindowDays     int
	AnomalyContamination  float64
	AnomalyRandomState    int64
	MinAllocationPerAsset float64
	MaxAllocationPerAsset float64
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first if present; real environment variables win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		APIPort:  getEnvAsInt("API_PORT", 8000),
		DevMode:  getEnvAsBool("DEV_MODE", false),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		FundSymbols:       splitSymbols(getEnv("FUND_SYMBOLS", "VTI,VXUS,BND,VNQ,GLD")),
		DataDirectory:     getEnv("DATA_DIRECTORY", "data"),
		ProcessedDataPath: getEnv("PROCESSED_DATA_PATH", "data/processed/fund_data.csv"),
		DatabasePath:      getEnv("DATABASE_PATH", "data/fundpulse.db"),
		ReportsDirectory:  getEnv("REPORTS_DIRECTORY", "data/reports"),

		LookbackYears:            getEnvAsInt("LOOKBACK_YEARS", 3),
		DataRefreshIntervalHours: getEnvAsInt("DATA_REFRESH_INTERVAL_HOURS", 24),

		RiskFreeRate:          getEnvAsFloat("RISK_FREE_RATE", 0.02),
		RollingWindowDays:     getEnvAsInt("ROLLING_WINDOW_DAYS", 252),
		AnomalyContamination:  getEnvAsFloat("ANOMALY_CONTAMINATION", 0.1),
		AnomalyRandomState:    int64(getEnvAsInt("ANOMALY_RANDOM_STATE", 42)),
		MinAllocationPerAsset: getEnvAsFloat("MIN_ALLOCATION_PER_ASSET", 0.05),
		MaxAllocationPerAsset: getEnvAsFloat("MAX_ALLOCATION_PER_ASSET", 0.25),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks internal consistency of the configuration.
func (c *Config) Validate() error {
	if c.APIPort <= 0 || c.APIPort > 65535 {
		return fmt.Errorf("API_PORT out of range: %d", c.APIPort)
	}
	if len(c.FundSymbols) == 0 {
		return fmt.Errorf("FUND_SYMBOLS must name at least one fund")
	}
	if c.RollingWindowDays < 2 {
		return fmt.Errorf("ROLLING_WINDOW_DAYS must be at least 2, got %d", c.RollingWindowDays)
	}
	if c.AnomalyContamination <= 0 || c.AnomalyContamination >= 0.5 {
		return fmt.Errorf("ANOMALY_CONTAMINATION must be in (0, 0.5), got %f", c.AnomalyContamination)
	}
	if c.MinAllocationPerAsset < 0 || c.MaxAllocationPerAsset > 1 {
		return fmt.Errorf("allocation bounds must lie within [0, 1]")
	}
	if c.MinAllocationPerAsset > c.MaxAllocationPerAsset {
		return fmt.Errorf("MIN_ALLOCATION_PER_ASSET %f exceeds MAX_ALLOCATION_PER_ASSET %f",
			c.MinAllocationPerAsset, c.MaxAllocationPerAsset)
	}
	if c.DataRefreshIntervalHours <= 0 {
		return fmt.Errorf("DATA_REFRESH_INTERVAL_HOURS must be positive, got %d", c.DataRefreshIntervalHours)
	}
	return nil
}

func splitSymbols(raw string) []string {
	parts := strings.Split(raw, ",")
	symbols := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			symbols = append(symbols, strings.ToUpper(s))
		}
	}
	return symbols
}

// Helper functions for environment variables

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
