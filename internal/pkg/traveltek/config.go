package traveltek

import (
	"errors"
	"strconv"
	"time"

	"github.com/tidewave/cruisesync/internal/pkg/env"
)

// Config holds the feed host connection settings. Credentials come from the
// environment; a deployment without them cannot sync anything, so LoadConfig
// fails hard instead of deferring the error to the first download.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string

	PoolSize        int
	AcquireTimeout  time.Duration
	DialTimeout     time.Duration
	DownloadTimeout time.Duration
	IdleTimeout     time.Duration

	RequestsPerSecond float64

	BreakerThreshold uint32
	BreakerCooldown  time.Duration
}

// LoadConfig reads feed settings from the environment.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Host:              env.GetEnv("TRAVELTEK_FTP_HOST", "ftpeu1prod.traveltek.net"),
		Port:              getEnvInt("TRAVELTEK_FTP_PORT", 21),
		User:              env.GetEnv("TRAVELTEK_FTP_USER", ""),
		Password:          env.GetEnv("TRAVELTEK_FTP_PASSWORD", ""),
		PoolSize:          getEnvInt("TRAVELTEK_POOL_SIZE", 4),
		AcquireTimeout:    getEnvDuration("TRAVELTEK_ACQUIRE_TIMEOUT", 10*time.Second),
		DialTimeout:       getEnvDuration("TRAVELTEK_DIAL_TIMEOUT", 15*time.Second),
		DownloadTimeout:   getEnvDuration("TRAVELTEK_DOWNLOAD_TIMEOUT", 45*time.Second),
		IdleTimeout:       getEnvDuration("TRAVELTEK_IDLE_TIMEOUT", 2*time.Minute),
		RequestsPerSecond: getEnvFloat("TRAVELTEK_REQUESTS_PER_SECOND", 8),
		BreakerThreshold:  uint32(getEnvInt("TRAVELTEK_BREAKER_THRESHOLD", 5)),
		BreakerCooldown:   getEnvDuration("TRAVELTEK_BREAKER_COOLDOWN", 30*time.Second),
	}

	if cfg.User == "" {
		return nil, errors.New("TRAVELTEK_FTP_USER is required")
	}
	if cfg.Password == "" {
		return nil, errors.New("TRAVELTEK_FTP_PASSWORD is required")
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 4
	}
	return cfg, nil
}

func getEnvInt(key string, def int) int {
	if v, err := strconv.Atoi(env.GetEnv(key, "")); err == nil {
		return v
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v, err := strconv.ParseFloat(env.GetEnv(key, ""), 64); err == nil {
		return v
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v, err := time.ParseDuration(env.GetEnv(key, "")); err == nil {
		return v
	}
	return def
}
