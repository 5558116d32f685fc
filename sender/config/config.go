package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
)

// Backend selects how messages reach FCM.
type Backend string

const (
	// BackendHTTP posts hand-built requests to the v1 REST endpoint.
	BackendHTTP Backend = "http"
	// BackendSDK goes through the Firebase Admin SDK.
	BackendSDK Backend = "sdk"
)

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

type TokenCacheConfig struct {
	// Path of the JSON file tokens are persisted to. Empty disables it.
	Path string
}

// Config defines the *single*, authoritative configuration.
type Config struct {
	ProjectID       string
	CredentialsFile string
	EnvFile         string
	Backend         Backend
	Endpoint        string
	RequestTimeout  time.Duration
	DryRun          bool

	TokenCache TokenCacheConfig
	Redis      RedisConfig
}

// UpdateConfigWithEnvOverrides applies environment variables and final validation.
func UpdateConfigWithEnvOverrides(cfg *Config, logger *slog.Logger) (*Config, error) {
	logger.Debug("Applying environment variable overrides...")

	// 1. Apply Environment Overrides
	if val := os.Getenv("FCM_PROJECT_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "FCM_PROJECT_ID", "source", "env")
		cfg.ProjectID = val
	}
	if val := os.Getenv("FCM_CREDENTIALS_FILE"); val != "" {
		logger.Debug("Overriding config value", "key", "FCM_CREDENTIALS_FILE", "source", "env")
		cfg.CredentialsFile = val
	}
	if val := os.Getenv("FCM_ENV_FILE"); val != "" {
		logger.Debug("Overriding config value", "key", "FCM_ENV_FILE", "source", "env")
		cfg.EnvFile = val
	}
	if val := os.Getenv("FCM_BACKEND"); val != "" {
		logger.Debug("Overriding config value", "key", "FCM_BACKEND", "source", "env")
		cfg.Backend = Backend(val)
	}
	if val := os.Getenv("FCM_ENDPOINT"); val != "" {
		logger.Debug("Overriding config value", "key", "FCM_ENDPOINT", "source", "env")
		cfg.Endpoint = val
	}
	if val := os.Getenv("FCM_REQUEST_TIMEOUT"); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return nil, fmt.Errorf("invalid FCM_REQUEST_TIMEOUT %q: %w", val, err)
		}
		logger.Debug("Overriding config value", "key", "FCM_REQUEST_TIMEOUT", "source", "env")
		cfg.RequestTimeout = d
	}
	if val := os.Getenv("FCM_DRY_RUN"); val != "" {
		if dryRun, err := strconv.ParseBool(val); err == nil {
			logger.Debug("Overriding config value", "key", "FCM_DRY_RUN", "source", "env")
			cfg.DryRun = dryRun
		}
	}
	if val := os.Getenv("FCM_TOKEN_CACHE_PATH"); val != "" {
		logger.Debug("Overriding config value", "key", "FCM_TOKEN_CACHE_PATH", "source", "env")
		cfg.TokenCache.Path = val
	}

	// Redis Overrides
	if val := os.Getenv("REDIS_ADDR"); val != "" {
		cfg.Redis.Addr = val
		cfg.Redis.Enabled = true
	}
	if val := os.Getenv("REDIS_PASSWORD"); val != "" {
		cfg.Redis.Password = val
	}
	if val := os.Getenv("REDIS_DB"); val != "" {
		if db, err := strconv.Atoi(val); err == nil {
			cfg.Redis.DB = db
		}
	}
	if val := os.Getenv("REDIS_ENABLED"); val != "" {
		enabled, _ := strconv.ParseBool(val)
		cfg.Redis.Enabled = enabled
	}

	// 2. Final Validation
	if cfg.Backend == "" {
		cfg.Backend = BackendHTTP
	}
	if cfg.Backend != BackendHTTP && cfg.Backend != BackendSDK {
		return nil, fmt.Errorf("backend must be %q or %q, got %q", BackendHTTP, BackendSDK, cfg.Backend)
	}
	if cfg.RequestTimeout < 0 {
		return nil, fmt.Errorf("request_timeout must not be negative")
	}
	if cfg.Redis.Enabled && cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis.addr is required when redis is enabled (set via YAML or REDIS_ADDR env var)")
	}
	if cfg.Backend == BackendSDK && (cfg.Redis.Enabled || cfg.TokenCache.Path != "") {
		logger.Warn("Token cache settings are ignored by the sdk backend")
	}

	logger.Debug("Configuration finalized and validated successfully")
	return cfg, nil
}
