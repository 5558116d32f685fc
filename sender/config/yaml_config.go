package config

import (
	"fmt"
	"log/slog"
	"time"
)

type YamlRedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Enabled  bool   `yaml:"enabled"`
}

type YamlTokenCacheConfig struct {
	Path string `yaml:"path"`
}

// YamlConfig is the structure that mirrors the raw config.yaml file.
type YamlConfig struct {
	ProjectID       string               `yaml:"project_id"`
	CredentialsFile string               `yaml:"credentials_file"`
	EnvFile         string               `yaml:"env_file"`
	Backend         string               `yaml:"backend"`
	Endpoint        string               `yaml:"endpoint"`
	RequestTimeout  string               `yaml:"request_timeout"`
	DryRun          bool                 `yaml:"dry_run"`
	TokenCache      YamlTokenCacheConfig `yaml:"token_cache"`
	RedisConfig     YamlRedisConfig      `yaml:"redis"`
}

// NewConfigFromYaml converts the YamlConfig into a clean, base Config struct.
func NewConfigFromYaml(baseCfg *YamlConfig, logger *slog.Logger) (*Config, error) {
	logger.Debug("Mapping YAML config to base config struct")

	cfg := &Config{
		ProjectID:       baseCfg.ProjectID,
		CredentialsFile: baseCfg.CredentialsFile,
		EnvFile:         baseCfg.EnvFile,
		Backend:         Backend(baseCfg.Backend),
		Endpoint:        baseCfg.Endpoint,
		DryRun:          baseCfg.DryRun,
		TokenCache: TokenCacheConfig{
			Path: baseCfg.TokenCache.Path,
		},
		Redis: RedisConfig{
			Addr:     baseCfg.RedisConfig.Addr,
			Password: baseCfg.RedisConfig.Password,
			DB:       baseCfg.RedisConfig.DB,
			Enabled:  baseCfg.RedisConfig.Enabled,
		},
	}

	if baseCfg.RequestTimeout != "" {
		d, err := time.ParseDuration(baseCfg.RequestTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid request_timeout %q: %w", baseCfg.RequestTimeout, err)
		}
		cfg.RequestTimeout = d
	}

	logger.Debug("YAML config mapping complete",
		"project_id", cfg.ProjectID,
		"backend", cfg.Backend,
		"dry_run", cfg.DryRun,
	)

	return cfg, nil
}
