package config_test

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-fcm-sender/sender/config"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestUpdateConfigWithEnvOverrides(t *testing.T) {
	logger := newTestLogger()

	baseConfig := func() *config.Config {
		return &config.Config{
			ProjectID:       "base-project",
			CredentialsFile: "/base/sa.json",
			Backend:         config.BackendHTTP,
			RequestTimeout:  5 * time.Second,
		}
	}

	t.Run("Success - All overrides applied", func(t *testing.T) {
		cfg := baseConfig()

		t.Setenv("FCM_PROJECT_ID", "env-project")
		t.Setenv("FCM_CREDENTIALS_FILE", "/env/sa.json")
		t.Setenv("FCM_ENV_FILE", "/env/.env")
		t.Setenv("FCM_BACKEND", "sdk")
		t.Setenv("FCM_ENDPOINT", "http://localhost:9999")
		t.Setenv("FCM_REQUEST_TIMEOUT", "20s")
		t.Setenv("FCM_DRY_RUN", "true")
		t.Setenv("FCM_TOKEN_CACHE_PATH", "/env/tokens.json")
		t.Setenv("REDIS_ADDR", "redis:6379")
		t.Setenv("REDIS_DB", "3")

		finalCfg, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		require.NoError(t, err)

		assert.Equal(t, "env-project", finalCfg.ProjectID)
		assert.Equal(t, "/env/sa.json", finalCfg.CredentialsFile)
		assert.Equal(t, "/env/.env", finalCfg.EnvFile)
		assert.Equal(t, config.BackendSDK, finalCfg.Backend)
		assert.Equal(t, "http://localhost:9999", finalCfg.Endpoint)
		assert.Equal(t, 20*time.Second, finalCfg.RequestTimeout)
		assert.True(t, finalCfg.DryRun)
		assert.Equal(t, "/env/tokens.json", finalCfg.TokenCache.Path)

		// REDIS_ADDR implies enabled
		assert.True(t, finalCfg.Redis.Enabled)
		assert.Equal(t, "redis:6379", finalCfg.Redis.Addr)
		assert.Equal(t, 3, finalCfg.Redis.DB)
	})

	t.Run("Success - Defaults preserved", func(t *testing.T) {
		cfg := &config.Config{ProjectID: "base-project"}
		finalCfg, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		require.NoError(t, err)

		assert.Equal(t, "base-project", finalCfg.ProjectID)
		assert.Equal(t, config.BackendHTTP, finalCfg.Backend)
		assert.False(t, finalCfg.DryRun)
	})

	t.Run("Success - Redis can be disabled explicitly", func(t *testing.T) {
		t.Setenv("REDIS_ADDR", "redis:6379")
		t.Setenv("REDIS_ENABLED", "false")

		finalCfg, err := config.UpdateConfigWithEnvOverrides(baseConfig(), logger)
		require.NoError(t, err)
		assert.False(t, finalCfg.Redis.Enabled)
	})

	t.Run("Validation Failure - Unknown backend", func(t *testing.T) {
		t.Setenv("FCM_BACKEND", "carrier-pigeon")
		_, err := config.UpdateConfigWithEnvOverrides(baseConfig(), logger)
		assert.Error(t, err)
	})

	t.Run("Validation Failure - Bad timeout", func(t *testing.T) {
		t.Setenv("FCM_REQUEST_TIMEOUT", "soon")
		_, err := config.UpdateConfigWithEnvOverrides(baseConfig(), logger)
		assert.Error(t, err)
	})

	t.Run("Validation Failure - Redis without address", func(t *testing.T) {
		cfg := baseConfig()
		cfg.Redis.Enabled = true
		_, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		assert.Error(t, err)
	})
}
