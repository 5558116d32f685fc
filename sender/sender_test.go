package sender_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-fcm-sender/internal/fcmtest"
	"github.com/tinywideclouds/go-fcm-sender/internal/platform/firebase"
	"github.com/tinywideclouds/go-fcm-sender/pkg/fcm"
	"github.com/tinywideclouds/go-fcm-sender/pkg/message"
	"github.com/tinywideclouds/go-fcm-sender/sender"
	"github.com/tinywideclouds/go-fcm-sender/sender/config"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNew(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()

	t.Run("HTTP backend with file token cache", func(t *testing.T) {
		tokens := fcmtest.NewTokenServer(t)
		server := fcmtest.NewFCMServer(t, http.StatusOK, `{"name":"projects/cfg-project/messages/9"}`)
		cachePath := filepath.Join(t.TempDir(), "tokens.json")

		cfg := &config.Config{
			Backend:         config.BackendHTTP,
			CredentialsFile: fcmtest.WriteKey(t, fcmtest.NewKey(t, tokens.URL, "cfg-project")),
			Endpoint:        server.URL,
			TokenCache:      config.TokenCacheConfig{Path: cachePath},
		}

		w, err := sender.New(ctx, cfg, logger)
		require.NoError(t, err)
		defer w.Close()

		client, ok := w.Sender.(*fcm.Client)
		require.True(t, ok)
		assert.Equal(t, "cfg-project", client.ProjectID())

		resp, err := w.Send(ctx, &message.Message{Target: message.Token("t")})
		require.NoError(t, err)
		assert.Equal(t, "projects/cfg-project/messages/9", resp.Name)
		assert.FileExists(t, cachePath)
	})

	t.Run("HTTP backend without credentials fails", func(t *testing.T) {
		t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
		cfg := &config.Config{
			Backend: config.BackendHTTP,
			EnvFile: filepath.Join(t.TempDir(), ".env"),
		}

		_, err := sender.New(ctx, cfg, logger)
		assert.ErrorIs(t, err, fcm.ErrCredentials)
	})

	t.Run("Redis cache that cannot connect fails fast", func(t *testing.T) {
		cfg := &config.Config{
			Backend: config.BackendHTTP,
			Redis:   config.RedisConfig{Enabled: true, Addr: "127.0.0.1:1"},
		}

		_, err := sender.New(ctx, cfg, logger)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "redis")
	})

	t.Run("SDK backend", func(t *testing.T) {
		tokens := fcmtest.NewTokenServer(t)
		cfg := &config.Config{
			Backend:         config.BackendSDK,
			ProjectID:       "sdk-project",
			CredentialsFile: fcmtest.WriteKey(t, fcmtest.NewKey(t, tokens.URL, "sdk-project")),
		}

		w, err := sender.New(ctx, cfg, logger)
		require.NoError(t, err)
		defer w.Close()

		_, ok := w.Sender.(*firebase.Sender)
		assert.True(t, ok)
	})

	t.Run("SDK backend reads the key path from the env file", func(t *testing.T) {
		t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
		tokens := fcmtest.NewTokenServer(t)
		keyPath := fcmtest.WriteKey(t, fcmtest.NewKey(t, tokens.URL, "env-project"))
		envFile := filepath.Join(t.TempDir(), ".env")
		require.NoError(t, os.WriteFile(envFile, []byte("GOOGLE_APPLICATION_CREDENTIALS="+keyPath+"\n"), 0o600))

		cfg := &config.Config{
			Backend: config.BackendSDK,
			EnvFile: envFile,
		}

		w, err := sender.New(ctx, cfg, logger)
		require.NoError(t, err)
		defer w.Close()

		_, ok := w.Sender.(*firebase.Sender)
		assert.True(t, ok)
	})

	t.Run("SDK backend with an unreadable key fails", func(t *testing.T) {
		cfg := &config.Config{
			Backend:         config.BackendSDK,
			CredentialsFile: filepath.Join(t.TempDir(), "absent.json"),
		}

		_, err := sender.New(ctx, cfg, logger)
		assert.ErrorIs(t, err, fcm.ErrCredentials)
	})
}
