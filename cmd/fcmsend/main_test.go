package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-fcm-sender/pkg/fcm"
	"github.com/tinywideclouds/go-fcm-sender/pkg/message"
	"github.com/tinywideclouds/go-fcm-sender/sender/config"
)

func TestParseArgs(t *testing.T) {
	t.Run("Success - device token", func(t *testing.T) {
		a, err := parseArgs([]string{"-device-token", "abc", "-dry-run"})
		require.NoError(t, err)
		assert.True(t, a.dryRun)
		assert.Equal(t, message.Token("abc"), a.target())
	})

	t.Run("Success - topic", func(t *testing.T) {
		a, err := parseArgs([]string{"-topic", "news"})
		require.NoError(t, err)
		assert.Equal(t, message.TargetTopic, a.target().Kind())
	})

	t.Run("Failure - no target", func(t *testing.T) {
		_, err := parseArgs(nil)
		assert.Error(t, err)
	})

	t.Run("Failure - two targets", func(t *testing.T) {
		_, err := parseArgs([]string{"-device-token", "abc", "-condition", "'a' in topics"})
		assert.Error(t, err)
	})
}

func TestBuildMessage(t *testing.T) {
	a := &cliArgs{deviceToken: "abc", title: "Hi", analyticsLabel: "label"}
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	msg, err := buildMessage(a, "send-1", now)

	require.NoError(t, err)
	require.NoError(t, msg.Validate())
	assert.Equal(t, map[string]string{"key": "value", "send_id": "send-1"}, msg.Data)
	assert.Equal(t, "it's 2024-01-01T00:00:00Z", msg.Notification.Body)
	assert.Equal(t, message.AndroidPriorityHigh, msg.Android.Priority)
}

func TestLoadConfig(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("Embedded defaults with flag overrides", func(t *testing.T) {
		cfg, err := loadConfig(&cliArgs{keyPath: "/tmp/sa.json", dryRun: true}, logger)
		require.NoError(t, err)

		assert.Equal(t, config.BackendHTTP, cfg.Backend)
		assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
		assert.Equal(t, "/tmp/sa.json", cfg.CredentialsFile)
		assert.True(t, cfg.DryRun)
	})

	t.Run("Config file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "cfg.yaml")
		require.NoError(t, os.WriteFile(path, []byte("project_id: file-project\nbackend: sdk\n"), 0o600))

		cfg, err := loadConfig(&cliArgs{configPath: path}, logger)
		require.NoError(t, err)

		assert.Equal(t, "file-project", cfg.ProjectID)
		assert.Equal(t, config.BackendSDK, cfg.Backend)
	})
}

type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(ctx context.Context, msg *message.Message) (*fcm.Response, error) {
	args := m.Called(ctx, msg)
	resp, _ := args.Get(0).(*fcm.Response)
	return resp, args.Error(1)
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a := &cliArgs{topic: "news", title: "Hi"}

	t.Run("Success", func(t *testing.T) {
		s := new(MockSender)
		s.On("Send", ctx, mock.MatchedBy(func(m *message.Message) bool {
			return m.Target == message.Topic("news") && m.Data["send_id"] != ""
		})).Return(&fcm.Response{Name: "projects/p/messages/1"}, nil).Once()

		err := run(ctx, s, a, false, logger)

		require.NoError(t, err)
		s.AssertExpectations(t)
	})

	t.Run("Failure - send error is returned", func(t *testing.T) {
		s := new(MockSender)
		sendErr := fcm.NewError(fcm.KindServer, errors.New("unavailable"))
		s.On("Send", ctx, mock.Anything).Return(nil, sendErr).Once()

		err := run(ctx, s, a, false, logger)

		assert.ErrorIs(t, err, fcm.ErrServer)
		s.AssertExpectations(t)
	})
}
