// Package sender assembles an fcm.Sender from configuration.
package sender

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tinywideclouds/go-fcm-sender/internal/platform/firebase"
	"github.com/tinywideclouds/go-fcm-sender/pkg/credentials"
	"github.com/tinywideclouds/go-fcm-sender/pkg/fcm"
	"github.com/tinywideclouds/go-fcm-sender/pkg/tokencache"
	"github.com/tinywideclouds/go-fcm-sender/sender/config"
)

// Wrapper is a configured Sender plus the resources it owns.
type Wrapper struct {
	fcm.Sender
	closers []func() error
	logger  *slog.Logger
}

// New assembles the sender selected by cfg.Backend.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Wrapper, error) {
	w := &Wrapper{logger: logger}

	switch cfg.Backend {
	case config.BackendSDK:
		// 1. Key lookup, same order as the HTTP backend
		projectID := cfg.ProjectID
		var keyJSON []byte
		creds, err := credentials.Resolve(ctx, credentials.Options{
			KeyPath:   cfg.CredentialsFile,
			EnvFile:   cfg.EnvFile,
			ProjectID: cfg.ProjectID,
			Logger:    logger,
		})
		switch {
		case errors.Is(err, credentials.ErrNoCredentials):
			logger.Info("No service account key found, using Application Default Credentials")
		case err != nil:
			return nil, fcm.NewError(fcm.KindCredentials, err)
		default:
			projectID = creds.ProjectID
			keyJSON = creds.KeyJSON
		}

		// 2. Firebase Admin SDK
		client, err := firebase.NewMessagingClient(ctx, projectID, keyJSON)
		if err != nil {
			return nil, err
		}
		w.Sender = firebase.NewSender(client, cfg.DryRun, cfg.RequestTimeout, logger)
		logger.Info("Sender initialized", "backend", config.BackendSDK, "project_id", projectID)

	case config.BackendHTTP, "":
		// 1. Token cache (optional)
		cache, err := w.newTokenCache(ctx, cfg)
		if err != nil {
			return nil, err
		}

		// 2. HTTP client
		opts := []fcm.Option{
			fcm.WithProjectID(cfg.ProjectID),
			fcm.WithServiceAccountKeyPath(cfg.CredentialsFile),
			fcm.WithEnvFile(cfg.EnvFile),
			fcm.WithEndpoint(cfg.Endpoint),
			fcm.WithRequestTimeout(cfg.RequestTimeout),
			fcm.WithDryRun(cfg.DryRun),
			fcm.WithLogger(logger),
		}
		if cache != nil {
			opts = append(opts, fcm.WithTokenCache(cache))
		}
		client, err := fcm.New(ctx, opts...)
		if err != nil {
			_ = w.Close()
			return nil, err
		}
		w.Sender = client
		logger.Info("Sender initialized", "backend", config.BackendHTTP, "project_id", client.ProjectID())

	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}

	return w, nil
}

func (w *Wrapper) newTokenCache(ctx context.Context, cfg *config.Config) (tokencache.Cache, error) {
	if cfg.Redis.Enabled {
		w.logger.Info("Initializing Redis token cache...", "addr", cfg.Redis.Addr)
		redisClient, err := tokencache.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		w.closers = append(w.closers, redisClient.Close)
		return tokencache.NewRedisCache(redisClient), nil
	}
	if cfg.TokenCache.Path != "" {
		w.logger.Info("Using file token cache", "path", cfg.TokenCache.Path)
		return tokencache.NewFileCache(cfg.TokenCache.Path), nil
	}
	return nil, nil
}

// Close releases the resources New opened.
func (w *Wrapper) Close() error {
	var firstErr error
	for _, c := range w.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	w.closers = nil
	return firstErr
}
