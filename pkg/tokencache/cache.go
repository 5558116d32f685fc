// Package tokencache persists OAuth2 access tokens between process runs so
// short-lived senders do not mint a new token on every start.
package tokencache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/oauth2"
)

// ErrMiss is returned by Load when no token is stored under the key.
var ErrMiss = errors.New("token not cached")

// Cache stores tokens by key, usually the service account client email.
type Cache interface {
	Load(ctx context.Context, key string) (*oauth2.Token, error)
	Save(ctx context.Context, key string, tok *oauth2.Token) error
}

// expiryDelta matches the early-expiry window oauth2 applies to tokens.
const expiryDelta = 10 * time.Second

// cachedTokenSource is a read-aside decorator over a base token source.
type cachedTokenSource struct {
	ctx    context.Context
	base   oauth2.TokenSource
	cache  Cache
	key    string
	logger *slog.Logger
}

// NewTokenSource returns a token source that serves a still-valid cached
// token when one exists and otherwise fetches from base and stores the
// result. Cache failures are logged and never fail the fetch.
func NewTokenSource(ctx context.Context, base oauth2.TokenSource, cache Cache, key string, logger *slog.Logger) oauth2.TokenSource {
	return &cachedTokenSource{
		ctx:    ctx,
		base:   base,
		cache:  cache,
		key:    key,
		logger: logger.With("component", "TokenCache"),
	}
}

func (s *cachedTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.cache.Load(s.ctx, s.key)
	if err == nil && usable(tok) {
		s.logger.Debug("Token cache hit", "key", s.key)
		return tok, nil
	}
	if err != nil && !errors.Is(err, ErrMiss) {
		s.logger.Warn("Token cache read failed", "key", s.key, "err", err)
	}

	fresh, err := s.base.Token()
	if err != nil {
		return nil, err
	}

	if err := s.cache.Save(s.ctx, s.key, fresh); err != nil {
		s.logger.Warn("Token cache write failed", "key", s.key, "err", err)
	}
	return fresh, nil
}

func usable(tok *oauth2.Token) bool {
	if tok == nil || tok.AccessToken == "" {
		return false
	}
	if tok.Expiry.IsZero() {
		return true
	}
	return time.Until(tok.Expiry) > expiryDelta
}
