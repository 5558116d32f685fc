package tokencache_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-fcm-sender/pkg/tokencache"
	"golang.org/x/oauth2"
)

// --- Mocks ---
type MockClient struct {
	mock.Mock
}

func (m *MockClient) Get(ctx context.Context, key string, dest interface{}) error {
	args := m.Called(ctx, key, dest)
	return args.Error(0)
}
func (m *MockClient) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return m.Called(ctx, key, value, ttl).Error(0)
}
func (m *MockClient) Del(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

// countingSource hands out a new token on every call.
type countingSource struct {
	calls atomic.Int32
	err   error
}

func (s *countingSource) Token() (*oauth2.Token, error) {
	n := s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return &oauth2.Token{
		AccessToken: "fresh-" + string(rune('0'+n)),
		TokenType:   "Bearer",
		Expiry:      time.Now().Add(time.Hour),
	}, nil
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFileCache(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "tokens.json")
	cache := tokencache.NewFileCache(path)

	t.Run("Miss on empty cache", func(t *testing.T) {
		_, err := cache.Load(ctx, "sa@example.com")
		assert.ErrorIs(t, err, tokencache.ErrMiss)
	})

	t.Run("Round trip", func(t *testing.T) {
		expiry := time.Now().Add(30 * time.Minute).Truncate(time.Second)
		require.NoError(t, cache.Save(ctx, "sa@example.com", &oauth2.Token{AccessToken: "abc", Expiry: expiry}))
		require.NoError(t, cache.Save(ctx, "other@example.com", &oauth2.Token{AccessToken: "xyz"}))

		tok, err := cache.Load(ctx, "sa@example.com")
		require.NoError(t, err)
		assert.Equal(t, "abc", tok.AccessToken)
		assert.True(t, expiry.Equal(tok.Expiry))

		// A second instance reads what the first one wrote.
		tok, err = tokencache.NewFileCache(path).Load(ctx, "other@example.com")
		require.NoError(t, err)
		assert.Equal(t, "xyz", tok.AccessToken)
	})

	t.Run("File is private", func(t *testing.T) {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	})

	t.Run("Corrupt file is overwritten", func(t *testing.T) {
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

		_, err := cache.Load(ctx, "sa@example.com")
		require.Error(t, err)

		require.NoError(t, cache.Save(ctx, "sa@example.com", &oauth2.Token{AccessToken: "new"}))
		tok, err := cache.Load(ctx, "sa@example.com")
		require.NoError(t, err)
		assert.Equal(t, "new", tok.AccessToken)
	})
}

func TestRedisCache(t *testing.T) {
	ctx := context.Background()
	cacheKey := "fcm:token:sa@example.com"

	t.Run("Miss maps redis.Nil to ErrMiss", func(t *testing.T) {
		mockClient := new(MockClient)
		mockClient.On("Get", ctx, cacheKey, mock.Anything).Return(redis.Nil)

		_, err := tokencache.NewRedisCache(mockClient).Load(ctx, "sa@example.com")

		assert.ErrorIs(t, err, tokencache.ErrMiss)
		mockClient.AssertExpectations(t)
	})

	t.Run("Hit decodes token", func(t *testing.T) {
		mockClient := new(MockClient)
		mockClient.On("Get", ctx, cacheKey, mock.Anything).
			Run(func(args mock.Arguments) {
				args.Get(2).(*oauth2.Token).AccessToken = "cached"
			}).
			Return(nil)

		tok, err := tokencache.NewRedisCache(mockClient).Load(ctx, "sa@example.com")

		require.NoError(t, err)
		assert.Equal(t, "cached", tok.AccessToken)
	})

	t.Run("Save uses remaining lifetime as TTL", func(t *testing.T) {
		mockClient := new(MockClient)
		tok := &oauth2.Token{AccessToken: "abc", Expiry: time.Now().Add(time.Hour)}
		mockClient.On("Set", ctx, cacheKey, tok, mock.MatchedBy(func(ttl time.Duration) bool {
			return ttl > 59*time.Minute && ttl <= time.Hour
		})).Return(nil)

		require.NoError(t, tokencache.NewRedisCache(mockClient).Save(ctx, "sa@example.com", tok))
		mockClient.AssertExpectations(t)
	})

	t.Run("Save of expired token deletes key", func(t *testing.T) {
		mockClient := new(MockClient)
		mockClient.On("Del", ctx, cacheKey).Return(nil)

		tok := &oauth2.Token{AccessToken: "old", Expiry: time.Now().Add(-time.Minute)}
		require.NoError(t, tokencache.NewRedisCache(mockClient).Save(ctx, "sa@example.com", tok))
		mockClient.AssertExpectations(t)
		mockClient.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestTokenSource_ReadAside(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()

	t.Run("Valid cached token skips base", func(t *testing.T) {
		cache := tokencache.NewFileCache(filepath.Join(t.TempDir(), "tokens.json"))
		require.NoError(t, cache.Save(ctx, "sa", &oauth2.Token{AccessToken: "cached", Expiry: time.Now().Add(time.Hour)}))
		base := &countingSource{}

		tok, err := tokencache.NewTokenSource(ctx, base, cache, "sa", logger).Token()

		require.NoError(t, err)
		assert.Equal(t, "cached", tok.AccessToken)
		assert.Equal(t, int32(0), base.calls.Load())
	})

	t.Run("Expired cached token is refreshed and stored", func(t *testing.T) {
		cache := tokencache.NewFileCache(filepath.Join(t.TempDir(), "tokens.json"))
		require.NoError(t, cache.Save(ctx, "sa", &oauth2.Token{AccessToken: "stale", Expiry: time.Now().Add(5 * time.Second)}))
		base := &countingSource{}

		tok, err := tokencache.NewTokenSource(ctx, base, cache, "sa", logger).Token()

		require.NoError(t, err)
		assert.Equal(t, "fresh-1", tok.AccessToken)

		stored, err := cache.Load(ctx, "sa")
		require.NoError(t, err)
		assert.Equal(t, "fresh-1", stored.AccessToken)
	})

	t.Run("Cache failures do not fail the fetch", func(t *testing.T) {
		mockClient := new(MockClient)
		mockClient.On("Get", ctx, "fcm:token:sa", mock.Anything).Return(errors.New("connection refused"))
		mockClient.On("Set", ctx, "fcm:token:sa", mock.Anything, mock.Anything).Return(errors.New("connection refused"))
		base := &countingSource{}

		tok, err := tokencache.NewTokenSource(ctx, base, tokencache.NewRedisCache(mockClient), "sa", logger).Token()

		require.NoError(t, err)
		assert.Equal(t, "fresh-1", tok.AccessToken)
		mockClient.AssertExpectations(t)
	})

	t.Run("Base failure is returned", func(t *testing.T) {
		cache := tokencache.NewFileCache(filepath.Join(t.TempDir(), "tokens.json"))
		base := &countingSource{err: errors.New("invalid_grant")}

		_, err := tokencache.NewTokenSource(ctx, base, cache, "sa", logger).Token()

		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid_grant")
	})
}
