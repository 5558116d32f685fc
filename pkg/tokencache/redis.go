package tokencache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
)

// Client defines the subset of Redis commands the cache needs.
type Client interface {
	// Get decodes the stored value into dest. A missing key returns redis.Nil.
	Get(ctx context.Context, key string, dest interface{}) error
	// Set stores the value with a TTL.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	// Del removes the key.
	Del(ctx context.Context, key string) error
}

// RedisClient wraps go-redis to satisfy Client.
type RedisClient struct {
	rdb *redis.Client
}

func NewRedisClient(ctx context.Context, addr, password string, db int) (*RedisClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Fail fast if connection is bad
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisClient{rdb: rdb}, nil
}

func (c *RedisClient) Get(ctx context.Context, key string, dest interface{}) error {
	val, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(val, dest)
}

func (c *RedisClient) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	bytes, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, bytes, ttl).Err()
}

func (c *RedisClient) Del(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, key).Err()
}

func (c *RedisClient) Close() error {
	return c.rdb.Close()
}

// RedisCache stores tokens in Redis so several processes sharing one
// service account reuse the same access token.
type RedisCache struct {
	client Client
}

func NewRedisCache(client Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Load(ctx context.Context, key string) (*oauth2.Token, error) {
	var tok oauth2.Token
	if err := c.client.Get(ctx, cacheKey(key), &tok); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("redis token lookup failed: %w", err)
	}
	return &tok, nil
}

// Save stores tok until it expires. Tokens already past expiry are dropped.
func (c *RedisCache) Save(ctx context.Context, key string, tok *oauth2.Token) error {
	if tok == nil {
		return errors.New("cannot cache a nil token")
	}
	var ttl time.Duration
	if !tok.Expiry.IsZero() {
		ttl = time.Until(tok.Expiry)
		if ttl <= 0 {
			return c.client.Del(ctx, cacheKey(key))
		}
	}
	return c.client.Set(ctx, cacheKey(key), tok, ttl)
}

func cacheKey(key string) string {
	return fmt.Sprintf("fcm:token:%s", key)
}
