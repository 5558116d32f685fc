package tokencache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/oauth2"
)

// FileCache keeps tokens in a single JSON file keyed by cache key.
type FileCache struct {
	path string
	mu   sync.Mutex
}

func NewFileCache(path string) *FileCache {
	return &FileCache{path: path}
}

func (c *FileCache) Load(_ context.Context, key string) (*oauth2.Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := c.read()
	if err != nil {
		return nil, err
	}
	tok, ok := entries[key]
	if !ok || tok == nil {
		return nil, ErrMiss
	}
	return tok, nil
}

func (c *FileCache) Save(_ context.Context, key string, tok *oauth2.Token) error {
	if tok == nil {
		return errors.New("cannot cache a nil token")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := c.read()
	if err != nil {
		// A corrupt file is overwritten.
		entries = make(map[string]*oauth2.Token)
	}
	entries[key] = tok

	raw, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode token cache: %w", err)
	}
	return c.write(raw)
}

func (c *FileCache) read() (map[string]*oauth2.Token, error) {
	raw, err := os.ReadFile(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]*oauth2.Token{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token cache %s: %w", c.path, err)
	}
	entries := make(map[string]*oauth2.Token)
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode token cache %s: %w", c.path, err)
	}
	return entries, nil
}

// write replaces the file atomically via a temp file in the same directory.
func (c *FileCache) write(raw []byte) error {
	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create token cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".tokencache-*")
	if err != nil {
		return fmt.Errorf("failed to create temp token cache: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write token cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), c.path)
}
