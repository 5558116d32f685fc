// Package credentials locates a Google service account key and turns it into
// an OAuth2 token source scoped for Firebase Cloud Messaging.
//
// Resolution order:
//
//  1. Options.KeyJSON
//  2. Options.KeyPath
//  3. GOOGLE_APPLICATION_CREDENTIALS in the process environment
//  4. GOOGLE_APPLICATION_CREDENTIALS in the env file (default ".env")
//
// Resolve never talks to the network. The first token is minted on demand.
package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"
	"github.com/tinywideclouds/go-fcm-sender/pkg/tokencache"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	// Scope grants send access to the FCM v1 API.
	Scope = "https://www.googleapis.com/auth/firebase.messaging"
	// EnvVar names the variable holding the key file path.
	EnvVar = "GOOGLE_APPLICATION_CREDENTIALS"
	// DefaultEnvFile is consulted when EnvVar is not set in the process.
	DefaultEnvFile = ".env"
	// TokenFetchTimeout bounds a single request to the OAuth2 token endpoint.
	TokenFetchTimeout = 30 * time.Second
)

var (
	ErrNoCredentials    = errors.New("no service account key configured")
	ErrReadKey          = errors.New("failed to read service account key")
	ErrParseKey         = errors.New("failed to parse service account key")
	ErrMissingProjectID = errors.New("project id not found in key or options")
)

// Source reports where the key was found.
type Source string

const (
	SourceJSON    Source = "json"
	SourcePath    Source = "path"
	SourceEnv     Source = "env"
	SourceEnvFile Source = "env_file"
)

// Options controls where Resolve looks for a key.
type Options struct {
	KeyJSON   []byte
	KeyPath   string
	EnvFile   string
	ProjectID string
	// Cache persists minted tokens across runs when set.
	Cache  tokencache.Cache
	Logger *slog.Logger
}

// Credentials is a resolved service account.
type Credentials struct {
	ProjectID   string
	ClientEmail string
	Source      Source
	// KeyJSON is the raw key, for clients that mint their own tokens.
	KeyJSON []byte
	// TokenSource caches each token until shortly before expiry and is safe
	// for concurrent use.
	TokenSource oauth2.TokenSource
}

type keyFile struct {
	Type        string `json:"type"`
	ProjectID   string `json:"project_id"`
	ClientEmail string `json:"client_email"`
}

// Resolve finds and parses the service account key described by opts.
// ctx is only consulted for values such as oauth2.HTTPClient; cancelling it
// later does not break the returned token source. Without a client in ctx,
// token requests use one limited to TokenFetchTimeout.
func Resolve(ctx context.Context, opts Options) (*Credentials, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	logger = logger.With("component", "CredentialResolver")

	raw, source, err := locate(opts)
	if err != nil {
		return nil, err
	}
	logger.Debug("Service account key located", "source", source)

	var key keyFile
	if err := json.Unmarshal(raw, &key); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseKey, err)
	}
	cfg, err := google.JWTConfigFromJSON(raw, Scope)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseKey, err)
	}
	// A bad private key would otherwise only show up on the first token fetch.
	if _, err := jwt.ParseRSAPrivateKeyFromPEM(cfg.PrivateKey); err != nil {
		return nil, fmt.Errorf("%w: private key: %v", ErrParseKey, err)
	}

	projectID := key.ProjectID
	if opts.ProjectID != "" {
		projectID = opts.ProjectID
	}
	if projectID == "" {
		return nil, ErrMissingProjectID
	}

	tokenCtx := context.WithoutCancel(ctx)
	if _, ok := ctx.Value(oauth2.HTTPClient).(*http.Client); !ok {
		tokenCtx = context.WithValue(tokenCtx, oauth2.HTTPClient, &http.Client{Timeout: TokenFetchTimeout})
	}
	var ts oauth2.TokenSource = cfg.TokenSource(tokenCtx)
	if opts.Cache != nil {
		ts = tokencache.NewTokenSource(tokenCtx, ts, opts.Cache, cfg.Email, logger)
	}

	logger.Info("Credentials resolved", "project_id", projectID, "client_email", cfg.Email, "source", source)
	return &Credentials{
		ProjectID:   projectID,
		ClientEmail: cfg.Email,
		Source:      source,
		KeyJSON:     raw,
		TokenSource: oauth2.ReuseTokenSource(nil, ts),
	}, nil
}

func locate(opts Options) ([]byte, Source, error) {
	if len(opts.KeyJSON) > 0 {
		return opts.KeyJSON, SourceJSON, nil
	}
	if opts.KeyPath != "" {
		raw, err := readKey(opts.KeyPath)
		return raw, SourcePath, err
	}
	if path := os.Getenv(EnvVar); path != "" {
		raw, err := readKey(path)
		return raw, SourceEnv, err
	}

	envFile := opts.EnvFile
	if envFile == "" {
		envFile = DefaultEnvFile
	}
	vars, err := godotenv.Read(envFile)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, "", fmt.Errorf("%w: env file %s: %v", ErrReadKey, envFile, err)
	}
	if path := vars[EnvVar]; path != "" {
		raw, err := readKey(path)
		return raw, SourceEnvFile, err
	}

	return nil, "", ErrNoCredentials
}

func readKey(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReadKey, err)
	}
	defer f.Close()

	raw, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrReadKey, path, err)
	}
	return raw, nil
}
