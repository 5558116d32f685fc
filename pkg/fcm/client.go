// Package fcm sends push notifications through the Firebase Cloud Messaging
// HTTP v1 API.
//
//	client, err := fcm.New(ctx, fcm.WithServiceAccountKeyPath("key.json"))
//	if err != nil {
//		return err
//	}
//	resp, err := client.Send(ctx, &message.Message{
//		Target:       message.Token(deviceToken),
//		Notification: &message.Notification{Title: "Hello"},
//	})
//
// Every failure is an *Error; use errors.Is with the Err* sentinels or the
// Is* predicates to classify it.
package fcm

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/tinywideclouds/go-fcm-sender/internal/metrics"
	"github.com/tinywideclouds/go-fcm-sender/pkg/credentials"
	"github.com/tinywideclouds/go-fcm-sender/pkg/message"
	"github.com/tinywideclouds/go-fcm-sender/pkg/tokencache"
	"golang.org/x/oauth2"
)

// Sender delivers a single message.
type Sender interface {
	Send(ctx context.Context, msg *message.Message) (*Response, error)
}

// RegisterMetrics exposes the send counters and latency histogram on reg.
func RegisterMetrics(reg prometheus.Registerer) error {
	return metrics.Register(reg)
}

type options struct {
	keyPath     string
	keyJSON     []byte
	envFile     string
	projectID   string
	tokenSource oauth2.TokenSource
	cache       tokencache.Cache
	timeout     time.Duration
	dryRun      bool
	endpoint    string
	httpClient  *http.Client
	logger      *slog.Logger
}

// Option configures a Client.
type Option func(*options)

// WithServiceAccountKeyPath reads the key from path instead of the environment.
func WithServiceAccountKeyPath(path string) Option {
	return func(o *options) { o.keyPath = path }
}

// WithServiceAccountKeyJSON uses the raw key bytes directly.
func WithServiceAccountKeyJSON(key []byte) Option {
	return func(o *options) { o.keyJSON = key }
}

// WithEnvFile sets the env file consulted for GOOGLE_APPLICATION_CREDENTIALS.
func WithEnvFile(path string) Option {
	return func(o *options) { o.envFile = path }
}

// WithProjectID overrides the project id found in the key.
func WithProjectID(id string) Option {
	return func(o *options) { o.projectID = id }
}

// WithTokenSource skips key resolution. WithProjectID is then required.
func WithTokenSource(ts oauth2.TokenSource) Option {
	return func(o *options) { o.tokenSource = ts }
}

// WithTokenCache persists access tokens across processes.
func WithTokenCache(cache tokencache.Cache) Option {
	return func(o *options) { o.cache = cache }
}

// WithRequestTimeout bounds each Send. Zero means no limit beyond ctx.
// FCM recommends no less than 10 seconds.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithDryRun makes FCM validate messages without delivering them.
func WithDryRun(dryRun bool) Option {
	return func(o *options) { o.dryRun = dryRun }
}

// WithEndpoint replaces https://fcm.googleapis.com, e.g. for tests.
func WithEndpoint(endpoint string) Option {
	return func(o *options) { o.endpoint = endpoint }
}

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// WithLogger sets the logger for send outcomes and transport diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// Client is safe for concurrent use.
type Client struct {
	projectID string
	endpoint  string
	dryRun    bool
	timeout   time.Duration
	tokens    oauth2.TokenSource
	http      *resty.Client
	logger    *slog.Logger
}

var _ Sender = (*Client)(nil)

// New resolves credentials and builds a Client. No request is made.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	logger := o.logger.With("component", "FCMClient")

	tokens := o.tokenSource
	projectID := o.projectID
	if tokens == nil {
		creds, err := credentials.Resolve(ctx, credentials.Options{
			KeyJSON:   o.keyJSON,
			KeyPath:   o.keyPath,
			EnvFile:   o.envFile,
			ProjectID: o.projectID,
			Cache:     o.cache,
			Logger:    o.logger,
		})
		if err != nil {
			return nil, NewError(KindCredentials, err)
		}
		tokens = creds.TokenSource
		projectID = creds.ProjectID
	} else if projectID == "" {
		return nil, NewError(KindCredentials, fmt.Errorf("%w: required with a custom token source", credentials.ErrMissingProjectID))
	} else {
		tokens = oauth2.ReuseTokenSource(nil, tokens)
	}

	var rc *resty.Client
	if o.httpClient != nil {
		rc = resty.NewWithClient(o.httpClient)
	} else {
		rc = resty.New()
	}
	rc.SetLogger(restyLogger{logger}).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	logger.Info("FCM client ready", "project_id", projectID, "dry_run", o.dryRun)
	return &Client{
		projectID: projectID,
		endpoint:  o.endpoint,
		dryRun:    o.dryRun,
		timeout:   o.timeout,
		tokens:    tokens,
		http:      rc,
		logger:    logger,
	}, nil
}

// ProjectID is the project messages are sent to.
func (c *Client) ProjectID() string { return c.projectID }

// restyLogger routes resty's own diagnostics into slog.
type restyLogger struct {
	logger *slog.Logger
}

func (l restyLogger) Errorf(format string, v ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, v...))
}

func (l restyLogger) Warnf(format string, v ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, v...))
}

func (l restyLogger) Debugf(format string, v ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, v...))
}
