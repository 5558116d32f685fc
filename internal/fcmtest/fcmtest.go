// Package fcmtest provides fake OAuth2 and FCM endpoints plus throwaway
// service account keys for tests.
package fcmtest

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

const AccessToken = "test-access-token"

// NewKey returns a service account key JSON whose token_uri points at
// tokenURL. The private key is freshly generated.
func NewKey(t testing.TB, tokenURL, projectID string) []byte {
	t.Helper()

	pk, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(pk)
	require.NoError(t, err)
	pemKey := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})

	key := map[string]string{
		"type":           "service_account",
		"project_id":     projectID,
		"private_key_id": "test-key-id",
		"private_key":    string(pemKey),
		"client_email":   "sender@" + projectID + ".iam.gserviceaccount.com",
		"client_id":      "1234567890",
		"token_uri":      tokenURL,
	}
	if projectID == "" {
		delete(key, "project_id")
		key["client_email"] = "sender@example.iam.gserviceaccount.com"
	}
	raw, err := json.Marshal(key)
	require.NoError(t, err)
	return raw
}

// WriteKey stores key under a temp dir and returns its path.
func WriteKey(t testing.TB, key []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "service-account.json")
	require.NoError(t, os.WriteFile(path, key, 0o600))
	return path
}

// TokenServer is a fake OAuth2 token endpoint.
type TokenServer struct {
	*httptest.Server
	calls atomic.Int32
}

func NewTokenServer(t testing.TB) *TokenServer {
	t.Helper()
	ts := &TokenServer{}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"`+AccessToken+`","token_type":"Bearer","expires_in":3600}`)
	}))
	t.Cleanup(ts.Close)
	return ts
}

// Calls is the number of token requests served.
func (s *TokenServer) Calls() int { return int(s.calls.Load()) }

// Recorded is one request seen by an FCMServer.
type Recorded struct {
	Path          string
	Authorization string
	ContentType   string
	Body          []byte
}

// FCMServer is a fake messages:send endpoint replying with a fixed status,
// headers and body.
type FCMServer struct {
	*httptest.Server

	mu       sync.Mutex
	requests []Recorded

	Status  int
	Headers map[string]string
	Body    string
}

func NewFCMServer(t testing.TB, status int, body string) *FCMServer {
	t.Helper()
	fs := &FCMServer{Status: status, Body: body, Headers: map[string]string{}}
	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		fs.mu.Lock()
		fs.requests = append(fs.requests, Recorded{
			Path:          r.URL.Path,
			Authorization: r.Header.Get("Authorization"),
			ContentType:   r.Header.Get("Content-Type"),
			Body:          raw,
		})
		status, headers, body := fs.Status, fs.Headers, fs.Body
		fs.mu.Unlock()

		for k, v := range headers {
			w.Header().Set(k, v)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(fs.Close)
	return fs
}

// Requests returns a copy of every request received so far.
func (s *FCMServer) Requests() []Recorded {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Recorded(nil), s.requests...)
}
