// Package request turns a message into the FCM v1 send request.
package request

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/tinywideclouds/go-fcm-sender/pkg/message"
)

// DefaultEndpoint is the production FCM API host.
const DefaultEndpoint = "https://fcm.googleapis.com"

var ErrMissingProjectID = errors.New("project id is required")

// Request is a ready-to-send messages:send call.
type Request struct {
	URL  string
	Body []byte
}

type envelope struct {
	Message      message.Message `json:"message"`
	ValidateOnly bool            `json:"validate_only,omitempty"`
}

// Build validates msg and encodes it into the send envelope addressed to
// projectID. An empty endpoint means DefaultEndpoint. When validateOnly is
// set FCM checks the message without delivering it.
func Build(projectID, endpoint string, msg *message.Message, validateOnly bool) (*Request, error) {
	if projectID == "" {
		return nil, ErrMissingProjectID
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	body, err := json.Marshal(envelope{Message: *msg, ValidateOnly: validateOnly})
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}

	return &Request{URL: SendURL(endpoint, projectID), Body: body}, nil
}

// SendURL returns the messages:send URL for projectID.
func SendURL(endpoint, projectID string) string {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return fmt.Sprintf("%s/v1/projects/%s/messages:send",
		strings.TrimRight(endpoint, "/"), url.PathEscape(projectID))
}
