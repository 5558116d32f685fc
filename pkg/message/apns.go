package message

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
)

// APNSConfig holds Apple Push Notification service specific options.
// https://firebase.google.com/docs/reference/fcm/rest/v1/projects.messages#apnsconfig
type APNSConfig struct {
	// Headers are the APNs request headers, e.g. apns-priority.
	Headers map[string]string `json:"headers,omitempty"`
	// Payload is the APNs payload: the aps dictionary plus custom keys.
	Payload    json.RawMessage `json:"payload,omitempty"`
	FCMOptions *APNSFCMOptions `json:"fcm_options,omitempty"`
}

// APNSFCMOptions holds FCM SDK feature options for iOS.
type APNSFCMOptions struct {
	AnalyticsLabel string `json:"analytics_label,omitempty"`
	Image          string `json:"image,omitempty"`
}

// NewAPNSConfig builds an APNSConfig whose payload is produced by an apns2
// payload builder, e.g. payload.NewPayload().AlertTitle("hi").Badge(1).
func NewAPNSConfig(p *payload.Payload, headers map[string]string) (*APNSConfig, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode apns payload: %w", err)
	}
	return &APNSConfig{Headers: headers, Payload: raw}, nil
}

// APNSHeaders renders the common APNs request headers. Zero values are left out.
func APNSHeaders(pushType apns2.EPushType, priority int, collapseID string, expiration time.Time) map[string]string {
	headers := make(map[string]string)
	if pushType != "" {
		headers["apns-push-type"] = string(pushType)
	}
	if priority == apns2.PriorityLow || priority == apns2.PriorityHigh {
		headers["apns-priority"] = strconv.Itoa(priority)
	}
	if collapseID != "" {
		headers["apns-collapse-id"] = collapseID
	}
	if !expiration.IsZero() {
		headers["apns-expiration"] = strconv.FormatInt(expiration.Unix(), 10)
	}
	return headers
}

func (a *APNSConfig) validate() error {
	if len(a.Payload) > 0 {
		trimmed := bytes.TrimSpace(a.Payload)
		if len(trimmed) == 0 || trimmed[0] != '{' || !json.Valid(trimmed) {
			return fmt.Errorf("%w: payload must be a JSON object", ErrInvalidMessage)
		}
	}
	if p, ok := a.Headers["apns-priority"]; ok && p != "5" && p != "10" {
		return fmt.Errorf("%w: apns-priority must be 5 or 10", ErrInvalidMessage)
	}
	return nil
}
