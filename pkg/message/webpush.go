package message

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/SherClockHolmes/webpush-go"
)

// WebpushConfig holds Webpush protocol options.
// https://firebase.google.com/docs/reference/fcm/rest/v1/projects.messages#webpushconfig
type WebpushConfig struct {
	Headers map[string]string `json:"headers,omitempty"`
	Data    map[string]string `json:"data,omitempty"`
	// Notification is a free-form Web Notification options object.
	Notification map[string]any     `json:"notification,omitempty"`
	FCMOptions   *WebpushFCMOptions `json:"fcm_options,omitempty"`
}

// WebpushFCMOptions holds FCM SDK feature options for the web.
type WebpushFCMOptions struct {
	// Link opens when the user clicks the notification. Must be HTTPS.
	Link           string `json:"link,omitempty"`
	AnalyticsLabel string `json:"analytics_label,omitempty"`
}

// WebpushHeaders renders the Webpush TTL, Urgency and Topic headers.
// Zero values are left out.
func WebpushHeaders(ttl time.Duration, urgency webpush.Urgency, topic string) map[string]string {
	headers := make(map[string]string)
	if ttl > 0 {
		headers["TTL"] = strconv.FormatInt(int64(ttl/time.Second), 10)
	}
	if urgency != "" {
		headers["Urgency"] = string(urgency)
	}
	if topic != "" {
		headers["Topic"] = topic
	}
	return headers
}

func (w *WebpushConfig) validate() error {
	if err := validateData(w.Data); err != nil {
		return err
	}
	switch webpush.Urgency(w.Headers["Urgency"]) {
	case "", webpush.UrgencyVeryLow, webpush.UrgencyLow, webpush.UrgencyNormal, webpush.UrgencyHigh:
	default:
		return fmt.Errorf("%w: unknown urgency %q", ErrInvalidMessage, w.Headers["Urgency"])
	}
	if w.FCMOptions != nil && w.FCMOptions.Link != "" {
		u, err := url.Parse(w.FCMOptions.Link)
		if err != nil || u.Scheme != "https" {
			return fmt.Errorf("%w: fcm_options.link must be an HTTPS URL", ErrInvalidMessage)
		}
	}
	return nil
}
