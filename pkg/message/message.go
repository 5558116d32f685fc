// Package message contains the typed model of an FCM HTTP v1 message and
// its JSON encoding.
package message

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidMessage is wrapped by every validation failure.
var ErrInvalidMessage = errors.New("invalid message")

// Message is a single notification addressed to one Target.
// https://firebase.google.com/docs/reference/fcm/rest/v1/projects.messages#resource:-message
type Message struct {
	// Data is an arbitrary key/value payload delivered to the app.
	Data map[string]string
	// Notification is the basic template shared by all platforms.
	Notification *Notification
	Target       Target

	Android    *AndroidConfig
	Webpush    *WebpushConfig
	APNS       *APNSConfig
	FCMOptions *FCMOptions
}

// Notification is the cross-platform notification template.
type Notification struct {
	Title string `json:"title,omitempty"`
	Body  string `json:"body,omitempty"`
	// Image is the URL of an image downloaded on the device and shown in the notification.
	Image string `json:"image,omitempty"`
}

// FCMOptions holds SDK feature options applied on every platform.
type FCMOptions struct {
	AnalyticsLabel string `json:"analytics_label,omitempty"`
}

type wireMessage struct {
	Data         map[string]string `json:"data,omitempty"`
	Notification *Notification     `json:"notification,omitempty"`
	Android      *AndroidConfig    `json:"android,omitempty"`
	Webpush      *WebpushConfig    `json:"webpush,omitempty"`
	APNS         *APNSConfig       `json:"apns,omitempty"`
	FCMOptions   *FCMOptions       `json:"fcm_options,omitempty"`
	Token        string            `json:"token,omitempty"`
	Topic        string            `json:"topic,omitempty"`
	Condition    string            `json:"condition,omitempty"`
}

// MarshalJSON flattens the target into exactly one of the token, topic or
// condition keys and drops every unset optional field.
func (m Message) MarshalJSON() ([]byte, error) {
	w := wireMessage{
		Data:         m.Data,
		Notification: m.Notification,
		Android:      m.Android,
		Webpush:      m.Webpush,
		APNS:         m.APNS,
		FCMOptions:   m.FCMOptions,
	}
	switch m.Target.kind {
	case TargetToken:
		w.Token = m.Target.value
	case TargetTopic:
		w.Topic = m.Target.value
	case TargetCondition:
		w.Condition = m.Target.value
	default:
		return nil, fmt.Errorf("%w: no target set", ErrInvalidMessage)
	}
	return json.Marshal(w)
}

// Validate reports the first problem that would make FCM reject the message.
func (m *Message) Validate() error {
	if m == nil {
		return fmt.Errorf("%w: message is nil", ErrInvalidMessage)
	}
	if err := m.Target.validate(); err != nil {
		return err
	}
	if err := validateData(m.Data); err != nil {
		return err
	}
	if m.Android != nil {
		if err := m.Android.validate(); err != nil {
			return fmt.Errorf("android: %w", err)
		}
	}
	if m.Webpush != nil {
		if err := m.Webpush.validate(); err != nil {
			return fmt.Errorf("webpush: %w", err)
		}
	}
	if m.APNS != nil {
		if err := m.APNS.validate(); err != nil {
			return fmt.Errorf("apns: %w", err)
		}
	}
	return nil
}
