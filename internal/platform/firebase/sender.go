package firebase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/errorutils"
	"firebase.google.com/go/v4/messaging"
	"github.com/tinywideclouds/go-fcm-sender/pkg/fcm"
	"github.com/tinywideclouds/go-fcm-sender/pkg/message"
	"google.golang.org/api/option"
)

// MessagingClient defines the subset of the Firebase Messaging API we use.
// *messaging.Client satisfies it.
type MessagingClient interface {
	Send(ctx context.Context, msg *messaging.Message) (string, error)
	SendDryRun(ctx context.Context, msg *messaging.Message) (string, error)
}

// Sender delivers messages through the Firebase Admin SDK instead of the
// hand-built HTTP request used by fcm.Client.
type Sender struct {
	client  MessagingClient
	dryRun  bool
	timeout time.Duration
	logger  *slog.Logger
}

var _ fcm.Sender = (*Sender)(nil)

// NewSender wraps client. A positive timeout bounds each Send.
func NewSender(client MessagingClient, dryRun bool, timeout time.Duration, logger *slog.Logger) *Sender {
	return &Sender{
		client:  client,
		dryRun:  dryRun,
		timeout: timeout,
		logger:  logger.With("component", "FirebaseSender"),
	}
}

// NewMessagingClient builds an SDK messaging client from a service account
// key. An empty keyJSON falls back to Application Default Credentials.
func NewMessagingClient(ctx context.Context, projectID string, keyJSON []byte) (*messaging.Client, error) {
	var opts []option.ClientOption
	if len(keyJSON) > 0 {
		opts = append(opts, option.WithCredentialsJSON(keyJSON))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fcm.NewError(fcm.KindCredentials, fmt.Errorf("failed to initialize firebase app: %w", err))
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fcm.NewError(fcm.KindCredentials, fmt.Errorf("failed to create messaging client: %w", err))
	}
	return client, nil
}

func (s *Sender) Send(ctx context.Context, msg *message.Message) (*fcm.Response, error) {
	if err := msg.Validate(); err != nil {
		return nil, fcm.NewError(fcm.KindSerialization, err)
	}
	m, err := toMessaging(msg)
	if err != nil {
		return nil, fcm.NewError(fcm.KindSerialization, err)
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	send := s.client.Send
	if s.dryRun {
		send = s.client.SendDryRun
	}
	name, err := send(ctx, m)
	if err != nil {
		fe := classify(ctx, err)
		if fe.Retryable() {
			s.logger.Warn("FCM SDK send failed (retryable)", "kind", fe.Kind, "err", err)
		} else {
			s.logger.Error("FCM SDK send failed", "kind", fe.Kind, "err", err)
		}
		return nil, fe
	}

	s.logger.Debug("Message sent via SDK", "name", name)
	return &fcm.Response{Name: name, StatusCode: 200}, nil
}

// classify maps an SDK error onto the fcm error kinds.
func classify(ctx context.Context, err error) *fcm.Error {
	fe := fcm.NewError(fcm.KindTransport, err)
	fe.Message = err.Error()

	switch {
	case messaging.IsUnregistered(err):
		fe.ErrorCode = fcm.CodeUnregistered
	case messaging.IsInvalidArgument(err):
		fe.ErrorCode = fcm.CodeInvalidArgument
	case messaging.IsSenderIDMismatch(err):
		fe.ErrorCode = fcm.CodeSenderIDMismatch
	case messaging.IsQuotaExceeded(err):
		fe.ErrorCode = fcm.CodeQuotaExceeded
	case messaging.IsThirdPartyAuthError(err):
		fe.ErrorCode = fcm.CodeThirdPartyAuth
	case messaging.IsUnavailable(err):
		fe.ErrorCode = fcm.CodeUnavailable
	case messaging.IsInternal(err):
		fe.ErrorCode = fcm.CodeInternal
	}

	if resp := errorutils.HTTPResponse(err); resp != nil {
		fe.StatusCode = resp.StatusCode
		switch {
		case resp.StatusCode == 429, resp.StatusCode >= 500:
			fe.Kind = fcm.KindServer
		case resp.StatusCode >= 400:
			fe.Kind = fcm.KindClient
		default:
			fe.Kind = fcm.KindServer
		}
		return fe
	}

	// Without an HTTP response only the error code or the context can tell.
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded), ctx.Err() != nil:
		fe.Kind = fcm.KindTransport
	case fe.ErrorCode == fcm.CodeUnavailable, fe.ErrorCode == fcm.CodeInternal, fe.ErrorCode == fcm.CodeQuotaExceeded:
		fe.Kind = fcm.KindServer
	case fe.ErrorCode != "":
		fe.Kind = fcm.KindClient
	}
	return fe
}

func toMessaging(msg *message.Message) (*messaging.Message, error) {
	m := &messaging.Message{Data: msg.Data}

	switch msg.Target.Kind() {
	case message.TargetToken:
		m.Token = msg.Target.Value()
	case message.TargetTopic:
		m.Topic = msg.Target.Value()
	case message.TargetCondition:
		m.Condition = msg.Target.Value()
	}

	if n := msg.Notification; n != nil {
		m.Notification = &messaging.Notification{Title: n.Title, Body: n.Body, ImageURL: n.Image}
	}
	if msg.FCMOptions != nil {
		m.FCMOptions = &messaging.FCMOptions{AnalyticsLabel: msg.FCMOptions.AnalyticsLabel}
	}
	if msg.Android != nil {
		m.Android = toAndroid(msg.Android)
	}
	if msg.Webpush != nil {
		w, err := toWebpush(msg.Webpush)
		if err != nil {
			return nil, err
		}
		m.Webpush = w
	}
	if msg.APNS != nil {
		a, err := toAPNS(msg.APNS)
		if err != nil {
			return nil, err
		}
		m.APNS = a
	}
	return m, nil
}

func toAndroid(a *message.AndroidConfig) *messaging.AndroidConfig {
	out := &messaging.AndroidConfig{
		CollapseKey:           a.CollapseKey,
		TTL:                   a.TTL,
		RestrictedPackageName: a.RestrictedPackageName,
		Data:                  a.Data,
		DirectBootOK:          a.DirectBootOK,
	}
	switch a.Priority {
	case message.AndroidPriorityHigh:
		out.Priority = "high"
	case message.AndroidPriorityNormal:
		out.Priority = "normal"
	}
	if a.FCMOptions != nil {
		out.FCMOptions = &messaging.AndroidFCMOptions{AnalyticsLabel: a.FCMOptions.AnalyticsLabel}
	}

	n := a.Notification
	if n == nil {
		return out
	}
	an := &messaging.AndroidNotification{
		Title:                 n.Title,
		Body:                  n.Body,
		Icon:                  n.Icon,
		Color:                 n.Color,
		Sound:                 n.Sound,
		Tag:                   n.Tag,
		ClickAction:           n.ClickAction,
		BodyLocKey:            n.BodyLocKey,
		BodyLocArgs:           n.BodyLocArgs,
		TitleLocKey:           n.TitleLocKey,
		TitleLocArgs:          n.TitleLocArgs,
		ChannelID:             n.ChannelID,
		ImageURL:              n.Image,
		Ticker:                n.Ticker,
		Sticky:                n.Sticky,
		EventTimestamp:        n.EventTime,
		LocalOnly:             n.LocalOnly,
		DefaultSound:          n.DefaultSound,
		DefaultVibrateTimings: n.DefaultVibrateTimings,
		DefaultLightSettings:  n.DefaultLightSettings,
		NotificationCount:     n.NotificationCount,
	}
	for _, d := range n.VibrateTimings {
		an.VibrateTimingMillis = append(an.VibrateTimingMillis, d.Milliseconds())
	}
	switch n.NotificationPriority {
	case message.NotificationPriorityMin:
		an.Priority = messaging.PriorityMin
	case message.NotificationPriorityLow:
		an.Priority = messaging.PriorityLow
	case message.NotificationPriorityDefault:
		an.Priority = messaging.PriorityDefault
	case message.NotificationPriorityHigh:
		an.Priority = messaging.PriorityHigh
	case message.NotificationPriorityMax:
		an.Priority = messaging.PriorityMax
	}
	switch n.Visibility {
	case message.VisibilityPrivate:
		an.Visibility = messaging.VisibilityPrivate
	case message.VisibilityPublic:
		an.Visibility = messaging.VisibilityPublic
	case message.VisibilitySecret:
		an.Visibility = messaging.VisibilitySecret
	}
	if ls := n.LightSettings; ls != nil {
		an.LightSettings = &messaging.LightSettings{
			Color:                  hexColor(ls.Color),
			LightOnDurationMillis:  ls.LightOnDuration.Milliseconds(),
			LightOffDurationMillis: ls.LightOffDuration.Milliseconds(),
		}
	}
	out.Notification = an
	return out
}

// hexColor renders c as #RRGGBBAA, the form the SDK accepts.
func hexColor(c message.Color) string {
	ch := func(v float32) int { return int(math.Round(float64(v) * 255)) }
	return fmt.Sprintf("#%02X%02X%02X%02X", ch(c.Red), ch(c.Green), ch(c.Blue), ch(c.Alpha))
}

func toWebpush(w *message.WebpushConfig) (*messaging.WebpushConfig, error) {
	out := &messaging.WebpushConfig{Headers: w.Headers, Data: w.Data}
	if w.Notification != nil {
		raw, err := json.Marshal(w.Notification)
		if err != nil {
			return nil, fmt.Errorf("failed to encode webpush notification: %w", err)
		}
		var n messaging.WebpushNotification
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, fmt.Errorf("failed to convert webpush notification: %w", err)
		}
		out.Notification = &n
	}
	if w.FCMOptions != nil && w.FCMOptions.Link != "" {
		out.FCMOptions = &messaging.WebpushFCMOptions{Link: w.FCMOptions.Link}
	}
	return out, nil
}

func toAPNS(a *message.APNSConfig) (*messaging.APNSConfig, error) {
	out := &messaging.APNSConfig{Headers: a.Headers}
	if len(a.Payload) > 0 {
		var p messaging.APNSPayload
		if err := json.Unmarshal(a.Payload, &p); err != nil {
			return nil, fmt.Errorf("failed to convert apns payload: %w", err)
		}
		out.Payload = &p
	}
	if a.FCMOptions != nil {
		out.FCMOptions = &messaging.APNSFCMOptions{
			AnalyticsLabel: a.FCMOptions.AnalyticsLabel,
			ImageURL:       a.FCMOptions.Image,
		}
	}
	return out, nil
}
