package message

import (
	"encoding/json"
	"fmt"
	"regexp"
	"time"
)

// AndroidMessagePriority is the delivery priority of an Android message.
type AndroidMessagePriority string

const (
	AndroidPriorityNormal AndroidMessagePriority = "NORMAL"
	AndroidPriorityHigh   AndroidMessagePriority = "HIGH"
)

// NotificationPriority is the relative display priority of an Android notification.
type NotificationPriority string

const (
	NotificationPriorityUnspecified NotificationPriority = "PRIORITY_UNSPECIFIED"
	NotificationPriorityMin         NotificationPriority = "PRIORITY_MIN"
	NotificationPriorityLow         NotificationPriority = "PRIORITY_LOW"
	NotificationPriorityDefault     NotificationPriority = "PRIORITY_DEFAULT"
	NotificationPriorityHigh        NotificationPriority = "PRIORITY_HIGH"
	NotificationPriorityMax         NotificationPriority = "PRIORITY_MAX"
)

// Visibility is the lock-screen visibility of an Android notification.
type Visibility string

const (
	VisibilityUnspecified Visibility = "VISIBILITY_UNSPECIFIED"
	VisibilityPrivate     Visibility = "PRIVATE"
	VisibilityPublic      Visibility = "PUBLIC"
	VisibilitySecret      Visibility = "SECRET"
)

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// AndroidConfig holds Android specific options.
// https://firebase.google.com/docs/reference/fcm/rest/v1/projects.messages#androidconfig
type AndroidConfig struct {
	CollapseKey string                 `json:"collapse_key,omitempty"`
	Priority    AndroidMessagePriority `json:"priority,omitempty"`
	// TTL is how long FCM keeps the message while the device is offline.
	TTL                   *time.Duration       `json:"-"`
	RestrictedPackageName string               `json:"restricted_package_name,omitempty"`
	Data                  map[string]string    `json:"data,omitempty"`
	Notification          *AndroidNotification `json:"notification,omitempty"`
	FCMOptions            *AndroidFCMOptions   `json:"fcm_options,omitempty"`
	// DirectBootOK allows delivery while the device is in direct boot mode.
	DirectBootOK bool `json:"direct_boot_ok,omitempty"`
}

func (a *AndroidConfig) MarshalJSON() ([]byte, error) {
	type alias AndroidConfig
	aux := struct {
		*alias
		TTL string `json:"ttl,omitempty"`
	}{alias: (*alias)(a)}
	if a.TTL != nil {
		aux.TTL = durationString(*a.TTL)
	}
	return json.Marshal(aux)
}

func (a *AndroidConfig) validate() error {
	if a.TTL != nil && *a.TTL < 0 {
		return fmt.Errorf("%w: ttl must not be negative", ErrInvalidMessage)
	}
	switch a.Priority {
	case "", AndroidPriorityNormal, AndroidPriorityHigh:
	default:
		return fmt.Errorf("%w: unknown priority %q", ErrInvalidMessage, a.Priority)
	}
	if err := validateData(a.Data); err != nil {
		return err
	}
	if a.Notification != nil {
		return a.Notification.validate()
	}
	return nil
}

// AndroidFCMOptions holds FCM SDK feature options for Android.
type AndroidFCMOptions struct {
	AnalyticsLabel string `json:"analytics_label,omitempty"`
}

// AndroidNotification overrides the notification shown on Android devices.
// https://firebase.google.com/docs/reference/fcm/rest/v1/projects.messages#androidnotification
type AndroidNotification struct {
	Title        string   `json:"title,omitempty"`
	Body         string   `json:"body,omitempty"`
	Icon         string   `json:"icon,omitempty"`
	Color        string   `json:"color,omitempty"` // #rrggbb
	Sound        string   `json:"sound,omitempty"`
	Tag          string   `json:"tag,omitempty"`
	ClickAction  string   `json:"click_action,omitempty"`
	BodyLocKey   string   `json:"body_loc_key,omitempty"`
	BodyLocArgs  []string `json:"body_loc_args,omitempty"`
	TitleLocKey  string   `json:"title_loc_key,omitempty"`
	TitleLocArgs []string `json:"title_loc_args,omitempty"`
	ChannelID    string   `json:"channel_id,omitempty"`
	Ticker       string   `json:"ticker,omitempty"`
	Sticky       bool     `json:"sticky,omitempty"`
	// EventTime is when the event in the notification occurred.
	EventTime             *time.Time           `json:"-"`
	LocalOnly             bool                 `json:"local_only,omitempty"`
	NotificationPriority  NotificationPriority `json:"notification_priority,omitempty"`
	DefaultSound          bool                 `json:"default_sound,omitempty"`
	DefaultVibrateTimings bool                 `json:"default_vibrate_timings,omitempty"`
	DefaultLightSettings  bool                 `json:"default_light_settings,omitempty"`
	VibrateTimings        []time.Duration      `json:"-"`
	Visibility            Visibility           `json:"visibility,omitempty"`
	NotificationCount     *int                 `json:"notification_count,omitempty"`
	LightSettings         *LightSettings       `json:"light_settings,omitempty"`
	Image                 string               `json:"image,omitempty"`
}

func (n *AndroidNotification) MarshalJSON() ([]byte, error) {
	type alias AndroidNotification
	aux := struct {
		*alias
		EventTime      string   `json:"event_time,omitempty"`
		VibrateTimings []string `json:"vibrate_timings,omitempty"`
	}{alias: (*alias)(n)}
	if n.EventTime != nil {
		aux.EventTime = n.EventTime.UTC().Format("2006-01-02T15:04:05.000000000Z")
	}
	for _, d := range n.VibrateTimings {
		aux.VibrateTimings = append(aux.VibrateTimings, durationString(d))
	}
	return json.Marshal(aux)
}

func (n *AndroidNotification) validate() error {
	if n.Color != "" && !colorPattern.MatchString(n.Color) {
		return fmt.Errorf("%w: color must be in the form #rrggbb", ErrInvalidMessage)
	}
	if len(n.TitleLocArgs) > 0 && n.TitleLocKey == "" {
		return fmt.Errorf("%w: title_loc_key is required when title_loc_args is set", ErrInvalidMessage)
	}
	if len(n.BodyLocArgs) > 0 && n.BodyLocKey == "" {
		return fmt.Errorf("%w: body_loc_key is required when body_loc_args is set", ErrInvalidMessage)
	}
	for _, d := range n.VibrateTimings {
		if d < 0 {
			return fmt.Errorf("%w: vibrate timings must not be negative", ErrInvalidMessage)
		}
	}
	if n.NotificationCount != nil && *n.NotificationCount < 0 {
		return fmt.Errorf("%w: notification_count must not be negative", ErrInvalidMessage)
	}
	if n.LightSettings != nil {
		return n.LightSettings.validate()
	}
	return nil
}

// Color is an RGBA color with every channel in [0, 1].
type Color struct {
	Red   float32 `json:"red"`
	Green float32 `json:"green"`
	Blue  float32 `json:"blue"`
	Alpha float32 `json:"alpha"`
}

// LightSettings controls the LED blink rate and color.
type LightSettings struct {
	Color            Color
	LightOnDuration  time.Duration
	LightOffDuration time.Duration
}

func (l LightSettings) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Color            Color  `json:"color"`
		LightOnDuration  string `json:"light_on_duration"`
		LightOffDuration string `json:"light_off_duration"`
	}{
		Color:            l.Color,
		LightOnDuration:  durationString(l.LightOnDuration),
		LightOffDuration: durationString(l.LightOffDuration),
	})
}

func (l *LightSettings) validate() error {
	for _, c := range []float32{l.Color.Red, l.Color.Green, l.Color.Blue, l.Color.Alpha} {
		if c < 0 || c > 1 {
			return fmt.Errorf("%w: light color channels must be within [0, 1]", ErrInvalidMessage)
		}
	}
	if l.LightOnDuration < 0 || l.LightOffDuration < 0 {
		return fmt.Errorf("%w: light durations must not be negative", ErrInvalidMessage)
	}
	return nil
}

// durationString renders d in the protobuf Duration JSON form, e.g. "3.5s".
func durationString(d time.Duration) string {
	seconds := int64(d / time.Second)
	nanos := int64(d % time.Second)
	if nanos > 0 {
		return fmt.Sprintf("%d.%09ds", seconds, nanos)
	}
	return fmt.Sprintf("%ds", seconds)
}
