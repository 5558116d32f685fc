package fcm

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies a send failure.
type Kind int

const (
	// KindCredentials: the key could not be resolved or no token could be minted.
	KindCredentials Kind = iota + 1
	// KindTransport: the request never produced an HTTP response.
	KindTransport
	// KindServer: FCM answered 5xx or 429. Worth retrying later.
	KindServer
	// KindClient: FCM rejected the request with a 4xx.
	KindClient
	// KindSerialization: the message or the reply could not be encoded or decoded.
	KindSerialization
)

func (k Kind) String() string {
	switch k {
	case KindCredentials:
		return "credentials"
	case KindTransport:
		return "transport"
	case KindServer:
		return "server"
	case KindClient:
		return "client"
	case KindSerialization:
		return "serialization"
	default:
		return "unknown"
	}
}

// Sentinels matching every *Error of the corresponding kind via errors.Is.
var (
	ErrCredentials   = &Error{Kind: KindCredentials}
	ErrTransport     = &Error{Kind: KindTransport}
	ErrServer        = &Error{Kind: KindServer}
	ErrClient        = &Error{Kind: KindClient}
	ErrSerialization = &Error{Kind: KindSerialization}
)

// FCM error codes reported in the google.firebase.fcm.v1.FcmError detail.
// https://firebase.google.com/docs/reference/fcm/rest/v1/ErrorCode
const (
	CodeUnspecified      = "UNSPECIFIED_ERROR"
	CodeInvalidArgument  = "INVALID_ARGUMENT"
	CodeUnregistered     = "UNREGISTERED"
	CodeSenderIDMismatch = "SENDER_ID_MISMATCH"
	CodeQuotaExceeded    = "QUOTA_EXCEEDED"
	CodeUnavailable      = "UNAVAILABLE"
	CodeInternal         = "INTERNAL"
	CodeThirdPartyAuth   = "THIRD_PARTY_AUTH_ERROR"
)

// Error is returned by every failed Send.
type Error struct {
	Kind Kind
	// StatusCode is the HTTP status, zero when no response was received.
	StatusCode int
	// Status is the canonical status from the error body, e.g. NOT_FOUND.
	Status  string
	Message string
	// ErrorCode is the FCM specific code, e.g. UNREGISTERED.
	ErrorCode string
	// RetryAfter is the delay requested by the Retry-After header.
	RetryAfter time.Duration

	cause error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("fcm: %s error", e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (http %d", e.StatusCode)
		if e.Status != "" {
			msg += " " + e.Status
		}
		msg += ")"
	}
	if e.ErrorCode != "" && e.ErrorCode != e.Status {
		msg += " [" + e.ErrorCode + "]"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches by kind, so errors.Is(err, fcm.ErrServer) holds for any
// server error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Retryable reports whether sending the same message later may succeed.
func (e *Error) Retryable() bool {
	return e.Kind == KindServer || e.Kind == KindTransport
}

// NewError wraps cause as an *Error of the given kind. Other Sender
// implementations use it to report failures in the same terms.
func NewError(kind Kind, cause error) *Error {
	return &Error{Kind: kind, cause: cause}
}

func hasCode(err error, code string) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.ErrorCode == code
}

// IsUnregistered reports a token that is no longer valid. Delete it.
func IsUnregistered(err error) bool { return hasCode(err, CodeUnregistered) }

func IsInvalidArgument(err error) bool { return hasCode(err, CodeInvalidArgument) }

func IsQuotaExceeded(err error) bool { return hasCode(err, CodeQuotaExceeded) }

func IsSenderIDMismatch(err error) bool { return hasCode(err, CodeSenderIDMismatch) }

func IsThirdPartyAuthError(err error) bool { return hasCode(err, CodeThirdPartyAuth) }

func IsUnavailable(err error) bool { return hasCode(err, CodeUnavailable) }

func IsInternal(err error) bool { return hasCode(err, CodeInternal) }

// IsRetryable reports whether err is an *Error worth retrying.
func IsRetryable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Retryable()
}
