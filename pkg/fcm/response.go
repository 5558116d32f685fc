package fcm

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Response is the result of an accepted send.
type Response struct {
	// Name is the message id assigned by FCM, e.g. projects/p/messages/123.
	Name       string
	StatusCode int
}

const fcmErrorType = "type.googleapis.com/google.firebase.fcm.v1.FcmError"

type errorBody struct {
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
		Details []struct {
			Type      string `json:"@type"`
			ErrorCode string `json:"errorCode"`
		} `json:"details"`
	} `json:"error"`
}

func decodeSuccess(status int, body []byte) (*Response, error) {
	var out struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		e := NewError(KindSerialization, err)
		e.StatusCode = status
		e.Message = "undecodable success response"
		return nil, e
	}
	if out.Name == "" {
		e := NewError(KindSerialization, errors.New("missing name"))
		e.StatusCode = status
		e.Message = "undecodable success response"
		return nil, e
	}
	return &Response{Name: out.Name, StatusCode: status}, nil
}

// decodeError classifies a non-200 reply. The body is best effort: when it
// does not parse, the HTTP status text stands in for the message.
func decodeError(status int, header http.Header, body []byte) *Error {
	e := &Error{Kind: kindForStatus(status), StatusCode: status}
	e.RetryAfter = parseRetryAfter(header.Get("Retry-After"), time.Now())

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil || eb.Error == nil {
		e.Message = http.StatusText(status)
		return e
	}

	e.Status = eb.Error.Status
	e.Message = eb.Error.Message
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	for _, d := range eb.Error.Details {
		if d.Type == fcmErrorType && d.ErrorCode != "" {
			e.ErrorCode = d.ErrorCode
			break
		}
	}
	if e.ErrorCode == "" {
		e.ErrorCode = e.Status
	}
	return e
}

func kindForStatus(status int) Kind {
	switch {
	case status == http.StatusTooManyRequests, status >= 500:
		return KindServer
	case status >= 400:
		return KindClient
	default:
		return KindServer
	}
}

// parseRetryAfter accepts delay-seconds or an HTTP-date.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
