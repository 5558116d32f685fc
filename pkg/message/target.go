package message

import (
	"fmt"
	"regexp"
	"strings"
)

// TargetKind identifies which recipient specifier a Target holds.
type TargetKind int

const (
	targetUnset TargetKind = iota
	TargetToken
	TargetTopic
	TargetCondition
)

func (k TargetKind) String() string {
	switch k {
	case TargetToken:
		return "token"
	case TargetTopic:
		return "topic"
	case TargetCondition:
		return "condition"
	default:
		return "unset"
	}
}

var topicPattern = regexp.MustCompile(`^(private/)?[a-zA-Z0-9-_.~%]+$`)

// Target is the recipient of a message: exactly one device token, topic
// or condition expression. The zero value is not a valid target; build one
// with Token, Topic or Condition.
type Target struct {
	kind  TargetKind
	value string
}

// Token targets a single device registration token.
func Token(token string) Target {
	return Target{kind: TargetToken, value: token}
}

// Topic targets every device subscribed to topic. A leading "/topics/"
// is accepted and stripped.
func Topic(topic string) Target {
	return Target{kind: TargetTopic, value: strings.TrimPrefix(topic, "/topics/")}
}

// Condition targets the devices matching a boolean topic expression,
// e.g. "'stock' in topics && 'news' in topics".
func Condition(condition string) Target {
	return Target{kind: TargetCondition, value: condition}
}

func (t Target) Kind() TargetKind { return t.kind }
func (t Target) Value() string    { return t.value }

func (t Target) String() string {
	return fmt.Sprintf("%s:%s", t.kind, t.value)
}

func (t Target) validate() error {
	switch t.kind {
	case targetUnset:
		return fmt.Errorf("%w: target must be one of token, topic or condition", ErrInvalidMessage)
	case TargetTopic:
		if !topicPattern.MatchString(t.value) {
			return fmt.Errorf("%w: malformed topic name %q", ErrInvalidMessage, t.value)
		}
	}
	if strings.TrimSpace(t.value) == "" {
		return fmt.Errorf("%w: %s target must not be empty", ErrInvalidMessage, t.kind)
	}
	return nil
}
