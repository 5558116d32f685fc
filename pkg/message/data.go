package message

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// DataFrom flattens v, which must encode as a JSON object, into the
// string-valued map FCM expects for data payloads. String members keep
// their value; every other member is stored as its JSON text.
func DataFrom(v any) (map[string]string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode data payload: %w", err)
	}
	if bytes.Equal(raw, []byte("null")) {
		return nil, errors.New("data payload must be a JSON object, got null")
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("data payload must be a JSON object: %w", err)
	}

	data := make(map[string]string, len(fields))
	for k, field := range fields {
		if len(field) > 0 && field[0] == '"' {
			var s string
			if err := json.Unmarshal(field, &s); err != nil {
				return nil, fmt.Errorf("failed to decode data field %q: %w", k, err)
			}
			data[k] = s
			continue
		}
		data[k] = string(bytes.TrimSpace(field))
	}
	return data, nil
}

// FCM rejects these keys in any data payload.
var reservedDataKeys = map[string]struct{}{
	"from":         {},
	"message_type": {},
}

func validateData(data map[string]string) error {
	for k := range data {
		if _, reserved := reservedDataKeys[k]; reserved {
			return fmt.Errorf("%w: data key %q is reserved", ErrInvalidMessage, k)
		}
		if strings.HasPrefix(k, "google") || strings.HasPrefix(k, "gcm") {
			return fmt.Errorf("%w: data key %q uses a reserved prefix", ErrInvalidMessage, k)
		}
	}
	return nil
}
