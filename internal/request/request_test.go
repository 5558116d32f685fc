package request_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-fcm-sender/internal/request"
	"github.com/tinywideclouds/go-fcm-sender/pkg/message"
)

func decode(t *testing.T, body []byte) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(body, &out))
	return out
}

func TestBuild(t *testing.T) {
	t.Run("Success - target only message", func(t *testing.T) {
		req, err := request.Build("my-project", "", &message.Message{Target: message.Token("abc")}, false)
		require.NoError(t, err)

		assert.Equal(t, "https://fcm.googleapis.com/v1/projects/my-project/messages:send", req.URL)
		assert.JSONEq(t, `{"message":{"token":"abc"}}`, string(req.Body))
	})

	t.Run("Success - validate only", func(t *testing.T) {
		req, err := request.Build("p", "http://127.0.0.1:9000/", &message.Message{Target: message.Topic("news")}, true)
		require.NoError(t, err)

		assert.Equal(t, "http://127.0.0.1:9000/v1/projects/p/messages:send", req.URL)
		out := decode(t, req.Body)
		assert.Equal(t, true, out["validate_only"])
	})

	t.Run("Success - exactly one target key", func(t *testing.T) {
		req, err := request.Build("p", "", &message.Message{
			Target:       message.Condition("'a' in topics || 'b' in topics"),
			Notification: &message.Notification{Title: "t"},
			Data:         map[string]string{"k": "v"},
		}, false)
		require.NoError(t, err)

		msg := decode(t, req.Body)["message"].(map[string]any)
		assert.Contains(t, msg, "condition")
		assert.NotContains(t, msg, "token")
		assert.NotContains(t, msg, "topic")
	})

	t.Run("Failure - missing project id", func(t *testing.T) {
		_, err := request.Build("", "", &message.Message{Target: message.Token("abc")}, false)
		assert.ErrorIs(t, err, request.ErrMissingProjectID)
	})

	t.Run("Failure - invalid message", func(t *testing.T) {
		_, err := request.Build("p", "", &message.Message{}, false)
		assert.ErrorIs(t, err, message.ErrInvalidMessage)
	})

	t.Run("Failure - nil message", func(t *testing.T) {
		_, err := request.Build("p", "", nil, false)
		assert.ErrorIs(t, err, message.ErrInvalidMessage)
	})
}
