package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComplete(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "sk-ant-test", r.Header.Get("X-Api-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-test",
			"content": [{"type": "text", "text": "{\"name\":"}, {"type": "text", "text": "\"r\"}"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 1, "output_tokens": 1}
		}`))
	}))
	defer srv.Close()

	c, err := New(Options{Model: "claude-test", BaseURL: srv.URL, APIKey: "sk-ant-test"})
	require.NoError(t, err)

	out, err := c.Complete(context.Background(), "compile this")
	require.NoError(t, err)
	assert.Equal(t, `{"name":"r"}`, out)
	assert.Equal(t, "claude-test", got["model"])
	assert.Equal(t, float64(defaultMaxTokens), got["max_tokens"])
}
