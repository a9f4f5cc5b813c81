package assistant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-test", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "how often should I feed a kitten?", req.Messages[1].Content)
		assert.Equal(t, 300, req.MaxTokens)

		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Three to four times a day."}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("sk-test", srv.URL, "gpt-test")
	reply, err := c.Chat(context.Background(), "how often should I feed a kitten?")

	require.NoError(t, err)
	assert.Equal(t, "Three to four times a day.", reply)
}

func TestChatEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	reply, err := NewOpenAIClient("sk-test", srv.URL, "").Chat(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "No reply", reply)
}

func TestChatUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"Rate limit reached","type":"requests"}}`))
	}))
	defer srv.Close()

	_, err := NewOpenAIClient("sk-test", srv.URL, "").Chat(context.Background(), "hi")

	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, http.StatusTooManyRequests, upstream.StatusCode)
	assert.Equal(t, "Rate limit reached", upstream.Message)
}

func TestChatWithoutKey(t *testing.T) {
	c := NewOpenAIClient("", "", "")
	assert.False(t, c.Configured())

	_, err := c.Chat(context.Background(), "hi")
	assert.ErrorIs(t, err, ErrNotConfigured)
}
