package review

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAnthropicClient_Complete_OK(t *testing.T) {
	t.Parallel()

	var got messagesRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "k", r.Header.Get("x-api-key"))
		require.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"{\"issues\":[]"},{"type":"text","text":",\"summary\":\"ok\"}"}]}`))
	}))
	defer srv.Close()

	c := NewAnthropicClient("k", time.Second, WithBaseURL(srv.URL), WithModel("m1"), WithMaxTokens(64))
	text, err := c.Complete(context.Background(), "sys", "usr")
	require.NoError(t, err)
	require.Equal(t, `{"issues":[],"summary":"ok"}`, text)
	require.Equal(t, "m1", got.Model)
	require.Equal(t, 64, got.MaxTokens)
	require.Equal(t, "sys", got.System)
	require.Equal(t, []message{{Role: "user", Content: "usr"}}, got.Messages)
}

func TestAnthropicClient_Complete_SingleAttemptOnFailure(t *testing.T) {
	t.Parallel()

	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewAnthropicClient("k", time.Second, WithBaseURL(srv.URL))
	_, err := c.Complete(context.Background(), "s", "u")
	var se *StatusError
	require.ErrorAs(t, err, &se)
	require.Equal(t, http.StatusServiceUnavailable, se.StatusCode)
	require.Equal(t, 1, calls)
}

func TestAnthropicClient_Complete_NetworkError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewAnthropicClient("k", time.Second, WithBaseURL(url))
	_, err := c.Complete(context.Background(), "s", "u")
	require.Error(t, err)
}

func TestAnthropicClient_Complete_MissingKey(t *testing.T) {
	t.Parallel()

	_, err := NewAnthropicClient("", time.Second).Complete(context.Background(), "s", "u")
	require.Error(t, err)
}
