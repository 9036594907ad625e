package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hermes/internal/agent/ports"
	"hermes/internal/errors"
	"hermes/internal/logging"
)

func newTestClient(url string) *OllamaClient {
	return NewOllamaClient(Config{APIURL: url, Model: "gpt-oss:20b"}, logging.Nop())
}

func TestChatSendsExpectedRequest(t *testing.T) {
	var got chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"message":{"content":"hello"},"done":true}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	reply, err := client.Chat(context.Background(), []ports.Message{
		{Role: "system", Content: "You are a researcher."},
		{Role: "user", Content: "Explain CRDTs"},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", reply)
	assert.Equal(t, "gpt-oss:20b", got.Model)
	assert.False(t, got.Stream)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "user", got.Messages[1].Role)
}

func TestChatNon2xxIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Chat(context.Background(), []ports.Message{{Role: "user", Content: "x"}})
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
}

func TestChatMissingContentIsPermanent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message":{},"done":true}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Chat(context.Background(), []ports.Message{{Role: "user", Content: "x"}})
	require.Error(t, err)
	assert.False(t, errors.IsTransient(err))
}

func TestChatConnectionRefusedIsTransient(t *testing.T) {
	client := newTestClient("http://127.0.0.1:1/api/chat")
	_, err := client.Chat(context.Background(), []ports.Message{{Role: "user", Content: "x"}})
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
}

func TestRetryClientRecoversFromTransient(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, "busy", http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"message":{"content":"recovered"},"done":true}`))
	}))
	defer server.Close()

	client := NewRetryClient(newTestClient(server.URL), 3, logging.Nop())
	reply, err := client.Chat(context.Background(), []ports.Message{{Role: "user", Content: "x"}})
	require.NoError(t, err)
	assert.Equal(t, "recovered", reply)
	assert.Equal(t, 2, calls)
}

func TestRetryClientStopsOnPermanent(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte(`{"message":{},"done":true}`))
	}))
	defer server.Close()

	client := NewRetryClient(newTestClient(server.URL), 3, logging.Nop())
	_, err := client.Chat(context.Background(), []ports.Message{{Role: "user", Content: "x"}})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
