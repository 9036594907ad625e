package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hermes/internal/errors"
	"hermes/internal/logging"
)

const sampleResults = `{"results":[
  {"url":"https://a.example/1","title":"First","content":"snippet one"},
  {"url":"https://a.example/2","title":"Second","content":"snippet two"},
  {"url":"https://a.example/1","title":"Duplicate","content":"same url"},
  {"url":"https://a.example/3","title":"Third","content":"snippet three"}
]}`

func TestSearchParsesAndDeduplicates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "crdt", r.URL.Query().Get("q"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "en", r.URL.Query().Get("language"))
		_, _ = w.Write([]byte(sampleResults))
	}))
	defer server.Close()

	client := NewSearxNGClient(server.URL, logging.Nop())
	hits, err := client.Search(context.Background(), "crdt", "en", 10)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, "https://a.example/1", hits[0].URL)
	assert.Equal(t, "First", hits[0].Title)
	assert.Equal(t, "snippet one", hits[0].Snippet)
}

func TestSearchHonorsLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sampleResults))
	}))
	defer server.Close()

	client := NewSearxNGClient(server.URL, logging.Nop())
	hits, err := client.Search(context.Background(), "crdt", "en", 2)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestSearchRateLimitIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewSearxNGClient(server.URL, logging.Nop())
	_, err := client.Search(context.Background(), "crdt", "en", 10)
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
}

func TestSearchClientErrorIsPermanent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad query", http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewSearxNGClient(server.URL, logging.Nop())
	_, err := client.Search(context.Background(), "crdt", "en", 10)
	require.Error(t, err)
	assert.False(t, errors.IsTransient(err))
}

func TestSearchEmptyResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))
	defer server.Close()

	client := NewSearxNGClient(server.URL, logging.Nop())
	hits, err := client.Search(context.Background(), "nothing", "ja", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}
