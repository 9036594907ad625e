package web

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hermes/internal/errors"
	"hermes/internal/logging"
)

func TestNormalizeStripsMarkup(t *testing.T) {
	raw := `<html><head><title>T</title><style>body{}</style></head>
<body><script>alert(1)</script>
<nav>menu</nav>
<p>First   paragraph with
  broken    lines.</p>
<p>Second paragraph.</p>
<footer>foot</footer></body></html>`

	out := NormalizeBlock(raw)
	assert.Contains(t, out, "First paragraph with broken lines.")
	assert.Contains(t, out, "Second paragraph.")
	assert.NotContains(t, out, "alert(1)")
	assert.NotContains(t, out, "menu")
	assert.NotContains(t, out, "foot")
}

func TestNormalizeTruncatesParagraphsAndChars(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 6; i++ {
		fmt.Fprintf(&b, "<p>Paragraph number %d with some padding text.</p>", i)
	}
	out := NormalizeBlock(b.String())
	assert.Contains(t, out, "number 0")
	assert.Contains(t, out, "number 2")
	assert.NotContains(t, out, "number 3")

	long := "<p>" + strings.Repeat("word ", 1000) + "</p>"
	assert.LessOrEqual(t, len(NormalizeBlock(long)), 2000)
}

func TestNormalizePlainTextPassesThrough(t *testing.T) {
	out := NormalizeBlock("just  some   plain text")
	assert.Equal(t, "just some plain text", out)
}

func TestNormalizeExtractsPDFText(t *testing.T) {
	raw := "%PDF-1.4\nBT (Hello from a PDF) Tj (second line) Tj ET"
	out := NormalizeBlock(raw)
	assert.Contains(t, out, "Hello from a PDF")
	assert.Contains(t, out, "second line")
}

func TestParseRobots(t *testing.T) {
	rules := parseRobots(`
# comment
User-agent: googlebot
Disallow: /google-only

User-agent: *
Disallow: /private
Disallow: /tmp

User-agent: other
Disallow: /
`)
	assert.True(t, rules.allowed("/public"))
	assert.True(t, rules.allowed("/google-only"))
	assert.False(t, rules.allowed("/private/page"))
	assert.False(t, rules.allowed("/tmp"))
}

func TestFetcherRespectsRobots(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /blocked\n"))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<p>page body content here</p>"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	fetcher := NewFetcher(logging.Nop())

	content, err := fetcher.Fetch(context.Background(), server.URL+"/open")
	require.NoError(t, err)
	assert.Contains(t, content, "page body")

	_, err = fetcher.Fetch(context.Background(), server.URL+"/blocked/page")
	assert.ErrorIs(t, err, ErrDisallowed)
}

func TestFetcherMissingRobotsAllowsAll(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	fetcher := NewFetcher(logging.Nop())
	content, err := fetcher.Fetch(context.Background(), server.URL+"/page")
	require.NoError(t, err)
	assert.Equal(t, "ok", content)
}

func TestFetcherServerErrorIsTransient(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	fetcher := NewFetcher(logging.Nop())
	_, err := fetcher.Fetch(context.Background(), server.URL+"/page")
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
}

func TestSandboxFallsBackInProcess(t *testing.T) {
	n := NewSandboxNormalizer("python:3.11-slim", logging.Nop())
	n.runner = func(context.Context, string, []byte) ([]byte, error) {
		return nil, fmt.Errorf("docker not installed")
	}

	out, err := n.Normalize(context.Background(), []string{"<p>fallback paragraph body text</p>"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Contains(t, out[0], "fallback paragraph body text")
}

func TestSandboxUsesContainerOutput(t *testing.T) {
	n := NewSandboxNormalizer("python:3.11-slim", logging.Nop())
	n.runner = func(_ context.Context, _ string, stdin []byte) ([]byte, error) {
		assert.Contains(t, string(stdin), "raw block")
		return []byte(`["cleaned block"]` + "\n"), nil
	}

	out, err := n.Normalize(context.Background(), []string{"raw block"})
	require.NoError(t, err)
	assert.Equal(t, []string{"cleaned block"}, out)
}
