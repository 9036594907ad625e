// Package ports defines the narrow client contracts the research pipeline
// depends on. Stages and the orchestrator program against these interfaces
// only; concrete backends live in internal/llm, internal/search,
// internal/web, and internal/cache.
package ports

import (
	"context"
	"time"
)

// Message is a single chat message in the LLM wire format.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Hit is one search result. URL and Title are always present; Snippet and
// Content may be empty until a page fetch fills them in. Loop records which
// validation pass produced the hit (0 for the initial search).
type Hit struct {
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Snippet     string    `json:"snippet,omitempty"`
	Content     string    `json:"content,omitempty"`
	RetrievedAt time.Time `json:"retrieved_at"`
	Loop        int       `json:"loop"`
}

// LLMClient performs a synchronous chat completion.
type LLMClient interface {
	Chat(ctx context.Context, messages []Message) (string, error)
	Model() string
}

// SearchClient queries a web search backend.
type SearchClient interface {
	Search(ctx context.Context, query, language string, limit int) ([]Hit, error)
}

// PageFetcher retrieves the readable text content of a URL.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// ContentNormalizer converts raw page content into clean compact text
// suitable as LLM context.
type ContentNormalizer interface {
	Normalize(ctx context.Context, raw []string) ([]string, error)
}

// Cache is a keyed byte store with per-entry TTL. Concurrent writers to the
// same key may race; last write wins, which is acceptable because values are
// a deterministic function of the key.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
