// Package search implements the SearxNG metasearch client.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"hermes/internal/agent/ports"
	"hermes/internal/errors"
	"hermes/internal/logging"
)

var _ ports.SearchClient = (*SearxNGClient)(nil)

// SearxNGClient queries a SearxNG instance through its JSON API.
type SearxNGClient struct {
	baseURL    string
	httpClient *http.Client
	logger     logging.Logger
	now        func() time.Time
}

// NewSearxNGClient returns a client for the instance at baseURL.
func NewSearxNGClient(baseURL string, logger logging.Logger) *SearxNGClient {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = "http://localhost:8080"
	}
	return &SearxNGClient{
		baseURL:    base,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logging.OrNop(logger),
		now:        time.Now,
	}
}

type searxngResponse struct {
	Results []struct {
		URL     string `json:"url"`
		Title   string `json:"title"`
		Content string `json:"content"`
	} `json:"results"`
}

// Search runs one query and returns at most limit hits, deduplicated by
// URL. Rate-limit and availability failures are transient.
func (c *SearxNGClient) Search(ctx context.Context, query, language string, limit int) ([]ports.Hit, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	if language != "" {
		params.Set("language", language)
	}

	endpoint := c.baseURL + "/search?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building search request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.NewTransientError(err, "searxng unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		failure := fmt.Sprintf("searxng returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, &errors.TransientError{StatusCode: resp.StatusCode, Message: failure}
		}
		return nil, &errors.PermanentError{StatusCode: resp.StatusCode, Message: failure}
	}

	var decoded searxngResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, errors.NewPermanentError(err, "malformed searxng response")
	}

	retrievedAt := c.now()
	seen := make(map[string]struct{}, len(decoded.Results))
	hits := make([]ports.Hit, 0, limit)
	for _, result := range decoded.Results {
		if result.URL == "" {
			continue
		}
		if _, dup := seen[result.URL]; dup {
			continue
		}
		seen[result.URL] = struct{}{}
		hits = append(hits, ports.Hit{
			URL:         result.URL,
			Title:       result.Title,
			Snippet:     result.Content,
			RetrievedAt: retrievedAt,
		})
		if limit > 0 && len(hits) >= limit {
			break
		}
	}

	c.logger.Debug("search completed query=%q hits=%d", query, len(hits))
	return hits, nil
}
