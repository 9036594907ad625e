package stages

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"hermes/internal/agent"
	"hermes/internal/agent/ports"
	"hermes/internal/errors"
	"hermes/internal/logging"
)

const (
	defaultParallelism = 4
	contentFetchTop    = 3
	searchBaseDelay    = 500 * time.Millisecond
	searchCacheTTL     = time.Hour
)

// SearcherConfig bounds one searcher pass.
type SearcherConfig struct {
	MaxSources  int
	Parallelism int
	Retry       int
	CacheTTL    time.Duration
}

func (c SearcherConfig) normalized() SearcherConfig {
	if c.MaxSources <= 0 {
		c.MaxSources = 8
	}
	if c.Parallelism <= 0 {
		c.Parallelism = defaultParallelism
	}
	if c.Retry <= 0 {
		c.Retry = 3
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = searchCacheTTL
	}
	return c
}

// Searcher collects Hits for the pending queries with a bounded worker
// pool. Each query is an independent failure domain.
type Searcher struct {
	search  ports.SearchClient
	fetcher ports.PageFetcher
	cache   ports.Cache
	config  SearcherConfig
	logger  logging.Logger
}

func NewSearcher(search ports.SearchClient, fetcher ports.PageFetcher, cache ports.Cache, config SearcherConfig, logger logging.Logger) *Searcher {
	return &Searcher{
		search:  search,
		fetcher: fetcher,
		cache:   cache,
		config:  config.normalized(),
		logger:  logging.OrNop(logger),
	}
}

func (*Searcher) Name() string { return "search" }

// Run fans the pending queries out to the worker pool and merges the
// per-query results. Follow-up queries take precedence over the baseline
// list and are cleared once consumed.
func (s *Searcher) Run(ctx context.Context, state *agent.State) (agent.Delta, error) {
	queries := state.Queries
	if len(state.FollowUpQueries) > 0 {
		queries = state.FollowUpQueries
	}
	if len(queries) == 0 {
		return agent.Delta{ClearFollowUps: true}, nil
	}

	parallelism := s.config.Parallelism
	if len(queries) < parallelism {
		parallelism = len(queries)
	}

	type result struct {
		query string
		hits  []ports.Hit
		err   error
	}
	results := make([]result, len(queries))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(parallelism)
	for i, query := range queries {
		group.Go(func() error {
			hits, err := s.runQuery(groupCtx, query, state.Language, state.LoopCount)
			results[i] = result{query: query, hits: hits, err: err}
			return nil
		})
	}
	_ = group.Wait()

	if err := ctx.Err(); err != nil {
		return agent.Delta{}, errors.NewFatal(errors.ReasonCancelled, err)
	}

	delta := agent.Delta{
		QueryResults:   make(map[string][]ports.Hit, len(queries)),
		ClearFollowUps: true,
	}
	for _, r := range results {
		delta.ExecutedQueries = append(delta.ExecutedQueries, r.query)
		if r.err != nil {
			delta.Errors = append(delta.Errors, fmt.Sprintf("search: query %q failed: %v", r.query, r.err))
			continue
		}
		delta.QueryResults[r.query] = r.hits
	}
	return delta, nil
}

// runQuery resolves one query through cache, search, and content fetch.
func (s *Searcher) runQuery(ctx context.Context, query, language string, loop int) ([]ports.Hit, error) {
	key := cacheKey(query, language)

	if cached, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		var hits []ports.Hit
		if err := json.Unmarshal(cached, &hits); err == nil {
			s.logger.Debug("cache hit query=%q hits=%d", query, len(hits))
			return tagLoop(hits, loop), nil
		}
	}

	retryConfig := errors.RetryConfig{
		MaxAttempts: s.config.Retry,
		BaseDelay:   searchBaseDelay,
	}
	hits, err := errors.RetryWithResult(ctx, retryConfig, s.logger, func(ctx context.Context) ([]ports.Hit, error) {
		return s.search.Search(ctx, query, language, s.config.MaxSources)
	})
	if err != nil {
		return nil, err
	}

	hits = dedupeByURL(hits)
	s.fetchMissingContent(ctx, hits)

	if encoded, err := json.Marshal(hits); err == nil {
		if err := s.cache.Put(ctx, key, encoded, s.config.CacheTTL); err != nil {
			s.logger.Debug("cache write failed query=%q: %v", query, err)
		}
	}
	return tagLoop(hits, loop), nil
}

// fetchMissingContent fills content for the top hits that only have a
// snippet. Disallowed or failing pages are skipped silently; the snippet
// still feeds the processor.
func (s *Searcher) fetchMissingContent(ctx context.Context, hits []ports.Hit) {
	var wg sync.WaitGroup
	fetched := 0
	for i := range hits {
		if hits[i].Content != "" {
			continue
		}
		if fetched >= contentFetchTop {
			break
		}
		fetched++
		wg.Add(1)
		go func(hit *ports.Hit) {
			defer wg.Done()
			content, err := s.fetcher.Fetch(ctx, hit.URL)
			if err != nil {
				s.logger.Debug("content fetch skipped url=%s: %v", hit.URL, err)
				return
			}
			hit.Content = content
		}(&hits[i])
	}
	wg.Wait()
}

// cacheKey hashes the normalized query with its language scope.
func cacheKey(query, language string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	sum := sha256.Sum256([]byte(normalized + language + "full"))
	return "search:" + hex.EncodeToString(sum[:])
}

func dedupeByURL(hits []ports.Hit) []ports.Hit {
	seen := make(map[string]struct{}, len(hits))
	deduped := hits[:0]
	for _, hit := range hits {
		if _, dup := seen[hit.URL]; dup {
			continue
		}
		seen[hit.URL] = struct{}{}
		deduped = append(deduped, hit)
	}
	return deduped
}

func tagLoop(hits []ports.Hit, loop int) []ports.Hit {
	for i := range hits {
		hits[i].Loop = loop
	}
	return hits
}
