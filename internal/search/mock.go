package search

import (
	"context"
	"sync"

	"hermes/internal/agent/ports"
)

var _ ports.SearchClient = (*Mock)(nil)

// Mock returns canned hits per query. Tests use it for deterministic
// pipelines.
type Mock struct {
	mu      sync.Mutex
	hits    map[string][]ports.Hit
	errs    map[string][]error
	queries []string
}

// NewMock returns an empty mock; queries without canned hits return no
// results.
func NewMock() *Mock {
	return &Mock{
		hits: make(map[string][]ports.Hit),
		errs: make(map[string][]error),
	}
}

// On sets the hits returned for query.
func (m *Mock) On(query string, hits ...ports.Hit) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hits[query] = hits
	return m
}

// FailOnce queues err for the next call with query; later calls succeed.
func (m *Mock) FailOnce(query string, err error) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[query] = append(m.errs[query], err)
	return m
}

// Search implements ports.SearchClient.
func (m *Mock) Search(_ context.Context, query, _ string, limit int) ([]ports.Hit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.queries = append(m.queries, query)

	if queued := m.errs[query]; len(queued) > 0 {
		err := queued[0]
		m.errs[query] = queued[1:]
		return nil, err
	}

	hits := m.hits[query]
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return append([]ports.Hit(nil), hits...), nil
}

// Queries returns every query received, in call order.
func (m *Mock) Queries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.queries...)
}
