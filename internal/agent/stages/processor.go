package stages

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"hermes/internal/agent"
	"hermes/internal/agent/ports"
	"hermes/internal/logging"
)

// Processor condenses raw Hit content into one normalized text block per
// query, the LLM context for drafting.
type Processor struct {
	normalizer ports.ContentNormalizer
	logger     logging.Logger
}

func NewProcessor(normalizer ports.ContentNormalizer, logger logging.Logger) *Processor {
	return &Processor{normalizer: normalizer, logger: logging.OrNop(logger)}
}

func (*Processor) Name() string { return "process" }

// Run normalizes the hits gathered in the current loop. On later loops
// the fresh block is appended to the existing notes under a [Loop N]
// separator so earlier context survives.
func (p *Processor) Run(ctx context.Context, state *agent.State) (agent.Delta, error) {
	delta := agent.Delta{ProcessedNotes: make(map[string]string)}

	for _, query := range orderedQueries(state.ExecutedQueries, state.QueryResults) {
		var raw []string
		for _, hit := range state.QueryResults[query] {
			if hit.Loop != state.LoopCount {
				continue
			}
			text := hit.Content
			if text == "" {
				text = hit.Snippet
			}
			if text != "" {
				raw = append(raw, text)
			}
		}

		existing := state.ProcessedNotes[query]
		if len(raw) == 0 {
			if _, known := state.ProcessedNotes[query]; !known {
				delta.ProcessedNotes[query] = ""
			}
			continue
		}

		cleaned, err := p.normalizer.Normalize(ctx, raw)
		if err != nil {
			delta.Errors = append(delta.Errors, fmt.Sprintf("process: query %q: %v", query, err))
			continue
		}

		block := joinBlocks(cleaned)
		if state.LoopCount > 0 && existing != "" {
			block = existing + fmt.Sprintf("\n\n[Loop %d]\n", state.LoopCount) + block
		}
		delta.ProcessedNotes[query] = block
	}

	return delta, nil
}

// orderedQueries returns the keys of byQuery in execution order, first
// occurrence only. Keys that never went through search sort last.
func orderedQueries[V any](executed []string, byQuery map[string]V) []string {
	seen := make(map[string]struct{}, len(byQuery))
	ordered := make([]string, 0, len(byQuery))
	for _, query := range executed {
		if _, known := byQuery[query]; !known {
			continue
		}
		if _, dup := seen[query]; dup {
			continue
		}
		seen[query] = struct{}{}
		ordered = append(ordered, query)
	}

	var rest []string
	for query := range byQuery {
		if _, done := seen[query]; !done {
			rest = append(rest, query)
		}
	}
	sort.Strings(rest)
	return append(ordered, rest...)
}

func joinBlocks(blocks []string) string {
	var nonEmpty []string
	for _, block := range blocks {
		if block = strings.TrimSpace(block); block != "" {
			nonEmpty = append(nonEmpty, block)
		}
	}
	return strings.Join(nonEmpty, "\n\n")
}
