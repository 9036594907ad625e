package stages

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"hermes/internal/agent"
	"hermes/internal/agent/ports"
	"hermes/internal/logging"
)

const queryGenSystemPrompt = "You are a research assistant. Given a research " +
	"question, produce the requested number of distinct web search queries " +
	"that together cover the question. Output exactly one query per line " +
	"with no numbering, bullets, or explanations."

// QueryGen derives the baseline search queries from the prompt.
type QueryGen struct {
	llm    ports.LLMClient
	logger logging.Logger
}

func NewQueryGen(llm ports.LLMClient, logger logging.Logger) *QueryGen {
	return &QueryGen{llm: llm, logger: logging.OrNop(logger)}
}

func (*QueryGen) Name() string { return "query_gen" }

// Run asks the LLM for query_count queries. On failure or an empty parse
// the prompt itself becomes the single query so the run still proceeds.
func (g *QueryGen) Run(ctx context.Context, state *agent.State) (agent.Delta, error) {
	userPrompt := fmt.Sprintf("Research question: %s\nLanguage: %s\nNumber of queries: %d",
		state.UserPrompt, state.Language, state.QueryCount)

	response, err := g.llm.Chat(ctx, []ports.Message{
		{Role: "system", Content: queryGenSystemPrompt},
		{Role: "user", Content: userPrompt},
	})
	if err != nil {
		g.logger.Warn("query generation failed, falling back to prompt: %v", err)
		return agent.Delta{
			Queries: []string{state.UserPrompt},
			Errors:  []string{fmt.Sprintf("query_gen: llm failure: %v", err)},
		}, nil
	}

	queries := parseQueries(response, state.QueryCount)
	if len(queries) == 0 {
		g.logger.Warn("query generation produced no usable queries, falling back to prompt")
		return agent.Delta{
			Queries: []string{state.UserPrompt},
			Errors:  []string{"query_gen: empty parse, fell back to prompt"},
		}, nil
	}

	queries = applyQualityGate(queries, state.Language)
	return agent.Delta{Queries: queries}, nil
}

// parseQueries splits the LLM response into cleaned, case-insensitively
// deduplicated queries, truncated to limit.
func parseQueries(response string, limit int) []string {
	seen := make(map[string]struct{})
	var queries []string

	for _, line := range strings.Split(response, "\n") {
		query := stripEnumerator(strings.TrimSpace(line))
		if query == "" {
			continue
		}
		key := strings.ToLower(query)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		queries = append(queries, query)
		if limit > 0 && len(queries) >= limit {
			break
		}
	}
	return queries
}

// stripEnumerator removes leading bullets and list enumerators such as
// "1.", "2)", "-", "*", and "•".
func stripEnumerator(line string) string {
	trimmed := strings.TrimLeft(line, "-*• \t")

	digits := 0
	for digits < len(trimmed) && trimmed[digits] >= '0' && trimmed[digits] <= '9' {
		digits++
	}
	if digits > 0 && digits < len(trimmed) && (trimmed[digits] == '.' || trimmed[digits] == ')') {
		trimmed = trimmed[digits+1:]
	}
	return strings.TrimSpace(trimmed)
}

// applyQualityGate drops queries unlikely to search well. If everything
// is dropped the pre-gate list stands.
func applyQualityGate(queries []string, language string) []string {
	var kept []string
	for _, query := range queries {
		if language == "ja" {
			if containsCJK(query) {
				kept = append(kept, query)
			}
			continue
		}
		if n := len([]rune(query)); n >= 5 && n <= 150 {
			kept = append(kept, query)
		}
	}
	if len(kept) == 0 {
		return queries
	}
	return kept
}

func containsCJK(s string) bool {
	for _, r := range s {
		if unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana) {
			return true
		}
	}
	return false
}
