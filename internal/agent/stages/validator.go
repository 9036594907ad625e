package stages

import (
	"context"
	"fmt"
	"strings"

	"hermes/internal/agent"
	"hermes/internal/agent/ports"
	"hermes/internal/logging"
)

const maxFollowUps = 3

const validatorSystemPrompt = "You are a research reviewer. Revise the " +
	"report below for accuracy, coverage, and clarity, preserving its " +
	"citations. Then append a section titled exactly 'Follow-up Queries' " +
	"listing at most 3 short web search queries that would fill the " +
	"report's remaining gaps, one per line."

// Validator revises the draft and produces the next loop's queries.
type Validator struct {
	llm    ports.LLMClient
	logger logging.Logger
}

func NewValidator(llm ports.LLMClient, logger logging.Logger) *Validator {
	return &Validator{llm: llm, logger: logging.OrNop(logger)}
}

func (*Validator) Name() string { return "validator" }

// Run asks the LLM for a revised draft, extracts or synthesizes the
// follow-up queries, and advances the loop counter.
func (v *Validator) Run(ctx context.Context, state *agent.State) (agent.Delta, error) {
	delta := agent.Delta{LoopIncrement: 1}

	revised, err := v.llm.Chat(ctx, []ports.Message{
		{Role: "system", Content: validatorSystemPrompt},
		{Role: "user", Content: fmt.Sprintf("Research question: %s\nLanguage: %s\n\n%s",
			state.UserPrompt, state.Language, state.DraftReport)},
	})
	var followUps []string
	if err != nil {
		v.logger.Warn("validator revision failed, keeping draft: %v", err)
		delta.Errors = append(delta.Errors, fmt.Sprintf("validator: llm failure: %v", err))
	} else if strings.TrimSpace(revised) != "" {
		delta.DraftReport = agent.String(revised)
		followUps = parseFollowUps(revised)
	}

	if len(followUps) == 0 {
		followUps = synthesizeFollowUps(state)
	}
	delta.FollowUpQueries = capDedup(followUps, maxFollowUps)
	return delta, nil
}

// parseFollowUps extracts the queries listed under the Follow-up Queries
// heading.
func parseFollowUps(markdown string) []string {
	lines := strings.Split(markdown, "\n")
	inSection := false
	var queries []string

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		heading := strings.TrimLeft(trimmed, "# ")
		if strings.EqualFold(heading, "Follow-up Queries") {
			inSection = true
			continue
		}
		if !inSection {
			continue
		}
		if strings.HasPrefix(trimmed, "#") {
			break
		}
		if query := stripEnumerator(trimmed); query != "" {
			queries = append(queries, query)
		}
	}
	return queries
}

// synthesizeFollowUps builds deterministic follow-ups when the LLM did
// not supply any: under-sourced queries first, generic angles otherwise.
func synthesizeFollowUps(state *agent.State) []string {
	var followUps []string
	for _, query := range state.Queries {
		if len(state.QueryResults[query]) < state.MinSources {
			followUps = append(followUps, query+" primary sources and statistics")
		}
	}
	if len(followUps) > 0 {
		return followUps
	}
	return []string{
		state.UserPrompt + " recent developments",
		state.UserPrompt + " case studies",
		state.UserPrompt + " expert interviews",
	}
}

func capDedup(queries []string, limit int) []string {
	seen := make(map[string]struct{}, len(queries))
	var out []string
	for _, query := range queries {
		key := strings.ToLower(query)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, query)
		if len(out) >= limit {
			break
		}
	}
	return out
}
