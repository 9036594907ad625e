package stages

import (
	"context"
	"fmt"
	"strings"

	"hermes/internal/agent"
	"hermes/internal/agent/ports"
	"hermes/internal/logging"
)

const draftSystemPrompt = "You are a research analyst. Write a Markdown " +
	"report in the requested language with an executive summary, key " +
	"findings, supporting details that reference the research queries, and " +
	"suggested next steps. Cite the queries your statements draw from."

// Draft synthesizes the report from the processed notes.
type Draft struct {
	llm    ports.LLMClient
	logger logging.Logger
}

func NewDraft(llm ports.LLMClient, logger logging.Logger) *Draft {
	return &Draft{llm: llm, logger: logging.OrNop(logger)}
}

func (*Draft) Name() string { return "draft" }

// Run prompts the LLM with the question plus every query's notes. On
// failure the previous draft survives and a diagnostic is recorded.
func (d *Draft) Run(ctx context.Context, state *agent.State) (agent.Delta, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Research question: %s\n", state.UserPrompt)
	fmt.Fprintf(&b, "Target language: %s\n\n", state.Language)

	for _, query := range orderedQueries(state.ExecutedQueries, state.ProcessedNotes) {
		fmt.Fprintf(&b, "## Query: %s\n\n%s\n\n", query, state.ProcessedNotes[query])
	}

	response, err := d.llm.Chat(ctx, []ports.Message{
		{Role: "system", Content: draftSystemPrompt},
		{Role: "user", Content: b.String()},
	})
	if err != nil {
		d.logger.Warn("draft generation failed, keeping previous draft: %v", err)
		return agent.Delta{Errors: []string{fmt.Sprintf("draft: llm failure: %v", err)}}, nil
	}
	if strings.TrimSpace(response) == "" {
		return agent.Delta{Errors: []string{"draft: llm returned empty response"}}, nil
	}
	return agent.Delta{DraftReport: agent.String(response)}, nil
}
