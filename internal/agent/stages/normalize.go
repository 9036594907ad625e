// Package stages implements the research pipeline stages the orchestrator
// drives: normalize, query generation, search, processing, drafting,
// control, validation, and finalization.
package stages

import (
	"context"
	"strings"
	"unicode"

	"hermes/internal/agent"
	"hermes/internal/errors"
)

// Normalize cleans the user prompt before any other stage sees it.
type Normalize struct{}

func NewNormalize() *Normalize {
	return &Normalize{}
}

func (*Normalize) Name() string { return "normalize" }

// Run trims and strips control characters, preserving all printable
// Unicode. An empty result is fatal.
func (*Normalize) Run(_ context.Context, state *agent.State) (agent.Delta, error) {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			return -1
		}
		return r
	}, state.UserPrompt)
	cleaned = strings.TrimSpace(cleaned)

	if cleaned == "" {
		return agent.Delta{}, errors.Fatalf(errors.ReasonEmptyPrompt, "prompt is empty after trimming")
	}
	return agent.Delta{UserPrompt: agent.String(cleaned)}, nil
}
