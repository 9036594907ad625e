package stages

import (
	"context"
	"fmt"
	"strings"

	"hermes/internal/agent"
	"hermes/internal/errors"
	"hermes/internal/logging"
)

// Finalizer assembles the validated report from the surviving draft.
type Finalizer struct {
	logger logging.Logger
}

func NewFinalizer(logger logging.Logger) *Finalizer {
	return &Finalizer{logger: logging.OrNop(logger)}
}

func (*Finalizer) Name() string { return "finalize" }

// Run prepends the metadata block and the verification status section to
// the draft. An empty draft produces an error report and a fatal failure
// so the run is recorded as failed.
func (f *Finalizer) Run(_ context.Context, state *agent.State) (agent.Delta, error) {
	if strings.TrimSpace(state.DraftReport) == "" {
		report := fmt.Sprintf(
			"# Research Failed\n\nNo report could be drafted for %q: every "+
				"drafting attempt produced an empty result. See the run log "+
				"for the underlying failures.\n", state.UserPrompt)
		return agent.Delta{ValidatedReport: agent.String(report)},
			errors.Fatalf(errors.ReasonEmptyDraft, "no draft after %d loops", state.LoopCount)
	}

	var b strings.Builder
	b.WriteString("---\n")
	fmt.Fprintf(&b, "query: %q\n", state.UserPrompt)
	fmt.Fprintf(&b, "language: %s\n", state.Language)
	fmt.Fprintf(&b, "queries_generated: %d\n", len(state.Queries))
	fmt.Fprintf(&b, "sources_collected: %d\n", state.TotalHits())
	fmt.Fprintf(&b, "validation_loops: %d\n", state.LoopCount)
	b.WriteString("---\n\n")

	b.WriteString(strings.TrimSpace(state.DraftReport))

	b.WriteString("\n\n## Verification Status\n\n")
	fmt.Fprintf(&b, "- Quality score: %.3f (threshold %.2f)\n", state.QualityScore, state.QualityThreshold)
	fmt.Fprintf(&b, "- Validation loops: %d of at most %d\n", state.LoopCount, state.MaxValidation)
	fmt.Fprintf(&b, "- Queries executed: %d\n", len(state.ExecutedQueries))
	if len(state.ErrorLog) > 0 {
		fmt.Fprintf(&b, "- Non-fatal diagnostics: %d (see run log)\n", len(state.ErrorLog))
	}
	b.WriteString("\n")

	f.logger.Info("report finalized loops=%d sources=%d quality=%.3f",
		state.LoopCount, state.TotalHits(), state.QualityScore)
	return agent.Delta{ValidatedReport: agent.String(b.String())}, nil
}
