package stages

import (
	"context"
	"math"

	"hermes/internal/agent"
	"hermes/internal/logging"
)

// Quality heuristic weights and the draft length at which the draft
// component saturates.
const (
	draftWeight    = 0.35
	coverageWeight = 0.25
	sourcesWeight  = 0.25
	loopWeight     = 0.15
	draftScale     = 1200
)

// Controller decides whether the run needs another validation pass.
type Controller struct {
	logger logging.Logger
}

func NewController(logger logging.Logger) *Controller {
	return &Controller{logger: logging.OrNop(logger)}
}

func (*Controller) Name() string { return "controller" }

// Run computes the quality score and applies the loop decision table.
func (c *Controller) Run(_ context.Context, state *agent.State) (agent.Delta, error) {
	score := qualityScore(state)

	var complete bool
	switch {
	case state.LoopCount < state.MinValidation:
		complete = false
	case state.LoopCount >= state.MaxValidation:
		complete = true
	case score >= state.QualityThreshold:
		complete = true
	default:
		complete = false
	}

	c.logger.Info("quality evaluated score=%.3f threshold=%.2f loop=%d complete=%t",
		score, state.QualityThreshold, state.LoopCount, complete)

	return agent.Delta{
		QualityScore:       agent.Float(score),
		ValidationComplete: agent.Bool(complete),
	}, nil
}

// qualityScore is the weighted heuristic over draft length, note
// coverage, source density, and loop progress, rounded to 3 decimals.
func qualityScore(state *agent.State) float64 {
	draftScore := math.Min(float64(len(state.DraftReport))/draftScale, 1)

	coverage := 0.0
	if len(state.Queries) > 0 {
		nonEmpty := 0
		for _, query := range state.Queries {
			if state.ProcessedNotes[query] != "" {
				nonEmpty++
			}
		}
		coverage = float64(nonEmpty) / float64(len(state.Queries))
	}

	sources := 0.0
	if executed := len(state.ExecutedQueries); executed > 0 && state.MaxSources > 0 {
		sources = math.Min(float64(state.TotalHits())/float64(executed*state.MaxSources), 1)
	}

	loopBonus := 0.0
	if state.MaxValidation > 0 {
		loopBonus = math.Min(float64(state.LoopCount)/float64(state.MaxValidation), 1)
	}

	score := draftScore*draftWeight + coverage*coverageWeight +
		sources*sourcesWeight + loopBonus*loopWeight
	return math.Round(score*1000) / 1000
}
