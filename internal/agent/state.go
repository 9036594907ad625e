// Package agent defines the research run state and the stage contract the
// orchestrator drives.
package agent

import (
	"context"

	"hermes/internal/agent/ports"
)

// State is the single mutable record threaded through every stage. One
// orchestrator execution owns it exclusively.
type State struct {
	UserPrompt string
	Language   string
	QueryCount int

	Queries         []string
	FollowUpQueries []string
	ExecutedQueries []string

	QueryResults   map[string][]ports.Hit
	ProcessedNotes map[string]string

	DraftReport     string
	ValidatedReport string

	LoopCount     int
	MinValidation int
	MaxValidation int
	MinSources    int
	MaxSources    int

	QualityScore       float64
	QualityThreshold   float64
	ValidationComplete bool

	ErrorLog []string
}

// Settings carries the per-run bounds a new State starts from.
type Settings struct {
	Language         string
	QueryCount       int
	MinValidation    int
	MaxValidation    int
	MinSources       int
	MaxSources       int
	QualityThreshold float64
}

// NewState returns a fresh state for one run.
func NewState(prompt string, settings Settings) *State {
	return &State{
		UserPrompt:       prompt,
		Language:         settings.Language,
		QueryCount:       settings.QueryCount,
		QueryResults:     make(map[string][]ports.Hit),
		ProcessedNotes:   make(map[string]string),
		MinValidation:    settings.MinValidation,
		MaxValidation:    settings.MaxValidation,
		MinSources:       settings.MinSources,
		MaxSources:       settings.MaxSources,
		QualityThreshold: settings.QualityThreshold,
	}
}

// TotalHits counts every Hit across all queries.
func (s *State) TotalHits() int {
	total := 0
	for _, hits := range s.QueryResults {
		total += len(hits)
	}
	return total
}

// Delta is a partial view of State returned by a stage. Nil pointer
// fields leave the state untouched; slice and map fields follow the
// per-field semantics documented on each.
type Delta struct {
	// UserPrompt replaces the prompt when non-nil.
	UserPrompt *string

	// Queries replaces the baseline query list when non-nil.
	Queries []string

	// FollowUpQueries replaces the follow-up list when non-nil.
	// ClearFollowUps empties it regardless.
	FollowUpQueries []string
	ClearFollowUps  bool

	// ExecutedQueries appends to the audit log.
	ExecutedQueries []string

	// QueryResults appends per query, deduplicating by URL within each
	// query's accumulated list.
	QueryResults map[string][]ports.Hit

	// ProcessedNotes replaces the note per key.
	ProcessedNotes map[string]string

	DraftReport     *string
	ValidatedReport *string

	// LoopIncrement adds to the loop counter.
	LoopIncrement int

	QualityScore       *float64
	ValidationComplete *bool

	// Errors appends non-fatal diagnostics.
	Errors []string
}

// Merge applies delta to the state, field by field.
func (s *State) Merge(delta Delta) {
	if delta.UserPrompt != nil {
		s.UserPrompt = *delta.UserPrompt
	}
	if delta.Queries != nil {
		s.Queries = delta.Queries
	}
	if delta.ClearFollowUps {
		s.FollowUpQueries = nil
	} else if delta.FollowUpQueries != nil {
		s.FollowUpQueries = delta.FollowUpQueries
	}
	s.ExecutedQueries = append(s.ExecutedQueries, delta.ExecutedQueries...)

	for query, hits := range delta.QueryResults {
		s.QueryResults[query] = appendDedup(s.QueryResults[query], hits)
	}
	for query, notes := range delta.ProcessedNotes {
		s.ProcessedNotes[query] = notes
	}

	if delta.DraftReport != nil {
		s.DraftReport = *delta.DraftReport
	}
	if delta.ValidatedReport != nil {
		s.ValidatedReport = *delta.ValidatedReport
	}
	s.LoopCount += delta.LoopIncrement
	if delta.QualityScore != nil {
		s.QualityScore = *delta.QualityScore
	}
	if delta.ValidationComplete != nil {
		s.ValidationComplete = *delta.ValidationComplete
	}
	s.ErrorLog = append(s.ErrorLog, delta.Errors...)
}

// appendDedup appends hits to existing, keeping the first occurrence of
// each URL.
func appendDedup(existing, hits []ports.Hit) []ports.Hit {
	seen := make(map[string]struct{}, len(existing)+len(hits))
	for _, hit := range existing {
		seen[hit.URL] = struct{}{}
	}
	for _, hit := range hits {
		if _, dup := seen[hit.URL]; dup {
			continue
		}
		seen[hit.URL] = struct{}{}
		existing = append(existing, hit)
	}
	return existing
}

// Stage is one step of the research pipeline. Stages return a partial
// delta rather than mutating the state; non-fatal failures are reported
// through the delta's Errors with a nil error.
type Stage interface {
	Name() string
	Run(ctx context.Context, state *State) (Delta, error)
}

// Helpers for optional delta fields.

func String(s string) *string  { return &s }
func Float(f float64) *float64 { return &f }
func Bool(b bool) *bool        { return &b }
