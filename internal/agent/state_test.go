package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"hermes/internal/agent/ports"
)

func TestMergeLeavesUntouchedFields(t *testing.T) {
	state := NewState("prompt", Settings{Language: "en", QueryCount: 2})
	state.DraftReport = "draft"

	state.Merge(Delta{QualityScore: Float(0.5)})

	assert.Equal(t, "draft", state.DraftReport)
	assert.Equal(t, 0.5, state.QualityScore)
	assert.Equal(t, "prompt", state.UserPrompt)
}

func TestMergeAppendsExecutedQueriesAndErrors(t *testing.T) {
	state := NewState("prompt", Settings{})
	state.Merge(Delta{ExecutedQueries: []string{"a"}, Errors: []string{"e1"}})
	state.Merge(Delta{ExecutedQueries: []string{"b", "c"}, Errors: []string{"e2"}})

	assert.Equal(t, []string{"a", "b", "c"}, state.ExecutedQueries)
	assert.Equal(t, []string{"e1", "e2"}, state.ErrorLog)
}

func TestMergeDeduplicatesHitsByURLWithinQuery(t *testing.T) {
	state := NewState("prompt", Settings{})
	state.Merge(Delta{QueryResults: map[string][]ports.Hit{
		"q": {{URL: "https://a", Title: "first"}, {URL: "https://b"}},
	}})
	state.Merge(Delta{QueryResults: map[string][]ports.Hit{
		"q":     {{URL: "https://a", Title: "duplicate"}, {URL: "https://c", Loop: 1}},
		"other": {{URL: "https://a"}},
	}})

	assert.Len(t, state.QueryResults["q"], 3)
	assert.Equal(t, "first", state.QueryResults["q"][0].Title)
	assert.Equal(t, 1, state.QueryResults["q"][2].Loop)
	// Dedup scope is per query; the same URL may appear under another.
	assert.Len(t, state.QueryResults["other"], 1)
}

func TestMergeClearFollowUps(t *testing.T) {
	state := NewState("prompt", Settings{})
	state.Merge(Delta{FollowUpQueries: []string{"f1", "f2"}})
	assert.Equal(t, []string{"f1", "f2"}, state.FollowUpQueries)

	state.Merge(Delta{ClearFollowUps: true})
	assert.Empty(t, state.FollowUpQueries)
}

func TestMergeLoopIncrement(t *testing.T) {
	state := NewState("prompt", Settings{})
	state.Merge(Delta{LoopIncrement: 1})
	state.Merge(Delta{LoopIncrement: 1})
	assert.Equal(t, 2, state.LoopCount)
}

func TestTotalHits(t *testing.T) {
	state := NewState("prompt", Settings{})
	state.Merge(Delta{QueryResults: map[string][]ports.Hit{
		"a": {{URL: "1"}, {URL: "2"}},
		"b": {{URL: "3"}},
	}})
	assert.Equal(t, 3, state.TotalHits())
}
