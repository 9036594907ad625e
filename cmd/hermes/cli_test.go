package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hermes/internal/errors"
	"hermes/internal/persistence"
)

func TestStatusColorCoversEveryStatus(t *testing.T) {
	statuses := []string{
		persistence.TaskScheduled,
		persistence.TaskRunning,
		persistence.TaskDone,
		persistence.TaskFailed,
		persistence.HistorySuccess,
		persistence.HistoryFailed,
	}
	for _, status := range statuses {
		assert.Contains(t, statusColor(status), status)
	}
}

func TestRunWhitespacePromptRecordsFatalFailure(t *testing.T) {
	dir := t.TempDir()

	cmd := NewRootCommand()
	cmd.SetArgs([]string{"--work-dir", dir, "run", "--prompt", "   "})
	err := cmd.Execute()

	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
	assert.Equal(t, 3, errors.ExitCode(err))

	histories := persistence.NewHistoryRepository(persistence.NewPaths(dir))
	metas, err := histories.ListAll(0)
	require.NoError(t, err)
	require.Len(t, metas, 1)
	assert.Equal(t, persistence.HistoryFailed, metas[0].Status)
	assert.True(t, strings.HasPrefix(metas[0].ErrorMessage, errors.ReasonEmptyPrompt))
}

func TestRunMissingPromptIsInputError(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"--work-dir", t.TempDir(), "run"})
	err := cmd.Execute()

	require.Error(t, err)
	assert.True(t, errors.IsInput(err))
	assert.Equal(t, 2, errors.ExitCode(err))
}
