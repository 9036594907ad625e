package persistence

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hermes/internal/errors"
	"hermes/internal/logging"
)

func newTestPaths(t *testing.T) Paths {
	t.Helper()
	paths := NewPaths(t.TempDir())
	require.NoError(t, paths.EnsureTree())
	return paths
}

func TestTaskCreateLoadRoundTrip(t *testing.T) {
	repo := NewTaskRepository(newTestPaths(t))

	created, err := repo.Create("Explain CRDTs", map[string]any{
		"language":    "en",
		"query_count": 2,
	})
	require.NoError(t, err)
	assert.Regexp(t, `^\d{4}-\d{4}$`, created.ID)
	assert.Equal(t, TaskScheduled, created.Status)

	loaded, err := repo.Load(created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Prompt, loaded.Prompt)
	assert.Equal(t, "en", loaded.Options["language"])
	assert.Equal(t, 2, loaded.Options["query_count"])
	assert.True(t, created.CreatedAt.Equal(loaded.CreatedAt))
}

func TestTaskCreateRejectsEmptyPrompt(t *testing.T) {
	repo := NewTaskRepository(newTestPaths(t))

	_, err := repo.Create("   ", nil)
	assert.True(t, errors.IsInput(err))
}

func TestTaskIDsAreMonotonic(t *testing.T) {
	repo := NewTaskRepository(newTestPaths(t))

	first, err := repo.Create("first", nil)
	require.NoError(t, err)
	second, err := repo.Create("second", nil)
	require.NoError(t, err)
	assert.Less(t, first.ID, second.ID)
}

func TestTaskListScheduledIsOldestFirst(t *testing.T) {
	repo := NewTaskRepository(newTestPaths(t))
	base := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	clock := base
	repo.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}

	t1, err := repo.Create("first", nil)
	require.NoError(t, err)
	t2, err := repo.Create("second", nil)
	require.NoError(t, err)
	t3, err := repo.Create("third", nil)
	require.NoError(t, err)
	require.NoError(t, repo.UpdateStatus(t2.ID, TaskDone))

	scheduled, err := repo.ListScheduled()
	require.NoError(t, err)
	require.Len(t, scheduled, 2)
	assert.Equal(t, t1.ID, scheduled[0].ID)
	assert.Equal(t, t3.ID, scheduled[1].ID)
}

func TestTaskLoadNotFound(t *testing.T) {
	repo := NewTaskRepository(newTestPaths(t))

	_, err := repo.Load("2026-9999")
	assert.True(t, errors.IsNotFound(err))
}

func TestHistoryMetaRoundTrip(t *testing.T) {
	repo := NewHistoryRepository(newTestPaths(t))

	meta := HistoryMeta{
		ID:              "2026-0001",
		Prompt:          "Explain CRDTs",
		CreatedAt:       time.Date(2026, 2, 1, 10, 0, 0, 0, time.FixedZone("JST", 9*3600)),
		FinishedAt:      time.Date(2026, 2, 1, 10, 5, 0, 0, time.FixedZone("JST", 9*3600)),
		Model:           "gpt-oss:20b",
		Language:        "en",
		ValidationLoops: 1,
		SourceCount:     4,
		ReportFile:      "history/report-2026-0001.md",
		Status:          HistorySuccess,
	}
	require.NoError(t, repo.SaveMeta(meta))

	loaded, err := repo.LoadMeta(meta.ID)
	require.NoError(t, err)
	assert.Equal(t, meta.Prompt, loaded.Prompt)
	assert.Equal(t, meta.ValidationLoops, loaded.ValidationLoops)
	assert.Equal(t, meta.SourceCount, loaded.SourceCount)
	assert.True(t, meta.FinishedAt.Equal(loaded.FinishedAt))
}

func TestHistoryErrorMessageTruncated(t *testing.T) {
	repo := NewHistoryRepository(newTestPaths(t))

	long := make([]byte, 800)
	for i := range long {
		long[i] = 'x'
	}
	meta := HistoryMeta{
		ID:           "2026-0002",
		Status:       HistoryFailed,
		FinishedAt:   time.Now(),
		ErrorMessage: string(long),
	}
	require.NoError(t, repo.SaveMeta(meta))

	loaded, err := repo.LoadMeta(meta.ID)
	require.NoError(t, err)
	assert.Len(t, loaded.ErrorMessage, 500)
}

func TestHistoryListAllNewestFirst(t *testing.T) {
	repo := NewHistoryRepository(newTestPaths(t))
	base := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	for i, id := range []string{"2026-0001", "2026-0002", "2026-0003"} {
		require.NoError(t, repo.SaveMeta(HistoryMeta{
			ID:         id,
			Status:     HistorySuccess,
			FinishedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	metas, err := repo.ListAll(2)
	require.NoError(t, err)
	require.Len(t, metas, 2)
	assert.Equal(t, "2026-0003", metas[0].ID)
	assert.Equal(t, "2026-0002", metas[1].ID)
}

func TestHistoryExportReport(t *testing.T) {
	paths := newTestPaths(t)
	repo := NewHistoryRepository(paths)

	_, err := repo.SaveReport("2026-0001", "# Report\n")
	require.NoError(t, err)

	dest := filepath.Join(t.TempDir(), "out.md")
	require.NoError(t, repo.ExportReport("2026-0001", dest))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "# Report\n", string(data))
}

func TestHistoryDeleteRemovesBothFiles(t *testing.T) {
	repo := NewHistoryRepository(newTestPaths(t))

	_, err := repo.SaveReport("2026-0001", "# Report\n")
	require.NoError(t, err)
	require.NoError(t, repo.SaveMeta(HistoryMeta{ID: "2026-0001", Status: HistorySuccess, FinishedAt: time.Now()}))

	require.NoError(t, repo.Delete("2026-0001"))
	_, err = repo.LoadMeta("2026-0001")
	assert.True(t, errors.IsNotFound(err))
	assert.True(t, errors.IsNotFound(repo.Delete("2026-0001")))
}

func TestLogLineFormat(t *testing.T) {
	paths := newTestPaths(t)
	repo := NewLogRepository(paths, logging.LevelInfo)
	fixed := time.Date(2026, 2, 1, 10, 30, 0, 0, time.FixedZone("JST", 9*3600))
	repo.now = func() time.Time { return fixed }

	repo.Write(logging.LevelInfo, "searcher", "query executed", "query", "crdt", "hits", "4")

	lines, err := repo.Tail(10)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t,
		"2026-02-01T10:30:00+09:00 [INFO] [searcher] query executed query=crdt hits=4",
		lines[0])
}

func TestLogLevelFilterKeepsDebugFile(t *testing.T) {
	paths := newTestPaths(t)
	repo := NewLogRepository(paths, logging.LevelInfo)
	fixed := time.Date(2026, 2, 1, 10, 30, 0, 0, time.UTC)
	repo.now = func() time.Time { return fixed }

	repo.Write(logging.LevelDebug, "draft", "prompt assembled")

	lines, err := repo.Tail(10)
	require.NoError(t, err)
	assert.Empty(t, lines)

	debugFile := filepath.Join(paths.DebugLogDir(), "hermes-20260201.log")
	data, err := os.ReadFile(debugFile)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`\[DEBUG\] \[draft\] prompt assembled`), string(data))

	debugLines, err := repo.TailDebug(10)
	require.NoError(t, err)
	require.Len(t, debugLines, 1)
	assert.Contains(t, debugLines[0], "[DEBUG] [draft] prompt assembled")
}

func TestLogTailReturnsLastN(t *testing.T) {
	repo := NewLogRepository(newTestPaths(t), logging.LevelInfo)
	for i := 0; i < 5; i++ {
		repo.Write(logging.LevelInfo, "runner", "line", "n", string(rune('0'+i)))
	}

	lines, err := repo.Tail(2)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "n=3")
	assert.Contains(t, lines[1], "n=4")
}

func TestLogStreamYieldsNewLines(t *testing.T) {
	repo := NewLogRepository(newTestPaths(t), logging.LevelInfo)
	repo.Write(logging.LevelInfo, "runner", "before stream")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stream := repo.Stream(ctx)

	go func() {
		time.Sleep(150 * time.Millisecond)
		repo.Write(logging.LevelInfo, "runner", "after stream")
	}()

	select {
	case line := <-stream:
		assert.Contains(t, line, "after stream")
	case <-time.After(2 * time.Second):
		t.Fatal("no line received from stream")
	}
}

func TestWriteFileAtomicLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.yaml")
	require.NoError(t, writeFileAtomic(path, []byte("data")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "out.yaml", entries[0].Name())
}
