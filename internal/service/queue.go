package service

import (
	"context"

	"hermes/internal/logging"
	"hermes/internal/persistence"
)

// QueueResult records one task's outcome during queue processing.
type QueueResult struct {
	TaskID string
	Meta   persistence.HistoryMeta
	Err    error
}

// QueueService drains scheduled tasks strictly sequentially. A local LLM
// serializes poorly under parallel load, so one task runs to completion
// before the next starts.
type QueueService struct {
	tasks  *persistence.TaskRepository
	runner *RunService
	logger logging.Logger
}

// NewQueueService returns a queue over the given repositories and runner.
func NewQueueService(tasks *persistence.TaskRepository, runner *RunService, logger logging.Logger) *QueueService {
	return &QueueService{tasks: tasks, runner: runner, logger: logging.OrNop(logger)}
}

// ListScheduled returns the pending tasks oldest-first.
func (q *QueueService) ListScheduled() ([]persistence.Task, error) {
	return q.tasks.ListScheduled()
}

// ProcessQueue runs up to limit scheduled tasks in creation order; a
// limit of 0 drains them all. A task failure is recorded and processing
// continues with the next task.
func (q *QueueService) ProcessQueue(ctx context.Context, limit int) ([]QueueResult, error) {
	scheduled, err := q.tasks.ListScheduled()
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(scheduled) > limit {
		scheduled = scheduled[:limit]
	}

	results := make([]QueueResult, 0, len(scheduled))
	for _, task := range scheduled {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		q.logger.Info("queue processing task=%s", task.ID)
		meta, runErr := q.runner.RunTask(ctx, task.ID)
		if runErr != nil {
			q.logger.Warn("queue task failed task=%s: %v", task.ID, runErr)
		}
		results = append(results, QueueResult{TaskID: task.ID, Meta: meta, Err: runErr})
	}
	return results, nil
}
