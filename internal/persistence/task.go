package persistence

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"hermes/internal/errors"
	"hermes/internal/utils/id"
)

// Task statuses.
const (
	TaskScheduled = "scheduled"
	TaskRunning   = "running"
	TaskDone      = "done"
	TaskFailed    = "failed"
)

// Task is a queued research request.
type Task struct {
	ID        string         `yaml:"id"`
	Prompt    string         `yaml:"prompt"`
	CreatedAt time.Time      `yaml:"created_at"`
	Status    string         `yaml:"status"`
	Options   map[string]any `yaml:"options,omitempty"`
}

// TaskRepository persists tasks as task/task-<ID>.yaml files.
type TaskRepository struct {
	paths Paths
	mu    sync.Mutex
	now   func() time.Time
}

// NewTaskRepository returns a repository over the given layout.
func NewTaskRepository(paths Paths) *TaskRepository {
	return &TaskRepository{paths: paths, now: time.Now}
}

// Create assigns the next run ID and persists a scheduled task.
func (r *TaskRepository) Create(prompt string, options map[string]any) (Task, error) {
	if strings.TrimSpace(prompt) == "" {
		return Task{}, errors.NewInputError("task prompt must not be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, err := r.IDs()
	if err != nil {
		return Task{}, err
	}

	task := Task{
		ID:        id.Next(r.now(), existing),
		Prompt:    prompt,
		CreatedAt: r.now().Truncate(time.Second),
		Status:    TaskScheduled,
		Options:   options,
	}
	if err := r.save(task); err != nil {
		return Task{}, err
	}
	return task, nil
}

// Load reads one task by ID.
func (r *TaskRepository) Load(taskID string) (Task, error) {
	data, err := os.ReadFile(r.paths.TaskFile(taskID))
	if err != nil {
		if os.IsNotExist(err) {
			return Task{}, errors.NewNotFound("task", taskID)
		}
		return Task{}, fmt.Errorf("reading task %s: %w", taskID, err)
	}
	var task Task
	if err := yaml.Unmarshal(data, &task); err != nil {
		return Task{}, fmt.Errorf("decoding task %s: %w", taskID, err)
	}
	return task, nil
}

// ListAll returns every task, newest-first by creation time.
func (r *TaskRepository) ListAll() ([]Task, error) {
	tasks, err := r.loadAll()
	if err != nil {
		return nil, err
	}
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})
	return tasks, nil
}

// ListScheduled returns tasks with status=scheduled, oldest-first.
func (r *TaskRepository) ListScheduled() ([]Task, error) {
	tasks, err := r.loadAll()
	if err != nil {
		return nil, err
	}
	scheduled := tasks[:0]
	for _, t := range tasks {
		if t.Status == TaskScheduled {
			scheduled = append(scheduled, t)
		}
	}
	sort.Slice(scheduled, func(i, j int) bool {
		return scheduled[i].CreatedAt.Before(scheduled[j].CreatedAt)
	})
	return scheduled, nil
}

// UpdateStatus transitions a task and persists it.
func (r *TaskRepository) UpdateStatus(taskID, status string) error {
	switch status {
	case TaskScheduled, TaskRunning, TaskDone, TaskFailed:
	default:
		return errors.NewInputError("invalid task status %q", status)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	task, err := r.Load(taskID)
	if err != nil {
		return err
	}
	task.Status = status
	return r.save(task)
}

// Delete removes a task file.
func (r *TaskRepository) Delete(taskID string) error {
	err := os.Remove(r.paths.TaskFile(taskID))
	if os.IsNotExist(err) {
		return errors.NewNotFound("task", taskID)
	}
	return err
}

func (r *TaskRepository) save(task Task) error {
	data, err := yaml.Marshal(task)
	if err != nil {
		return fmt.Errorf("encoding task %s: %w", task.ID, err)
	}
	return writeFileAtomic(r.paths.TaskFile(task.ID), data)
}

func (r *TaskRepository) loadAll() ([]Task, error) {
	entries, err := os.ReadDir(r.paths.TaskDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing tasks: %w", err)
	}

	var tasks []Task
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "task-") || filepath.Ext(name) != ".yaml" {
			continue
		}
		taskID := strings.TrimSuffix(strings.TrimPrefix(name, "task-"), ".yaml")
		task, err := r.Load(taskID)
		if err != nil {
			continue
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// IDs returns every task ID currently on disk.
func (r *TaskRepository) IDs() ([]string, error) {
	tasks, err := r.loadAll()
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(tasks))
	for _, t := range tasks {
		ids = append(ids, t.ID)
	}
	return ids, nil
}
