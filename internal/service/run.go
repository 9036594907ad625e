// Package service wires configuration, clients, stages, and persistence
// into the run and queue operations the CLI exposes.
package service

import (
	"context"
	"strings"
	"time"

	"hermes/internal/agent"
	"hermes/internal/agent/ports"
	"hermes/internal/agent/stages"
	"hermes/internal/cache"
	"hermes/internal/config"
	"hermes/internal/errors"
	"hermes/internal/llm"
	"hermes/internal/logging"
	"hermes/internal/orchestrator"
	"hermes/internal/persistence"
	"hermes/internal/search"
	"hermes/internal/utils/id"
	"hermes/internal/web"
)

// StageBuilder constructs the stage set for one run. Injectable so tests
// can run the full service against mocks.
type StageBuilder func(ctx context.Context, cfg config.Config, logger logging.Logger) orchestrator.Stages

// RunService executes research runs and records their history.
type RunService struct {
	cfg         config.Config
	tasks       *persistence.TaskRepository
	histories   *persistence.HistoryRepository
	logs        *persistence.LogRepository
	buildStages StageBuilder
	now         func() time.Time
}

// NewRunService returns a service over the given repositories. builder
// may be nil, in which case the production clients are used.
func NewRunService(cfg config.Config, tasks *persistence.TaskRepository, histories *persistence.HistoryRepository, logs *persistence.LogRepository, builder StageBuilder) *RunService {
	if builder == nil {
		builder = BuildStages
	}
	return &RunService{
		cfg:         cfg,
		tasks:       tasks,
		histories:   histories,
		logs:        logs,
		buildStages: builder,
		now:         time.Now,
	}
}

// BuildStages wires the production clients: retrying Ollama, SearxNG with
// the Redis-or-memory cache, the robots-aware fetcher, and the sandboxed
// normalizer.
func BuildStages(ctx context.Context, cfg config.Config, logger logging.Logger) orchestrator.Stages {
	chat := llm.NewRetryClient(
		llm.NewOllamaClient(llm.Config{
			APIURL:      cfg.Ollama.APIURL,
			Model:       cfg.Ollama.Model,
			Temperature: cfg.Ollama.Temperature,
			Timeout:     cfg.Ollama.Timeout(),
		}, logger),
		cfg.Ollama.Retry, logger)

	searchClient := search.NewSearxNGClient(cfg.Search.SearxNGBaseURL, logger)
	fetcher := web.NewFetcher(logger)
	hitCache, err := cache.New(ctx, cfg.Search.RedisURL, logger)
	if err != nil {
		hitCache, _ = cache.NewMemory(0)
	}

	var normalizer ports.ContentNormalizer
	if cfg.Sandbox.Enabled {
		normalizer = web.NewSandboxNormalizer(cfg.Sandbox.Image, logger)
	} else {
		normalizer = web.NewNormalizer()
	}

	searcher := stages.NewSearcher(searchClient, fetcher, hitCache, stages.SearcherConfig{
		MaxSources:  cfg.Search.MaxSources,
		Parallelism: cfg.Search.Parallelism,
		Retry:       cfg.Search.Retry,
		CacheTTL:    cfg.Search.CacheTTL(),
	}, logger)

	return orchestrator.Stages{
		Normalize:  stages.NewNormalize(),
		QueryGen:   stages.NewQueryGen(chat, logger),
		Search:     searcher,
		Process:    stages.NewProcessor(normalizer, logger),
		Draft:      stages.NewDraft(chat, logger),
		Controller: stages.NewController(logger),
		Validator:  stages.NewValidator(chat, logger),
		Finalize:   stages.NewFinalizer(logger),
	}
}

// Run executes one ad-hoc run for prompt with the given overrides.
func (s *RunService) Run(ctx context.Context, prompt string, overrides config.Overrides) (persistence.HistoryMeta, error) {
	runID, err := s.nextRunID()
	if err != nil {
		return persistence.HistoryMeta{}, err
	}
	return s.runWithID(ctx, runID, prompt, overrides)
}

// RunTask executes a persisted task, tracking its status transitions. The
// task ID doubles as the run ID.
func (s *RunService) RunTask(ctx context.Context, taskID string) (persistence.HistoryMeta, error) {
	task, err := s.tasks.Load(taskID)
	if err != nil {
		return persistence.HistoryMeta{}, err
	}

	overrides, err := config.OverridesFromOptions(task.Options)
	if err != nil {
		return persistence.HistoryMeta{}, err
	}

	if err := s.tasks.UpdateStatus(taskID, persistence.TaskRunning); err != nil {
		return persistence.HistoryMeta{}, err
	}

	meta, runErr := s.runWithID(ctx, task.ID, task.Prompt, overrides)
	status := persistence.TaskDone
	if runErr != nil {
		status = persistence.TaskFailed
	}
	if err := s.tasks.UpdateStatus(taskID, status); err != nil {
		return meta, err
	}
	return meta, runErr
}

func (s *RunService) runWithID(ctx context.Context, runID, prompt string, overrides config.Overrides) (persistence.HistoryMeta, error) {
	createdAt := s.now()
	cfg, err := s.cfg.Apply(overrides)
	if err != nil {
		meta := s.failureMeta(runID, prompt, createdAt, err)
		_ = s.histories.SaveMeta(meta)
		return meta, err
	}

	logger := s.componentLogger("runner")
	logger.Info("run started id=%s model=%s language=%s", runID, cfg.Ollama.Model, cfg.Language)

	state := agent.NewState(prompt, agent.Settings{
		Language:         cfg.Language,
		QueryCount:       cfg.Search.QueryCount,
		MinValidation:    cfg.Validation.MinValidation,
		MaxValidation:    cfg.Validation.MaxValidation,
		MinSources:       cfg.Search.MinSources,
		MaxSources:       cfg.Search.MaxSources,
		QualityThreshold: cfg.Validation.QualityThreshold,
	})

	driver := orchestrator.New(s.buildStages(ctx, cfg, s.componentLogger("pipeline")), s.componentLogger("orchestrator"))
	runErr := driver.Run(ctx, state)

	if runErr != nil {
		meta := s.failureMeta(runID, prompt, createdAt, runErr)
		meta.Model = cfg.Ollama.Model
		meta.Language = cfg.Language
		meta.ValidationLoops = state.LoopCount
		_ = s.histories.SaveMeta(meta)
		logger.Error("run failed id=%s: %v", runID, runErr)
		return meta, runErr
	}

	reportPath, err := s.histories.SaveReport(runID, state.ValidatedReport)
	if err != nil {
		meta := s.failureMeta(runID, prompt, createdAt, err)
		_ = s.histories.SaveMeta(meta)
		return meta, err
	}

	meta := persistence.HistoryMeta{
		ID:              runID,
		Prompt:          prompt,
		CreatedAt:       createdAt,
		FinishedAt:      s.now(),
		Model:           cfg.Ollama.Model,
		Language:        cfg.Language,
		ValidationLoops: state.LoopCount,
		SourceCount:     state.TotalHits(),
		ReportFile:      reportPath,
		Status:          persistence.HistorySuccess,
	}
	if err := s.histories.SaveMeta(meta); err != nil {
		return meta, err
	}
	logger.Info("run finished id=%s loops=%d sources=%d quality=%.3f",
		runID, state.LoopCount, state.TotalHits(), state.QualityScore)
	return meta, nil
}

// failureMeta builds a failed HistoryMeta; the error message keeps the
// stable fatal reason as its prefix.
func (s *RunService) failureMeta(runID, prompt string, createdAt time.Time, runErr error) persistence.HistoryMeta {
	message := runErr.Error()
	if reason := errors.FatalReason(runErr); reason != "" && !strings.HasPrefix(message, reason) {
		message = reason + ": " + message
	}
	return persistence.HistoryMeta{
		ID:           runID,
		Prompt:       prompt,
		CreatedAt:    createdAt,
		FinishedAt:   s.now(),
		Status:       persistence.HistoryFailed,
		ErrorMessage: persistence.TruncateError(message),
	}
}

// nextRunID avoids collisions with both existing histories and tasks.
func (s *RunService) nextRunID() (string, error) {
	historyIDs, err := s.histories.IDs()
	if err != nil {
		return "", err
	}
	taskIDs, err := s.tasks.IDs()
	if err != nil {
		return "", err
	}
	return id.Next(s.now(), append(historyIDs, taskIDs...)), nil
}

func (s *RunService) componentLogger(component string) logging.Logger {
	if s.logs == nil {
		return logging.Nop()
	}
	return logging.NewComponentLogger(s.logs, component, logging.LevelDebug)
}
