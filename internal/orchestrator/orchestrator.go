// Package orchestrator drives the research pipeline as a fixed state
// machine: normalize, query_gen, search, process, draft, controller, then
// either another validator/search pass or finalize.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"hermes/internal/agent"
	"hermes/internal/errors"
	"hermes/internal/logging"
)

// maxEdges is the hard recursion limit. It guarantees termination even if
// the controller logic misbehaves.
const maxEdges = 50

// Stages is the injectable stage set for one pipeline.
type Stages struct {
	Normalize  agent.Stage
	QueryGen   agent.Stage
	Search     agent.Stage
	Process    agent.Stage
	Draft      agent.Stage
	Controller agent.Stage
	Validator  agent.Stage
	Finalize   agent.Stage
}

// Event is emitted after each stage in streaming mode.
type Event struct {
	Stage string
	Delta agent.Delta
}

// Orchestrator executes the pipeline over one state.
type Orchestrator struct {
	stages  Stages
	logger  logging.Logger
	metrics *Metrics
	events  chan<- Event
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithEvents enables streaming mode: a (stage, delta) event is sent after
// every stage. The caller owns the channel and must drain it.
func WithEvents(events chan<- Event) Option {
	return func(o *Orchestrator) { o.events = events }
}

// WithRegistry uses a dedicated Prometheus registry instead of the global
// one.
func WithRegistry(reg prometheus.Registerer) Option {
	return func(o *Orchestrator) { o.metrics = MustNewMetrics(reg) }
}

// New returns an orchestrator over the given stages.
func New(stages Stages, logger logging.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		stages: stages,
		logger: logging.OrNop(logger),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.metrics == nil {
		o.metrics = defaultMetrics()
	}
	return o
}

// Run executes the pipeline to completion, mutating state in place. A
// stage failure is fatal only when classified as such; otherwise it is
// appended to the error log and the pipeline continues so the report
// reflects partial results.
func (o *Orchestrator) Run(ctx context.Context, state *agent.State) error {
	o.metrics.IncActiveRuns()
	defer o.metrics.DecActiveRuns()

	linear := []agent.Stage{
		o.stages.Normalize,
		o.stages.QueryGen,
		o.stages.Search,
		o.stages.Process,
		o.stages.Draft,
		o.stages.Controller,
	}

	edges := 0
	for _, stage := range linear {
		if err := o.step(ctx, stage, state, &edges); err != nil {
			return err
		}
	}

	for !state.ValidationComplete {
		if edges >= maxEdges {
			o.logger.Error("recursion limit reached after %d edges, forcing finalize", edges)
			state.ErrorLog = append(state.ErrorLog, "orchestrator: recursion limit reached")
			break
		}
		o.metrics.IncLoop()

		loop := []agent.Stage{
			o.stages.Validator,
			o.stages.Search,
			o.stages.Process,
			o.stages.Draft,
			o.stages.Controller,
		}
		for _, stage := range loop {
			if err := o.step(ctx, stage, state, &edges); err != nil {
				return err
			}
		}
	}

	return o.step(ctx, o.stages.Finalize, state, &edges)
}

// step runs one stage, merges its delta, and enforces cancellation
// between stages.
func (o *Orchestrator) step(ctx context.Context, stage agent.Stage, state *agent.State, edges *int) error {
	if err := ctx.Err(); err != nil {
		return errors.NewFatal(errors.ReasonCancelled, err)
	}
	*edges++

	start := time.Now()
	delta, err := stage.Run(ctx, state)

	// Deltas carry partial results even alongside an error; merge first
	// so degraded output and diagnostics survive.
	state.Merge(delta)
	o.emit(stage.Name(), delta)

	if err != nil {
		o.metrics.ObserveStage(stage.Name(), "error", time.Since(start))
		if errors.IsFatal(err) {
			o.metrics.IncStageFailure(stage.Name(), errors.FatalReason(err))
			o.logger.Error("stage %s failed fatally: %v", stage.Name(), err)
			return err
		}
		o.metrics.IncStageFailure(stage.Name(), "degraded")
		o.logger.Warn("stage %s degraded: %v", stage.Name(), err)
		state.ErrorLog = append(state.ErrorLog, fmt.Sprintf("%s: %v", stage.Name(), err))
		return nil
	}

	o.metrics.ObserveStage(stage.Name(), "ok", time.Since(start))
	o.logger.Debug("stage %s completed in %s", stage.Name(), time.Since(start).Round(time.Millisecond))
	return nil
}

func (o *Orchestrator) emit(stage string, delta agent.Delta) {
	if o.events == nil {
		return
	}
	o.events <- Event{Stage: stage, Delta: delta}
}
