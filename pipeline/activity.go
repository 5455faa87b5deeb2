package pipeline

import (
	"context"
	"log/slog"

	"github.com/tailored-agentic-units/worker-core/activity"
	"github.com/tailored-agentic-units/worker-core/bridge"
	"github.com/tailored-agentic-units/worker-core/core/proto"
	"github.com/tailored-agentic-units/worker-core/lifecycle"
)

// ActivityPipelineConfig carries the worker-option knobs spec.md §6 assigns
// to the activity pipeline.
type ActivityPipelineConfig struct {
	MaxConcurrentTaskExecutions int64
	MaxConcurrentTaskPolls      int64
}

// activityHandle is the Option<ActivityHandle> payload of spec.md §4.2. It
// carries no state of its own — the Runner already tracks the cancel token
// for the in-flight task internally, keyed the same way (TaskTokenKey) — so
// presence alone ("is a start in flight for this identity") is all the
// group needs to validate the `variant == start` / `handle != None` illegal
// state.
type activityHandle struct{}

// ActivityPipeline is C6's activity-task composition (poll ->
// group-and-process -> complete).
type ActivityPipeline struct {
	cfg        ActivityPipelineConfig
	bridgeConn bridge.Bridge
	runner     *activity.Runner
	controller *lifecycle.Controller
	counters   *lifecycle.Counters
	logger     *slog.Logger

	engine *Engine[proto.ActivityTask]
	groups *registry[activityHandle]
}

func NewActivityPipeline(cfg ActivityPipelineConfig, br bridge.Bridge, runner *activity.Runner, controller *lifecycle.Controller, counters *lifecycle.Counters, logger *slog.Logger) *ActivityPipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &ActivityPipeline{
		cfg:        cfg,
		bridgeConn: br,
		runner:     runner,
		controller: controller,
		counters:   counters,
		logger:     logger,
		engine:     newEngine[proto.ActivityTask](cfg.MaxConcurrentTaskExecutions, cfg.MaxConcurrentTaskPolls, logger),
		groups:     newRegistry[activityHandle](),
	}
}

// Run drives the pipeline until the lifecycle gate closes it or an
// unrecoverable poll error occurs.
func (p *ActivityPipeline) Run(ctx context.Context, stop <-chan struct{}) error {
	return p.engine.run(ctx, p.controller, stop, p.bridgeConn.PollActivityTask, p.enter)
}

// enter is the group.enter step. Unlike the workflow pipeline, the group
// lock here is held only long enough to validate/flip the handle's
// presence, never across the runner's (possibly long-running) Execute call
// — a `cancel` task for the same identity must be able to reach the runner
// while a `start` is still in flight (spec.md §4.2: "the cancel will
// surface through the in-progress run"), and holding g.mu across Execute
// would deadlock that exact case.
func (p *ActivityPipeline) enter(task proto.ActivityTask) func(context.Context) {
	key := task.TaskTokenKey()
	g := p.groups.enter(key)

	if task.Variant == proto.ActivityCancel {
		return func(ctx context.Context) {
			g.mu.Lock()
			live := g.handle != nil
			g.mu.Unlock()
			if !live {
				p.logger.Debug("activity pipeline: cancel for unknown task, ignoring", slog.String("task_token", key), slog.Bool("found", false))
				return
			}
			p.runner.Execute(ctx, task)
		}
	}

	g.mu.Lock()
	illegal := g.handle != nil
	if !illegal {
		g.handle = &activityHandle{}
	}
	g.mu.Unlock()

	p.counters.IncActivities()

	return func(ctx context.Context) {
		defer p.counters.DecActivities()

		if illegal {
			p.logger.Error("activity pipeline: start received for already in-flight task", slog.String("task_token", key))
			return
		}

		completion := p.runner.Execute(ctx, task)

		g.mu.Lock()
		g.handle = nil
		g.closed = true
		g.mu.Unlock()
		p.groups.discard(key, g)

		if completion == nil {
			return
		}
		if err := p.bridgeConn.CompleteActivityTask(ctx, *completion); err != nil {
			p.controller.Fail(err)
		}
	}
}
