// Package worker implements the worker façade (spec.md §4.7, C9): it
// constructs every other subsystem from config.WorkerOptions and a
// pre-built sandbox.Bundle, then exposes run/shutdown/suspendPolling/
// resumePolling/state. Modeled on the teacher's kernel.New (subsystems
// built internally from config, functional options for test overrides).
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tailored-agentic-units/worker-core/activity"
	"github.com/tailored-agentic-units/worker-core/bridge"
	"github.com/tailored-agentic-units/worker-core/config"
	"github.com/tailored-agentic-units/worker-core/core/payload"
	"github.com/tailored-agentic-units/worker-core/core/proto"
	"github.com/tailored-agentic-units/worker-core/heartbeat"
	"github.com/tailored-agentic-units/worker-core/interceptor"
	"github.com/tailored-agentic-units/worker-core/lifecycle"
	"github.com/tailored-agentic-units/worker-core/observability"
	"github.com/tailored-agentic-units/worker-core/pipeline"
	"github.com/tailored-agentic-units/worker-core/sandbox"
)

// drainPollInterval is how often onIdle re-checks that the evictions it
// injected have actually closed out every workflow group before declaring
// DRAINED, mirroring lifecycle.idlePollInterval's poll-the-gauge approach.
const drainPollInterval = 20 * time.Millisecond

// Worker is the constructed façade: every other package's subsystems, wired
// together and driven by one lifecycle.Controller.
type Worker struct {
	opts       config.WorkerOptions
	bridgeConn bridge.Bridge
	logger     *slog.Logger
	observer   observability.Observer

	dependencyFns map[string]sandbox.HostFunc

	pool             *sandbox.Pool
	runner           *activity.Runner
	hbQueue          *heartbeat.Queue
	hbConsumer       *heartbeat.Consumer
	controller       *lifecycle.Controller
	counters         *lifecycle.Counters
	workflowPipeline *pipeline.WorkflowPipeline
	activityPipeline *pipeline.ActivityPipeline
}

// New constructs a Worker from opts, a connected bridge, and a pre-built
// workflow bundle (produced offline by bundler.Bundler, per spec.md §4.4).
func New(opts config.WorkerOptions, br bridge.Bridge, bundle sandbox.Bundle, options ...Option) (*Worker, error) {
	w := &Worker{
		opts:          opts,
		bridgeConn:    br,
		logger:        slog.Default(),
		observer:      observability.NoOpObserver{},
		dependencyFns: make(map[string]sandbox.HostFunc),
	}
	for _, opt := range options {
		opt(w)
	}

	converter, err := payload.GetConverter(opts.DataConverter)
	if err != nil {
		return nil, fmt.Errorf("worker: %w", err)
	}

	activityInterceptors, err := interceptor.Resolve(opts.Interceptors.ActivityInbound)
	if err != nil {
		return nil, fmt.Errorf("worker: resolving activityInbound interceptors: %w", err)
	}

	w.pool = sandbox.NewPool(opts.IsolatePoolSize, bundle, opts.MaxIsolateMemoryMB, w.logger)
	w.hbQueue = heartbeat.NewQueue()
	w.hbConsumer = heartbeat.NewConsumer(w.hbQueue, br, w.logger)
	w.runner = activity.NewRunner(converter, w.hbQueue, opts.Namespace, activityInterceptors...)
	w.controller = lifecycle.NewController(w.observer)
	w.counters = &lifecycle.Counters{}

	deps := w.resolveDependencyBindings()

	w.workflowPipeline = pipeline.NewWorkflowPipeline(pipeline.WorkflowPipelineConfig{
		MaxConcurrentTaskExecutions: opts.MaxConcurrentWorkflowTaskExecutions,
		MaxConcurrentTaskPolls:      opts.MaxConcurrentWorkflowTaskPolls,
		ActivityDefaults:            opts.SandboxActivityDefaults(),
		InterceptorModules:          opts.Interceptors.WorkflowModules,
		ExecutionTimeout:            opts.ExecutionTimeout(),
		Dependencies:                deps,
	}, br, w.pool, w.controller, w.counters, w.logger)

	w.activityPipeline = pipeline.NewActivityPipeline(pipeline.ActivityPipelineConfig{
		MaxConcurrentTaskExecutions: opts.MaxConcurrentActivityTaskExecutions,
		MaxConcurrentTaskPolls:      opts.MaxConcurrentActivityTaskPolls,
	}, br, w.runner, w.controller, w.counters, w.logger)

	return w, nil
}

// resolveDependencyBindings pairs every registered dependency implementation
// (WithDependency) with the mode/replay policy from opts.Dependencies,
// defaulting to {ApplySync, callDuringReplay: false} for an implementation
// registered without a matching config entry.
func (w *Worker) resolveDependencyBindings() []pipeline.DependencyBinding {
	bindings := make([]pipeline.DependencyBinding, 0, len(w.dependencyFns))
	for iface, fn := range w.dependencyFns {
		mode := sandbox.ApplySync
		callDuringReplay := false
		if dep, ok := w.opts.Dependencies[iface]; ok {
			mode = dep.Mode
			callDuringReplay = dep.CallDuringReplay
		}
		bindings = append(bindings, pipeline.DependencyBinding{
			Iface:            iface,
			Fn:               fn,
			Mode:             mode,
			CallDuringReplay: callDuringReplay,
		})
	}
	for iface := range w.opts.Dependencies {
		if _, ok := w.dependencyFns[iface]; !ok {
			w.logger.Warn("worker: dependency configured but no implementation registered", slog.String("iface", iface))
		}
	}
	return bindings
}

// Run drives the worker through its full lifecycle (spec.md §4.1, §4.7):
// registers signal handlers, starts the heartbeat consumer, the graceful-
// drain watchdog, and idle detection, then runs both pipelines until the
// worker reaches STOPPED. It returns only after STOPPED or rejects with the
// first fatal error, and always releases the sandbox pool and de-registers
// from the bridge before returning.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.controller.Transition(lifecycle.Running); err != nil {
		return err
	}

	stop := make(chan struct{})
	defer close(stop)

	unregisterSignals := lifecycle.WatchSignals(ctx, w.opts.ShutdownOSSignals(), w.logger, func() {
		if err := w.Shutdown(ctx); err != nil {
			w.logger.Warn("worker: signal-triggered shutdown failed", slog.String("error", err.Error()))
		}
	})
	defer unregisterSignals()

	go w.hbConsumer.Run(ctx)

	watchdog := lifecycle.NewWatchdog(w.controller, w.opts.ShutdownGraceTime())
	watchdogDone := make(chan error, 1)
	go func() { watchdogDone <- watchdog.Run(stop) }()

	go lifecycle.WatchIdle(w.controller, w.counters, stop, w.onIdle)

	pipelineDone := make(chan error, 2)
	go func() { pipelineDone <- w.workflowPipeline.Run(ctx, stop) }()
	go func() { pipelineDone <- w.activityPipeline.Run(ctx, stop) }()

	var firstErr error
	for i := 0; i < 2; i++ {
		if err := <-pipelineDone; err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if w.controller.State() == lifecycle.Drained {
		w.hbQueue.Close()
		if err := w.controller.Transition(lifecycle.Stopped); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	w.pool.Destroy()
	if err := w.bridgeConn.CompleteShutdown(ctx); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("worker: complete shutdown: %w", err)
	}

	select {
	case err := <-watchdogDone:
		if err != nil && firstErr == nil {
			firstErr = err
		}
	default:
	}

	if firstErr == nil && w.controller.State() == lifecycle.Failed {
		firstErr = fmt.Errorf("worker: entered FAILED state")
	}

	return firstErr
}

// onIdle is the idle-sweep callback (spec.md §4.1): it synthesizes a
// terminal eviction for every still-live workflow group, waits for those
// (and any activities still finishing naturally) to actually drain, then
// advances the controller to DRAINED.
func (w *Worker) onIdle() {
	for _, runID := range w.workflowPipeline.LiveRunIDs() {
		w.workflowPipeline.Inject(proto.NewEvictionActivation(runID))
	}

	for len(w.workflowPipeline.LiveRunIDs()) > 0 || w.counters.Activities() > 0 {
		time.Sleep(drainPollInterval)
	}

	if err := w.controller.Transition(lifecycle.Drained); err != nil {
		w.logger.Warn("worker: transition to DRAINED failed", slog.String("error", err.Error()))
	}
}

// Shutdown drives RUNNING|SUSPENDED -> STOPPING -> DRAINING (spec.md §4.1):
// it signals the bridge that this worker is draining, then lets polling
// continue until requests naturally stop arriving and the idle sweep takes
// over. A failure acking the bridge fails the worker outright.
func (w *Worker) Shutdown(ctx context.Context) error {
	if err := w.controller.Transition(lifecycle.Stopping); err != nil {
		return err
	}
	if err := w.bridgeConn.WorkerShutdown(ctx); err != nil {
		w.controller.Fail(err)
		return fmt.Errorf("worker: signal shutdown to bridge: %w", err)
	}
	return w.controller.Transition(lifecycle.Draining)
}

// SuspendPolling transitions RUNNING -> SUSPENDED (spec.md §4.1).
func (w *Worker) SuspendPolling() error {
	return w.controller.Transition(lifecycle.Suspended)
}

// ResumePolling transitions SUSPENDED -> RUNNING (spec.md §4.1).
func (w *Worker) ResumePolling() error {
	return w.controller.Transition(lifecycle.Running)
}

// State returns the worker's current lifecycle state.
func (w *Worker) State() lifecycle.State {
	return w.controller.State()
}
