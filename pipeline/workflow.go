package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tailored-agentic-units/worker-core/bridge"
	"github.com/tailored-agentic-units/worker-core/core/proto"
	"github.com/tailored-agentic-units/worker-core/lifecycle"
	"github.com/tailored-agentic-units/worker-core/sandbox"
)

// WorkflowPipelineConfig carries the worker-option knobs spec.md §6 assigns
// to the workflow pipeline.
type WorkflowPipelineConfig struct {
	MaxConcurrentTaskExecutions int64
	MaxConcurrentTaskPolls      int64
	ActivityDefaults            sandbox.ActivityDefaults
	InterceptorModules          []string
	ExecutionTimeout            time.Duration
	// Dependencies are injected into every freshly created RunContext
	// (spec.md §4.3 injectDependency), immediately after slot.Create and
	// before the first Activate call. config.DependencyOption deliberately
	// carries no Fn (it is the JSON-serializable half); the worker façade
	// resolves each configured Iface to a concrete sandbox.HostFunc and
	// passes the pair here.
	Dependencies []DependencyBinding
}

// DependencyBinding pairs a config.DependencyOption's iface/mode/replay
// policy with the concrete host function implementing it.
type DependencyBinding struct {
	Iface            string
	Fn               sandbox.HostFunc
	Mode             sandbox.ApplyMode
	CallDuringReplay bool
}

// workflowHandle is the Option<WorkflowHandle> payload of spec.md §4.2: the
// acquired SandboxSlot backing one run for as long as its group stays open.
type workflowHandle struct {
	slot *sandbox.Slot
}

// WorkflowPipeline is C6's workflow-activation composition (poll ->
// group-and-process -> complete), plus the WorkflowError feedback channel
// (spec.md §4.2 "Completion routing").
type WorkflowPipeline struct {
	cfg        WorkflowPipelineConfig
	bridgeConn bridge.Bridge
	pool       *sandbox.Pool
	controller *lifecycle.Controller
	counters   *lifecycle.Counters
	logger     *slog.Logger

	engine   *Engine[proto.WorkflowActivation]
	groups   *registry[workflowHandle]
	feedback chan proto.WorkflowActivation
}

func NewWorkflowPipeline(cfg WorkflowPipelineConfig, br bridge.Bridge, pool *sandbox.Pool, controller *lifecycle.Controller, counters *lifecycle.Counters, logger *slog.Logger) *WorkflowPipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkflowPipeline{
		cfg:        cfg,
		bridgeConn: br,
		pool:       pool,
		controller: controller,
		counters:   counters,
		logger:     logger,
		engine:     newEngine[proto.WorkflowActivation](cfg.MaxConcurrentTaskExecutions, cfg.MaxConcurrentTaskPolls, logger),
		groups:     newRegistry[workflowHandle](),
		// Buffered so a re-injected eviction (spec.md §4.2 completion
		// routing) never blocks the goroutine that discovered the
		// WorkflowError.
		feedback: make(chan proto.WorkflowActivation, 256),
	}
}

// Run drives the pipeline until the lifecycle gate closes it or an
// unrecoverable poll error occurs. stop should be the controller's DRAINING
// exit signal so the feedback channel and poll loop both end together
// (spec.md §4.2: "This channel is closed when state transitions out of
// DRAINING").
func (p *WorkflowPipeline) Run(ctx context.Context, stop <-chan struct{}) error {
	go p.runFeedback(ctx, stop)
	return p.engine.run(ctx, p.controller, stop, p.poll, p.enter)
}

// Inject pushes a synthetic activation (e.g. an idle-sweep eviction,
// spec.md §4.1) directly into the feedback channel as if it had arrived
// from the bridge.
func (p *WorkflowPipeline) Inject(a proto.WorkflowActivation) {
	select {
	case p.feedback <- a:
	default:
		p.logger.Warn("workflow pipeline: feedback channel full, dropping synthetic activation", slog.String("run_id", a.RunID))
	}
}

// LiveRunIDs returns the identities of every still-open workflow group, for
// the idle sweep to synthesize terminal evictions against (spec.md §4.1).
func (p *WorkflowPipeline) LiveRunIDs() []string {
	return p.groups.liveKeys()
}

func (p *WorkflowPipeline) runFeedback(ctx context.Context, stop <-chan struct{}) {
	for {
		select {
		case a := <-p.feedback:
			process := p.enter(a)
			process(ctx)
		case <-stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// poll is the bridge-facing half of the pipeline; the feedback channel
// (re-injected evictions from rejected completions, spec.md §4.2) is drained
// independently by runFeedback so a WorkflowError's synthetic eviction isn't
// stuck waiting behind unrelated bridge polls.
func (p *WorkflowPipeline) poll(ctx context.Context) (proto.WorkflowActivation, error) {
	return p.bridgeConn.PollWorkflowActivation(ctx)
}

// enter is the group.enter step (spec.md §4.2: "the task has entered its
// group"): a synchronous map lookup/creation. It also acquires the group's
// serialization lock right here, synchronously, rather than inside the
// returned closure — enter() is always called in poll-arrival order (the
// engine only frees the next poll slot after enter() returns), so locking
// here turns g.mu into a ticket that is acquired in arrival order even
// though the matching Unlock happens later, from whichever goroutine the
// engine schedules to run the returned closure. Locking inside the async
// closure instead would let two tasks for the same still-open run race for
// the lock in whatever order their goroutines happen to be scheduled,
// breaking the "processed strictly serially" guarantee (spec.md §4.2).
func (p *WorkflowPipeline) enter(a proto.WorkflowActivation) func(context.Context) {
	key := a.RunID
	g := p.groups.enter(key)
	g.mu.Lock()
	p.counters.IncActivations()

	return func(ctx context.Context) {
		defer p.counters.DecActivations()

		completion, closeGroup := p.process(ctx, g, a)
		if closeGroup {
			g.closed = true
		}
		g.mu.Unlock()

		if closeGroup {
			p.groups.discard(key, g)
		}

		if err := p.bridgeConn.CompleteWorkflowActivation(ctx, completion); err != nil {
			if we, ok := bridge.AsWorkflowError(err); ok {
				p.logger.Warn("workflow pipeline: completion rejected, re-injecting eviction", slog.String("run_id", we.RunID))
				p.Inject(proto.NewEvictionActivation(we.RunID))
				return
			}
			p.controller.Fail(fmt.Errorf("pipeline: complete workflow activation: %w", err))
		}
	}
}

// process implements spec.md §4.2's "Workflow processing step". Caller
// holds g.mu.
func (p *WorkflowPipeline) process(ctx context.Context, g *group[workflowHandle], a proto.WorkflowActivation) (proto.WorkflowActivationCompletion, bool) {
	nonEviction, evict := a.HasEviction()
	if len(nonEviction) == 0 && !evict {
		return failedCompletion(a.RunID, fmt.Errorf("pipeline: malformed activation for run %s: no jobs", a.RunID)), true
	}

	if g.handle == nil {
		if evict && len(nonEviction) == 0 {
			// A pure eviction for a run whose group was never created (or
			// was already closed and re-injected, spec.md §8's idempotence
			// property: "creates exactly one new group that processes only
			// the eviction") has nothing to acquire a slot for. Close the
			// group with a clean no-op completion rather than a failure.
			return proto.WorkflowActivationCompletion{
				RunID:      a.RunID,
				Successful: &proto.SuccessfulCompletion{},
			}, true
		}

		startJob, ok := a.StartJob()
		if !ok || startJob.WorkflowID == "" || startJob.WorkflowType == "" || startJob.RandomnessSeed == 0 {
			return failedCompletion(a.RunID, fmt.Errorf("pipeline: run %s has no handle and no valid startWorkflow job", a.RunID)), true
		}

		slot, err := p.pool.Acquire(ctx)
		if err != nil {
			return failedCompletion(a.RunID, fmt.Errorf("pipeline: acquire sandbox slot: %w", err)), true
		}

		info := sandbox.WorkflowInfo{
			RunID:          a.RunID,
			WorkflowID:     startJob.WorkflowID,
			WorkflowType:   startJob.WorkflowType,
			TaskQueue:      startJob.TaskQueue,
			Namespace:      startJob.Namespace,
			RandomnessSeed: startJob.RandomnessSeed,
			IsReplaying:    a.IsReplaying,
		}
		rc := slot.Create(info, p.cfg.ActivityDefaults, p.cfg.InterceptorModules, startJob.RandomnessSeed, a.Now)
		for _, dep := range p.cfg.Dependencies {
			rc.Bindings.InjectDependency(dep.Iface, dep.Fn, dep.Mode, dep.CallDuringReplay)
		}
		g.handle = &workflowHandle{slot: slot}
		p.counters.IncWorkflows()
	}

	activateCtx := ctx
	var cancel context.CancelFunc
	if p.cfg.ExecutionTimeout > 0 {
		activateCtx, cancel = context.WithTimeout(ctx, p.cfg.ExecutionTimeout)
		defer cancel()
	}

	commands, err := g.handle.slot.Activate(activateCtx, a)
	if err != nil {
		p.releaseHandle(g)
		return failedCompletion(a.RunID, err), true
	}

	if evict {
		p.releaseHandle(g)
	}

	return proto.WorkflowActivationCompletion{
		RunID:      a.RunID,
		Successful: &proto.SuccessfulCompletion{Commands: commands},
	}, evict
}

func (p *WorkflowPipeline) releaseHandle(g *group[workflowHandle]) {
	if g.handle == nil {
		return
	}
	p.pool.Release(g.handle.slot)
	g.handle = nil
	p.counters.DecWorkflows()
}

func failedCompletion(runID string, err error) proto.WorkflowActivationCompletion {
	return proto.WorkflowActivationCompletion{
		RunID:  runID,
		Failed: &proto.FailedCompletion{Failure: proto.Failure{Message: err.Error()}},
	}
}
