package sandbox

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tailored-agentic-units/worker-core/core/proto"
)

// WorkflowInfo is the read-only metadata a workflow run observes, populated
// from the startWorkflow job (spec.md §4.2 step 3).
type WorkflowInfo struct {
	RunID          string
	WorkflowID     string
	WorkflowType   string
	TaskQueue      string
	Namespace      string
	RandomnessSeed int64
	IsReplaying    bool
}

// ActivityDefaults mirrors the activityDefaults worker option (spec.md §6),
// injected into generated activity stubs at bundle time and available to
// workflow code through RunContext.
type ActivityDefaults struct {
	Type                string
	StartToCloseTimeout time.Duration
}

// RunContext is the per-run execution context a Slot creates for one
// WorkflowHandle (spec.md §4.3 create()). It exposes WorkflowInfo, the
// deterministic facade, and the injected bindings to the WorkflowFunc.
type RunContext struct {
	Info               WorkflowInfo
	ActivityDefaults   ActivityDefaults
	InterceptorModules []string

	Determinism *Determinism
	Bindings    *Bindings

	stubs map[string]map[string]ActivityStub
}

// ScheduleActivity looks up the generated forwarding stub for (module,
// function) and calls it, producing the same scheduleActivity command a
// workflow would get by importing the generated stub directly (spec.md
// §4.4 step 2). Returns an error if the bundle has no stub for the pair —
// the bundle-time equivalent of the module or function being missing.
func (rc *RunContext) ScheduleActivity(module, function string, args []byte) (proto.WorkflowCommand, error) {
	fns, ok := rc.stubs[module]
	if !ok {
		return proto.WorkflowCommand{}, fmt.Errorf("sandbox: activity module not found: %s", module)
	}
	stub, ok := fns[function]
	if !ok {
		return proto.WorkflowCommand{}, fmt.Errorf("sandbox: activity function not found: %s.%s", module, function)
	}
	return stub.Call(args), nil
}

// Slot is one SandboxSlot: a deterministic execution context pre-loaded with
// a Bundle (spec.md §3 SandboxSlot, §4.3 Sandbox contract). memoryCapMB is
// recorded but not enforced; a Slot's memory use is not limited.
// A Slot is owned by at most one WorkflowHandle at a time.
type Slot struct {
	id           int
	bundle       Bundle
	memoryCapMB  int
	logger       *slog.Logger

	mu      sync.Mutex
	current *RunContext
	inUse   bool
}

func newSlot(id int, bundle Bundle, memoryCapMB int, logger *slog.Logger) *Slot {
	return &Slot{id: id, bundle: bundle, memoryCapMB: memoryCapMB, logger: logger}
}

// ID returns the slot's pool index, useful for round-robin diagnostics.
func (s *Slot) ID() int { return s.id }

// Create instantiates the slot for a new run (spec.md §4.3 "create").
// Must be called while the slot is exclusively owned (enforced by Pool).
func (s *Slot) Create(info WorkflowInfo, defaults ActivityDefaults, interceptorModules []string, randomSeed int64, nowUnixNano int64) *RunContext {
	s.mu.Lock()
	defer s.mu.Unlock()

	rc := &RunContext{
		Info:               info,
		ActivityDefaults:   defaults,
		InterceptorModules: interceptorModules,
		Determinism:        newDeterminism(randomSeed, nowUnixNano),
		Bindings:           newBindings(s.logger),
		stubs:              s.bundle.ActivityStubs,
	}
	s.current = rc
	s.inUse = true
	return rc
}

// Activate feeds one decoded activation to the loaded WorkflowFunc and
// returns the produced commands (spec.md §4.3 "activate"). The caller
// (pipeline.WorkflowPipeline.process) is responsible for applying ctx's deadline, which
// is how the isolateExecutionTimeoutMs hard cap (spec.md §4.2 step 4) is
// enforced — Slot itself only honors whatever context it's given.
func (s *Slot) Activate(ctx context.Context, activation proto.WorkflowActivation) ([]proto.WorkflowCommand, error) {
	s.mu.Lock()
	rc := s.current
	s.mu.Unlock()

	if rc == nil {
		return nil, fmt.Errorf("sandbox: slot %d activated with no run context", s.id)
	}

	rc.Info.IsReplaying = activation.IsReplaying
	rc.Determinism.SetNow(activation.Now)

	fn, ok := s.bundle.Lookup(rc.Info.WorkflowType)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownWorkflowType, rc.Info.WorkflowType)
	}

	nonEviction, _ := activation.HasEviction()
	applyEffects(rc, nonEviction, s.logger)

	type result struct {
		commands []proto.WorkflowCommand
		err      error
	}
	done := make(chan result, 1)

	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- result{err: fmt.Errorf("sandbox: workflow %s panicked: %v", rc.Info.WorkflowType, p)}
			}
		}()
		commands, err := fn(rc, nonEviction)
		done <- result{commands: commands, err: err}
	}()

	select {
	case r := <-done:
		return r.commands, r.err
	case <-ctx.Done():
		return nil, fmt.Errorf("sandbox: activation for run %s exceeded execution timeout: %w", rc.Info.RunID, ctx.Err())
	}
}

// Dispose releases the slot's run state. The pool decides separately
// whether the underlying context is reset in place or recreated
// (spec.md §4.3 "dispose").
func (s *Slot) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
	s.inUse = false
}

func (s *Slot) reset(bundle Bundle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bundle = bundle
	s.current = nil
	s.inUse = false
}
