package pipeline_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tailored-agentic-units/worker-core/bridge"
	"github.com/tailored-agentic-units/worker-core/core/proto"
	"github.com/tailored-agentic-units/worker-core/lifecycle"
	"github.com/tailored-agentic-units/worker-core/pipeline"
	"github.com/tailored-agentic-units/worker-core/sandbox"
)

// fakeWorkflowBridge feeds a fixed sequence of activations to one poll call
// per entry, blocking forever (until ctx is cancelled) once exhausted, and
// records every completion it receives.
type fakeWorkflowBridge struct {
	mu          sync.Mutex
	activations []proto.WorkflowActivation
	next        int
	completions []proto.WorkflowActivationCompletion
	rejectRunID string
}

func (f *fakeWorkflowBridge) PollWorkflowActivation(ctx context.Context) (proto.WorkflowActivation, error) {
	f.mu.Lock()
	if f.next < len(f.activations) {
		a := f.activations[f.next]
		f.next++
		f.mu.Unlock()
		return a, nil
	}
	f.mu.Unlock()
	<-ctx.Done()
	return proto.WorkflowActivation{}, bridge.ErrShutdown
}

func (f *fakeWorkflowBridge) PollActivityTask(ctx context.Context) (proto.ActivityTask, error) {
	<-ctx.Done()
	return proto.ActivityTask{}, bridge.ErrShutdown
}

func (f *fakeWorkflowBridge) CompleteWorkflowActivation(ctx context.Context, c proto.WorkflowActivationCompletion) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completions = append(f.completions, c)
	if f.rejectRunID != "" && c.RunID == f.rejectRunID {
		f.rejectRunID = ""
		return &bridge.WorkflowError{RunID: c.RunID, Cause: errors.New("rejected")}
	}
	return nil
}

func (f *fakeWorkflowBridge) CompleteActivityTask(ctx context.Context, c proto.ActivityTaskCompletion) error {
	return nil
}
func (f *fakeWorkflowBridge) RecordActivityHeartbeat(ctx context.Context, hb proto.Heartbeat) error {
	return nil
}
func (f *fakeWorkflowBridge) WorkerShutdown(ctx context.Context) error   { return nil }
func (f *fakeWorkflowBridge) CompleteShutdown(ctx context.Context) error { return nil }

func (f *fakeWorkflowBridge) completionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.completions)
}

func (f *fakeWorkflowBridge) completionAt(i int) proto.WorkflowActivationCompletion {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.completions[i]
}

func echoWorkflow(rc *sandbox.RunContext, jobs []proto.Job) ([]proto.WorkflowCommand, error) {
	return []proto.WorkflowCommand{{Kind: "noop"}}, nil
}

func newTestPool(t *testing.T, workflowType string, fn sandbox.WorkflowFunc) *sandbox.Pool {
	t.Helper()
	bundle := sandbox.Bundle{Workflows: map[string]sandbox.WorkflowFunc{workflowType: fn}}
	return sandbox.NewPool(2, bundle, 64, nil)
}

func runningController(t *testing.T) *lifecycle.Controller {
	t.Helper()
	c := lifecycle.NewController(nil)
	if err := c.Transition(lifecycle.Running); err != nil {
		t.Fatalf("Transition(RUNNING) failed: %v", err)
	}
	return c
}

func TestWorkflowPipeline_HappyPath(t *testing.T) {
	fb := &fakeWorkflowBridge{activations: []proto.WorkflowActivation{
		{RunID: "r1", Jobs: []proto.Job{{Kind: proto.JobStartWorkflow, WorkflowID: "wf1", WorkflowType: "echo", RandomnessSeed: 7}}}},
	}
	pool := newTestPool(t, "echo", echoWorkflow)
	controller := runningController(t)
	counters := &lifecycle.Counters{}

	p := pipeline.NewWorkflowPipeline(pipeline.WorkflowPipelineConfig{
		MaxConcurrentTaskExecutions: 2,
		MaxConcurrentTaskPolls:      1,
	}, fb, pool, controller, counters, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	stop := make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx, stop) }()

	deadline := time.After(time.Second)
	for fb.completionCount() < 1 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for completion")
		case <-time.After(5 * time.Millisecond):
		}
	}

	c := fb.completionAt(0)
	if c.RunID != "r1" {
		t.Errorf("RunID = %q, want r1", c.RunID)
	}
	if c.Successful == nil {
		t.Fatalf("expected successful completion, got %+v", c)
	}
	if counters.Activations() != 0 {
		t.Errorf("Activations() = %d, want 0", counters.Activations())
	}
	if counters.Workflows() != 1 {
		t.Errorf("Workflows() = %d, want 1 (handle kept open, no eviction yet)", counters.Workflows())
	}

	close(stop)
	cancel()
	<-done
}

func TestWorkflowPipeline_EvictionClosesGroup(t *testing.T) {
	fb := &fakeWorkflowBridge{activations: []proto.WorkflowActivation{
		{RunID: "r1", Jobs: []proto.Job{{Kind: proto.JobStartWorkflow, WorkflowID: "wf1", WorkflowType: "echo", RandomnessSeed: 7}}},
		{RunID: "r1", Jobs: []proto.Job{{Kind: proto.JobRemoveFromCache}}},
	}}
	pool := newTestPool(t, "echo", echoWorkflow)
	controller := runningController(t)
	counters := &lifecycle.Counters{}

	p := pipeline.NewWorkflowPipeline(pipeline.WorkflowPipelineConfig{
		MaxConcurrentTaskExecutions: 2,
		MaxConcurrentTaskPolls:      1,
	}, fb, pool, controller, counters, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	stop := make(chan struct{})
	go p.Run(ctx, stop)

	deadline := time.After(time.Second)
	for fb.completionCount() < 2 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for both completions")
		case <-time.After(5 * time.Millisecond):
		}
	}

	if counters.Workflows() != 0 {
		t.Errorf("Workflows() after eviction = %d, want 0", counters.Workflows())
	}
	live := p.LiveRunIDs()
	if len(live) != 0 {
		t.Errorf("LiveRunIDs() after eviction = %v, want empty", live)
	}
	close(stop)
}

func TestWorkflowPipeline_MalformedActivation(t *testing.T) {
	fb := &fakeWorkflowBridge{activations: []proto.WorkflowActivation{{RunID: "r1"}}}
	pool := newTestPool(t, "echo", echoWorkflow)
	controller := runningController(t)
	counters := &lifecycle.Counters{}

	p := pipeline.NewWorkflowPipeline(pipeline.WorkflowPipelineConfig{
		MaxConcurrentTaskExecutions: 1,
		MaxConcurrentTaskPolls:      1,
	}, fb, pool, controller, counters, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	stop := make(chan struct{})
	go p.Run(ctx, stop)

	deadline := time.After(time.Second)
	for fb.completionCount() < 1 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for completion")
		case <-time.After(5 * time.Millisecond):
		}
	}

	c := fb.completionAt(0)
	if c.Failed == nil {
		t.Fatalf("expected failed completion for empty activation, got %+v", c)
	}
	close(stop)
}

func TestWorkflowPipeline_BareEvictionOnUnknownRunClosesCleanly(t *testing.T) {
	fb := &fakeWorkflowBridge{activations: []proto.WorkflowActivation{proto.NewEvictionActivation("never-started")}}
	pool := newTestPool(t, "echo", echoWorkflow)
	controller := runningController(t)
	counters := &lifecycle.Counters{}

	p := pipeline.NewWorkflowPipeline(pipeline.WorkflowPipelineConfig{
		MaxConcurrentTaskExecutions: 1,
		MaxConcurrentTaskPolls:      1,
	}, fb, pool, controller, counters, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	stop := make(chan struct{})
	go p.Run(ctx, stop)

	deadline := time.After(time.Second)
	for fb.completionCount() < 1 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for completion")
		case <-time.After(5 * time.Millisecond):
		}
	}

	c := fb.completionAt(0)
	if c.Failed != nil {
		t.Fatalf("expected a clean successful completion for a bare eviction on an unknown run, got failure: %+v", c.Failed)
	}
	if c.Successful == nil {
		t.Fatalf("expected Successful to be set, got %+v", c)
	}
	if len(p.LiveRunIDs()) != 0 {
		t.Errorf("LiveRunIDs() = %v, want no live groups after the eviction closes", p.LiveRunIDs())
	}
	close(stop)
}

func TestWorkflowPipeline_WorkflowErrorReinjectsEviction(t *testing.T) {
	fb := &fakeWorkflowBridge{
		activations: []proto.WorkflowActivation{
			{RunID: "r1", Jobs: []proto.Job{{Kind: proto.JobStartWorkflow, WorkflowID: "wf1", WorkflowType: "echo", RandomnessSeed: 7}}},
		},
		rejectRunID: "r1",
	}
	pool := newTestPool(t, "echo", echoWorkflow)
	controller := runningController(t)
	counters := &lifecycle.Counters{}

	p := pipeline.NewWorkflowPipeline(pipeline.WorkflowPipelineConfig{
		MaxConcurrentTaskExecutions: 2,
		MaxConcurrentTaskPolls:      1,
	}, fb, pool, controller, counters, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	stop := make(chan struct{})
	go p.Run(ctx, stop)

	// First completion is rejected (synthetic WorkflowError); the pipeline
	// must re-inject an eviction, producing a second completion that closes
	// the group.
	deadline := time.After(2 * time.Second)
	for fb.completionCount() < 2 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for re-injected eviction completion")
		case <-time.After(5 * time.Millisecond):
		}
	}

	second := fb.completionAt(1)
	if second.RunID != "r1" {
		t.Errorf("re-injected completion RunID = %q, want r1", second.RunID)
	}
	close(stop)
}
