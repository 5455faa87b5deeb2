package pipeline_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/tailored-agentic-units/worker-core/activity"
	"github.com/tailored-agentic-units/worker-core/bridge"
	"github.com/tailored-agentic-units/worker-core/core/payload"
	"github.com/tailored-agentic-units/worker-core/core/proto"
	"github.com/tailored-agentic-units/worker-core/lifecycle"
	"github.com/tailored-agentic-units/worker-core/pipeline"
)

type fakeActivityBridge struct {
	mu          sync.Mutex
	tasks       []proto.ActivityTask
	next        int
	completions []proto.ActivityTaskCompletion
}

func (f *fakeActivityBridge) PollWorkflowActivation(ctx context.Context) (proto.WorkflowActivation, error) {
	<-ctx.Done()
	return proto.WorkflowActivation{}, bridge.ErrShutdown
}

func (f *fakeActivityBridge) PollActivityTask(ctx context.Context) (proto.ActivityTask, error) {
	f.mu.Lock()
	if f.next < len(f.tasks) {
		task := f.tasks[f.next]
		f.next++
		f.mu.Unlock()
		return task, nil
	}
	f.mu.Unlock()
	<-ctx.Done()
	return proto.ActivityTask{}, bridge.ErrShutdown
}

func (f *fakeActivityBridge) CompleteWorkflowActivation(ctx context.Context, c proto.WorkflowActivationCompletion) error {
	return nil
}

func (f *fakeActivityBridge) CompleteActivityTask(ctx context.Context, c proto.ActivityTaskCompletion) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completions = append(f.completions, c)
	return nil
}

func (f *fakeActivityBridge) RecordActivityHeartbeat(ctx context.Context, hb proto.Heartbeat) error {
	return nil
}
func (f *fakeActivityBridge) WorkerShutdown(ctx context.Context) error   { return nil }
func (f *fakeActivityBridge) CompleteShutdown(ctx context.Context) error { return nil }

func (f *fakeActivityBridge) completionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.completions)
}

func (f *fakeActivityBridge) completionAt(i int) proto.ActivityTaskCompletion {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.completions[i]
}

func waitForCompletions(t *testing.T, fb *fakeActivityBridge, n int) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for fb.completionCount() < n {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %d completions, have %d", n, fb.completionCount())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestActivityPipeline_HappyPath(t *testing.T) {
	if err := activity.Register("pipeline_test", "greet", func(actx *activity.Context, args []payload.Payload) (any, error) {
		return "hello", nil
	}); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}

	fb := &fakeActivityBridge{tasks: []proto.ActivityTask{
		{TaskToken: []byte("t1"), Variant: proto.ActivityStart, ActivityType: [2]string{"pipeline_test", "greet"}},
	}}
	runner := activity.NewRunner(payload.JSONConverter{}, nil, "")
	controller := runningController(t)
	counters := &lifecycle.Counters{}

	p := pipeline.NewActivityPipeline(pipeline.ActivityPipelineConfig{
		MaxConcurrentTaskExecutions: 2,
		MaxConcurrentTaskPolls:      1,
	}, fb, runner, controller, counters, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	stop := make(chan struct{})
	go p.Run(ctx, stop)

	waitForCompletions(t, fb, 1)
	c := fb.completionAt(0)
	if c.Completed == nil {
		t.Fatalf("expected completed result, got %+v", c)
	}
	if counters.Activities() != 0 {
		t.Errorf("Activities() = %d, want 0 after completion", counters.Activities())
	}
	close(stop)
}

func TestActivityPipeline_UnregisteredType(t *testing.T) {
	fb := &fakeActivityBridge{tasks: []proto.ActivityTask{
		{TaskToken: []byte("t2"), Variant: proto.ActivityStart, ActivityType: [2]string{"nope", "Missing"}},
	}}
	runner := activity.NewRunner(payload.JSONConverter{}, nil, "")
	controller := runningController(t)
	counters := &lifecycle.Counters{}

	p := pipeline.NewActivityPipeline(pipeline.ActivityPipelineConfig{
		MaxConcurrentTaskExecutions: 1,
		MaxConcurrentTaskPolls:      1,
	}, fb, runner, controller, counters, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	stop := make(chan struct{})
	go p.Run(ctx, stop)

	waitForCompletions(t, fb, 1)
	c := fb.completionAt(0)
	if c.Failed == nil {
		t.Fatalf("expected failed completion for unregistered type, got %+v", c)
	}
	close(stop)
}

func TestActivityPipeline_CancelBeforeStartIgnored(t *testing.T) {
	fb := &fakeActivityBridge{tasks: []proto.ActivityTask{
		{TaskToken: []byte("t3"), Variant: proto.ActivityCancel},
	}}
	runner := activity.NewRunner(payload.JSONConverter{}, nil, "")
	controller := runningController(t)
	counters := &lifecycle.Counters{}

	p := pipeline.NewActivityPipeline(pipeline.ActivityPipelineConfig{
		MaxConcurrentTaskExecutions: 1,
		MaxConcurrentTaskPolls:      1,
	}, fb, runner, controller, counters, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	stop := make(chan struct{})
	go p.Run(ctx, stop)

	<-ctx.Done()
	if fb.completionCount() != 0 {
		t.Errorf("completionCount() = %d, want 0 for a stray cancel", fb.completionCount())
	}
	if counters.Activities() != 0 {
		t.Errorf("Activities() = %d, want 0", counters.Activities())
	}
	close(stop)
}
