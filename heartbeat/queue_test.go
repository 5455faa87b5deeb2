package heartbeat_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tailored-agentic-units/worker-core/core/proto"
	"github.com/tailored-agentic-units/worker-core/heartbeat"
)

type fakeBridgeRecorder struct {
	mu       sync.Mutex
	received []proto.Heartbeat
	failNext bool
}

func (f *fakeBridgeRecorder) RecordActivityHeartbeat(_ context.Context, hb proto.Heartbeat) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		return errors.New("record failed")
	}
	f.received = append(f.received, hb)
	return nil
}

func (f *fakeBridgeRecorder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.received)
}

func TestQueue_EnqueueAfterClose(t *testing.T) {
	q := heartbeat.NewQueue()
	q.Close()
	q.Enqueue(proto.Heartbeat{TaskToken: []byte("x")})
}

func TestConsumer_ForwardsAndStopsOnClose(t *testing.T) {
	q := heartbeat.NewQueue()
	recorder := &fakeBridgeRecorder{}

	for i := 0; i < 3; i++ {
		q.Enqueue(proto.Heartbeat{TaskToken: []byte("token")})
	}

	consumer := heartbeat.NewConsumer(q, recorderBridge{recorder}, nil)
	done := make(chan struct{})
	go func() {
		consumer.Run(context.Background())
		close(done)
	}()

	q.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Consumer.Run did not return after Close")
	}

	if got := recorder.count(); got != 3 {
		t.Errorf("heartbeats forwarded = %d, want 3", got)
	}
}

// recorderBridge satisfies bridge.Bridge for the one method Consumer calls;
// every other method is unreachable in this test.
type recorderBridge struct{ r *fakeBridgeRecorder }

func (recorderBridge) PollWorkflowActivation(context.Context) (proto.WorkflowActivation, error) {
	panic("unused")
}
func (recorderBridge) PollActivityTask(context.Context) (proto.ActivityTask, error) {
	panic("unused")
}
func (recorderBridge) CompleteWorkflowActivation(context.Context, proto.WorkflowActivationCompletion) error {
	panic("unused")
}
func (recorderBridge) CompleteActivityTask(context.Context, proto.ActivityTaskCompletion) error {
	panic("unused")
}
func (b recorderBridge) RecordActivityHeartbeat(ctx context.Context, hb proto.Heartbeat) error {
	return b.r.RecordActivityHeartbeat(ctx, hb)
}
func (recorderBridge) WorkerShutdown(context.Context) error   { panic("unused") }
func (recorderBridge) CompleteShutdown(context.Context) error { panic("unused") }
