package interceptor_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/tailored-agentic-units/worker-core/activity"
	"github.com/tailored-agentic-units/worker-core/core/payload"
	"github.com/tailored-agentic-units/worker-core/interceptor"
	"github.com/tailored-agentic-units/worker-core/observability"
)

type captureObserver struct {
	mu     sync.Mutex
	events []observability.Event
}

func (c *captureObserver) OnEvent(ctx context.Context, e observability.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *captureObserver) last() observability.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.events[len(c.events)-1]
}

func TestTracingInterceptor_Success(t *testing.T) {
	obs := &captureObserver{}
	factory := interceptor.NewTracingFactory(obs)
	ic := factory()

	fn := ic(func(actx *activity.Context, args []payload.Payload) (any, error) {
		return "done", nil
	})

	actx := &activity.Context{
		Context: context.Background(),
		Info:    activity.Info{ActivityType: "SendEmail", Attempt: 1},
	}
	result, err := fn(actx, nil)
	if err != nil {
		t.Fatalf("fn returned error: %v", err)
	}
	if result != "done" {
		t.Errorf("result = %v, want done", result)
	}

	if len(obs.events) != 1 {
		t.Fatalf("len(events) = %d, want 1", len(obs.events))
	}
	ev := obs.last()
	if ev.Type != interceptor.EventActivityInvoked {
		t.Errorf("event type = %s, want %s", ev.Type, interceptor.EventActivityInvoked)
	}
	if ev.Level != observability.LevelInfo {
		t.Errorf("level = %v, want LevelInfo on success", ev.Level)
	}
	if ev.Data["activity_type"] != "SendEmail" {
		t.Errorf("activity_type = %v, want SendEmail", ev.Data["activity_type"])
	}
	if _, ok := ev.Data["error"]; ok {
		t.Error("data should not carry an error key on success")
	}
}

func TestTracingInterceptor_Failure(t *testing.T) {
	obs := &captureObserver{}
	factory := interceptor.NewTracingFactory(obs)
	ic := factory()

	wantErr := errors.New("boom")
	fn := ic(func(actx *activity.Context, args []payload.Payload) (any, error) {
		return nil, wantErr
	})

	actx := &activity.Context{
		Context: context.Background(),
		Info:    activity.Info{ActivityType: "FlakyOp", Attempt: 3},
	}
	_, err := fn(actx, nil)
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}

	ev := obs.last()
	if ev.Level != observability.LevelError {
		t.Errorf("level = %v, want LevelError on failure", ev.Level)
	}
	if ev.Data["error"] != wantErr.Error() {
		t.Errorf("data[error] = %v, want %q", ev.Data["error"], wantErr.Error())
	}
	if ev.Data["attempt"] != int32(3) {
		t.Errorf("data[attempt] = %v, want 3", ev.Data["attempt"])
	}
}
