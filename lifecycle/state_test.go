package lifecycle_test

import (
	"errors"
	"testing"
	"time"

	"github.com/tailored-agentic-units/worker-core/lifecycle"
)

func TestController_LegalTransitions(t *testing.T) {
	c := lifecycle.NewController(nil)

	steps := []lifecycle.State{
		lifecycle.Running,
		lifecycle.Suspended,
		lifecycle.Running,
		lifecycle.Stopping,
		lifecycle.Draining,
		lifecycle.Drained,
		lifecycle.Stopped,
	}
	for _, next := range steps {
		if err := c.Transition(next); err != nil {
			t.Fatalf("Transition(%s) failed: %v", next, err)
		}
	}
	if got := c.State(); got != lifecycle.Stopped {
		t.Errorf("final state = %s, want %s", got, lifecycle.Stopped)
	}
}

func TestController_IllegalTransition(t *testing.T) {
	c := lifecycle.NewController(nil)
	if err := c.Transition(lifecycle.Draining); err == nil {
		t.Error("Transition(DRAINING) from INITIALIZED expected error, got nil")
	}
}

func TestController_Fail_AnyState(t *testing.T) {
	c := lifecycle.NewController(nil)
	if err := c.Transition(lifecycle.Running); err != nil {
		t.Fatalf("Transition(RUNNING) failed: %v", err)
	}

	cause := errors.New("boom")
	c.Fail(cause)

	if got := c.State(); got != lifecycle.Failed {
		t.Errorf("state after Fail() = %s, want %s", got, lifecycle.Failed)
	}
}

func TestController_WaitFor(t *testing.T) {
	c := lifecycle.NewController(nil)
	done := make(chan error, 1)
	go func() { done <- c.WaitFor(lifecycle.Running, nil) }()

	time.Sleep(10 * time.Millisecond)
	if err := c.Transition(lifecycle.Running); err != nil {
		t.Fatalf("Transition(RUNNING) failed: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("WaitFor() returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("WaitFor() did not return after transition")
	}
}

func TestController_WaitFor_Failed(t *testing.T) {
	c := lifecycle.NewController(nil)
	done := make(chan error, 1)
	go func() { done <- c.WaitFor(lifecycle.Running, nil) }()

	time.Sleep(10 * time.Millisecond)
	c.Fail(errors.New("fatal"))

	select {
	case err := <-done:
		if err == nil {
			t.Error("WaitFor() expected error after Fail(), got nil")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("WaitFor() did not return after Fail()")
	}
}

func TestAwaitPollable(t *testing.T) {
	c := lifecycle.NewController(nil)
	if err := c.Transition(lifecycle.Running); err != nil {
		t.Fatalf("Transition(RUNNING) failed: %v", err)
	}
	if !c.AwaitPollable(nil) {
		t.Error("AwaitPollable() in RUNNING = false, want true")
	}

	if err := c.Transition(lifecycle.Stopping); err != nil {
		t.Fatalf("Transition(STOPPING) failed: %v", err)
	}
	if err := c.Transition(lifecycle.Draining); err != nil {
		t.Fatalf("Transition(DRAINING) failed: %v", err)
	}
	if err := c.Transition(lifecycle.Drained); err != nil {
		t.Fatalf("Transition(DRAINED) failed: %v", err)
	}
	if c.AwaitPollable(nil) {
		t.Error("AwaitPollable() in DRAINED = true, want false")
	}
}

func TestAwaitPollable_Suspended(t *testing.T) {
	c := lifecycle.NewController(nil)
	if err := c.Transition(lifecycle.Running); err != nil {
		t.Fatalf("Transition(RUNNING) failed: %v", err)
	}
	if err := c.Transition(lifecycle.Suspended); err != nil {
		t.Fatalf("Transition(SUSPENDED) failed: %v", err)
	}

	result := make(chan bool, 1)
	go func() { result <- c.AwaitPollable(nil) }()

	time.Sleep(10 * time.Millisecond)
	if err := c.Transition(lifecycle.Running); err != nil {
		t.Fatalf("Transition(RUNNING) failed: %v", err)
	}

	select {
	case ok := <-result:
		if !ok {
			t.Error("AwaitPollable() after resume = false, want true")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("AwaitPollable() did not return after resume")
	}
}
