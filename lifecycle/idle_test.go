package lifecycle_test

import (
	"testing"
	"time"

	"github.com/tailored-agentic-units/worker-core/lifecycle"
)

func TestWatchIdle_FiresWhenQuiescent(t *testing.T) {
	c := lifecycle.NewController(nil)
	counters := &lifecycle.Counters{}
	counters.IncActivations()

	fired := make(chan struct{})
	go lifecycle.WatchIdle(c, counters, nil, func() { close(fired) })

	advance(t, c, lifecycle.Running, lifecycle.Stopping, lifecycle.Draining)

	select {
	case <-fired:
		t.Fatal("WatchIdle fired while activations in-flight")
	case <-time.After(50 * time.Millisecond):
	}

	counters.DecActivations()

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("WatchIdle did not fire once idle")
	}
}
