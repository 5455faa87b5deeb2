// Package lifecycle implements the worker's eight-state lifecycle state
// machine (spec.md §3 WorkerState, §4.1 C7): legal transitions, broadcast
// notification of every transition, OS signal wiring, the graceful-drain
// watchdog, and idle detection.
package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tailored-agentic-units/worker-core/observability"
)

// State is one of the eight worker lifecycle states (spec.md §3).
type State string

const (
	Initialized State = "INITIALIZED"
	Running     State = "RUNNING"
	Suspended   State = "SUSPENDED"
	Stopping    State = "STOPPING"
	Draining    State = "DRAINING"
	Drained     State = "DRAINED"
	Stopped     State = "STOPPED"
	Failed      State = "FAILED"
)

// legalTransitions enumerates every allowed edge (spec.md §4.1's diagram).
// FAILED is reachable from any state and is handled separately in
// Controller.Fail rather than listed here for every source state.
var legalTransitions = map[State][]State{
	Initialized: {Running},
	Running:     {Suspended, Stopping},
	Suspended:   {Running, Stopping},
	Stopping:    {Draining},
	Draining:    {Drained},
	Drained:     {Stopped},
}

// EventStateTransition is the observability.Event type emitted on every
// legal transition (spec.md §3: "every transition is broadcast").
const EventStateTransition observability.EventType = "lifecycle.state_transition"

// Controller owns the current WorkerState and serializes every transition,
// satisfying spec.md §5's "state transitions are globally serialized; every
// observer sees them in the same total order".
type Controller struct {
	mu       sync.Mutex
	state    State
	observer observability.Observer

	waiters map[State][]chan struct{}
}

// NewController creates a Controller starting in INITIALIZED.
func NewController(observer observability.Observer) *Controller {
	if observer == nil {
		observer = observability.NoOpObserver{}
	}
	return &Controller{
		state:    Initialized,
		observer: observer,
		waiters:  make(map[State][]chan struct{}),
	}
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Transition moves the controller to next if the edge is legal, broadcasts
// the change, and wakes any WaitFor callers blocked on next. Illegal edges
// return an error rather than panicking, since a bad transition attempt is
// caller error the worker façade should be able to surface, not a crash.
func (c *Controller) Transition(next State) error {
	c.mu.Lock()

	if !isLegal(c.state, next) {
		cur := c.state
		c.mu.Unlock()
		return fmt.Errorf("lifecycle: illegal transition %s -> %s", cur, next)
	}

	prev := c.state
	c.state = next
	woken := c.waiters[next]
	delete(c.waiters, next)
	c.mu.Unlock()

	c.observer.OnEvent(context.Background(), observability.Event{
		Type:      EventStateTransition,
		Level:     observability.LevelInfo,
		Timestamp: time.Now(),
		Source:    "lifecycle",
		Data: map[string]any{
			"from": string(prev),
			"to":   string(next),
		},
	})

	for _, w := range woken {
		close(w)
	}
	return nil
}

// Fail forces an unconditional transition to FAILED (spec.md §4.1: "ANY ->
// (fatal error) -> FAILED"), bypassing legalTransitions since FAILED is
// reachable from every state.
func (c *Controller) Fail(cause error) {
	c.mu.Lock()
	prev := c.state
	if prev == Failed {
		c.mu.Unlock()
		return
	}
	c.state = Failed
	var woken []chan struct{}
	for _, ws := range c.waiters {
		woken = append(woken, ws...)
	}
	c.waiters = make(map[State][]chan struct{})
	c.mu.Unlock()

	data := map[string]any{"from": string(prev), "to": string(Failed)}
	if cause != nil {
		data["error"] = cause.Error()
	}
	c.observer.OnEvent(context.Background(), observability.Event{
		Type:      EventStateTransition,
		Level:     observability.LevelError,
		Timestamp: time.Now(),
		Source:    "lifecycle",
		Data:      data,
	})

	for _, w := range woken {
		close(w)
	}
}

// WaitFor blocks until the controller reaches target (or FAILED, returned
// as an error) or ctxDone fires.
func (c *Controller) WaitFor(target State, ctxDone <-chan struct{}) error {
	c.mu.Lock()
	if c.state == target {
		c.mu.Unlock()
		return nil
	}
	if c.state == Failed && target != Failed {
		c.mu.Unlock()
		return fmt.Errorf("lifecycle: worker failed while waiting for %s", target)
	}

	ch := make(chan struct{})
	c.waiters[target] = append(c.waiters[target], ch)
	c.mu.Unlock()

	select {
	case <-ch:
		if c.State() == Failed && target != Failed {
			return fmt.Errorf("lifecycle: worker failed while waiting for %s", target)
		}
		return nil
	case <-ctxDone:
		return fmt.Errorf("lifecycle: wait for %s cancelled", target)
	}
}

func isLegal(from, to State) bool {
	for _, candidate := range legalTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}
