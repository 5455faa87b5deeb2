package lifecycle

import "time"

// suspendedPollInterval is how often AwaitPollable re-checks the state while
// SUSPENDED. SUSPENDED can be left for RUNNING or STOPPING, and WaitFor only
// wakes on a single target state, so the gate polls instead.
const suspendedPollInterval = 10 * time.Millisecond

// AwaitPollable implements the pipeline engine's shared poll loop gate
// (spec.md §4.1: "the shared poll loop inspects current state before every
// call. RUNNING | STOPPING | DRAINING -> call poll; SUSPENDED -> await exit
// from SUSPENDED; anything else -> terminate the loop."). Returns true when
// the caller should issue the next poll, false when the poll loop should
// terminate.
func (c *Controller) AwaitPollable(stop <-chan struct{}) bool {
	for {
		switch c.State() {
		case Running, Stopping, Draining:
			return true
		case Suspended:
			select {
			case <-time.After(suspendedPollInterval):
			case <-stop:
				return false
			}
		default:
			return false
		}
	}
}
