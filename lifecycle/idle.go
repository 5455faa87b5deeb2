package lifecycle

import "time"

// idlePollInterval is how often the idle detector re-checks the in-flight
// activation gauge while DRAINING. A reactive (channel-notified) combinator
// would avoid the poll, but the gauge is mutated from many goroutines across
// the pipeline engine and a short poll is simpler and cheap at this
// frequency (spec.md §4.1 only requires the signal fire once, not
// immediately).
const idlePollInterval = 20 * time.Millisecond

// WatchIdle blocks until the controller reaches DRAINING and the
// activation gauge reads zero, then calls onIdle exactly once (spec.md
// §4.1: "emits once when state == DRAINING && inFlightActivations == 0").
// onIdle is expected to synthesize a terminal removeFromCache activation
// per still-live workflow group. Returns early, without calling onIdle, if
// stop fires first.
func WatchIdle(controller *Controller, counters *Counters, stop <-chan struct{}, onIdle func()) {
	if err := controller.WaitFor(Draining, stop); err != nil {
		return
	}

	ticker := time.NewTicker(idlePollInterval)
	defer ticker.Stop()

	for {
		if controller.State() != Draining {
			return
		}
		if counters.Activations() == 0 {
			onIdle()
			return
		}
		select {
		case <-ticker.C:
		case <-stop:
			return
		}
	}
}
