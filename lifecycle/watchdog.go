package lifecycle

import (
	"errors"
	"time"
)

// ErrGracefulShutdownPeriodExpired is the fatal error raised when the
// configured shutdownGraceTimeMs elapses before the worker reaches DRAINED
// (spec.md §4.1).
var ErrGracefulShutdownPeriodExpired = errors.New("lifecycle: graceful shutdown period expired")

// Watchdog starts a timer the moment the controller enters STOPPING and
// fails the worker if DRAINED isn't reached before grace elapses (spec.md
// §4.1: "The watchdog: when state becomes STOPPING, start a timer of
// configured shutdownGraceTimeMs; if state has not reached DRAINED when it
// fires, fail the worker").
type Watchdog struct {
	controller *Controller
	grace      time.Duration
}

// NewWatchdog builds a Watchdog bound to controller with the given grace
// period.
func NewWatchdog(controller *Controller, grace time.Duration) *Watchdog {
	return &Watchdog{controller: controller, grace: grace}
}

// Run blocks until the controller reaches STOPPING, then races the grace
// timer against DRAINED. It returns once either DRAINED is reached (nil) or
// the grace period expires (the worker is failed and the error returned).
// stop cancels the wait early (e.g. the worker already reached STOPPED
// through some other path).
func (w *Watchdog) Run(stop <-chan struct{}) error {
	if err := w.controller.WaitFor(Stopping, stop); err != nil {
		return nil
	}

	timer := time.NewTimer(w.grace)
	defer timer.Stop()

	drained := make(chan error, 1)
	go func() { drained <- w.controller.WaitFor(Drained, stop) }()

	select {
	case err := <-drained:
		return err
	case <-timer.C:
		w.controller.Fail(ErrGracefulShutdownPeriodExpired)
		return ErrGracefulShutdownPeriodExpired
	case <-stop:
		return nil
	}
}
