package worker

import (
	"log/slog"

	"github.com/tailored-agentic-units/worker-core/observability"
	"github.com/tailored-agentic-units/worker-core/sandbox"
)

// Option configures a Worker during New, applied before subsystem
// construction so overrides (logger, observer, injected dependencies) are
// visible to every subsystem built afterward — unlike the teacher's
// kernel.Option, which only overrides already-constructed subsystems, since
// here the overrides themselves shape how those subsystems get built.
type Option func(*Worker)

// WithLogger overrides the default slog.Default() logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Worker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithObserver overrides the default no-op observability.Observer.
func WithObserver(o observability.Observer) Option {
	return func(w *Worker) {
		if o != nil {
			w.observer = o
		}
	}
}

// WithDependency registers the host-side implementation of a `dependencies`
// worker option entry (spec.md §6). iface must match a key in
// config.WorkerOptions.Dependencies for its configured ApplyMode/
// CallDuringReplay to apply; otherwise the dependency is injected with
// {ApplySync, callDuringReplay: false}.
func WithDependency(iface string, fn sandbox.HostFunc) Option {
	return func(w *Worker) {
		w.dependencyFns[iface] = fn
	}
}
