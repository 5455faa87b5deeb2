package sandbox

import (
	"context"
	"log/slog"
)

// ApplyMode controls how an injected host function is invoked from inside
// the sandbox (spec.md §4.3).
type ApplyMode int

const (
	// ApplySync calls the host function synchronously; the return value is
	// marshalled back and exceptions propagate to the caller.
	ApplySync ApplyMode = iota
	// ApplySyncIgnored fires the host function synchronously but does not
	// propagate its return value or error; errors are logged.
	ApplySyncIgnored
	// ApplyAsync awaits the host function's result before resuming.
	ApplyAsync
	// ApplyAsyncIgnored starts the host function but does not wait for it;
	// errors are logged when it eventually completes.
	ApplyAsyncIgnored
)

// HostFunc is a host-side function bound into the sandbox as a global or a
// dependency implementation.
type HostFunc func(ctx context.Context, args ...any) (any, error)

type binding struct {
	fn               HostFunc
	mode             ApplyMode
	callDuringReplay bool
}

// Bindings holds the globals and external dependencies injected into one
// RunContext (spec.md §4.3 injectGlobal / injectDependency).
type Bindings struct {
	globals      map[string]binding
	dependencies map[string]binding
	logger       *slog.Logger
}

func newBindings(logger *slog.Logger) *Bindings {
	return &Bindings{
		globals:      make(map[string]binding),
		dependencies: make(map[string]binding),
		logger:       logger,
	}
}

// InjectGlobal binds fn as a sandbox global under name.
func (b *Bindings) InjectGlobal(name string, fn HostFunc, mode ApplyMode) {
	b.globals[name] = binding{fn: fn, mode: mode, callDuringReplay: true}
}

// InjectDependency binds fn as the implementation of an external dependency
// call. When callDuringReplay is false, the call is skipped on replaying
// activations (spec.md §4.3: "On replay activations, skip unless
// callDuringReplay = true").
func (b *Bindings) InjectDependency(iface string, fn HostFunc, mode ApplyMode, callDuringReplay bool) {
	b.dependencies[iface] = binding{fn: fn, mode: mode, callDuringReplay: callDuringReplay}
}

// CallDependency invokes a previously injected dependency honoring its apply
// mode and replay gating. Workflow code (or the activator on its behalf)
// calls this instead of reaching the host function directly.
func (b *Bindings) CallDependency(ctx context.Context, iface string, isReplaying bool, args ...any) (any, error) {
	bind, ok := b.dependencies[iface]
	if !ok {
		return nil, &DeterminismViolationError{Primitive: "undeclared dependency " + iface}
	}

	if isReplaying && !bind.callDuringReplay {
		return nil, nil
	}

	return b.invoke(ctx, bind, args...)
}

// CallGlobal invokes a previously injected global the same way.
func (b *Bindings) CallGlobal(ctx context.Context, name string, args ...any) (any, error) {
	bind, ok := b.globals[name]
	if !ok {
		return nil, &DeterminismViolationError{Primitive: "undeclared global " + name}
	}
	return b.invoke(ctx, bind, args...)
}

func (b *Bindings) invoke(ctx context.Context, bind binding, args ...any) (any, error) {
	switch bind.mode {
	case ApplySync, ApplyAsync:
		return bind.fn(ctx, args...)
	case ApplySyncIgnored:
		if _, err := bind.fn(ctx, args...); err != nil {
			b.logger.Error("ignored sync injection failed", slog.String("error", err.Error()))
		}
		return nil, nil
	case ApplyAsyncIgnored:
		go func() {
			if _, err := bind.fn(context.WithoutCancel(ctx), args...); err != nil {
				b.logger.Error("ignored async injection failed", slog.String("error", err.Error()))
			}
		}()
		return nil, nil
	default:
		return bind.fn(ctx, args...)
	}
}
