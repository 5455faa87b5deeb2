package bridge

import (
	"errors"
	"fmt"

	"connectrpc.com/connect"
)

// ErrShutdown is returned by poll calls once the bridge has begun draining
// (spec.md §6: "returns ShutdownError once bridge is draining"). It is
// caught inside the poll loop and converted to stream completion — it is
// never fatal to the worker (spec.md §7).
var ErrShutdown = connect.NewError(connect.CodeUnavailable, errors.New("bridge is shutting down"))

// IsShutdown reports whether err is (or wraps) ErrShutdown.
func IsShutdown(err error) bool {
	return errors.Is(err, ErrShutdown) || connect.CodeOf(err) == connect.CodeUnavailable
}

// WorkflowError is a per-run failure returned by CompleteWorkflowActivation.
// Not fatal: the pipeline engine converts it into a synthetic eviction
// activation for RunID (spec.md §4.2, §7).
type WorkflowError struct {
	RunID string
	Cause error
}

func (e *WorkflowError) Error() string {
	return fmt.Sprintf("bridge: workflow completion rejected for run %s: %v", e.RunID, e.Cause)
}

func (e *WorkflowError) Unwrap() error { return e.Cause }

// AsWorkflowError reports whether err is a *WorkflowError and returns it.
func AsWorkflowError(err error) (*WorkflowError, bool) {
	var we *WorkflowError
	if errors.As(err, &we) {
		return we, true
	}
	return nil, false
}

// wrapFatal marks any other bridge failure the way a connect RPC client
// would report a transport failure — used so the lifecycle controller can
// treat "anything that isn't Shutdown or WorkflowError" uniformly as fatal
// (spec.md §7), while still carrying a connect.Code for diagnostics.
func wrapFatal(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsShutdown(err) {
		return err
	}
	if _, ok := AsWorkflowError(err); ok {
		return err
	}
	return connect.NewError(connect.CodeInternal, fmt.Errorf("bridge: %s: %w", op, err))
}
