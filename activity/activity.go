// Package activity implements the activity runner (spec.md §4.5, C5): per
// task-token execution state, argument decoding, heartbeat forwarding,
// cancellation via context, and result encoding.
package activity

import (
	"context"
	"time"

	"github.com/tailored-agentic-units/worker-core/core/payload"
)

// Info is the read-only metadata available to a running activity, built
// from the start variant of an ActivityTask (spec.md §4.5: "construct an
// ActivityInfo carrying decoded timeouts, attempt number, heartbeat
// details, workflow context, and the configured activity namespace").
type Info struct {
	ActivityID             string
	ActivityType           string
	Attempt                int32
	ScheduleToCloseTimeout time.Duration
	StartToCloseTimeout    time.Duration
	HeartbeatTimeout       time.Duration
	HeartbeatDetails       []any
	Namespace              string
	WorkflowNamespace      string
	WorkflowType           string
	WorkflowRunID          string
}

// HeartbeatFunc records activity progress; implementations enqueue onto the
// heartbeat channel (C8) rather than calling the bridge directly.
type HeartbeatFunc func(details ...any)

// Context is the per-execution handle passed to a Func. Cancellation is
// observed through the embedded context.Context's Done channel — the
// "shared abort token" of spec.md §4.5 is simply ctx.Done(), set when a
// cancel variant arrives for this task token.
type Context struct {
	context.Context
	Info      Info
	Heartbeat HeartbeatFunc
	Converter payload.Converter
}

// Func is user activity code: decode args itself via actx.Converter, return
// a value to be encoded as the completion payload, or an error.
type Func func(actx *Context, args []payload.Payload) (any, error)

// Interceptor wraps a Func with inbound-activity middleware (spec.md §6
// "interceptors.activityInbound"), e.g. logging, metrics, retry policy
// injection. Applied innermost-first so the first interceptor in a chain
// runs outermost.
type Interceptor func(next Func) Func

// Chain composes interceptors around fn, outermost first.
func Chain(fn Func, interceptors ...Interceptor) Func {
	for i := len(interceptors) - 1; i >= 0; i-- {
		fn = interceptors[i](fn)
	}
	return fn
}
