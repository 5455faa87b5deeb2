package interceptor

import (
	"context"
	"time"

	"github.com/tailored-agentic-units/worker-core/activity"
	"github.com/tailored-agentic-units/worker-core/core/payload"
	"github.com/tailored-agentic-units/worker-core/observability"
)

// EventActivityInvoked is emitted around every activity Func call when the
// "tracing" interceptor is in the activityInbound chain.
const EventActivityInvoked observability.EventType = "interceptor.activity_invoked"

func init() {
	Register("tracing", NewTracingFactory(observability.NoOpObserver{}))
}

// NewTracingFactory builds a Factory whose interceptor reports one
// observability.Event per activity invocation, carrying the activity type,
// duration, and outcome. Re-register "tracing" with a real observer bound in
// (interceptor.Register("tracing", interceptor.NewTracingFactory(obs))) to
// route these events anywhere but the default no-op sink.
func NewTracingFactory(observer observability.Observer) Factory {
	return func() activity.Interceptor {
		return func(next activity.Func) activity.Func {
			return func(actx *activity.Context, args []payload.Payload) (any, error) {
				start := time.Now()
				result, err := next(actx, args)

				data := map[string]any{
					"activity_type": actx.Info.ActivityType,
					"attempt":       actx.Info.Attempt,
					"duration_ms":   time.Since(start).Milliseconds(),
				}
				level := observability.LevelInfo
				if err != nil {
					level = observability.LevelError
					data["error"] = err.Error()
				}

				observer.OnEvent(context.WithoutCancel(actx.Context), observability.Event{
					Type:      EventActivityInvoked,
					Level:     level,
					Timestamp: time.Now(),
					Source:    "interceptor.tracing",
					Data:      data,
				})

				return result, err
			}
		}
	}
}
