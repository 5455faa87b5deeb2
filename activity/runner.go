package activity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tailored-agentic-units/worker-core/core/payload"
	"github.com/tailored-agentic-units/worker-core/core/proto"
)

// HeartbeatSink accepts a heartbeat for asynchronous forwarding to the
// bridge (C8). Satisfied by *heartbeat.Queue; kept as an interface here so
// the activity package doesn't need to import heartbeat.
type HeartbeatSink interface {
	Enqueue(proto.Heartbeat)
}

// Runner executes activity tasks against the registered Func table,
// tracking one cancel token per in-flight task token so a later `cancel`
// variant for the same token can signal the running Func (spec.md §4.5).
type Runner struct {
	converter    payload.Converter
	heartbeats   HeartbeatSink
	interceptors []Interceptor
	namespace    string

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewRunner builds a Runner. converter defaults to payload's "default" if
// nil is passed by the caller's resolution step. namespace is the
// configured activity namespace (spec.md §4.5), stamped onto every Info
// this Runner builds.
func NewRunner(converter payload.Converter, heartbeats HeartbeatSink, namespace string, interceptors ...Interceptor) *Runner {
	if converter == nil {
		converter, _ = payload.GetConverter("default")
	}
	return &Runner{
		converter:    converter,
		heartbeats:   heartbeats,
		interceptors: interceptors,
		namespace:    namespace,
		cancels:      make(map[string]context.CancelFunc),
	}
}

// Execute runs one ActivityTask to completion, returning the encoded
// ActivityTaskCompletion (spec.md §4.5: resolves to one of completed,
// failed, cancelled). A cancel-variant task signals the abort token of the
// matching in-flight start and returns immediately without a completion of
// its own — the runner that owns the cancelled start produces the
// cancelled completion once the user Func observes ctx.Done().
func (r *Runner) Execute(ctx context.Context, task proto.ActivityTask) *proto.ActivityTaskCompletion {
	tokenKey := task.TaskTokenKey()

	if task.Variant == proto.ActivityCancel {
		r.signalCancel(tokenKey)
		return nil
	}

	fn, ok := Lookup(task.ActivityType)
	if !ok {
		modulePath, fnName := task.ActivityType[0], task.ActivityType[1]
		message := fmt.Sprintf("Activity function not found: %s.%s", modulePath, fnName)
		if !ModuleExists(modulePath) {
			message = fmt.Sprintf("Activity module not found: %s", modulePath)
		}
		return &proto.ActivityTaskCompletion{
			TaskToken: task.TaskToken,
			Failed:    &proto.Failure{Message: message},
		}
	}
	fn = Chain(fn, r.interceptors...)

	runCtx, cancel := context.WithCancel(ctx)
	r.register(tokenKey, cancel)
	defer r.unregister(tokenKey)

	actx := &Context{
		Context: runCtx,
		Info: Info{
			ActivityID:             task.ActivityID,
			ActivityType:           task.ActivityType[1],
			Attempt:                task.Attempt,
			ScheduleToCloseTimeout: time.Duration(task.ScheduleToCloseMillis) * time.Millisecond,
			StartToCloseTimeout:    time.Duration(task.StartToCloseMillis) * time.Millisecond,
			HeartbeatTimeout:       time.Duration(task.HeartbeatMillis) * time.Millisecond,
			HeartbeatDetails:       r.decodeHeartbeatDetails(task.LastHeartbeatDetails),
			Namespace:              r.namespace,
			WorkflowNamespace:      task.WorkflowNamespace,
			WorkflowType:           task.WorkflowType,
			WorkflowRunID:          task.WorkflowRunID,
		},
		Converter: r.converter,
		Heartbeat: func(details ...any) {
			r.sendHeartbeat(task.TaskToken, details...)
		},
	}

	result, err := r.invoke(fn, actx, task.Arguments)
	if err != nil {
		if runCtx.Err() != nil {
			return &proto.ActivityTaskCompletion{TaskToken: task.TaskToken, Cancelled: true}
		}
		return &proto.ActivityTaskCompletion{
			TaskToken: task.TaskToken,
			Failed:    &proto.Failure{Message: err.Error()},
		}
	}

	encoded, err := r.converter.ToPayload(result)
	if err != nil {
		return &proto.ActivityTaskCompletion{
			TaskToken: task.TaskToken,
			Failed:    &proto.Failure{Message: fmt.Sprintf("activity: encode result: %v", err)},
		}
	}

	return &proto.ActivityTaskCompletion{TaskToken: task.TaskToken, Completed: &encoded}
}

// invoke recovers a panicking Func into an error, so one misbehaving
// activity cannot take the pipeline's worker goroutine down with it.
func (r *Runner) invoke(fn Func, actx *Context, args []payload.Payload) (result any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("activity: %s panicked: %v", actx.Info.ActivityType, p)
		}
	}()
	return fn(actx, args)
}

// decodeHeartbeatDetails decodes a prior attempt's recorded heartbeat
// payloads into plain values for Info.HeartbeatDetails (spec.md §4.5:
// "heartbeat details decoded from payloads"). A decode failure for one
// entry is dropped rather than failing the whole activity start.
func (r *Runner) decodeHeartbeatDetails(payloads []payload.Payload) []any {
	if len(payloads) == 0 {
		return nil
	}
	details := make([]any, 0, len(payloads))
	for _, p := range payloads {
		var v any
		if err := r.converter.FromPayload(p, &v); err != nil {
			continue
		}
		details = append(details, v)
	}
	return details
}

func (r *Runner) sendHeartbeat(taskToken []byte, details ...any) {
	if r.heartbeats == nil {
		return
	}
	payloads, err := r.converter.ToPayloads(details...)
	if err != nil {
		return
	}
	r.heartbeats.Enqueue(proto.Heartbeat{TaskToken: taskToken, Details: payloads})
}

func (r *Runner) register(tokenKey string, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancels[tokenKey] = cancel
}

func (r *Runner) unregister(tokenKey string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cancels, tokenKey)
}

func (r *Runner) signalCancel(tokenKey string) {
	r.mu.Lock()
	cancel, ok := r.cancels[tokenKey]
	r.mu.Unlock()
	if ok {
		cancel()
	}
}
