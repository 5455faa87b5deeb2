package sandbox

import (
	"encoding/json"
	"fmt"
	"io/fs"

	"github.com/tailored-agentic-units/worker-core/core/proto"
)

// WorkflowFunc is the Go-native stand-in for "workflow code" compiled into a
// bundle (spec.md §4.4). The workflow programming model itself is out of
// scope (spec.md Non-goals); a WorkflowFunc only needs to apply the
// non-eviction jobs of one activation to quiescence and return the commands
// produced, which is everything the sandbox contract in spec.md §4.3
// requires of it. Continuation/coroutine resumption across activations is
// explicitly an implementation detail internal to the sandbox (spec.md §9)
// and is not modelled here: each call receives only the non-eviction jobs of
// the current activation, and neither RunContext nor the pipeline keeps a
// job history across activations.
type WorkflowFunc func(rc *RunContext, jobs []proto.Job) ([]proto.WorkflowCommand, error)

// ActivityStub is a generated forwarding function as described in spec.md
// §4.4 step 2: calling it schedules an activity rather than running
// anything locally, carrying the same `.type = [module, function]` pair a
// generated JS stub would attach to itself. Exposed to workflow code via
// RunContext.ScheduleActivity so a WorkflowFunc can issue scheduleActivity
// commands without the sandbox needing any real dynamic-module-loading
// machinery.
type ActivityStub struct {
	// Type is the [module, function] pair this stub forwards to.
	Type [2]string
	// TypeJSON is JSON.stringify([module, function]) — the exact string the
	// generated stub's body and its `.type` property both carry (spec.md
	// §4.4 step 2).
	TypeJSON string

	call func(args []byte) proto.WorkflowCommand
}

// NewActivityStub builds the forwarding stub for one (module, function)
// pair, the Go-native equivalent of one exported function in a generated
// `S.js` (spec.md §4.4 step 2).
func NewActivityStub(module, function string) ActivityStub {
	t := [2]string{module, function}
	typeJSON, err := json.Marshal(t)
	if err != nil {
		// [2]string always marshals; this path is unreachable in practice.
		typeJSON = []byte(fmt.Sprintf("[%q,%q]", module, function))
	}
	return ActivityStub{
		Type:     t,
		TypeJSON: string(typeJSON),
		call: func(args []byte) proto.WorkflowCommand {
			return proto.WorkflowCommand{
				Kind: "scheduleActivity",
				Data: map[string]any{
					"type":      t,
					"type_json": string(typeJSON),
					"args":      args,
				},
			}
		},
	}
}

// Call invokes the stub, producing the scheduleActivity command (spec.md
// §4.4 step 2: "forwards to scheduleActivity(JSON.stringify([S, fᵢ]),
// args)").
func (s ActivityStub) Call(args []byte) proto.WorkflowCommand {
	return s.call(args)
}

// Bundle is the self-contained artifact produced offline by the bundler
// (C4): a closed set of named workflow constructors, the generated activity
// stubs keyed by [module][function], the activity module roster and
// interceptor module list that were baked in, identified by a content hash
// so repeated bundling of identical inputs is detectable (spec.md §8
// round-trip property).
type Bundle struct {
	ContentHash        string
	Workflows          map[string]WorkflowFunc
	ActivityStubs      map[string]map[string]ActivityStub
	ActivityModules    []string
	InterceptorModules []string
	// Overlay is the io/fs-backed virtual filesystem whose generated stub
	// files shadow the real source tree (spec.md §4.4 step 1). Nil for
	// bundles assembled without a backing source tree (e.g. in tests that
	// only exercise workflow dispatch).
	Overlay fs.FS
}

// Lookup resolves a registered workflow constructor by type name.
func (b Bundle) Lookup(workflowType string) (WorkflowFunc, bool) {
	fn, ok := b.Workflows[workflowType]
	return fn, ok
}

// LookupActivityStub resolves a generated stub by its [module, function]
// pair, for RunContext.ScheduleActivity.
func (b Bundle) LookupActivityStub(module, function string) (ActivityStub, bool) {
	fns, ok := b.ActivityStubs[module]
	if !ok {
		return ActivityStub{}, false
	}
	stub, ok := fns[function]
	return stub, ok
}
