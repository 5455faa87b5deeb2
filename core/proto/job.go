// Package proto holds the decoded wire types exchanged with the
// orchestration service: workflow activations, activity tasks, their job
// variants, and completions. The concrete wire schema is out of scope
// (spec.md §1); this package fixes the Go-side shape the rest of the worker
// operates on after the Bridge adapter has framed/deframed the bytes.
package proto

import "github.com/tailored-agentic-units/worker-core/core/payload"

// JobKind tags the nine job variants carried by a WorkflowActivation. Kinds
// are dispatched through the sandbox's activatorTable map; the compiler does
// not check that every kind is handled.
type JobKind string

const (
	JobStartWorkflow    JobKind = "startWorkflow"
	JobFireTimer        JobKind = "fireTimer"
	JobResolveActivity  JobKind = "resolveActivity"
	JobSignalWorkflow   JobKind = "signalWorkflow"
	JobQueryWorkflow    JobKind = "queryWorkflow"
	JobCancelWorkflow   JobKind = "cancelWorkflow"
	JobUpdateRandomSeed JobKind = "updateRandomSeed"
	JobNotifyHasChange  JobKind = "notifyHasChange"
	JobRemoveFromCache  JobKind = "removeFromCache"
)

// Job is a single tagged entry in a WorkflowActivation's job list. Only the
// fields relevant to Kind are populated; the dispatch table in the sandbox
// package reads only NewRandomnessSeed (for updateRandomSeed), and every
// other field is left to the workflow code.
type Job struct {
	Kind JobKind

	// JobStartWorkflow
	WorkflowID     string
	WorkflowType   string
	RandomnessSeed int64
	Arguments      []payload.Payload
	Headers        map[string]payload.Payload
	TaskQueue      string
	Namespace      string

	// JobFireTimer
	TimerID string

	// JobResolveActivity
	ActivityID     string
	ActivityResult *ActivityResolution

	// JobSignalWorkflow
	SignalName string
	SignalArgs []payload.Payload

	// JobQueryWorkflow
	QueryID   string
	QueryType string
	QueryArgs []payload.Payload

	// JobUpdateRandomSeed
	NewRandomnessSeed int64
}

// ActivityResolution is the outcome of a previously scheduled activity, as
// carried by a resolveActivity job.
type ActivityResolution struct {
	Completed bool
	Result    payload.Payload
	Failed    bool
	Failure   *Failure
	Cancelled bool
}

// WorkflowActivation is a decoded batch of jobs for one workflow run.
// Invariant (spec.md §3): at most one JobRemoveFromCache per activation.
type WorkflowActivation struct {
	RunID       string
	Jobs        []Job
	IsReplaying bool
	Headers     map[string]payload.Payload
	Now         int64 // unix nanos, supplied by the activation (determinism, spec.md §4.3)
}

// HasEviction reports whether this activation carries a removeFromCache job,
// and returns the non-eviction jobs alongside it (spec.md §4.2 step 1).
func (a WorkflowActivation) HasEviction() (nonEviction []Job, evict bool) {
	nonEviction = make([]Job, 0, len(a.Jobs))
	for _, j := range a.Jobs {
		if j.Kind == JobRemoveFromCache {
			evict = true
			continue
		}
		nonEviction = append(nonEviction, j)
	}
	return nonEviction, evict
}

// StartJob returns the startWorkflow job in the activation, if present,
// regardless of its position (spec.md §9: order is server-defined).
func (a WorkflowActivation) StartJob() (Job, bool) {
	for _, j := range a.Jobs {
		if j.Kind == JobStartWorkflow {
			return j, true
		}
	}
	return Job{}, false
}

// Failure is the encoded form of a workflow/activity error, as produced by
// the DataConverter's failure-encoding contract (spec.md §7).
type Failure struct {
	Message string
	Source  string
	Stack   string
}

// WorkflowActivationCompletion is the encoded response to one activation.
type WorkflowActivationCompletion struct {
	RunID      string
	Successful *SuccessfulCompletion
	Failed     *FailedCompletion
}

type SuccessfulCompletion struct {
	Commands []WorkflowCommand
}

// WorkflowCommand is one outbound instruction produced by the sandbox while
// applying an activation (schedule activity, start timer, complete workflow,
// etc). The concrete command vocabulary belongs to the workflow programming
// model, which is out of scope (spec.md Non-goals); only the shape needed to
// round-trip a completion is fixed here.
type WorkflowCommand struct {
	Kind string
	Data map[string]any
}

type FailedCompletion struct {
	Failure Failure
}

// NewEvictionActivation builds the synthetic activation the lifecycle
// controller's idle sweep (spec.md §4.1) and the pipeline's completion
// feedback channel (spec.md §4.2) both inject: a single removeFromCache job
// for a run, nothing else.
func NewEvictionActivation(runID string) WorkflowActivation {
	return WorkflowActivation{
		RunID: runID,
		Jobs:  []Job{{Kind: JobRemoveFromCache}},
	}
}
