package sandbox

import "errors"

// DeterminismViolationError is raised when workflow code reaches for a
// non-deterministic primitive the sandbox disallows (spec.md §4.3). Not
// fatal to the worker — it surfaces as a workflow task failure completion
// (spec.md §7).
type DeterminismViolationError struct {
	Primitive string
}

func (e *DeterminismViolationError) Error() string {
	return "determinism violation: " + e.Primitive + " is not permitted inside a workflow sandbox"
}

// ErrUnknownWorkflowType is returned by Activate when the bundle seeded into
// the slot has no constructor for the activation's workflow type.
var ErrUnknownWorkflowType = errors.New("sandbox: unknown workflow type")
