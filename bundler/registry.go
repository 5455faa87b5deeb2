// Package bundler implements the offline sandbox bundler (spec.md §4.4, C4):
// it scans a workflow source tree, generates activity stubs for the
// declared activity modules, and produces a content-addressed sandbox.Bundle
// ready to be seeded into a sandbox.Pool.
package bundler

import (
	"fmt"
	"sort"
	"sync"

	"github.com/tailored-agentic-units/worker-core/sandbox"
)

// WorkflowConstructor builds a fresh sandbox.WorkflowFunc for one workflow
// type. Bundling calls it once per discovered workflow source file; it is
// the bundler's analogue of "compiling" workflow code (spec.md §4.4 step 1),
// kept as a Go closure since dynamic module loading is out of scope.
type WorkflowConstructor func(source Source) (sandbox.WorkflowFunc, error)

// registry is the process-wide map of workflow type name to constructor,
// populated by generated or hand-written bundler.Register calls, adapting
// the named-handler registry in tools/registry.go to bundle-time
// compilation instead of request-time dispatch.
type registry struct {
	entries map[string]WorkflowConstructor
	mu      sync.RWMutex
}

var workflowRegistry = &registry{entries: make(map[string]WorkflowConstructor)}

// ErrAlreadyRegistered is returned by Register for a duplicate workflow type.
var ErrAlreadyRegistered = fmt.Errorf("bundler: workflow type already registered")

// ErrNotRegistered is returned when a discovered source file names a
// workflow type with no constructor.
var ErrNotRegistered = fmt.Errorf("bundler: no constructor registered for workflow type")

// Register associates a workflow type name with its constructor. Called from
// an init() in the package that defines the workflow, mirroring how
// tools.Register is called from each tool package's init().
func Register(workflowType string, ctor WorkflowConstructor) error {
	workflowRegistry.mu.Lock()
	defer workflowRegistry.mu.Unlock()

	if _, exists := workflowRegistry.entries[workflowType]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, workflowType)
	}
	workflowRegistry.entries[workflowType] = ctor
	return nil
}

func lookupConstructor(workflowType string) (WorkflowConstructor, bool) {
	workflowRegistry.mu.RLock()
	defer workflowRegistry.mu.RUnlock()
	ctor, ok := workflowRegistry.entries[workflowType]
	return ctor, ok
}

// RegisteredTypes lists every workflow type currently registered, sorted for
// deterministic bundling order.
func RegisteredTypes() []string {
	workflowRegistry.mu.RLock()
	defer workflowRegistry.mu.RUnlock()

	types := make([]string, 0, len(workflowRegistry.entries))
	for t := range workflowRegistry.entries {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
