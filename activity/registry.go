package activity

import (
	"fmt"
	"sort"
	"sync"
)

// key identifies an activity by the two-part name carried on the wire
// (spec.md §3 ActivityTask.ActivityType: [modulePath, fnName]).
type key struct{ modulePath, fnName string }

type registry struct {
	entries map[key]Func
	mu      sync.RWMutex
}

var register = &registry{entries: make(map[key]Func)}

// ErrAlreadyRegistered is returned by Register for a duplicate module/fn pair.
var ErrAlreadyRegistered = fmt.Errorf("activity: already registered")

// ErrNotFound is returned when a task names an activity with no handler.
var ErrNotFound = fmt.Errorf("activity: not found")

// Register adds fn under the (modulePath, fnName) pair the bundler's
// generated activity stubs address by, adapting the single-key registry in
// tools/registry.go to this two-part activity namespace.
func Register(modulePath, fnName string, fn Func) error {
	if modulePath == "" || fnName == "" {
		return fmt.Errorf("%w: modulePath and fnName must be non-empty", ErrNotFound)
	}

	register.mu.Lock()
	defer register.mu.Unlock()

	k := key{modulePath, fnName}
	if _, exists := register.entries[k]; exists {
		return fmt.Errorf("%w: %s.%s", ErrAlreadyRegistered, modulePath, fnName)
	}
	register.entries[k] = fn
	return nil
}

// Lookup resolves a handler by its wire [modulePath, fnName] pair.
func Lookup(activityType [2]string) (Func, bool) {
	register.mu.RLock()
	defer register.mu.RUnlock()
	fn, ok := register.entries[key{activityType[0], activityType[1]}]
	return fn, ok
}

// ModuleExists reports whether any function is registered under modulePath,
// letting callers distinguish a missing module from a missing function
// within a known module (spec.md §4.2 step 3: "If module or function
// missing").
func ModuleExists(modulePath string) bool {
	register.mu.RLock()
	defer register.mu.RUnlock()
	for k := range register.entries {
		if k.modulePath == modulePath {
			return true
		}
	}
	return false
}

// Modules lists every distinct modulePath currently registered, sorted. The
// bundler does not read it: its activity modules come from the manifests.
func Modules() []string {
	register.mu.RLock()
	defer register.mu.RUnlock()

	set := make(map[string]struct{})
	for k := range register.entries {
		set[k.modulePath] = struct{}{}
	}
	modules := make([]string, 0, len(set))
	for m := range set {
		modules = append(modules, m)
	}
	sort.Strings(modules)
	return modules
}
