// Package interceptor implements the named interceptor-factory registry
// spec.md §6's interceptors.activityInbound option draws from: a factory is
// registered once under a name, then resolved by name at worker
// construction into the concrete activity.Interceptor chain (spec.md §4.5
// "invokes the function under the inbound-activity interceptor chain").
//
// interceptors.workflowModules is a different thing — a list of module
// specifiers baked into the sandbox bundle roster (spec.md §4.4 step 3) for
// the sandbox's own runtime to load, not Go-side middleware — so it never
// passes through this registry.
package interceptor

import (
	"fmt"
	"sort"
	"sync"

	"github.com/tailored-agentic-units/worker-core/activity"
)

// Factory builds a fresh activity.Interceptor instance. Factories are
// invoked once per Resolve call so stateful interceptors (e.g. a per-worker
// call counter) don't leak state across unrelated workers in the same
// process.
type Factory func() activity.Interceptor

type registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

var global = &registry{factories: make(map[string]Factory)}

// ErrNotFound is returned by Resolve for an unregistered name.
var ErrNotFound = fmt.Errorf("interceptor: not found")

// Register adds or replaces a named Factory in the global registry.
func Register(name string, f Factory) {
	global.mu.Lock()
	defer global.mu.Unlock()
	global.factories[name] = f
}

// Get instantiates a single named interceptor.
func Get(name string) (activity.Interceptor, error) {
	global.mu.RLock()
	f, ok := global.factories[name]
	global.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return f(), nil
}

// Resolve instantiates every named interceptor in names, in order, for the
// worker façade to hand to activity.NewRunner as the activityInbound chain.
func Resolve(names []string) ([]activity.Interceptor, error) {
	out := make([]activity.Interceptor, 0, len(names))
	for _, name := range names {
		ic, err := Get(name)
		if err != nil {
			return nil, err
		}
		out = append(out, ic)
	}
	return out, nil
}

// Names lists every registered factory name, sorted.
func Names() []string {
	global.mu.RLock()
	defer global.mu.RUnlock()
	names := make([]string, 0, len(global.factories))
	for n := range global.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
