package bundler

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/tailored-agentic-units/worker-core/sandbox"
)

// Bundler turns a workflow source tree into sandbox.Bundle artifacts,
// caching by content hash so identical source trees are only compiled once
// (spec.md §4.4, §8 round-trip property).
type Bundler struct {
	logger *slog.Logger
	cache  *bundleCache
}

// New creates a Bundler. logger defaults to slog.Default() when nil.
func New(logger *slog.Logger) *Bundler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bundler{logger: logger, cache: newBundleCache()}
}

// Build scans root, compiles every discovered Source via its registered
// WorkflowConstructor, and assembles the result into a sandbox.Bundle keyed
// by a content hash over the source tree. A previously built bundle with
// the same hash is returned from cache without recompiling (spec.md §8).
func (b *Bundler) Build(root string) (sandbox.Bundle, error) {
	sources, err := ScanDir(root)
	if err != nil {
		return sandbox.Bundle{}, err
	}
	if len(sources) == 0 {
		return sandbox.Bundle{}, fmt.Errorf("bundler: no workflow manifests found under %s", root)
	}

	hash, err := ContentHash(root, sources)
	if err != nil {
		return sandbox.Bundle{}, err
	}

	if cached, ok := b.cache.get(hash); ok {
		b.logger.Debug("bundler: cache hit", slog.String("content_hash", hash))
		return cached, nil
	}

	workflows := make(map[string]sandbox.WorkflowFunc, len(sources))
	moduleFns := make(map[string]map[string]struct{})
	interceptorSet := make(map[string]struct{})

	for _, src := range sources {
		ctor, ok := lookupConstructor(src.WorkflowType)
		if !ok {
			return sandbox.Bundle{}, fmt.Errorf("%w: %s", ErrNotRegistered, src.WorkflowType)
		}
		fn, err := ctor(src)
		if err != nil {
			return sandbox.Bundle{}, fmt.Errorf("bundler: constructing %s: %w", src.WorkflowType, err)
		}
		workflows[src.WorkflowType] = fn

		for _, am := range src.ActivityModules {
			fns, ok := moduleFns[am.Module]
			if !ok {
				fns = make(map[string]struct{})
				moduleFns[am.Module] = fns
			}
			for _, f := range am.Functions {
				fns[f] = struct{}{}
			}
		}
		for _, m := range src.InterceptorModules {
			interceptorSet[m] = struct{}{}
		}
	}

	// C4 step 1 & 2 (spec.md §4.4): for every activity module this source
	// tree declares, generate its forwarding-stub source and the matching
	// in-memory ActivityStub table entry, then lay the generated files over
	// root as an io/fs overlay so a stub shadows any real file of the same
	// name.
	stubs := make(map[string]map[string]sandbox.ActivityStub, len(moduleFns))
	generated := make(map[string][]byte, len(moduleFns))
	activityModules := make([]string, 0, len(moduleFns))
	for module, fnSet := range moduleFns {
		activityModules = append(activityModules, module)
		fnNames := sortedKeys(fnSet)

		perModule := make(map[string]sandbox.ActivityStub, len(fnNames))
		for _, fn := range fnNames {
			perModule[fn] = sandbox.NewActivityStub(module, fn)
		}
		stubs[module] = perModule
		generated[stubPath(module)] = stubSource(module, fnNames)
	}
	sort.Strings(activityModules)

	bundle := sandbox.Bundle{
		ContentHash:        hashGenerated(hash, generated),
		Workflows:          workflows,
		ActivityStubs:      stubs,
		ActivityModules:    activityModules,
		InterceptorModules: sortedKeys(interceptorSet),
		Overlay:            newOverlayFS(root, generated),
	}

	b.cache.put(hash, bundle)
	b.logger.Info("bundler: built bundle",
		slog.String("content_hash", bundle.ContentHash),
		slog.Int("workflow_types", len(workflows)),
		slog.Int("activity_modules", len(bundle.ActivityModules)),
	)
	return bundle, nil
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
