package bundler

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// manifestSuffix names the per-workflow descriptor file the bundler looks
// for while walking a source tree (spec.md §4.4: "scans a workflow source
// tree"). The workflow programming model itself is out of scope, so a
// manifest only needs to declare enough for bundling: a type name plus the
// activity and interceptor modules it depends on.
const manifestSuffix = ".workflow.json"

// ActivityModuleSpec is the bundler's required input for C4 step 2 (spec.md
// line 143: "a mapping from activity module specifier to set of exported
// function names"): the module a workflow imports activities from, and the
// functions it calls on that module. The bundler cannot discover this by
// introspecting the activity package's registry — that registry is
// populated by the worker process this bundle is built for, not by the
// offline, run-once bundling step (spec.md §4.4) — so it is declared
// directly in the manifest instead.
type ActivityModuleSpec struct {
	Module    string
	Functions []string
}

// Source is one discovered workflow unit: its declared manifest plus the
// directory it was found in, so a WorkflowConstructor can load any sibling
// files it needs.
type Source struct {
	Path               string
	Dir                string
	WorkflowType       string
	ActivityModules    []ActivityModuleSpec
	InterceptorModules []string
}

type sourceManifest struct {
	WorkflowType    string `json:"workflow_type"`
	ActivityModules []struct {
		Module    string   `json:"module"`
		Functions []string `json:"functions"`
	} `json:"activity_modules,omitempty"`
	InterceptorModules []string `json:"interceptor_modules,omitempty"`
}

// ScanDir walks root for manifest files and returns one Source per file,
// sorted by WorkflowType so bundling order — and therefore the content hash
// — is deterministic (spec.md §8 round-trip property).
func ScanDir(root string) ([]Source, error) {
	var sources []Source

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return fmt.Errorf("bundler: walking %s: %w", path, walkErr)
		}
		if d.IsDir() || filepath.Base(path)[0] == '.' {
			return nil
		}
		if len(path) < len(manifestSuffix) || path[len(path)-len(manifestSuffix):] != manifestSuffix {
			return nil
		}

		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return fmt.Errorf("bundler: reading manifest %s: %w", path, readErr)
		}

		var m sourceManifest
		if err := json.Unmarshal(data, &m); err != nil {
			return fmt.Errorf("bundler: parsing manifest %s: %w", path, err)
		}
		if m.WorkflowType == "" {
			return fmt.Errorf("bundler: manifest %s missing workflow_type", path)
		}

		activityModules := make([]ActivityModuleSpec, 0, len(m.ActivityModules))
		for _, am := range m.ActivityModules {
			activityModules = append(activityModules, ActivityModuleSpec{
				Module:    am.Module,
				Functions: am.Functions,
			})
		}

		sources = append(sources, Source{
			Path:               path,
			Dir:                filepath.Dir(path),
			WorkflowType:       m.WorkflowType,
			ActivityModules:    activityModules,
			InterceptorModules: m.InterceptorModules,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(sources, func(i, j int) bool { return sources[i].WorkflowType < sources[j].WorkflowType })
	return sources, nil
}
