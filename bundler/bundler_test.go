package bundler_test

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/tailored-agentic-units/worker-core/bundler"
	"github.com/tailored-agentic-units/worker-core/core/proto"
	"github.com/tailored-agentic-units/worker-core/sandbox"
)

func writeManifest(t *testing.T, dir, workflowType string, activityModules map[string][]string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	modules := make([]map[string]any, 0, len(activityModules))
	for module, functions := range activityModules {
		modules = append(modules, map[string]any{"module": module, "functions": functions})
	}

	data, err := json.Marshal(map[string]any{
		"workflow_type":    workflowType,
		"activity_modules": modules,
	})
	if err != nil {
		t.Fatalf("marshal manifest: %v", err)
	}
	path := filepath.Join(dir, workflowType+".workflow.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
}

func registerNoop(t *testing.T, workflowType string) {
	t.Helper()
	_ = bundler.Register(workflowType, func(src bundler.Source) (sandbox.WorkflowFunc, error) {
		return func(rc *sandbox.RunContext, jobs []proto.Job) ([]proto.WorkflowCommand, error) {
			return nil, nil
		}, nil
	})
}

func TestBuild(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, filepath.Join(root, "orders"), "bundler_test_orders", map[string][]string{
		"charge": {"run"},
		"ship":   {"run"},
	})
	registerNoop(t, "bundler_test_orders")

	b := bundler.New(nil)
	bundle, err := b.Build(root)
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}

	if _, ok := bundle.Lookup("bundler_test_orders"); !ok {
		t.Error("Build() bundle missing workflow type bundler_test_orders")
	}
	if len(bundle.ActivityModules) != 2 {
		t.Errorf("Build() activity modules = %v, want 2 entries", bundle.ActivityModules)
	}
	if bundle.ContentHash == "" {
		t.Error("Build() returned empty ContentHash")
	}
}

func TestBuild_GeneratesActivityStubs(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, filepath.Join(root, "orders"), "bundler_test_stubs", map[string][]string{
		"charge": {"capture", "refund"},
	})
	registerNoop(t, "bundler_test_stubs")

	b := bundler.New(nil)
	bundle, err := b.Build(root)
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}

	stub, ok := bundle.LookupActivityStub("charge", "capture")
	if !ok {
		t.Fatal("Build() bundle missing ActivityStub for charge.capture")
	}
	if stub.Type != [2]string{"charge", "capture"} {
		t.Errorf("stub.Type = %v, want [charge capture]", stub.Type)
	}
	if stub.TypeJSON != `["charge","capture"]` {
		t.Errorf("stub.TypeJSON = %q, want %q", stub.TypeJSON, `["charge","capture"]`)
	}

	cmd := stub.Call([]byte(`{"amount":5}`))
	if cmd.Kind != "scheduleActivity" {
		t.Errorf("Call() Kind = %q, want scheduleActivity", cmd.Kind)
	}
	if cmd.Data["type_json"] != `["charge","capture"]` {
		t.Errorf("Call() Data[type_json] = %v, want [\"charge\",\"capture\"]", cmd.Data["type_json"])
	}

	if _, ok := bundle.LookupActivityStub("charge", "nonexistent"); ok {
		t.Error("LookupActivityStub() found a stub for an undeclared function")
	}

	if bundle.Overlay == nil {
		t.Fatal("Build() bundle has nil Overlay")
	}
	f, err := bundle.Overlay.Open("charge.js")
	if err != nil {
		t.Fatalf("Overlay.Open(charge.js) failed: %v", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("reading overlay file: %v", err)
	}
	if !bytes.Contains(data, []byte(`["charge","capture"]`)) {
		t.Errorf("generated stub source missing [\"charge\",\"capture\"]: %s", data)
	}
	if !bytes.Contains(data, []byte("export function capture")) {
		t.Errorf("generated stub source missing exported capture function: %s", data)
	}
}

func TestBuild_Deterministic(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, filepath.Join(root, "a"), "bundler_test_det", nil)
	registerNoop(t, "bundler_test_det")

	b := bundler.New(nil)
	first, err := b.Build(root)
	if err != nil {
		t.Fatalf("first Build() failed: %v", err)
	}
	second, err := b.Build(root)
	if err != nil {
		t.Fatalf("second Build() failed: %v", err)
	}
	if first.ContentHash != second.ContentHash {
		t.Errorf("ContentHash not stable across builds: %s != %s", first.ContentHash, second.ContentHash)
	}
}

func TestBuild_UnregisteredWorkflowType(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "bundler_test_unregistered", nil)

	b := bundler.New(nil)
	if _, err := b.Build(root); err == nil {
		t.Error("Build() expected error for unregistered workflow type")
	}
}

func TestBuild_NoManifests(t *testing.T) {
	root := t.TempDir()
	b := bundler.New(nil)
	if _, err := b.Build(root); err == nil {
		t.Error("Build() expected error when no manifests are present")
	}
}
