// Package config holds the worker's option surface (spec.md §6 "Worker
// options"): JSON-loadable defaults plus the façade (C9) construction
// knobs for every other package. Shaped after the teacher's kernel.Config
// (per-subsystem sub-structs, a Default constructor, a Merge method
// applying non-zero overrides, and LoadConfig reading JSON via
// os.ReadFile + json.Unmarshal).
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/tailored-agentic-units/worker-core/sandbox"
)

// ActivityDefaultsConfig mirrors the activityDefaults worker option.
type ActivityDefaultsConfig struct {
	Type                string        `json:"type,omitempty"`
	StartToCloseTimeout time.Duration `json:"start_to_close_timeout,omitempty"`
}

func (c *ActivityDefaultsConfig) toSandbox() sandbox.ActivityDefaults {
	return sandbox.ActivityDefaults{Type: c.Type, StartToCloseTimeout: c.StartToCloseTimeout}
}

// InterceptorsConfig is the interceptors.* worker option group.
type InterceptorsConfig struct {
	WorkflowModules []string `json:"workflow_modules,omitempty"`
	ActivityInbound []string `json:"activity_inbound,omitempty"`
}

// DependencyOption is one entry of the `dependencies` worker option: a
// named external-dependency call bound into every sandbox RunContext at
// creation (spec.md §6, §4.3 injectDependency). Fn has no JSON
// representation — dependency implementations are registered in code
// (via worker.WithDependency) and matched by Iface at worker construction.
type DependencyOption struct {
	Iface            string
	Mode             sandbox.ApplyMode
	CallDuringReplay bool
}

// WorkerOptions is the full recognized option set (spec.md §6 table).
type WorkerOptions struct {
	TaskQueue string `json:"task_queue"`

	// Namespace is the activity namespace this worker is configured under
	// (spec.md §4.5: "the configured activity namespace"), distinct from the
	// per-workflow namespace carried on each task.
	Namespace string `json:"namespace,omitempty"`

	ActivityDefaults ActivityDefaultsConfig `json:"activity_defaults,omitempty"`

	MaxConcurrentActivityTaskExecutions int64 `json:"max_concurrent_activity_task_executions,omitempty"`
	MaxConcurrentWorkflowTaskExecutions int64 `json:"max_concurrent_workflow_task_executions,omitempty"`
	MaxConcurrentActivityTaskPolls      int64 `json:"max_concurrent_activity_task_polls,omitempty"`
	MaxConcurrentWorkflowTaskPolls      int64 `json:"max_concurrent_workflow_task_polls,omitempty"`

	NonStickyToStickyPollRatio          float64 `json:"non_sticky_to_sticky_poll_ratio,omitempty"`
	StickyQueueScheduleToStartTimeoutMs int64   `json:"sticky_queue_schedule_to_start_timeout_ms,omitempty"`

	ShutdownGraceTimeMs int64    `json:"shutdown_grace_time_ms,omitempty"`
	ShutdownSignals     []string `json:"shutdown_signals,omitempty"`

	IsolateExecutionTimeoutMs int64 `json:"isolate_execution_timeout_ms,omitempty"`
	MaxIsolateMemoryMB        int   `json:"max_isolate_memory_mb,omitempty"`
	IsolatePoolSize           int   `json:"isolate_pool_size,omitempty"`

	DataConverter string `json:"data_converter,omitempty"`

	Interceptors InterceptorsConfig `json:"interceptors,omitempty"`

	// Dependencies is keyed by the iface name workflow code calls through
	// (spec.md §6 "dependencies"); populated by the caller after JSON load
	// since Fn is a Go closure, not a serializable value.
	Dependencies map[string]DependencyOption `json:"-"`

	WorkflowsDir    string `json:"workflows_dir"`
	NodeModulesPath string `json:"node_modules_path,omitempty"`
}

// DefaultWorkerOptions returns the defaults named in spec.md §6's table,
// except MaxIsolateMemoryMB, which is a fixed 1024 and is not derived from
// the host's total memory.
func DefaultWorkerOptions() WorkerOptions {
	return WorkerOptions{
		ActivityDefaults: ActivityDefaultsConfig{
			Type:                "remote",
			StartToCloseTimeout: 10 * time.Minute,
		},
		MaxConcurrentActivityTaskExecutions: 100,
		MaxConcurrentWorkflowTaskExecutions: 100,
		MaxConcurrentActivityTaskPolls:      5,
		MaxConcurrentWorkflowTaskPolls:      5,
		NonStickyToStickyPollRatio:          0.2,
		StickyQueueScheduleToStartTimeoutMs: 10_000,
		ShutdownGraceTimeMs:                 5_000,
		ShutdownSignals:                     []string{"INT", "TERM", "QUIT"},
		IsolateExecutionTimeoutMs:           1_000,
		MaxIsolateMemoryMB:                  1024,
		IsolatePoolSize:                     8,
		DataConverter:                       "default",
	}
}

// Merge applies every non-zero field of source onto o, the same
// non-zero-wins rule the teacher's kernel.Config.Merge uses.
func (o *WorkerOptions) Merge(source *WorkerOptions) {
	if source.TaskQueue != "" {
		o.TaskQueue = source.TaskQueue
	}
	if source.Namespace != "" {
		o.Namespace = source.Namespace
	}
	if source.ActivityDefaults.Type != "" {
		o.ActivityDefaults.Type = source.ActivityDefaults.Type
	}
	if source.ActivityDefaults.StartToCloseTimeout != 0 {
		o.ActivityDefaults.StartToCloseTimeout = source.ActivityDefaults.StartToCloseTimeout
	}
	if source.MaxConcurrentActivityTaskExecutions != 0 {
		o.MaxConcurrentActivityTaskExecutions = source.MaxConcurrentActivityTaskExecutions
	}
	if source.MaxConcurrentWorkflowTaskExecutions != 0 {
		o.MaxConcurrentWorkflowTaskExecutions = source.MaxConcurrentWorkflowTaskExecutions
	}
	if source.MaxConcurrentActivityTaskPolls != 0 {
		o.MaxConcurrentActivityTaskPolls = source.MaxConcurrentActivityTaskPolls
	}
	if source.MaxConcurrentWorkflowTaskPolls != 0 {
		o.MaxConcurrentWorkflowTaskPolls = source.MaxConcurrentWorkflowTaskPolls
	}
	if source.NonStickyToStickyPollRatio != 0 {
		o.NonStickyToStickyPollRatio = source.NonStickyToStickyPollRatio
	}
	if source.StickyQueueScheduleToStartTimeoutMs != 0 {
		o.StickyQueueScheduleToStartTimeoutMs = source.StickyQueueScheduleToStartTimeoutMs
	}
	if source.ShutdownGraceTimeMs != 0 {
		o.ShutdownGraceTimeMs = source.ShutdownGraceTimeMs
	}
	if len(source.ShutdownSignals) > 0 {
		o.ShutdownSignals = source.ShutdownSignals
	}
	if source.IsolateExecutionTimeoutMs != 0 {
		o.IsolateExecutionTimeoutMs = source.IsolateExecutionTimeoutMs
	}
	if source.MaxIsolateMemoryMB != 0 {
		o.MaxIsolateMemoryMB = source.MaxIsolateMemoryMB
	}
	if source.IsolatePoolSize != 0 {
		o.IsolatePoolSize = source.IsolatePoolSize
	}
	if source.DataConverter != "" {
		o.DataConverter = source.DataConverter
	}
	if len(source.Interceptors.WorkflowModules) > 0 {
		o.Interceptors.WorkflowModules = source.Interceptors.WorkflowModules
	}
	if len(source.Interceptors.ActivityInbound) > 0 {
		o.Interceptors.ActivityInbound = source.Interceptors.ActivityInbound
	}
	if len(source.Dependencies) > 0 {
		o.Dependencies = source.Dependencies
	}
	if source.WorkflowsDir != "" {
		o.WorkflowsDir = source.WorkflowsDir
	}
	if source.NodeModulesPath != "" {
		o.NodeModulesPath = source.NodeModulesPath
	}
}

// LoadConfig reads a JSON options file and merges it over the defaults.
func LoadConfig(path string) (*WorkerOptions, error) {
	opts := DefaultWorkerOptions()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var loaded WorkerOptions
	if err := json.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	opts.Merge(&loaded)
	if opts.TaskQueue == "" {
		return nil, fmt.Errorf("config: task_queue is required")
	}
	return &opts, nil
}

// ExecutionTimeout converts IsolateExecutionTimeoutMs to a time.Duration.
func (o WorkerOptions) ExecutionTimeout() time.Duration {
	return time.Duration(o.IsolateExecutionTimeoutMs) * time.Millisecond
}

// ShutdownGraceTime converts ShutdownGraceTimeMs to a time.Duration.
func (o WorkerOptions) ShutdownGraceTime() time.Duration {
	return time.Duration(o.ShutdownGraceTimeMs) * time.Millisecond
}

// SandboxActivityDefaults exposes the sandbox-shaped view of
// ActivityDefaults for the worker façade's slot.Create calls.
func (o WorkerOptions) SandboxActivityDefaults() sandbox.ActivityDefaults {
	return o.ActivityDefaults.toSandbox()
}
