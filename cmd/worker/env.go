package main

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/tailored-agentic-units/worker-core/config"
)

// applyEnvOverlay layers WORKER_* environment variables over an
// already-loaded config.WorkerOptions, the way firestige-Otus's config
// loader layers its own prefix over a viper-read file — except here the
// base is the JSON config.LoadConfig already produced, and viper is used
// purely as the env-var reader/coercer, never as the file-format parser
// (the config package's own json.Unmarshal + Merge stays the source of
// truth for on-disk configuration, per SPEC_FULL.md's ambient-stack split).
// Only the handful of knobs worth overriding per-deployment (without
// editing the shared JSON file) are wired here; the rest is scoped to
// config.WorkerOptions' JSON loading.
func applyEnvOverlay(opts *config.WorkerOptions) error {
	v := viper.New()
	v.SetEnvPrefix("WORKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if v.IsSet("task_queue") {
		opts.TaskQueue = v.GetString("task_queue")
	}
	if v.IsSet("isolate_pool_size") {
		opts.IsolatePoolSize = v.GetInt("isolate_pool_size")
	}
	if v.IsSet("max_isolate_memory_mb") {
		opts.MaxIsolateMemoryMB = v.GetInt("max_isolate_memory_mb")
	}
	if v.IsSet("shutdown_grace_time_ms") {
		opts.ShutdownGraceTimeMs = v.GetInt64("shutdown_grace_time_ms")
	}
	if v.IsSet("data_converter") {
		opts.DataConverter = v.GetString("data_converter")
	}
	if v.IsSet("workflows_dir") {
		opts.WorkflowsDir = v.GetString("workflows_dir")
	}
	if v.IsSet("isolate_execution_timeout_ms") {
		opts.IsolateExecutionTimeoutMs = v.GetInt64("isolate_execution_timeout_ms")
	}
	if v.IsSet("activity_defaults_start_to_close_timeout") {
		opts.ActivityDefaults.StartToCloseTimeout = v.GetDuration("activity_defaults_start_to_close_timeout")
	}

	return nil
}
