package sandbox

import (
	"log/slog"

	"github.com/tailored-agentic-units/worker-core/core/proto"
)

// jobEffect applies whatever sandbox-local side effect a job variant carries
// before the activation's job list reaches the WorkflowFunc. Most variants
// are pure data the workflow code interprets itself; only a handful mutate
// facade state the sandbox owns (spec.md §4.3, §9 Design Notes).
type jobEffect func(rc *RunContext, job proto.Job)

// activatorTable is the dispatch table keyed by JobKind, grounded on the
// node-registry pattern in orchestrate/state/graph.go's AddNode/nodes map.
// It is a map lookup, so a new JobKind needs no entry to compile. Kinds with
// no entry here have no sandbox-local effect and are simply handed to the
// WorkflowFunc as-is.
var activatorTable = map[proto.JobKind]jobEffect{
	proto.JobUpdateRandomSeed: applyUpdateRandomSeed,
}

func applyUpdateRandomSeed(rc *RunContext, job proto.Job) {
	rc.Determinism.Reseed(job.NewRandomnessSeed)
}

// applyEffects runs every job in jobs through activatorTable in order,
// mutating rc's sandbox-local state (e.g. the deterministic RNG). It does
// not filter jobs: the full list, effects applied, is still what reaches the
// WorkflowFunc so workflow code can rebuild whatever state it tracks itself.
func applyEffects(rc *RunContext, jobs []proto.Job, logger *slog.Logger) {
	for _, job := range jobs {
		if effect, ok := activatorTable[job.Kind]; ok {
			effect(rc, job)
			if logger != nil {
				logger.Debug("sandbox: applied job effect", slog.String("kind", string(job.Kind)), slog.String("run_id", rc.Info.RunID))
			}
		}
	}
}
