package lifecycle

import "sync/atomic"

// Counters tracks the three monotonic in-flight gauges spec.md §3 names:
// in-flight activations, in-flight activities, and running workflow
// instances. Single-writer per pipeline (the pipeline engine increments at
// group entry and decrements at completion emission); everything else only
// reads (spec.md §5 resource policy).
type Counters struct {
	activations atomic.Int64
	activities  atomic.Int64
	workflows   atomic.Int64
}

func (c *Counters) IncActivations() { c.activations.Add(1) }
func (c *Counters) DecActivations() { c.activations.Add(-1) }
func (c *Counters) Activations() int64 { return c.activations.Load() }

func (c *Counters) IncActivities() { c.activities.Add(1) }
func (c *Counters) DecActivities() { c.activities.Add(-1) }
func (c *Counters) Activities() int64 { return c.activities.Load() }

func (c *Counters) IncWorkflows() { c.workflows.Add(1) }
func (c *Counters) DecWorkflows() { c.workflows.Add(-1) }
func (c *Counters) Workflows() int64 { return c.workflows.Load() }
