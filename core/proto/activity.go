package proto

import "github.com/tailored-agentic-units/worker-core/core/payload"

// ActivityVariant tags whether an ActivityTask starts a new attempt or
// cancels one already running (spec.md §3).
type ActivityVariant string

const (
	ActivityStart  ActivityVariant = "start"
	ActivityCancel ActivityVariant = "cancel"
)

// ActivityTask is one unit of activity work. Invariant (spec.md §3): the
// first task for a given TaskToken must be Start; any subsequent task for
// the same token must be Cancel.
type ActivityTask struct {
	TaskToken  []byte
	ActivityID string
	Variant    ActivityVariant

	// Start-only fields.
	ActivityType          [2]string // [modulePath, fnName]
	Arguments             []payload.Payload
	Headers               map[string]payload.Payload
	ScheduleToCloseMillis int64
	StartToCloseMillis    int64
	HeartbeatMillis       int64
	Attempt               int32
	WorkflowNamespace     string
	WorkflowType          string
	WorkflowRunID         string

	// LastHeartbeatDetails carries the most recent heartbeat payloads
	// recorded by a prior attempt of this activity, if any (spec.md §4.5:
	// "heartbeat details decoded from payloads"), so a retried activity can
	// resume from where it left off.
	LastHeartbeatDetails []payload.Payload
}

// TaskTokenKey returns the stable grouping identity used by the pipeline
// engine (spec.md §4.2: "Activity tasks: by base64(taskToken)").
func (t ActivityTask) TaskTokenKey() string {
	return base64Std(t.TaskToken)
}

// ActivityTaskCompletion is the encoded response to one activity task.
type ActivityTaskCompletion struct {
	TaskToken []byte
	Completed *payload.Payload
	Failed    *Failure
	Cancelled bool
}

// Heartbeat is the payload forwarded to the Bridge's fire-and-forget
// recordActivityHeartbeat call (spec.md §4.6).
type Heartbeat struct {
	TaskToken []byte
	Details   []payload.Payload
}
