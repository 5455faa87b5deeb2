package proto

import "github.com/tailored-agentic-units/worker-core/core/payload"

// ActivationBuilder assembles a WorkflowActivation fluently. Mirrors the
// teacher's messaging.MessageBuilder: a pointer-returning chain terminated by
// Build(). The pipeline engine does not use it: its synthetic eviction
// activation comes from NewEvictionActivation.
type ActivationBuilder struct {
	activation *WorkflowActivation
}

func NewActivation(runID string) *ActivationBuilder {
	return &ActivationBuilder{
		activation: &WorkflowActivation{RunID: runID},
	}
}

func (b *ActivationBuilder) WithJob(job Job) *ActivationBuilder {
	b.activation.Jobs = append(b.activation.Jobs, job)
	return b
}

func (b *ActivationBuilder) StartWorkflow(workflowType string, seed int64, args ...payload.Payload) *ActivationBuilder {
	return b.WithJob(Job{
		Kind:           JobStartWorkflow,
		WorkflowID:     b.activation.RunID,
		WorkflowType:   workflowType,
		RandomnessSeed: seed,
		Arguments:      args,
	})
}

func (b *ActivationBuilder) FireTimer(timerID string) *ActivationBuilder {
	return b.WithJob(Job{Kind: JobFireTimer, TimerID: timerID})
}

func (b *ActivationBuilder) RemoveFromCache() *ActivationBuilder {
	return b.WithJob(Job{Kind: JobRemoveFromCache})
}

func (b *ActivationBuilder) Replaying(isReplaying bool) *ActivationBuilder {
	b.activation.IsReplaying = isReplaying
	return b
}

func (b *ActivationBuilder) Now(unixNanos int64) *ActivationBuilder {
	b.activation.Now = unixNanos
	return b
}

func (b *ActivationBuilder) Build() WorkflowActivation {
	return *b.activation
}
