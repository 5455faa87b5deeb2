// Package bridge is the thin async wrapper over the external native bridge
// (C1, spec.md §4's "Bridge adapter"). It owns nothing but the translation
// between the Bridge's raw byte-level native calls and the worker's decoded
// types, plus the error taxonomy that separates shutdown/per-run failures
// from fatal transport errors.
package bridge

import (
	"context"
	"fmt"

	"github.com/tailored-agentic-units/worker-core/core/proto"
)

// Bridge is the decoded-type surface the rest of the worker calls against,
// matching spec.md §6's external interface table one-for-one.
type Bridge interface {
	PollWorkflowActivation(ctx context.Context) (proto.WorkflowActivation, error)
	PollActivityTask(ctx context.Context) (proto.ActivityTask, error)
	CompleteWorkflowActivation(ctx context.Context, c proto.WorkflowActivationCompletion) error
	CompleteActivityTask(ctx context.Context, c proto.ActivityTaskCompletion) error
	RecordActivityHeartbeat(ctx context.Context, hb proto.Heartbeat) error
	WorkerShutdown(ctx context.Context) error
	CompleteShutdown(ctx context.Context) error
}

// Native is the raw byte-level contract the actual external bridge exposes
// (length-delimited encoded buffers in, void/bytes out). Concrete transports
// (e.g. bridge/wsbridge) implement this; Adapter turns it into a Bridge.
type Native interface {
	PollWorkflowActivation(ctx context.Context) ([]byte, error)
	PollActivityTask(ctx context.Context) ([]byte, error)
	CompleteWorkflowActivation(ctx context.Context, encoded []byte) error
	CompleteActivityTask(ctx context.Context, encoded []byte) error
	RecordActivityHeartbeat(ctx context.Context, encoded []byte) error
	WorkerShutdown(ctx context.Context) error
	CompleteShutdown(ctx context.Context) error
}

// Adapter implements Bridge by encoding/decoding around a Native transport.
type Adapter struct {
	native Native
}

func NewAdapter(native Native) *Adapter {
	return &Adapter{native: native}
}

func (a *Adapter) PollWorkflowActivation(ctx context.Context) (proto.WorkflowActivation, error) {
	raw, err := a.native.PollWorkflowActivation(ctx)
	if err != nil {
		return proto.WorkflowActivation{}, wrapFatal("poll workflow activation", err)
	}
	activation, err := DecodeActivation(raw)
	if err != nil {
		return proto.WorkflowActivation{}, fmt.Errorf("bridge: %w", err)
	}
	return activation, nil
}

func (a *Adapter) PollActivityTask(ctx context.Context) (proto.ActivityTask, error) {
	raw, err := a.native.PollActivityTask(ctx)
	if err != nil {
		return proto.ActivityTask{}, wrapFatal("poll activity task", err)
	}
	task, err := DecodeActivityTask(raw)
	if err != nil {
		return proto.ActivityTask{}, fmt.Errorf("bridge: %w", err)
	}
	return task, nil
}

func (a *Adapter) CompleteWorkflowActivation(ctx context.Context, c proto.WorkflowActivationCompletion) error {
	encoded, err := EncodeWorkflowCompletion(c)
	if err != nil {
		return err
	}
	if err := a.native.CompleteWorkflowActivation(ctx, encoded); err != nil {
		return wrapFatal("complete workflow activation", err)
	}
	return nil
}

func (a *Adapter) CompleteActivityTask(ctx context.Context, c proto.ActivityTaskCompletion) error {
	encoded, err := EncodeActivityCompletion(c)
	if err != nil {
		return err
	}
	if err := a.native.CompleteActivityTask(ctx, encoded); err != nil {
		return wrapFatal("complete activity task", err)
	}
	return nil
}

func (a *Adapter) RecordActivityHeartbeat(ctx context.Context, hb proto.Heartbeat) error {
	encoded, err := EncodeHeartbeat(hb)
	if err != nil {
		return err
	}
	// Fire-and-forget per spec.md §6: errors are logged by the caller, not
	// propagated as fatal.
	return a.native.RecordActivityHeartbeat(ctx, encoded)
}

func (a *Adapter) WorkerShutdown(ctx context.Context) error {
	return a.native.WorkerShutdown(ctx)
}

func (a *Adapter) CompleteShutdown(ctx context.Context) error {
	return a.native.CompleteShutdown(ctx)
}
