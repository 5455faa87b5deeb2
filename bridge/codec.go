package bridge

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/tailored-agentic-units/worker-core/core/proto"
)

// WriteFrame length-delimits msg the way the native bridge frames every call
// (spec.md §6: "length-delimited protobuf buffers"). The varint length
// prefix is built with protowire so the framing itself is genuine protobuf
// wire format even though the message bodies below are the worker's own
// opaque envelope (the real business-level .proto schema is external,
// spec.md §1).
func WriteFrame(w io.Writer, msg []byte) error {
	var lenBuf []byte
	lenBuf = protowire.AppendVarint(lenBuf, uint64(len(msg)))
	if _, err := w.Write(lenBuf); err != nil {
		return fmt.Errorf("bridge: write frame length: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("bridge: write frame body: %w", err)
	}
	return nil
}

// ReadFrame reads one length-delimited message from r.
func ReadFrame(r *bufio.Reader) ([]byte, error) {
	var raw []byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("bridge: read frame length: %w", err)
		}
		raw = append(raw, b)
		if b < 0x80 {
			break
		}
	}

	n, m := protowire.ConsumeVarint(raw)
	if m < 0 {
		return nil, fmt.Errorf("bridge: malformed frame length")
	}

	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("bridge: read frame body: %w", err)
	}
	return body, nil
}

// EncodeActivation/DecodeActivation (and siblings below) marshal the
// worker's decoded types into the opaque byte envelope exchanged over the
// Bridge. The real server schema is an external protobuf contract
// (spec.md §1); this JSON envelope stands in for it at pipeline boundaries,
// which spec.md explicitly permits ("treat them as opaque byte buffers").

func EncodeActivation(a proto.WorkflowActivation) ([]byte, error) {
	b, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("bridge: encode activation: %w", err)
	}
	return b, nil
}

func DecodeActivation(b []byte) (proto.WorkflowActivation, error) {
	var a proto.WorkflowActivation
	if err := json.Unmarshal(b, &a); err != nil {
		return proto.WorkflowActivation{}, fmt.Errorf("bridge: decode activation: %w", err)
	}
	return a, nil
}

func EncodeActivityTask(t proto.ActivityTask) ([]byte, error) {
	b, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("bridge: encode activity task: %w", err)
	}
	return b, nil
}

func DecodeActivityTask(b []byte) (proto.ActivityTask, error) {
	var t proto.ActivityTask
	if err := json.Unmarshal(b, &t); err != nil {
		return proto.ActivityTask{}, fmt.Errorf("bridge: decode activity task: %w", err)
	}
	return t, nil
}

func EncodeWorkflowCompletion(c proto.WorkflowActivationCompletion) ([]byte, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("bridge: encode workflow completion: %w", err)
	}
	return b, nil
}

func DecodeWorkflowCompletion(b []byte) (proto.WorkflowActivationCompletion, error) {
	var c proto.WorkflowActivationCompletion
	if err := json.Unmarshal(b, &c); err != nil {
		return proto.WorkflowActivationCompletion{}, fmt.Errorf("bridge: decode workflow completion: %w", err)
	}
	return c, nil
}

func EncodeActivityCompletion(c proto.ActivityTaskCompletion) ([]byte, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("bridge: encode activity completion: %w", err)
	}
	return b, nil
}

func DecodeActivityCompletion(b []byte) (proto.ActivityTaskCompletion, error) {
	var c proto.ActivityTaskCompletion
	if err := json.Unmarshal(b, &c); err != nil {
		return proto.ActivityTaskCompletion{}, fmt.Errorf("bridge: decode activity completion: %w", err)
	}
	return c, nil
}

func EncodeHeartbeat(h proto.Heartbeat) ([]byte, error) {
	b, err := json.Marshal(h)
	if err != nil {
		return nil, fmt.Errorf("bridge: encode heartbeat: %w", err)
	}
	return b, nil
}
