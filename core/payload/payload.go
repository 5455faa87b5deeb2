// Package payload defines the DataConverter contract used at every pipeline
// boundary to move Go values to and from the opaque wire payloads exchanged
// with the orchestration service, plus a default JSON-backed implementation.
package payload

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"
)

// Payload is the wire-level unit DataConverter operates on: a metadata map
// (e.g. encoding, message type) plus opaque data bytes. It mirrors the
// Payload concept referenced by spec.md's Bridge/DataConverter contracts
// without committing to a specific protobuf schema, which is out of scope.
type Payload struct {
	Metadata map[string][]byte `json:"metadata,omitempty"`
	Data     []byte            `json:"data"`
}

// Converter translates between Go values and wire Payloads. spec.md leaves
// the concrete codec external; this package only fixes the shape of the
// contract plus a usable default so the rest of the worker is runnable.
//
// Every payload operation uses the same synchronous discipline: all four
// methods return their result directly, and no async variant exists.
type Converter interface {
	ToPayload(value any) (Payload, error)
	FromPayload(p Payload, target any) error
	ToPayloads(values ...any) ([]Payload, error)
	FromPayloads(payloads []Payload, targets ...any) error
}

const jsonEncoding = "json/plain"

// JSONConverter is the default Converter: it round-trips Go values through
// encoding/json, then re-expresses them as a structpb.Value before framing,
// so the default payload representation genuinely exercises the protobuf
// well-known types rather than being a bare JSON blob on the wire.
type JSONConverter struct{}

func (JSONConverter) ToPayload(value any) (Payload, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return Payload{}, fmt.Errorf("payload: marshal value: %w", err)
	}

	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return Payload{}, fmt.Errorf("payload: re-decode value: %w", err)
	}

	structVal, err := structpb.NewValue(generic)
	if err != nil {
		return Payload{}, fmt.Errorf("payload: convert to structpb: %w", err)
	}

	data, err := structVal.MarshalJSON()
	if err != nil {
		return Payload{}, fmt.Errorf("payload: marshal structpb: %w", err)
	}

	return Payload{
		Metadata: map[string][]byte{"encoding": []byte(jsonEncoding)},
		Data:     data,
	}, nil
}

func (JSONConverter) FromPayload(p Payload, target any) error {
	var structVal structpb.Value
	if err := structVal.UnmarshalJSON(p.Data); err != nil {
		return fmt.Errorf("payload: unmarshal structpb: %w", err)
	}

	raw, err := json.Marshal(structVal.AsInterface())
	if err != nil {
		return fmt.Errorf("payload: re-encode value: %w", err)
	}

	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("payload: decode into target: %w", err)
	}
	return nil
}

func (c JSONConverter) ToPayloads(values ...any) ([]Payload, error) {
	out := make([]Payload, 0, len(values))
	for i, v := range values {
		p, err := c.ToPayload(v)
		if err != nil {
			return nil, fmt.Errorf("payload: encode argument %d: %w", i, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func (c JSONConverter) FromPayloads(payloads []Payload, targets ...any) error {
	if len(payloads) != len(targets) {
		return fmt.Errorf("payload: %d payloads for %d targets", len(payloads), len(targets))
	}
	for i, p := range payloads {
		if err := c.FromPayload(p, targets[i]); err != nil {
			return fmt.Errorf("payload: decode argument %d: %w", i, err)
		}
	}
	return nil
}
