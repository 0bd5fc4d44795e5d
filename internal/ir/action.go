package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Action is a typed event describing an intended state change.
//
// Type is "<domain>/<verb>" by convention; the namespace is not enforced
// structurally. Payload is optional and may be any IRValue. Actions are
// treated as immutable: NewAction and Clone copy the payload so callers
// never share mutable memory with the engine.
type Action struct {
	Type    string  `json:"type"`
	Payload IRValue `json:"payload,omitempty"`
}

// NewAction builds an Action, deep-copying payload.
func NewAction(actionType string, payload IRValue) Action {
	if payload == nil {
		return Action{Type: actionType}
	}
	return Action{Type: actionType, Payload: Clone(payload)}
}

// Clone returns a deep copy of the action.
func (a Action) Clone() Action {
	return NewAction(a.Type, a.Payload)
}

// Domain returns the namespace before the first "/", or the whole type if
// it has no separator.
func (a Action) Domain() string {
	domain, _, _ := strings.Cut(a.Type, "/")
	return domain
}

// Verb returns the part after the first "/", or "" if there is none.
func (a Action) Verb() string {
	_, verb, _ := strings.Cut(a.Type, "/")
	return verb
}

// PayloadObject returns the payload as an IRObject, or nil if the payload
// is absent or not an object.
func (a Action) PayloadObject() IRObject {
	obj, _ := a.Payload.(IRObject)
	return obj
}

// HasPayload reports whether the action carries a payload (including an
// explicit null).
func (a Action) HasPayload() bool {
	return a.Payload != nil
}

// ToIR returns the action as an IRObject {type, payload}. A missing payload
// is rendered as null so predicates can always address .payload.
func (a Action) ToIR() IRObject {
	payload := a.Payload
	if payload == nil {
		payload = IRNull{}
	}
	return IRObject{
		"type":    IRString(a.Type),
		"payload": Clone(payload),
	}
}

// String renders the action as compact JSON for logs.
func (a Action) String() string {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Sprintf("{type:%s}", a.Type)
	}
	return string(data)
}

// MarshalJSON produces {"payload":...,"type":...} with sorted keys.
// The payload key is omitted when the action has no payload.
func (a Action) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if a.Payload != nil {
		payload, err := MarshalIRValue(a.Payload)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
		buf.WriteString(`"payload":`)
		buf.Write(payload)
		buf.WriteByte(',')
	}
	typ, err := json.Marshal(a.Type)
	if err != nil {
		return nil, err
	}
	buf.WriteString(`"type":`)
	buf.Write(typ)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes {"type": ..., "payload": ...}. It does not validate
// the action; see ValidateAction.
func (a *Action) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type    json.RawMessage `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var out Action
	if len(raw.Type) > 0 {
		if err := json.Unmarshal(raw.Type, &out.Type); err != nil {
			return fmt.Errorf("type: %w", err)
		}
	}
	if len(raw.Payload) > 0 {
		payload, err := UnmarshalIRValue(raw.Payload)
		if err != nil {
			return fmt.Errorf("payload: %w", err)
		}
		out.Payload = payload
	}
	*a = out
	return nil
}
