// Package envelope defines the JSON shape the broker and worker agree
// on to carry an opaque compute payload. The actual function/argument
// serialization (cloudpickle in the original system) is out of scope;
// this package never interprets Func/Klass/Args/Kwargs beyond passing
// their raw bytes through, except to optionally read InstanceID for
// affinity routing.
package envelope

import "encoding/json"

// Action names the three request shapes the worker accepts.
type Action string

const (
	ActionExecute        Action = "execute"
	ActionCreateInstance Action = "create_instance"
	ActionCallMethod     Action = "call_method"
)

// Envelope is the broker-visible subset of a request body. Fields the
// broker doesn't need to interpret (Func, Klass, Args, Kwargs) are kept
// as json.RawMessage so re-encoding never alters their bytes.
type Envelope struct {
	Action Action `json:"action,omitempty"`

	Func   json.RawMessage `json:"func,omitempty"`
	Klass  json.RawMessage `json:"klass,omitempty"`
	Args   json.RawMessage `json:"args,omitempty"`
	Kwargs json.RawMessage `json:"kwargs,omitempty"`

	// InstanceID is present on create_instance (client-supplied,
	// optional) and call_method (required). The broker reads this one
	// field to drive affinity routing; everything else stays opaque.
	InstanceID string `json:"instance_id,omitempty"`

	// Method is present on call_method. The broker never inspects it;
	// kept here only so round-tripping the envelope is lossless.
	Method string `json:"method,omitempty"`
}

// Peek decodes just enough of body to read the action and instance_id
// without touching the opaque fields. It returns an error only if body
// isn't valid JSON; a missing action defaults to ActionExecute per
// executor.py's "execute" or "func" in data rule.
func Peek(body []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(body, &e); err != nil {
		return nil, err
	}
	if e.Action == "" {
		e.Action = ActionExecute
	}
	return &e, nil
}

// CreateInstanceResult is the shape the worker returns for
// action=create_instance, carrying the server- or client-assigned
// instance_id back to the broker for affinity binding.
type CreateInstanceResult struct {
	InstanceID string `json:"instance_id"`
}
