package worker

import (
	"encoding/json"
	"fmt"

	"github.com/cuemby/zakuro/pkg/envelope"
)

// result is the JSON shape returned for a completed (possibly
// task-failed) request. Task failures populate Error and are still
// carried with HTTP 200, matching executor.py's "serialize the
// exception into the response" contract.
type result struct {
	Result     json.RawMessage `json:"result,omitempty"`
	InstanceID string          `json:"instance_id,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// execute runs env against the registry and instance store. The
// returned error is non-nil only for decode-level problems the caller
// must turn into a transport failure; task-level failures are carried
// inside the returned result.
func (w *Server) execute(env *envelope.Envelope) (*result, error) {
	switch env.Action {
	case envelope.ActionExecute:
		return w.runFunc(env)
	case envelope.ActionCreateInstance:
		return w.runCreateInstance(env)
	case envelope.ActionCallMethod:
		return w.runCallMethod(env)
	default:
		return nil, fmt.Errorf("unknown action %q", env.Action)
	}
}

func decodeName(raw json.RawMessage, label string) (string, error) {
	if len(raw) == 0 {
		return "", fmt.Errorf("missing %s", label)
	}
	var name string
	if err := json.Unmarshal(raw, &name); err != nil {
		return "", fmt.Errorf("decode %s: %w", label, err)
	}
	return name, nil
}

func (w *Server) runFunc(env *envelope.Envelope) (*result, error) {
	name, err := decodeName(env.Func, "func")
	if err != nil {
		return &result{Error: err.Error()}, nil
	}
	fn, ok := w.registry.lookupFunc(name)
	if !ok {
		return &result{Error: fmt.Sprintf("unregistered function: %s", name)}, nil
	}

	out, err := fn(env.Args, env.Kwargs)
	if err != nil {
		return &result{Error: err.Error()}, nil
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return &result{Error: fmt.Sprintf("marshal result: %v", err)}, nil
	}
	return &result{Result: raw}, nil
}

func (w *Server) runCreateInstance(env *envelope.Envelope) (*result, error) {
	name, err := decodeName(env.Klass, "klass")
	if err != nil {
		return &result{Error: err.Error()}, nil
	}
	factory, ok := w.registry.lookupFactory(name)
	if !ok {
		return &result{Error: fmt.Sprintf("unregistered class: %s", name)}, nil
	}

	inst, err := factory(env.Args, env.Kwargs)
	if err != nil {
		return &result{Error: err.Error()}, nil
	}
	id := w.instances.put(env.InstanceID, inst)
	return &result{InstanceID: id}, nil
}

func (w *Server) runCallMethod(env *envelope.Envelope) (*result, error) {
	if env.InstanceID == "" {
		return &result{Error: "missing instance_id"}, nil
	}
	inst, ok := w.instances.get(env.InstanceID)
	if !ok {
		return &result{Error: fmt.Sprintf("instance not found: %s", env.InstanceID)}, nil
	}

	out, err := inst.Invoke(env.Method, env.Args, env.Kwargs)
	if err != nil {
		return &result{Error: err.Error()}, nil
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return &result{Error: fmt.Sprintf("marshal result: %v", err)}, nil
	}
	return &result{Result: raw}, nil
}
