package worker

import (
	"encoding/json"
	"fmt"
	"time"
)

// RegisterBuiltins populates reg with a small set of always-available
// functions and classes, so a zc-worker process started with no
// embedder-supplied registry still has something to execute: a smoke
// test for the broker→worker round trip and a minimal stateful
// example exercising call_method/affinity routing.
func RegisterBuiltins(reg *Registry) {
	reg.RegisterFunc("echo", builtinEcho)
	reg.RegisterFunc("sleep", builtinSleep)
	reg.RegisterClass("counter", newBuiltinCounter)
}

func builtinEcho(args, _ json.RawMessage) (any, error) {
	var payload any
	if len(args) > 0 {
		if err := json.Unmarshal(args, &payload); err != nil {
			return nil, fmt.Errorf("decode args: %w", err)
		}
	}
	return payload, nil
}

func builtinSleep(args, _ json.RawMessage) (any, error) {
	var secs float64
	if len(args) > 0 {
		if err := json.Unmarshal(args, &secs); err != nil {
			return nil, fmt.Errorf("decode args: %w", err)
		}
	}
	if secs > 30 {
		return nil, fmt.Errorf("sleep duration %.1fs exceeds the 30s builtin cap", secs)
	}
	time.Sleep(time.Duration(secs * float64(time.Second)))
	return secs, nil
}

// builtinCounter is a trivial stateful instance: increment and read,
// bound to one worker via affinity like any create_instance result.
type builtinCounter struct {
	n int64
}

func newBuiltinCounter(args, _ json.RawMessage) (Invoker, error) {
	c := &builtinCounter{}
	if len(args) > 0 {
		var start int64
		if err := json.Unmarshal(args, &start); err == nil {
			c.n = start
		}
	}
	return c, nil
}

func (c *builtinCounter) Invoke(method string, _, _ json.RawMessage) (any, error) {
	switch method {
	case "increment":
		c.n++
		return c.n, nil
	case "value":
		return c.n, nil
	default:
		return nil, fmt.Errorf("counter has no method %q", method)
	}
}
