package worker

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuiltinEchoReturnsArgsUnchanged(t *testing.T) {
	reg := NewRegistry()
	RegisterBuiltins(reg)

	fn, ok := reg.lookupFunc("echo")
	require.True(t, ok)

	out, err := fn(json.RawMessage(`{"a":1,"b":"two"}`), nil)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"a": 1.0, "b": "two"}, out)
}

func TestBuiltinSleepRejectsOverlongDuration(t *testing.T) {
	reg := NewRegistry()
	RegisterBuiltins(reg)

	fn, ok := reg.lookupFunc("sleep")
	require.True(t, ok)

	_, err := fn(json.RawMessage(`31`), nil)
	require.Error(t, err)
}

func TestBuiltinCounterIncrementsAcrossCalls(t *testing.T) {
	reg := NewRegistry()
	RegisterBuiltins(reg)

	factory, ok := reg.lookupFactory("counter")
	require.True(t, ok)

	inst, err := factory(nil, nil)
	require.NoError(t, err)

	v, err := inst.Invoke("increment", nil, nil)
	require.NoError(t, err)
	require.Equal(t, int64(1), v)

	v, err = inst.Invoke("increment", nil, nil)
	require.NoError(t, err)
	require.Equal(t, int64(2), v)

	v, err = inst.Invoke("value", nil, nil)
	require.NoError(t, err)
	require.Equal(t, int64(2), v)

	_, err = inst.Invoke("reset", nil, nil)
	require.Error(t, err)
}
