package envelope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeekDefaultsActionToExecute(t *testing.T) {
	e, err := Peek([]byte(`{"func":"<opaque>","args":"<opaque>"}`))
	require.NoError(t, err)
	assert.Equal(t, ActionExecute, e.Action)
}

func TestPeekExtractsInstanceIDForCallMethod(t *testing.T) {
	e, err := Peek([]byte(`{"action":"call_method","instance_id":"instance_7","method":"predict"}`))
	require.NoError(t, err)
	assert.Equal(t, ActionCallMethod, e.Action)
	assert.Equal(t, "instance_7", e.InstanceID)
}

func TestPeekLeavesOpaqueFieldsRaw(t *testing.T) {
	raw := []byte(`{"action":"execute","func":{"opaque":[1,2,3]},"args":[1,"two"]}`)
	e, err := Peek(raw)
	require.NoError(t, err)
	assert.JSONEq(t, `{"opaque":[1,2,3]}`, string(e.Func))
	assert.JSONEq(t, `[1,"two"]`, string(e.Args))
}

func TestPeekRejectsInvalidJSON(t *testing.T) {
	_, err := Peek([]byte(`not json`))
	assert.Error(t, err)
}
