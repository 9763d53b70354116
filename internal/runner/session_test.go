package runner

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PaperStrike/wrightplay/internal/bridge"
	"github.com/PaperStrike/wrightplay/internal/handle"
	"github.com/PaperStrike/wrightplay/internal/wire"
)

func newTestEvaluator(t *testing.T) *handle.Evaluator {
	t.Helper()
	r := handle.NewRegistry(struct{}{}, struct{ Name string }{Name: "home"}, nil)
	return handle.NewEvaluator(r, nil)
}

func evaluateArg(t *testing.T) json.RawMessage {
	t.Helper()
	arg, err := wire.Serialize(wire.Undefined{})
	require.NoError(t, err)
	raw, err := json.Marshal(arg)
	require.NoError(t, err)
	return raw
}

func TestDispatchHandleRequestEvaluateAsHandle(t *testing.T) {
	t.Parallel()

	ev := newTestEvaluator(t)
	req := bridge.HandleRequest{
		Action: "evaluate",
		Handle: handle.PageID,
		Expr:   "page => page.Name",
		H:      true,
		Arg:    evaluateArg(t),
	}

	result, err := dispatchHandleRequest(ev, req)
	require.NoError(t, err)

	var id int
	require.NoError(t, json.Unmarshal(result, &id))
	assert.Greater(t, id, handle.PageID)
}

func TestDispatchHandleRequestEvaluateWithoutHandle(t *testing.T) {
	t.Parallel()

	ev := newTestEvaluator(t)
	req := bridge.HandleRequest{
		Action: "evaluate",
		Handle: handle.PageID,
		Expr:   "page => page.Name",
		H:      false,
		Arg:    evaluateArg(t),
	}

	result, err := dispatchHandleRequest(ev, req)
	require.NoError(t, err)

	var n wire.Node
	require.NoError(t, json.Unmarshal(result, &n))
	got, err := wire.Parse(n, nil)
	require.NoError(t, err)
	assert.Equal(t, "home", got)
}

func TestDispatchHandleRequestGetPropertyAndProperties(t *testing.T) {
	t.Parallel()

	ev := newTestEvaluator(t)
	objRaw, err := dispatchHandleRequest(ev, bridge.HandleRequest{
		Action: "evaluate",
		Handle: handle.PageID,
		Expr:   "() => ({ a: 1, b: 'two' })",
		H:      true,
		Arg:    evaluateArg(t),
	})
	require.NoError(t, err)
	var objID int
	require.NoError(t, json.Unmarshal(objRaw, &objID))

	propRaw, err := dispatchHandleRequest(ev, bridge.HandleRequest{Action: "get-property", Handle: objID, Key: "b"})
	require.NoError(t, err)
	var propID int
	require.NoError(t, json.Unmarshal(propRaw, &propID))

	valueRaw, err := dispatchHandleRequest(ev, bridge.HandleRequest{Action: "json-value", Handle: propID})
	require.NoError(t, err)
	var n wire.Node
	require.NoError(t, json.Unmarshal(valueRaw, &n))
	got, err := wire.Parse(n, nil)
	require.NoError(t, err)
	assert.Equal(t, "two", got)

	propsRaw, err := dispatchHandleRequest(ev, bridge.HandleRequest{Action: "get-properties", Handle: objID})
	require.NoError(t, err)
	var pairs [][2]any
	require.NoError(t, json.Unmarshal(propsRaw, &pairs))
	assert.Len(t, pairs, 2)
}

func TestDispatchHandleRequestDispose(t *testing.T) {
	t.Parallel()

	ev := newTestEvaluator(t)
	objRaw, err := dispatchHandleRequest(ev, bridge.HandleRequest{
		Action: "evaluate",
		Handle: handle.PageID,
		Expr:   "() => ({})",
		H:      true,
		Arg:    evaluateArg(t),
	})
	require.NoError(t, err)
	var objID int
	require.NoError(t, json.Unmarshal(objRaw, &objID))

	_, err = dispatchHandleRequest(ev, bridge.HandleRequest{Action: "dispose", Handle: objID})
	require.NoError(t, err)

	_, err = dispatchHandleRequest(ev, bridge.HandleRequest{Action: "json-value", Handle: objID})
	assert.Error(t, err)
}

func TestDispatchHandleRequestUnknownAction(t *testing.T) {
	t.Parallel()

	ev := newTestEvaluator(t)
	_, err := dispatchHandleRequest(ev, bridge.HandleRequest{Action: "bogus", Handle: handle.PageID})
	assert.Error(t, err)
}

func TestEncodeHandleErrorPreservesThrownValue(t *testing.T) {
	t.Parallel()

	ev := newTestEvaluator(t)
	_, err := dispatchHandleRequest(ev, bridge.HandleRequest{
		Action: "evaluate",
		Handle: handle.PageID,
		Expr:   `() => { throw new RangeError('nope'); }`,
		H:      true,
		Arg:    evaluateArg(t),
	})
	require.Error(t, err)

	errJSON, err := encodeHandleError(err)
	require.NoError(t, err)

	var n wire.Node
	require.NoError(t, json.Unmarshal([]byte(errJSON), &n))
	got, err := wire.Parse(n, nil)
	require.NoError(t, err)

	jsErr, ok := got.(*wire.ErrorValue)
	require.True(t, ok)
	assert.Equal(t, "RangeError", jsErr.Name)
	assert.Equal(t, "nope", jsErr.Message)
}

func TestEncodeHandleErrorSynthesizesGenericError(t *testing.T) {
	t.Parallel()

	ev := newTestEvaluator(t)
	_, err := dispatchHandleRequest(ev, bridge.HandleRequest{Action: "bogus", Handle: handle.PageID})
	require.Error(t, err)

	errJSON, err := encodeHandleError(err)
	require.NoError(t, err)

	var n wire.Node
	require.NoError(t, json.Unmarshal([]byte(errJSON), &n))
	got, err := wire.Parse(n, nil)
	require.NoError(t, err)

	jsErr, ok := got.(*wire.ErrorValue)
	require.True(t, ok)
	assert.Equal(t, "Error", jsErr.Name)
	assert.Contains(t, jsErr.Message, "bogus")
}
