package wire

import (
	"math"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, value any) any {
	t.Helper()
	n, err := Serialize(value)
	require.NoError(t, err)
	out, err := Parse(n, nil)
	require.NoError(t, err)
	return out
}

func TestRoundTripPrimitives(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "hello", roundTrip(t, "hello"))
	assert.Equal(t, true, roundTrip(t, true))
	assert.Equal(t, nil, roundTrip(t, nil))
	assert.Equal(t, 42.0, roundTrip(t, 42.0))
}

func TestRoundTripSentinels(t *testing.T) {
	t.Parallel()

	require.True(t, math.IsNaN(roundTrip(t, math.NaN()).(float64)))

	inf := roundTrip(t, math.Inf(1)).(float64)
	assert.True(t, math.IsInf(inf, 1))

	ninf := roundTrip(t, math.Inf(-1)).(float64)
	assert.True(t, math.IsInf(ninf, -1))

	negZero := roundTrip(t, math.Copysign(0, -1)).(float64)
	assert.Equal(t, 0.0, negZero)
	assert.True(t, math.Signbit(negZero))

	assert.Equal(t, Undefined{}, roundTrip(t, Undefined{}))
}

func TestRoundTripCyclicArray(t *testing.T) {
	t.Parallel()

	// x = [1, ['deep', {deeper: []}]]; x.push(x)
	deeper := &Array{Items: []any{}}
	inner := &Object{Props: []KV{{Key: "deeper", Value: deeper}}}
	nested := &Array{Items: []any{"deep", inner}}
	outer := &Array{Items: []any{1.0, nested}}
	outer.Items = append(outer.Items, outer)

	n, err := Serialize(outer)
	require.NoError(t, err)

	out, err := Parse(n, nil)
	require.NoError(t, err)

	arr, ok := out.(*Array)
	require.True(t, ok)
	require.Len(t, arr.Items, 3)
	assert.Same(t, arr, arr.Items[2])
}

func TestRoundTripSharedSubtree(t *testing.T) {
	t.Parallel()

	shared := &Object{Props: []KV{{Key: "k", Value: "v"}}}
	arr := &Array{Items: []any{shared, shared}}

	n, err := Serialize(arr)
	require.NoError(t, err)
	// Node position 0 is the array, 1 is the shared object; the second
	// element must be a bare back-reference to node 1.
	require.Len(t, n.Array, 2)
	assert.True(t, n.Array[1].IsBackref())
	assert.Equal(t, 1, n.Array[1].Index)

	out, err := Parse(n, nil)
	require.NoError(t, err)
	arrOut := out.(*Array)
	assert.Same(t, arrOut.Items[0], arrOut.Items[1])
}

func TestRoundTripURL(t *testing.T) {
	t.Parallel()

	u := URLValue{Raw: "https://example.com/"}
	out := roundTrip(t, u).(URLValue)
	assert.Equal(t, "https://example.com/", out.Raw)
}

func TestRoundTripDate(t *testing.T) {
	t.Parallel()

	d := DateValue{Time: time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)}
	out := roundTrip(t, d).(DateValue)
	assert.True(t, d.Time.Equal(out.Time))
}

func TestRoundTripRegexp(t *testing.T) {
	t.Parallel()

	r := RegexpValue{Source: "a+b*", Flags: "gi"}
	out := roundTrip(t, r).(RegexpValue)
	assert.Equal(t, r, out)
}

func TestRoundTripError(t *testing.T) {
	t.Parallel()

	e := &ErrorValue{Name: "TypeError", Message: "boom", Stack: "at foo"}
	out := roundTrip(t, e).(*ErrorValue)
	assert.Equal(t, e.Name, out.Name)
	assert.Equal(t, e.Message, out.Message)
	assert.Equal(t, e.Stack, out.Stack)
	assert.False(t, out.HasCause)

	e.HasCause = true
	e.Cause = Undefined{}
	out2 := roundTrip(t, e).(*ErrorValue)
	assert.True(t, out2.HasCause)
	assert.Equal(t, Undefined{}, out2.Cause)

	inner := &ErrorValue{Name: "Error", Message: "inner"}
	e.Cause = inner
	out3 := roundTrip(t, e).(*ErrorValue)
	require.NotNil(t, out3.Cause)
	assert.Equal(t, "inner", out3.Cause.(*ErrorValue).Message)
}

func TestSerializeFunctionFails(t *testing.T) {
	t.Parallel()

	_, err := Serialize(Func{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unexpected value")
}

func TestSerializeFunctionWithFallback(t *testing.T) {
	t.Parallel()

	arr := &Array{Items: []any{1.0, Func{}, 3.0}}
	n, err := SerializeWithFallback(arr, nil)
	require.NoError(t, err)

	out, err := Parse(n, nil)
	require.NoError(t, err)
	got := out.(*Array)
	assert.Equal(t, []any{1.0, nil, 3.0}, got.Items)
}

func TestSerializeFunctionFallbackAlsoFunction(t *testing.T) {
	t.Parallel()

	_, err := SerializeWithFallback(Func{}, Func{})
	require.Error(t, err)
}

func TestSerializeHandle(t *testing.T) {
	t.Parallel()

	n, err := Serialize(HandleRef{ID: 4})
	require.NoError(t, err)
	require.NotNil(t, n.Handle)
	assert.Equal(t, 4, *n.Handle)

	targets := map[int]any{3: "X", 4: "Y", 5: "Z"}
	out, err := Parse(n, func(id int) (any, bool) {
		v, ok := targets[id]
		return v, ok
	})
	require.NoError(t, err)
	assert.Equal(t, "Y", out)
}

func TestParseHandleMissingTarget(t *testing.T) {
	t.Parallel()

	n, err := Serialize(HandleRef{ID: 9})
	require.NoError(t, err)

	_, err = Parse(n, func(int) (any, bool) { return nil, false })
	require.Error(t, err)
}

func TestParseBigInt(t *testing.T) {
	t.Parallel()

	bi, ok := new(big.Int).SetString("123456789012345678901234567890", 10)
	require.True(t, ok)

	n, err := Serialize(BigInt{bi})
	require.NoError(t, err)
	assert.Equal(t, "123456789012345678901234567890", n.BigInt)

	out, err := Parse(n, nil)
	require.NoError(t, err)
	assert.Equal(t, "123456789012345678901234567890", out.(BigInt).String())
}
