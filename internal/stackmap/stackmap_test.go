package stackmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// trivialMap maps every position on generated line 1 back to line 1,
// column 1 of original.js — "AAAA" is the canonical all-zero VLQ segment.
const trivialMap = `{"version":3,"sources":["original.js"],"names":[],"mappings":"AAAA"}`

func TestRemapRewritesCoveredFrame(t *testing.T) {
	t.Parallel()

	m, err := New([]byte(trivialMap))
	require.NoError(t, err)

	stack := "TypeError: boom\n    at run (bundle.js:1:5)\n    at native"
	got := m.Remap(stack)

	assert.Contains(t, got, "original.js")
	assert.Contains(t, got, "TypeError: boom")
	assert.Contains(t, got, "at native")
}

func TestRemapLeavesUnmatchedFramesAlone(t *testing.T) {
	t.Parallel()

	m, err := New([]byte(trivialMap))
	require.NoError(t, err)

	stack := "Error: oops\n    at <anonymous>"
	assert.Equal(t, stack, m.Remap(stack))
}

func TestNewRejectsInvalidJSON(t *testing.T) {
	t.Parallel()

	_, err := New([]byte("not json"))
	assert.Error(t, err)
}
