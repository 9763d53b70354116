package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadRunSequenceSingleObject(t *testing.T) {
	seq, err := ReadRunSequence([]byte(`{"browser": "webkit"}`))
	require.NoError(t, err)
	require.Len(t, seq, 1)
	assert.Equal(t, "webkit", seq[0].Browser.String)
}

func TestReadRunSequenceArray(t *testing.T) {
	seq, err := ReadRunSequence([]byte(`[
		{"browser": "chromium", "tests": ["a.test.js"]},
		{"browser": "firefox", "tests": ["b.test.js"]}
	]`))
	require.NoError(t, err)
	require.Len(t, seq, 2)
	assert.Equal(t, "chromium", seq[0].Browser.String)
	assert.Equal(t, "firefox", seq[1].Browser.String)
}

func TestReadRunSequenceRejectsEmptyArray(t *testing.T) {
	_, err := ReadRunSequence([]byte(`[]`))
	require.Error(t, err)
}

func TestReadRunSequenceValidatesEachRun(t *testing.T) {
	_, err := ReadRunSequence([]byte(`[
		{"browser": "chromium"},
		{"browser": "firefox", "browserServerOptions": "bad"}
	]`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run 1")
}
