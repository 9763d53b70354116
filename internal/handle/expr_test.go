package handle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExpressionArrow(t *testing.T) {
	t.Parallel()

	out, err := ParseExpression("page => page.url()")
	require.NoError(t, err)
	assert.Contains(t, out, "page => page.url()")
}

func TestParseExpressionAsyncArrow(t *testing.T) {
	t.Parallel()

	out, err := ParseExpression("async (page, name) => { return name; }")
	require.NoError(t, err)
	assert.Contains(t, out, "async (page, name) => { return name; }")
}

func TestParseExpressionMethodShorthand(t *testing.T) {
	t.Parallel()

	out, err := ParseExpression("pageHandle(page) { return page.url(); }")
	require.NoError(t, err)
	assert.Contains(t, out, "function pageHandle(page)")
}

func TestParseExpressionAsyncMethodShorthand(t *testing.T) {
	t.Parallel()

	out, err := ParseExpression("async pageHandle(page, eventName) { return eventName; }")
	require.NoError(t, err)
	assert.Contains(t, out, "async function pageHandle(page, eventName)")
}

func TestParseExpressionInvalid(t *testing.T) {
	t.Parallel()

	_, err := ParseExpression("this is not js at all {{{")
	require.Error(t, err)
}

func TestCutKeywordDoesNotMatchPrefix(t *testing.T) {
	t.Parallel()

	_, ok := cutKeyword("asyncFn(page) {}", "async")
	assert.False(t, ok)
}
