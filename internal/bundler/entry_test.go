package bundler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSynthesizeEntryImportsSetupBeforeTests(t *testing.T) {
	src := SynthesizeEntry("./setup.js", []EntryPoint{
		{Path: "./a.test.js"},
		{Path: "./b.test.js"},
	}, "11111111-1111-1111-1111-111111111111", "bypass-abc")

	setupIdx := indexOf(src, `import setup from "./setup.js";`)
	testIdx := indexOf(src, `import test_0 from "./a.test.js";`)
	assert.NotEqual(t, -1, setupIdx)
	assert.NotEqual(t, -1, testIdx)
	assert.Less(t, setupIdx, testIdx)
	assert.Contains(t, src, "wrightplay:init")
	assert.Contains(t, src, "11111111-1111-1111-1111-111111111111")
	assert.Contains(t, src, "__wrightplayBypassHeader = \"bypass-abc\"")
}

func TestSynthesizeEntryWithoutSetup(t *testing.T) {
	src := SynthesizeEntry("", []EntryPoint{{Path: "./a.test.js"}}, "sid", "bypass-x")
	assert.NotContains(t, src, "import setup")
	assert.Contains(t, src, "import test_0")
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
