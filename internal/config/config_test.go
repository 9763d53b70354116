package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	null "gopkg.in/guregu/null.v3"
)

func TestFromFlagsOnlySetsChanged(t *testing.T) {
	fs := FlagSet()
	require.NoError(t, fs.Parse([]string{"--browser=firefox", "entry.test.js"}))

	c, err := FromFlags(fs, fs.Args())
	require.NoError(t, err)

	assert.True(t, c.Browser.Valid)
	assert.Equal(t, "firefox", c.Browser.String)
	assert.False(t, c.Watch.Valid)
	assert.False(t, c.Debug.Valid)
	assert.Equal(t, []string{"entry.test.js"}, c.Entries)
}

func TestFromFlagsRejectsMalformedBrowserServerOptions(t *testing.T) {
	fs := FlagSet()
	require.NoError(t, fs.Parse([]string{"--browser-server-options={not json"}))

	_, err := FromFlags(fs, nil)
	require.Error(t, err)
}

func TestFromFlagsRejectsNonObjectBrowserServerOptions(t *testing.T) {
	fs := FlagSet()
	require.NoError(t, fs.Parse([]string{`--browser-server-options=["a"]`}))

	_, err := FromFlags(fs, nil)
	require.Error(t, err)
}

func TestFromFileParsesAndValidates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wrightplay.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"browser": "chromium",
		"watch": true,
		"browserServerOptions": {"wsEndpoint": "ws://localhost:9222"}
	}`), 0o644))

	c, err := FromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "chromium", c.Browser.String)
	assert.True(t, c.Watch.ValueOrZero())
	assert.JSONEq(t, `{"wsEndpoint": "ws://localhost:9222"}`, string(c.BrowserServerOptions))
}

func TestFromFileRejectsBadBrowserServerOptions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wrightplay.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"browserServerOptions": "not-an-object"}`), 0o644))

	_, err := FromFile(path)
	require.Error(t, err)
}

func TestApplyOnlyOverwritesValidFields(t *testing.T) {
	base := Config{
		Browser: null.StringFrom("chromium"),
		Debug:   null.BoolFrom(false),
	}
	override := Config{
		Debug: null.BoolFrom(true),
	}

	merged := base.Apply(override)
	assert.Equal(t, "chromium", merged.Browser.String)
	assert.True(t, merged.Debug.ValueOrZero())
}

func TestApplyPrefersOverrideEntries(t *testing.T) {
	base := Config{Entries: []string{"a.test.js"}}
	override := Config{Entries: []string{"b.test.js", "c.test.js"}}

	merged := base.Apply(override)
	assert.Equal(t, []string{"b.test.js", "c.test.js"}, merged.Entries)
}
