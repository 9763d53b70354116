package runner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	null "gopkg.in/guregu/null.v3"

	"github.com/PaperStrike/wrightplay/internal/config"
)

func TestResolveCwdPrefersConfig(t *testing.T) {
	t.Parallel()

	cwd, err := resolveCwd(config.Config{Cwd: null.StringFrom("/tmp/explicit")})
	require.NoError(t, err)
	assert.Equal(t, "/tmp/explicit", cwd)
}

func TestResolveCwdFallsBackToWorkingDirectory(t *testing.T) {
	t.Parallel()

	want, err := os.Getwd()
	require.NoError(t, err)

	got, err := resolveCwd(config.Config{})
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestGatherEntriesMergesPositionalAndConfigSources(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testFile := filepath.Join(dir, "a.test.js")
	require.NoError(t, os.WriteFile(testFile, []byte(""), 0o644))
	namedFile := filepath.Join(dir, "extra.js")
	require.NoError(t, os.WriteFile(namedFile, []byte(""), 0o644))

	cfg := config.Config{
		Entries:     []string{"*.test.js"},
		EntryPoints: map[string]string{"extra": "extra.js"},
	}

	entries, err := gatherEntries(dir, cfg)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	var names []string
	for _, e := range entries {
		names = append(names, e.Name)
	}
	assert.Contains(t, names, "extra")
}
