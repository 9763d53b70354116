package bundler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PaperStrike/wrightplay/internal/log"
)

type stubBuilder struct {
	calls int
	files map[string]BuiltFile
	err   error
}

func (b *stubBuilder) Build(ctx context.Context, entrySource string) (map[string]BuiltFile, error) {
	b.calls++
	if b.err != nil {
		return nil, b.err
	}
	return b.files, nil
}

func testLogger() *log.Logger {
	l := logrus.New()
	l.SetOutput(discardWriter{})
	return log.New(l, "test")
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestServeBuiltArtifact(t *testing.T) {
	b := &stubBuilder{files: map[string]BuiltFile{
		"bundle.js": {Content: []byte("console.log(1)"), Hash: "h1"},
	}}
	s := NewServer(b, "entry-src", "", "", testLogger())
	require.NoError(t, s.Build(context.Background()))

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/bundle.js")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "charset=utf-8")
}

func TestServeFallsBackToWorkDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fixture.json"), []byte(`{}`), 0o644))

	b := &stubBuilder{files: map[string]BuiltFile{}}
	s := NewServer(b, "entry-src", "", dir, testLogger())
	require.NoError(t, s.Build(context.Background()))

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/fixture.json")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestBuildNotifiesChangeOnlyWhenDifferent(t *testing.T) {
	b := &stubBuilder{files: map[string]BuiltFile{"a.js": {Hash: "h1"}}}
	s := NewServer(b, "entry", "", "", testLogger())
	changes := s.OnChange()

	require.NoError(t, s.Build(context.Background()))
	select {
	case <-changes:
	default:
		t.Fatal("expected a change notification on first build")
	}

	require.NoError(t, s.Build(context.Background()))
	select {
	case <-changes:
		t.Fatal("did not expect a change notification when output is identical")
	default:
	}

	b.files = map[string]BuiltFile{"a.js": {Hash: "h2"}}
	require.NoError(t, s.Build(context.Background()))
	select {
	case <-changes:
	default:
		t.Fatal("expected a change notification when hash differs")
	}
}

func TestBuildKeepsPriorOutputOnFailure(t *testing.T) {
	b := &stubBuilder{files: map[string]BuiltFile{"a.js": {Hash: "h1", Content: []byte("x")}}}
	s := NewServer(b, "entry", "", "", testLogger())
	require.NoError(t, s.Build(context.Background()))

	b.err = assert.AnError
	require.Error(t, s.Build(context.Background()))

	s.mu.RLock()
	defer s.mu.RUnlock()
	assert.Equal(t, []byte("x"), s.built["a.js"].Content)
}
