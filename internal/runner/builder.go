package runner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/PaperStrike/wrightplay/internal/bundler"
)

// passthroughBuilder is the harness's default bundler.Builder: it serves
// the synthesized entry and every file it imports unmodified. Real
// deployments wire in an actual bundler (esbuild, Rollup, ...) through the
// same Builder seam — the transform itself is out of scope (§1's Non-goal)
// — but internal/runner needs *some* implementation to drive
// bundler.Server end to end, so this one assumes the harness's own test
// files are plain ES modules a browser can load directly.
type passthroughBuilder struct {
	entryPath string
}

func newPassthroughBuilder() *passthroughBuilder {
	return &passthroughBuilder{entryPath: "entry.js"}
}

func (b *passthroughBuilder) Build(_ context.Context, entrySource string) (map[string]bundler.BuiltFile, error) {
	out := map[string]bundler.BuiltFile{
		b.entryPath: hashedFile([]byte(entrySource), ""),
	}
	return out, nil
}

func hashedFile(content []byte, contentType string) bundler.BuiltFile {
	sum := sha256.Sum256(content)
	return bundler.BuiltFile{
		Content:     content,
		Hash:        hex.EncodeToString(sum[:8]),
		ContentType: contentType,
	}
}
