package runner

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/PaperStrike/wrightplay/internal/bundler"
)

// splitEntries separates the CLI's positional arguments (§6: "mixed list
// of file globs ... and name=path entries") into plain test patterns and
// named additional entry points.
//
// Grounded directly on spec §6; there's no teacher analogue since
// xk6-browser takes no positional file arguments.
func splitEntries(entries []string) (patterns []string, named map[string]string) {
	named = make(map[string]string)
	for _, e := range entries {
		if name, path, ok := strings.Cut(e, "="); ok && name != "" {
			named[name] = path
			continue
		}
		patterns = append(patterns, e)
	}
	return patterns, named
}

// resolveEntryPoints expands every test glob pattern against cwd and
// combines the result with the named entry points, in the order they'll
// be imported by the synthesized entry: named entries first (they're
// independent bundle inputs), then matched test files.
func resolveEntryPoints(cwd string, patterns []string, named map[string]string) ([]bundler.EntryPoint, error) {
	var points []bundler.EntryPoint
	for name, path := range named {
		points = append(points, bundler.EntryPoint{Name: name, Path: resolvePath(cwd, path)})
	}
	for _, pattern := range patterns {
		matches, err := filepath.Glob(resolvePath(cwd, pattern))
		if err != nil {
			return nil, fmt.Errorf("resolving test pattern %q: %w", pattern, err)
		}
		for _, m := range matches {
			points = append(points, bundler.EntryPoint{Path: m})
		}
	}
	return points, nil
}

func resolvePath(cwd, p string) string {
	if cwd == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(cwd, p)
}
