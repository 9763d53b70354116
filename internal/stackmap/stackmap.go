// Package stackmap remaps a JavaScript stack trace pointing at bundled
// output back to the original source files a source map was generated
// for, the way an editor's debugger resolves a minified position to the
// line a developer actually wrote.
//
// Grounded on compiler.go's use of go-sourcemap/sourcemap to load and
// consult a source map (sourcemap.Parse, then querying it by generated
// position); this package takes that a step further, rewriting whole
// stack-trace frames rather than resolving one position at a time.
package stackmap

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-sourcemap/sourcemap"
)

// Mapper resolves generated-file positions back to original source
// positions using a single parsed source map.
type Mapper struct {
	consumer *sourcemap.Consumer
}

// New parses mapJSON, the source map generated alongside a build's output.
func New(mapJSON []byte) (*Mapper, error) {
	consumer, err := sourcemap.Parse("", mapJSON)
	if err != nil {
		return nil, fmt.Errorf("stackmap: parsing source map: %w", err)
	}
	return &Mapper{consumer: consumer}, nil
}

// frameRE matches a V8-style stack frame's trailing location, whether or
// not it's parenthesized:
//
//	at foo (bundle.js:12:34)
//	at bundle.js:12:34
var frameRE = regexp.MustCompile(`([\w.\-/]+):(\d+):(\d+)\)?$`)

// Remap rewrites every frame in stack whose generated position the source
// map covers, in place of the bundled file/line/column, with the original
// source file, line, and column. Frames the map doesn't cover (native
// frames, or a stack from code the map wasn't generated for) are left
// untouched rather than dropped.
func (m *Mapper) Remap(stack string) string {
	lines := strings.Split(stack, "\n")
	for i, line := range lines {
		lines[i] = m.remapLine(line)
	}
	return strings.Join(lines, "\n")
}

func (m *Mapper) remapLine(line string) string {
	loc := frameRE.FindStringSubmatchIndex(line)
	if loc == nil {
		return line
	}

	genLine, err := strconv.Atoi(line[loc[4]:loc[5]])
	if err != nil {
		return line
	}
	genCol, err := strconv.Atoi(line[loc[6]:loc[7]])
	if err != nil {
		return line
	}

	source, _, srcLine, srcCol, ok := m.consumer.Source(genLine, genCol)
	if !ok || source == "" {
		return line
	}

	replacement := fmt.Sprintf("%s:%d:%d", source, srcLine, srcCol)
	if strings.HasSuffix(line[loc[0]:loc[1]], ")") {
		replacement += ")"
	}
	return line[:loc[0]] + replacement
}
