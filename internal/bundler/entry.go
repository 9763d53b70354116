package bundler

import (
	"fmt"
	"strconv"
	"strings"
)

// EntryPoint is one file the synthesized entry imports: either a matched
// test file (imported for side effects) or a named additional entry point
// from a `name=path` CLI argument (§6).
type EntryPoint struct {
	// Name is empty for plain test files, non-empty for `name=path`
	// arguments.
	Name string
	Path string
}

// SynthesizeEntry builds the virtual entry module source: it imports the
// optional setup file first, then every test file, then dispatches an
// init event carrying the session UUID (§4.6, §4.1's "onInit" hook this
// feeds).
//
// Grounded on spec §4.6's synthesized-entry description; there is no
// teacher analogue for an entry template (xk6-browser has no bundler), so
// this is authored directly to the spec rather than adapted from an
// existing file.
func SynthesizeEntry(setup string, tests []EntryPoint, sessionID string, bypassHeader string) string {
	var b strings.Builder

	if setup != "" {
		fmt.Fprintf(&b, "import %s from %s;\n", "setup", strconv.Quote(setup))
	}
	for i, e := range tests {
		fmt.Fprintf(&b, "import %s from %s;\n", "test_"+strconv.Itoa(i), strconv.Quote(e.Path))
	}
	b.WriteString("\n")
	b.WriteString("window.__wrightplaySessionId = " + strconv.Quote(sessionID) + ";\n")
	b.WriteString("window.__wrightplayBypassHeader = " + strconv.Quote(bypassHeader) + ";\n")
	if setup != "" {
		b.WriteString("await setup;\n")
	}
	b.WriteString("window.dispatchEvent(new CustomEvent('wrightplay:init', { detail: { sessionId: " +
		strconv.Quote(sessionID) + " } }));\n")

	return b.String()
}
