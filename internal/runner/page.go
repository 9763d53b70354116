package runner

import (
	"sync"

	"github.com/PaperStrike/wrightplay/internal/handle"
)

// exitPage wraps a handle.Page with the one extra method the browser-side
// runtime calls on it: ReportExitCode. It's registered at handle.PageID in
// place of the raw automation page so client.js's done() can report a run's
// outcome without a seventh message type (see internal/bridge's closed
// six-shape message set) — it rides the existing evaluate/handle-request
// channel instead, calling page.ReportExitCode(code, message, stack)
// against the page handle the way any other evaluate callback would call
// a page method. Embedding the full handle.Page interface, rather than a
// trimmed-down local one, keeps every method the automation engine exposes
// (Context, and whatever it reaches) visible to evaluate expressions run
// against this handle.
type exitPage struct {
	handle.Page
	once sync.Once
	done chan int

	// message and stack are the triggering error's text, when a nonzero
	// exit came from an uncaught error/rejection during init. Set before
	// the code is delivered on done so a reader never observes one
	// without the other.
	message string
	stack   string
}

func newExitPage(p handle.Page) *exitPage {
	return &exitPage{Page: p, done: make(chan int, 1)}
}

// ReportExitCode delivers code to the runner goroutine awaiting this run's
// outcome, along with the message/stack of whatever error triggered it
// (empty when the run finished cleanly). Only the first report counts: a
// page that reloads and calls done() again (§4.7's watch-mode rerun path
// uses a fresh exitPage per run instead) must not be able to overwrite an
// already-delivered result.
func (p *exitPage) ReportExitCode(code int, message, stack string) {
	p.once.Do(func() {
		p.message = message
		p.stack = stack
		p.done <- code
	})
}

// Wait blocks until ReportExitCode is called and returns the delivered code.
func (p *exitPage) Wait() int {
	return <-p.done
}
