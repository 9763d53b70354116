// Package handle implements the host side of the handle protocol: the
// target vector that gives out-of-band handle ids meaning, the JS source
// rewriting evaluate needs to accept both expressions and functions, and
// the five actions the browser side of the bridge can invoke against a
// handle (evaluate, jsonValue, getProperty, getProperties, dispose).
package handle

import (
	"fmt"
	"sync"

	"github.com/PaperStrike/wrightplay/internal/log"
)

// Reserved target-vector ids, populated before any user code runs (§4.1).
const (
	BrowsingContextID = 0
	PageID            = 1
)

// Registry is the host-side, append-only target vector. Ids are handed out
// in allocation order starting at 0; disposing an id just drops the Go
// reference at that slot; it never renumbers or reuses ids.
type Registry struct {
	mu      sync.Mutex
	targets []any
	logger  *log.Logger
}

// NewRegistry creates a registry with the two reserved ids already
// populated: 0 is the browsing context, 1 is the page.
func NewRegistry(browsingContext, page any, logger *log.Logger) *Registry {
	return &Registry{
		targets: []any{browsingContext, page},
		logger:  logger,
	}
}

// Add appends value to the vector and returns its new id.
func (r *Registry) Add(value any) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := len(r.targets)
	r.targets = append(r.targets, value)
	if r.logger != nil {
		r.logger.Debugf("handle", "registered id=%d type=%T", id, value)
	}
	return id
}

// Get resolves id against the vector. ok is false for a disposed or
// never-allocated id, which callers must treat as a protocol error.
func (r *Registry) Get(id int) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id < 0 || id >= len(r.targets) {
		return nil, false
	}
	v := r.targets[id]
	if v == nil {
		return nil, false
	}
	return v, true
}

// Dispose drops the reference held at id. Ids 0 and 1 can't be disposed;
// the browsing context and page live for the lifetime of the session.
func (r *Registry) Dispose(id int) error {
	if id == BrowsingContextID || id == PageID {
		return fmt.Errorf("handle %d: browsing context and page handles cannot be disposed", id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if id < 0 || id >= len(r.targets) || r.targets[id] == nil {
		return fmt.Errorf("handle %d: not present in target vector", id)
	}
	r.targets[id] = nil
	if r.logger != nil {
		r.logger.Debugf("handle", "disposed id=%d", id)
	}
	return nil
}
