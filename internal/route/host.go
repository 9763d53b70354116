// Package route implements the host side of the route/interception
// protocol: the per-browsing-context dispatcher that decides whether an
// intercepted request bypasses routing outright or gets forwarded to the
// browser's own route stack for a decision, and drives the CDP Fetch
// domain through that decision's continue/abort/fulfill outcome.
//
// The LIFO matcher stack itself (glob/regex/predicate matching, times
// expiry, fallback chaining, §4.4) lives entirely in client.js: every
// request this package sees has already cleared the bypass check, so the
// host only ever needs one always-matching forwarder, not a duplicate of
// the browser's stack.
package route

import (
	"context"
	"fmt"
	"sync"

	"github.com/PaperStrike/wrightplay/internal/log"
)

// Action is the terminal decision a request settles on (§3).
type Action int

const (
	ActionContinue Action = iota
	ActionAbort
	ActionFulfill
)

// Forwarder is the single handler a List dispatches every non-bypassed
// request to.
type Forwarder func(ctx context.Context, req *Request) (Decision, error)

// Decision is what a Forwarder returned for one request.
type Decision struct {
	Action Action

	// ErrorCode is abort(errorCode)'s argument, consulted only when Action
	// is ActionAbort. Empty falls back to a generic failure reason.
	ErrorCode string

	// Overrides carries continue(overrides)'s replacements for the
	// outgoing request, consulted only when Action is ActionContinue. Nil
	// means continue the request unmodified.
	Overrides *ContinueOverrides

	Response *FulfillResponse
}

// ContinueOverrides is continue(overrides)'s effect on the outgoing
// request (§3): each non-empty field replaces the intercepted request's
// own value, mirroring Fetch.continueRequest's own override semantics.
// Body carries continue(overrides)'s postData override as raw bytes.
type ContinueOverrides struct {
	URL     string
	Method  string
	Headers map[string]string
	Body    []byte
}

// Request is the subset of an intercepted request the route protocol needs.
type Request struct {
	URL                 string
	Method              string
	Headers             map[string]string
	Body                []byte
	ResourceType        string
	IsNavigationRequest bool
}

// FulfillResponse is what ActionFulfill responds with.
type FulfillResponse struct {
	Status  int
	Headers map[string]string
	Body    []byte
}

// List is the per-browsing-context route dispatcher: a bypass-all switch
// plus the one forwarder that ships every non-bypassed request over the
// bridge for a decision.
//
// Grounded on common/network_manager.go's onRequestPaused, generalized
// from "always continue-or-fail" into the full route decision table.
type List struct {
	mu        sync.Mutex
	forward   Forwarder
	bypassAll bool
	bypassHdr string
	logger    *log.Logger
}

// NewList creates a route list with no forwarder registered yet (every
// request continues unmodified until SetForwarder is called). bypassHeader
// is the per-session escape-hatch header name (e.g. "bypass-<uuid>"); a
// request carrying it set to "true" skips routing entirely regardless of
// bypassAll (§4.3 step 1).
func NewList(bypassHeader string, logger *log.Logger) *List {
	return &List{bypassHdr: bypassHeader, logger: logger}
}

// SetForwarder installs fn as the list's forwarder, replacing whatever was
// registered before: a rerun's fresh bridge connection replaces the prior
// one's forwarder rather than stacking on top of it.
func (l *List) SetForwarder(fn Forwarder) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.forward = fn
}

// SetBypassAll toggles whether every request bypasses routing (used by the
// bridge's route-toggle message, §4.3).
func (l *List) SetBypassAll(bypass bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.bypassAll = bypass
}

// Dispatch resolves req's decision. A request carrying the list's bypass
// header set to "true" is stripped of that header and continued
// unmodified without ever reaching the forwarder (§4.3 step 1); otherwise
// bypass-all or a nil forwarder also fall through to an unmodified
// continue.
func (l *List) Dispatch(ctx context.Context, req *Request) (Decision, error) {
	if req.Headers != nil {
		if v, present := req.Headers[l.bypassHdr]; present {
			delete(req.Headers, l.bypassHdr)
			if v == "true" {
				return Decision{Action: ActionContinue}, nil
			}
		}
	}

	l.mu.Lock()
	bypassAll := l.bypassAll
	fn := l.forward
	l.mu.Unlock()

	if bypassAll || fn == nil {
		return Decision{Action: ActionContinue}, nil
	}

	decision, err := fn(ctx, req)
	if err != nil {
		return Decision{}, fmt.Errorf("route handler for %q: %w", req.URL, err)
	}
	if l.logger != nil {
		l.logger.Debugf("route", "url=%q action=%d", req.URL, decision.Action)
	}
	return decision, nil
}
