package cdp

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/chromedp/cdproto"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/target"
	"github.com/mailru/easyjson"
)

// ErrTargetCrashed mirrors common/session.go's crash guard: Execute returns
// it without sending anything once the session has been marked crashed
// (markCrashed). Nothing in this package calls markCrashed, so commands
// against a crashed target are sent as usual.
var ErrTargetCrashed = errors.New("cdp: target crashed")

// Session is a CDP session attached to one target (a page, worker, etc.).
// Grounded on common/session.go's Session/Execute, minus k6's VU-scoped
// event bus (this package emits through Connection.OnEvent instead).
type Session struct {
	conn    *Connection
	id      target.SessionID
	msgID   int64
	mu      sync.RWMutex
	closed  bool
	crashed bool
}

func newSession(conn *Connection, id target.SessionID) *Session {
	return &Session{conn: conn, id: id}
}

// ID returns the CDP session id.
func (s *Session) ID() target.SessionID { return s.id }

func (s *Session) markClosed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *Session) markCrashed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.crashed = true
}

func (s *Session) dispatch(msg *cdproto.Message) {
	if msg.Method != "" {
		if ev, err := cdproto.UnmarshalMessage(msg); err == nil {
			s.conn.emit(string(msg.Method), ev)
		}
		return
	}
	s.conn.emit("", msg)
}

// Execute implements cdp.Executor, scoped to this session.
func (s *Session) Execute(ctx context.Context, method string, params easyjson.Marshaler, res easyjson.Unmarshaler) error {
	if method == target.CommandCloseTarget {
		return errors.New("cdp: close the target's context instead of calling Target.closeTarget directly")
	}
	s.mu.RLock()
	crashed := s.crashed
	s.mu.RUnlock()
	if crashed {
		return ErrTargetCrashed
	}

	id := atomic.AddInt64(&s.msgID, 1)
	ch := make(chan *cdproto.Message, 1)
	done := make(chan struct{})
	s.conn.OnEvent(func(method string, data any) {
		if method != "" {
			return
		}
		msg, ok := data.(*cdproto.Message)
		if !ok || int64(msg.ID) != id {
			return
		}
		select {
		case ch <- msg:
		case <-done:
		}
	})
	defer close(done)

	buf, err := marshalParams(params)
	if err != nil {
		return err
	}
	msg := &cdproto.Message{ID: id, SessionID: s.id, Method: cdproto.MethodType(method), Params: buf}
	return s.conn.roundTrip(msg, ch, res)
}

var _ cdp.Executor = (*Session)(nil)
