// Package cdp implements the host-side browser automation engine: it
// drives a real browser over the Chrome DevTools Protocol and exposes the
// small set of operations (navigate, close, network interception) the rest
// of the harness needs through the internal/handle.Page/BrowsingContext
// contracts.
package cdp

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/target"
	"github.com/gorilla/websocket"
	"github.com/mailru/easyjson"
	"github.com/mailru/easyjson/jlexer"
	"github.com/mailru/easyjson/jwriter"

	"github.com/PaperStrike/wrightplay/internal/log"
)

const wsWriteBufferSize = 1 << 20

// ErrChannelClosed is returned when a pending command's reply channel is
// closed by connection teardown before a response arrives.
var ErrChannelClosed = errors.New("cdp: connection closed before response arrived")

// EventFunc is invoked for every CDP event the connection or one of its
// sessions receives, keyed by method name ("" for anonymous replies).
type EventFunc func(method string, data any)

// Connection is a raw CDP JSON-RPC connection over one WebSocket, the same
// shape as common/connection.go's Connection: a send/recv channel pump and
// a per-target Session map, minus the k6-specific VU/state plumbing this
// harness has no equivalent of.
type Connection struct {
	logger *log.Logger
	conn   *websocket.Conn

	sendCh  chan *cdproto.Message
	closeCh chan int
	errorCh chan error
	done    chan struct{}
	once    sync.Once
	msgID   int64

	sessionsMu sync.RWMutex
	sessions   map[target.SessionID]*Session

	listenersMu sync.RWMutex
	listeners   []EventFunc

	decoder jlexer.Lexer
	encoder jwriter.Writer
}

// Dial opens a CDP WebSocket connection to wsURL (obtained from the
// browser's /json/version endpoint).
func Dial(ctx context.Context, wsURL string, logger *log.Logger) (*Connection, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 60 * time.Second,
		Proxy:            http.ProxyFromEnvironment,
		TLSClientConfig:  &tls.Config{}, //nolint:gosec // devtools endpoints are local
		WriteBufferSize:  wsWriteBufferSize,
	}
	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("cdp: dialing %s: %w", wsURL, err)
	}

	c := &Connection{
		logger:   logger,
		conn:     conn,
		sendCh:   make(chan *cdproto.Message, 32),
		closeCh:  make(chan int),
		errorCh:  make(chan error),
		done:     make(chan struct{}),
		sessions: make(map[target.SessionID]*Session),
	}
	go c.recvLoop()
	go c.sendLoop()
	return c, nil
}

// OnEvent registers fn to be called for every event this connection (or any
// of its sessions) receives.
func (c *Connection) OnEvent(fn EventFunc) {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()
	c.listeners = append(c.listeners, fn)
}

func (c *Connection) emit(method string, data any) {
	c.listenersMu.RLock()
	defer c.listenersMu.RUnlock()
	for _, fn := range c.listeners {
		fn(method, data)
	}
}

// Session returns the CDP session attached to sessionID, creating it if
// this is the first message seen for it.
func (c *Connection) Session(id target.SessionID) *Session {
	c.sessionsMu.Lock()
	defer c.sessionsMu.Unlock()
	if s, ok := c.sessions[id]; ok {
		return s
	}
	s := newSession(c, id)
	c.sessions[id] = s
	return s
}

func (c *Connection) closeSession(id target.SessionID) {
	c.sessionsMu.Lock()
	defer c.sessionsMu.Unlock()
	if s, ok := c.sessions[id]; ok {
		s.markClosed()
		delete(c.sessions, id)
	}
}

// Close shuts the connection down.
func (c *Connection) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		err = c.conn.Close()
	})
	return err
}

func (c *Connection) recvLoop() {
	for {
		_, buf, err := c.conn.ReadMessage()
		if err != nil {
			c.handleIOError(err)
			return
		}
		c.logger.Debugf("cdp:recv", "<- %s", buf)

		var msg cdproto.Message
		c.decoder = jlexer.Lexer{Data: buf}
		msg.UnmarshalEasyJSON(&c.decoder)
		if err := c.decoder.Error(); err != nil {
			c.logger.Errorf("cdp", "decoding message: %s", err)
			continue
		}

		if msg.Method == cdproto.EventTargetDetachedFromTarget {
			if ev, err := cdproto.UnmarshalMessage(&msg); err == nil {
				c.closeSession(ev.(*target.EventDetachedFromTarget).SessionID)
			}
		}

		switch {
		case msg.SessionID != "" && (msg.Method != "" || msg.ID != 0):
			c.sessionsMu.RLock()
			s, ok := c.sessions[msg.SessionID]
			c.sessionsMu.RUnlock()
			if ok {
				s.dispatch(&msg)
			}
		case msg.Method != "":
			ev, err := cdproto.UnmarshalMessage(&msg)
			if err != nil {
				c.logger.Errorf("cdp", "unmarshaling event %s: %s", msg.Method, err)
				continue
			}
			c.emit(string(msg.Method), ev)
		case msg.ID != 0:
			c.emit("", &msg)
		}
	}
}

func (c *Connection) handleIOError(err error) {
	if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		select {
		case c.errorCh <- err:
		case <-c.done:
		}
		return
	}
	code := websocket.CloseGoingAway
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		code = ce.Code
	}
	select {
	case c.closeCh <- code:
	case <-c.done:
	}
}

func (c *Connection) sendLoop() {
	for {
		select {
		case msg := <-c.sendCh:
			c.encoder = jwriter.Writer{}
			msg.MarshalEasyJSON(&c.encoder)
			buf, err := c.encoder.BuildBytes()
			if err != nil {
				select {
				case c.errorCh <- err:
				case <-c.done:
				}
				continue
			}
			c.logger.Debugf("cdp:send", "-> %s", buf)
			if err := c.conn.WriteMessage(websocket.TextMessage, buf); err != nil {
				c.handleIOError(err)
				return
			}
		case code := <-c.closeCh:
			_ = c.Close()
			_ = code
			return
		case <-c.done:
			return
		}
	}
}

// Execute implements cdp.Executor for the root browser target (no session
// id attached).
func (c *Connection) Execute(ctx context.Context, method string, params easyjson.Marshaler, res easyjson.Unmarshaler) error {
	id := atomic.AddInt64(&c.msgID, 1)
	ch := make(chan *cdproto.Message, 1)
	cancel := c.awaitReply(id, ch)
	defer cancel()

	buf, err := marshalParams(params)
	if err != nil {
		return err
	}
	msg := &cdproto.Message{ID: id, Method: cdproto.MethodType(method), Params: buf}
	return c.roundTrip(msg, ch, res)
}

func (c *Connection) awaitReply(id int64, ch chan *cdproto.Message) func() {
	done := make(chan struct{})
	c.OnEvent(func(method string, data any) {
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
	return func() { close(done) }
}

func (c *Connection) roundTrip(msg *cdproto.Message, ch chan *cdproto.Message, res easyjson.Unmarshaler) error {
	select {
	case c.sendCh <- msg:
	case err := <-c.errorCh:
		return err
	case <-c.done:
		return ErrChannelClosed
	}

	select {
	case reply := <-ch:
		if reply == nil {
			return ErrChannelClosed
		}
		if reply.Error != nil {
			return reply.Error
		}
		if res != nil {
			return easyjson.Unmarshal(reply.Result, res)
		}
		return nil
	case err := <-c.errorCh:
		return err
	case <-c.done:
		return ErrChannelClosed
	}
}

func marshalParams(params easyjson.Marshaler) ([]byte, error) {
	if params == nil {
		return nil, nil
	}
	return easyjson.Marshal(params)
}

var _ cdp.Executor = (*Connection)(nil)
