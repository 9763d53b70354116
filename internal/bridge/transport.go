package bridge

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/PaperStrike/wrightplay/internal/log"
)

const (
	// WSPath is the fixed path client.js upgrades to open the bridge.
	WSPath        = "/__wrightplay__"
	subprotocol   = "route"
	writeDeadline = 10 * time.Second
)

// upgrader is package-level like most gorilla/websocket users' upgraders;
// it carries no per-connection state.
var upgrader = websocket.Upgrader{
	Subprotocols:    []string{subprotocol},
	ReadBufferSize:  1 << 16,
	WriteBufferSize: 1 << 16,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Transport is the host side of one browser<->host bridge connection: a
// duplex channel of Envelope messages, correlated by ID/ResolveID, plus the
// UUID session handshake that lets the host recognize which browsing
// context a given connection belongs to.
//
// Grounded on common/connection.go's Connection: send/recv channel pump
// goroutines, atomic message-id counter, one Connection per WebSocket. The
// direction is reversed here (the host is the WS server accepting a
// connection the browser initiates, rather than dialing out to a
// devtools endpoint), so NewTransport takes an already-upgraded
// *websocket.Conn instead of a URL to dial.
type Transport struct {
	SessionID uuid.UUID

	logger *log.Logger
	conn   *websocket.Conn

	sendCh chan *Envelope
	done   chan struct{}
	once   sync.Once

	msgID int64

	pendingMu sync.Mutex
	pending   map[int]chan *Envelope

	handlersMu sync.RWMutex
	handlers   map[MessageType]func(*Envelope)
}

// Upgrade upgrades an incoming HTTP request into a bridge Transport,
// performing the UUID handshake: the browser is expected to send its
// session id as the first text frame, which Upgrade reads and echoes back
// before returning.
func Upgrade(w http.ResponseWriter, r *http.Request, logger *log.Logger) (*Transport, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("bridge: upgrading connection: %w", err)
	}

	_, msg, err := conn.ReadMessage()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("bridge: reading handshake: %w", err)
	}
	sessionID, err := uuid.Parse(string(msg))
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("bridge: invalid handshake session id: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("bridge: echoing handshake: %w", err)
	}

	t := &Transport{
		SessionID: sessionID,
		logger:    logger.With(logrus.Fields{"session": sessionID.String()}),
		conn:      conn,
		sendCh:    make(chan *Envelope, 32),
		done:      make(chan struct{}),
		pending:   make(map[int]chan *Envelope),
		handlers:  make(map[MessageType]func(*Envelope)),
	}

	go t.sendLoop()
	go t.recvLoop()

	return t, nil
}

// OnMessage registers the handler invoked for every unsolicited (not a
// resolve for a pending Request) incoming message of the given type.
func (t *Transport) OnMessage(typ MessageType, fn func(*Envelope)) {
	t.handlersMu.Lock()
	defer t.handlersMu.Unlock()
	t.handlers[typ] = fn
}

// Send enqueues env for the browser without waiting for a reply.
func (t *Transport) Send(env *Envelope) {
	select {
	case t.sendCh <- env:
	case <-t.done:
	}
}

// Request sends env (assigning it a fresh id) and blocks until the browser
// sends back an Envelope with a matching ResolveID.
func (t *Transport) Request(env *Envelope) (*Envelope, error) {
	id := int(atomic.AddInt64(&t.msgID, 1))
	env.ID = id

	reply := make(chan *Envelope, 1)
	t.pendingMu.Lock()
	t.pending[id] = reply
	t.pendingMu.Unlock()
	defer func() {
		t.pendingMu.Lock()
		delete(t.pending, id)
		t.pendingMu.Unlock()
	}()

	t.Send(env)

	select {
	case resp := <-reply:
		return resp, nil
	case <-t.done:
		return nil, fmt.Errorf("bridge: connection closed while awaiting reply to message %d", id)
	}
}

// Close shuts the connection down and unblocks every pending Request.
func (t *Transport) Close() error {
	var err error
	t.once.Do(func() {
		close(t.done)
	})
	err = t.conn.Close()
	return err
}

func (t *Transport) sendLoop() {
	for {
		select {
		case env := <-t.sendCh:
			raw, err := json.Marshal(env)
			if err != nil {
				t.logger.Errorf("bridge:send", "marshaling envelope: %s", err)
				continue
			}
			_ = t.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := t.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				t.logger.Errorf("bridge:send", "writing message: %s", err)
				return
			}
		case <-t.done:
			return
		}
	}
}

func (t *Transport) recvLoop() {
	defer t.once.Do(func() { close(t.done) })
	for {
		_, raw, err := t.conn.ReadMessage()
		if err != nil {
			return
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			t.logger.Errorf("bridge:recv", "decoding envelope: %s", err)
			continue
		}

		if env.ResolveID != nil {
			t.pendingMu.Lock()
			reply, ok := t.pending[*env.ResolveID]
			t.pendingMu.Unlock()
			if ok {
				reply <- &env
				continue
			}
			t.logger.Warnf("bridge:recv", "resolve for unknown message id %d", *env.ResolveID)
			continue
		}

		t.handlersMu.RLock()
		fn := t.handlers[env.Type]
		t.handlersMu.RUnlock()
		if fn != nil {
			fn(&env)
		} else {
			t.logger.Warnf("bridge:recv", "no handler registered for message type %q", env.Type)
		}
	}
}
