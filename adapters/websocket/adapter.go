package websocket

import (
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	gorillaws "github.com/gorilla/websocket"

	"leaderboardkit/core"
	"leaderboardkit/realtime"
)

// ClearCommand is the inbound frame that forgets the current identity.
const ClearCommand = "clear"

// CredentialSink receives identities from the socket. *session.Session satisfies it.
type CredentialSink interface {
	SetUserData(raw string) error
	ClearUserData()
}

// Ack answers every inbound frame.
type Ack struct {
	Type  string `json:"type"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type Option func(*handler)

// WithOriginCheck restricts which origins may connect. All origins are accepted by default.
func WithOriginCheck(fn func(*http.Request) bool) Option {
	return func(h *handler) {
		if fn != nil {
			h.upgrader.CheckOrigin = fn
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(h *handler) {
		if l != nil {
			h.logger = l
		}
	}
}

func WithWriteTimeout(d time.Duration) Option {
	return func(h *handler) {
		if d > 0 {
			h.writeTimeout = d
		}
	}
}

type handler struct {
	hub          *realtime.Hub
	sink         CredentialSink
	upgrader     gorillaws.Upgrader
	logger       *slog.Logger
	writeTimeout time.Duration
}

// Handler returns an http.Handler that upgrades to WebSocket. Inbound text
// frames carry "username,mode,token" or ClearCommand and are applied to sink;
// each is answered with an Ack. Events from the hub are streamed out.
// A nil sink makes the socket stream-only.
func Handler(hub *realtime.Hub, sink CredentialSink, opts ...Option) http.Handler {
	h := &handler{
		hub:          hub,
		sink:         sink,
		upgrader:     gorillaws.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		writeTimeout: 5 * time.Second,
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	id, events := h.hub.Subscribe(256)
	acks := make(chan Ack, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.writeLoop(conn, events, acks)
	}()

	for {
		mt, msg, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if mt != gorillaws.TextMessage {
			continue
		}
		select {
		case acks <- h.apply(string(msg)):
		default:
			h.logger.Warn("dropping websocket ack; writer is behind")
		}
	}

	h.hub.Unsubscribe(id)
	<-done
}

func (h *handler) apply(msg string) Ack {
	if h.sink == nil {
		return Ack{Type: "ack", Error: "credential channel disabled"}
	}
	if strings.EqualFold(strings.TrimSpace(msg), ClearCommand) {
		h.sink.ClearUserData()
		return Ack{Type: "ack", OK: true}
	}
	if err := h.sink.SetUserData(msg); err != nil {
		return Ack{Type: "ack", Error: err.Error()}
	}
	return Ack{Type: "ack", OK: true}
}

// writeLoop is the only goroutine writing to conn.
func (h *handler) writeLoop(conn *gorillaws.Conn, events <-chan core.Event, acks <-chan Ack) {
	for {
		var err error
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			err = conn.WriteMessage(gorillaws.TextMessage, realtime.MarshalJSON(ev))
		case a := <-acks:
			_ = conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			err = conn.WriteJSON(a)
		}
		if err != nil {
			h.logger.Debug("websocket write failed", "error", err)
			_ = conn.Close()
			// keep draining until the reader unsubscribes
			for range events {
			}
			return
		}
	}
}
