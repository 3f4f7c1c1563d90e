package webchat

import (
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/wolfman30/mediassist/internal/conversation"
)

const writeWait = 10 * time.Second

// InboundMessage is what a socket client sends.
type InboundMessage struct {
	Type string `json:"type"` // "message", "ping"
	Text string `json:"text"`
}

// OutboundMessage is what the server pushes to a socket client.
type OutboundMessage struct {
	Type      string           `json:"type"` // "message", "error", "session", "history", "pong"
	Text      string           `json:"text,omitempty"`
	Role      string           `json:"role,omitempty"`
	SessionID string           `json:"session_id,omitempty"`
	State     string           `json:"state,omitempty"`
	Timestamp string           `json:"timestamp,omitempty"`
	Messages  []HistoryMessage `json:"messages,omitempty"`
}

type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) send(msg OutboundMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(msg)
}

// HandleWebSocket upgrades the request and runs a chat loop over the socket.
// Without a known ?session= a new session is started and announced.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("webchat: websocket upgrade failed", "error", err)
		return
	}
	wsc := &wsConn{conn: conn}
	defer conn.Close()

	ctx := r.Context()
	sessionID := strings.TrimSpace(r.URL.Query().Get("session"))
	var history []conversation.ChatMessage
	if sessionID != "" {
		history, err = h.chat.History(ctx, sessionID)
		if errors.Is(err, conversation.ErrSessionNotFound) {
			h.logger.Info("webchat: unknown session, starting a new one", "session_id", sessionID)
			sessionID = ""
		} else if err != nil {
			h.logger.Error("webchat: failed to load history", "session_id", sessionID, "error", err)
			_ = wsc.send(OutboundMessage{Type: "error", Text: "failed to load session"})
			return
		}
	}
	if sessionID == "" {
		session, err := h.chat.StartSession(ctx)
		if err != nil {
			h.logger.Error("webchat: failed to start session", "error", err)
			_ = wsc.send(OutboundMessage{Type: "error", Text: "failed to start session"})
			return
		}
		sessionID = session.ID
		history = session.History.Visible()
	}

	if err := wsc.send(OutboundMessage{Type: "session", SessionID: sessionID}); err != nil {
		return
	}
	if len(history) > 0 {
		if err := wsc.send(OutboundMessage{Type: "history", SessionID: sessionID, Messages: toHistory(history)}); err != nil {
			return
		}
	}

	h.register(sessionID, wsc)
	defer h.unregister(sessionID, wsc)
	h.logger.Info("webchat: connection opened", "session_id", sessionID)

	for {
		var msg InboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			h.logger.Debug("webchat: connection closed", "session_id", sessionID, "error", err)
			return
		}
		switch msg.Type {
		case "ping":
			_ = wsc.send(OutboundMessage{Type: "pong"})
			continue
		case "message":
		default:
			continue
		}
		if strings.TrimSpace(msg.Text) == "" {
			continue
		}

		reply, err := h.chat.HandleMessage(ctx, sessionID, msg.Text)
		if err != nil {
			_, text := h.messageError(sessionID, err)
			_ = wsc.send(OutboundMessage{Type: "error", Text: text, SessionID: sessionID})
			continue
		}
		h.SendToSession(sessionID, OutboundMessage{
			Type:      "message",
			Role:      conversation.ChatRoleAssistant,
			Text:      reply.Text,
			SessionID: sessionID,
			State:     reply.State,
			Timestamp: h.now().UTC().Format(time.RFC3339),
		})
	}
}

// SendToSession pushes a frame to every socket open on the session.
func (h *Handler) SendToSession(sessionID string, msg OutboundMessage) {
	h.mu.RLock()
	conns := make([]*wsConn, 0, len(h.sessions[sessionID]))
	for c := range h.sessions[sessionID] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()
	for _, c := range conns {
		if err := c.send(msg); err != nil {
			h.logger.Debug("webchat: push failed", "session_id", sessionID, "error", err)
		}
	}
}

func (h *Handler) register(sessionID string, c *wsConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sessions[sessionID] == nil {
		h.sessions[sessionID] = make(map[*wsConn]struct{})
	}
	h.sessions[sessionID][c] = struct{}{}
}

func (h *Handler) unregister(sessionID string, c *wsConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions[sessionID], c)
	if len(h.sessions[sessionID]) == 0 {
		delete(h.sessions, sessionID)
	}
}

func (h *Handler) connectionCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}

// originChecker accepts same-host requests, requests without an Origin
// header, and listed origins.
func originChecker(allowed []string) func(*http.Request) bool {
	allowAny := len(allowed) == 0
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		o = strings.TrimSpace(o)
		if o == "*" {
			allowAny = true
		}
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if allowAny || origin == "" {
			return true
		}
		if _, ok := set[origin]; ok {
			return true
		}
		return strings.TrimPrefix(strings.TrimPrefix(origin, "https://"), "http://") == r.Host
	}
}
