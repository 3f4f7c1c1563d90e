// Package webchat exposes the assistant over HTTP and WebSocket.
package webchat

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/wolfman30/mediassist/internal/conversation"
	"github.com/wolfman30/mediassist/pkg/logging"
)

// DefaultMaxUploadBytes bounds document uploads when no limit is configured.
const DefaultMaxUploadBytes int64 = 10 << 20

const backendErrorText = "Sorry, I could not reach the assistant right now. Please try again."

// Chat is the conversation surface the handlers drive.
type Chat interface {
	StartSession(ctx context.Context) (*conversation.Session, error)
	HandleMessage(ctx context.Context, sessionID, text string) (*conversation.Reply, error)
	AttachDocument(ctx context.Context, sessionID, filename, mimeType string, blob []byte) (*conversation.DocumentResult, error)
	ClearDocument(ctx context.Context, sessionID string) error
	History(ctx context.Context, sessionID string) ([]conversation.ChatMessage, error)
	Reset(ctx context.Context, sessionID string) error
}

// Handler serves the chat endpoints.
type Handler struct {
	chat           Chat
	logger         *logging.Logger
	maxUploadBytes int64
	upgrader       websocket.Upgrader
	now            func() time.Time

	mu       sync.RWMutex
	sessions map[string]map[*wsConn]struct{} // sessionID -> open sockets
}

// Option customises a Handler.
type Option func(*Handler)

// WithMaxUploadBytes caps the size of uploaded documents.
func WithMaxUploadBytes(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxUploadBytes = n
		}
	}
}

// WithAllowedOrigins restricts WebSocket upgrades to the listed origins.
// "*" or an empty list accepts any origin.
func WithAllowedOrigins(origins []string) Option {
	return func(h *Handler) {
		h.upgrader.CheckOrigin = originChecker(origins)
	}
}

// HistoryMessage is a chat turn as returned to clients.
type HistoryMessage struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

type sessionResponse struct {
	SessionID string           `json:"session_id"`
	Messages  []HistoryMessage `json:"messages"`
}

type messageRequest struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

// NewHandler creates a web chat handler.
func NewHandler(chat Chat, logger *logging.Logger, opts ...Option) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	h := &Handler{
		chat:           chat,
		logger:         logger,
		maxUploadBytes: DefaultMaxUploadBytes,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(nil),
		},
		now:      time.Now,
		sessions: make(map[string]map[*wsConn]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns the chat routes, meant to be mounted under /chat.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/sessions", h.CreateSession)
	r.Delete("/sessions/{sessionID}", h.ResetSession)
	r.Post("/message", h.HandleMessage)
	r.Get("/history", h.HandleHistory)
	r.Post("/document", h.UploadDocument)
	r.Delete("/document", h.ClearDocument)
	r.Get("/ws", h.HandleWebSocket)
	return r
}

// CreateSession opens a new session and returns its greeting.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.chat.StartSession(r.Context())
	if err != nil {
		h.logger.Error("webchat: failed to start session", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to start session")
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{
		SessionID: session.ID,
		Messages:  toHistory(session.History.Visible()),
	})
}

// HandleMessage runs one user turn. A backend failure answers 503 and
// leaves the session as it was.
func (h *Handler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	reply, err := h.chat.HandleMessage(r.Context(), strings.TrimSpace(req.SessionID), req.Text)
	if err != nil {
		status, msg := h.messageError(req.SessionID, err)
		writeError(w, status, msg)
		return
	}
	h.SendToSession(reply.SessionID, OutboundMessage{
		Type:      "message",
		Role:      conversation.ChatRoleAssistant,
		Text:      reply.Text,
		SessionID: reply.SessionID,
		State:     reply.State,
		Timestamp: h.now().UTC().Format(time.RFC3339),
	})
	writeJSON(w, http.StatusOK, reply)
}

func (h *Handler) messageError(sessionID string, err error) (int, string) {
	switch {
	case errors.Is(err, conversation.ErrEmptyMessage):
		return http.StatusBadRequest, "text is required"
	case errors.Is(err, conversation.ErrBackendUnavailable):
		return http.StatusServiceUnavailable, backendErrorText
	default:
		h.logger.Error("webchat: failed to handle message", "session_id", sessionID, "error", err)
		return http.StatusInternalServerError, "failed to handle message"
	}
}

// HandleHistory returns the visible turns of a session.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session"))
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "session parameter required")
		return
	}
	turns, err := h.chat.History(r.Context(), sessionID)
	if errors.Is(err, conversation.ErrSessionNotFound) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		h.logger.Error("webchat: failed to load history", "session_id", sessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{SessionID: sessionID, Messages: toHistory(turns)})
}

// UploadDocument accepts a multipart upload with session_id and file fields.
// Unsupported files answer 200 with loaded=false.
func (h *Handler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	// room for the multipart envelope on top of the file itself
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+(1<<20))
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	blob, err := io.ReadAll(io.LimitReader(file, h.maxUploadBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read file")
		return
	}
	if int64(len(blob)) > h.maxUploadBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "file too large")
		return
	}

	sessionID := strings.TrimSpace(r.FormValue("session_id"))
	result, err := h.chat.AttachDocument(r.Context(), sessionID, header.Filename, header.Header.Get("Content-Type"), blob)
	if err != nil {
		h.logger.Error("webchat: failed to attach document", "session_id", sessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to process document")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ClearDocument drops the grounding document of a session.
func (h *Handler) ClearDocument(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session"))
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "session parameter required")
		return
	}
	err := h.chat.ClearDocument(r.Context(), sessionID)
	if errors.Is(err, conversation.ErrSessionNotFound) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		h.logger.Error("webchat: failed to clear document", "session_id", sessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to clear document")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ResetSession deletes a session.
func (h *Handler) ResetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if err := h.chat.Reset(r.Context(), sessionID); err != nil {
		h.logger.Error("webchat: failed to reset session", "session_id", sessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to reset session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toHistory(turns []conversation.ChatMessage) []HistoryMessage {
	out := make([]HistoryMessage, 0, len(turns))
	for _, m := range turns {
		out = append(out, HistoryMessage{Role: m.Role, Text: m.Content})
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
