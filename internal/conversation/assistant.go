package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/mediassist/internal/appointment"
	"github.com/wolfman30/mediassist/internal/archive"
	"github.com/wolfman30/mediassist/internal/documents"
	"github.com/wolfman30/mediassist/internal/observability/metrics"
	"github.com/wolfman30/mediassist/pkg/logging"
)

var assistantTracer = otel.Tracer("mediassist.internal.conversation.assistant")

// Reply sources.
const (
	SourceDialogue = "dialogue"
	SourceBackend  = "backend"
)

const (
	documentLoadedText      = "Document loaded successfully!"
	documentUnsupportedText = "Unsupported file type."
	documentUnreadableText  = "Sorry, I couldn't read any text from that document."
	documentTooLargeText    = "That document is too large to upload."
)

// DocumentArchiver keeps a copy of uploaded originals.
type DocumentArchiver interface {
	ArchiveDocument(ctx context.Context, doc archive.Document) (string, error)
}

// Pinger is implemented by chat backends that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// AssistantConfig tunes how requests are sent to the chat backend.
type AssistantConfig struct {
	SystemPrompt string
	Greeting     string
	Model        string
	// MaxContextTurns bounds the history sent per request; zero sends all of it.
	MaxContextTurns int
	DocumentChars   int
	MaxTokens       int32
	Temperature     float32
	Timeout         time.Duration
}

// Reply is the outcome of one user message.
type Reply struct {
	SessionID     string `json:"session_id"`
	Text          string `json:"reply"`
	Source        string `json:"source"`
	State         string `json:"state"`
	AppointmentID string `json:"appointment_id,omitempty"`
}

// DocumentResult reports what happened to an upload.
type DocumentResult struct {
	SessionID  string `json:"session_id"`
	Filename   string `json:"filename"`
	Loaded     bool   `json:"loaded"`
	Message    string `json:"message"`
	Characters int    `json:"characters"`
	ArchiveKey string `json:"archive_key,omitempty"`
	Error      string `json:"error,omitempty"`
}

type AssistantOption func(*Assistant)

// WithArchive stores uploaded originals.
func WithArchive(archiver DocumentArchiver) AssistantOption {
	return func(a *Assistant) {
		a.archive = archiver
	}
}

// WithAssistantMetrics records turn routing and backend latency.
func WithAssistantMetrics(m *metrics.ChatMetrics) AssistantOption {
	return func(a *Assistant) {
		a.metrics = m
	}
}

func WithAssistantLogger(logger *logging.Logger) AssistantOption {
	return func(a *Assistant) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithAssistantClock overrides the clock used for session timestamps.
func WithAssistantClock(now func() time.Time) AssistantOption {
	return func(a *Assistant) {
		if now != nil {
			a.now = now
		}
	}
}

// Assistant routes user input either to the booking dialogue or to the chat
// backend, and keeps each session's history. Messages for one session are
// processed one at a time.
type Assistant struct {
	llm       LLMClient
	engine    *appointment.Engine
	sessions  SessionStore
	extractor documents.TextExtractor
	archive   DocumentArchiver
	cfg       AssistantConfig
	metrics   *metrics.ChatMetrics
	logger    *logging.Logger
	now       func() time.Time
	locks     *keyedMutex
}

func NewAssistant(llm LLMClient, engine *appointment.Engine, sessions SessionStore, extractor documents.TextExtractor, cfg AssistantConfig, opts ...AssistantOption) *Assistant {
	if llm == nil {
		panic("conversation: llm client cannot be nil")
	}
	if engine == nil {
		panic("conversation: appointment engine cannot be nil")
	}
	if sessions == nil {
		sessions = NewMemorySessionStore()
	}
	if extractor == nil {
		extractor = documents.NewExtractor(0)
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	if cfg.Greeting == "" {
		cfg.Greeting = DefaultGreeting
	}
	if cfg.DocumentChars <= 0 {
		cfg.DocumentChars = documents.DefaultContextChars
	}
	a := &Assistant{
		llm:       llm,
		engine:    engine,
		sessions:  sessions,
		extractor: extractor,
		cfg:       cfg,
		logger:    logging.Default(),
		now:       time.Now,
		locks:     newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// StartSession creates and stores a new session opened with the greeting.
func (a *Assistant) StartSession(ctx context.Context) (*Session, error) {
	session := a.newSession("")
	if err := a.sessions.Save(ctx, session); err != nil {
		return nil, err
	}
	a.logger.Info("chat session started", "session_id", session.ID)
	return session, nil
}

// HandleMessage processes one user message. An unknown or empty session id
// starts a new session. When the chat backend fails the error wraps
// ErrBackendUnavailable and the session is left as it was.
func (a *Assistant) HandleMessage(ctx context.Context, sessionID, text string) (*Reply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	unlock := a.locks.Lock(sessionID)
	defer unlock()

	ctx, span := assistantTracer.Start(ctx, "conversation.handle_message")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", sessionID))

	session, err := a.loadOrCreate(ctx, sessionID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	session.History.AppendUser(text)
	res := a.engine.Handle(appointment.WithSessionID(ctx, session.ID), &session.Flow, &session.History, text)
	if res.Handled {
		a.metrics.ObserveTurn(metrics.RouteDialogue)
		if err := a.save(ctx, session); err != nil {
			span.RecordError(err)
			if res.AppointmentID == "" {
				return nil, err
			}
			// the booking is stored; a repeated confirm replays it under the same id
			a.logger.Error("failed to save session after booking",
				"session_id", session.ID, "appointment_id", res.AppointmentID, "error", err)
		}
		return &Reply{
			SessionID:     session.ID,
			Text:          res.Reply,
			Source:        SourceDialogue,
			State:         session.State(),
			AppointmentID: res.AppointmentID,
		}, nil
	}

	a.metrics.ObserveTurn(metrics.RouteBackend)
	reply, err := a.complete(ctx, session)
	if err != nil {
		span.RecordError(err)
		a.logger.Error("chat backend failed", "session_id", session.ID, "error", err)
		return nil, err
	}
	session.History.AppendAssistant(reply)
	if err := a.save(ctx, session); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return &Reply{
		SessionID: session.ID,
		Text:      reply,
		Source:    SourceBackend,
		State:     session.State(),
	}, nil
}

func (a *Assistant) complete(ctx context.Context, session *Session) (string, error) {
	req := LLMRequest{
		Model:       a.cfg.Model,
		Messages:    a.requestMessages(session),
		MaxTokens:   a.cfg.MaxTokens,
		Temperature: a.cfg.Temperature,
	}
	if a.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := a.llm.Complete(ctx, req)
	if err == nil && strings.TrimSpace(resp.Text) == "" {
		err = errors.New("empty response")
	}
	a.metrics.ObserveBackend(time.Since(start).Seconds(), err)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}
	a.logger.Debug("chat backend replied",
		"session_id", session.ID,
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
	)
	return resp.Text, nil
}

// requestMessages builds the context window, adding the document excerpt as
// a user turn just before the latest message. The excerpt is not kept in
// the history.
func (a *Assistant) requestMessages(session *Session) []ChatMessage {
	window := session.History.ContextWindow(a.cfg.MaxContextTurns)
	if session.Document == "" || len(window) == 0 {
		return window
	}
	last := len(window) - 1
	out := make([]ChatMessage, 0, len(window)+1)
	out = append(out, window[:last]...)
	out = append(out, ChatMessage{Role: ChatRoleUser, Content: "Document: " + session.Document})
	return append(out, window[last])
}

// AttachDocument extracts text from an upload and makes its first
// DocumentChars characters the session's grounding context. Unsupported or
// unreadable files clear the grounding and are reported in the result rather
// than as an error.
func (a *Assistant) AttachDocument(ctx context.Context, sessionID, filename, mimeType string, blob []byte) (*DocumentResult, error) {
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	unlock := a.locks.Lock(sessionID)
	defer unlock()

	ctx, span := assistantTracer.Start(ctx, "conversation.attach_document")
	defer span.End()

	session, err := a.loadOrCreate(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	result := &DocumentResult{SessionID: session.ID, Filename: filename}
	declared := documents.ResolveType(filename, mimeType)
	text, err := a.extractor.Extract(ctx, blob, declared)
	switch {
	case err == nil:
	case errors.Is(err, documents.ErrUnsupportedType):
		result.Message, result.Error = documentUnsupportedText, err.Error()
		a.metrics.ObserveDocument("unsupported")
	case errors.Is(err, documents.ErrTooLarge):
		result.Message, result.Error = documentTooLargeText, err.Error()
		a.metrics.ObserveDocument("too_large")
	case errors.Is(err, documents.ErrExtraction):
		result.Message, result.Error = documentUnreadableText, err.Error()
		a.metrics.ObserveDocument("failed")
	default:
		span.RecordError(err)
		return nil, err
	}

	if err == nil {
		excerpt := documents.Truncate(strings.TrimSpace(text), a.cfg.DocumentChars)
		if excerpt == "" {
			result.Message = documentUnreadableText
			result.Error = "document contains no text"
			a.metrics.ObserveDocument("empty")
		} else {
			session.Document = excerpt
			session.DocumentName = filename
			result.Loaded = true
			result.Message = documentLoadedText
			result.Characters = len([]rune(excerpt))
			a.metrics.ObserveDocument("loaded")
		}
	}
	if !result.Loaded {
		session.Document = ""
		session.DocumentName = ""
		a.logger.Warn("document not loaded", "session_id", session.ID, "filename", filename, "mime_type", declared, "error", result.Error)
	}

	if err := a.save(ctx, session); err != nil {
		return nil, err
	}

	if result.Loaded && a.archive != nil {
		key, err := a.archive.ArchiveDocument(ctx, archive.Document{
			SessionID: session.ID,
			Filename:  filename,
			MimeType:  declared,
			Blob:      blob,
			Excerpt:   session.Document,
		})
		if err != nil {
			a.logger.Warn("failed to archive document", "session_id", session.ID, "error", err)
		} else if key != "" {
			result.ArchiveKey = key
		}
	}
	return result, nil
}

// ClearDocument drops the grounding context of a session.
func (a *Assistant) ClearDocument(ctx context.Context, sessionID string) error {
	unlock := a.locks.Lock(sessionID)
	defer unlock()

	session, err := a.sessions.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	session.Document = ""
	session.DocumentName = ""
	return a.save(ctx, session)
}

// History returns the user-visible turns of a session.
func (a *Assistant) History(ctx context.Context, sessionID string) ([]ChatMessage, error) {
	session, err := a.Session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return session.History.Visible(), nil
}

// Session loads a session snapshot.
func (a *Assistant) Session(ctx context.Context, sessionID string) (*Session, error) {
	unlock := a.locks.Lock(sessionID)
	defer unlock()
	return a.sessions.Get(ctx, sessionID)
}

// Reset deletes a session; the next message for the id starts over.
func (a *Assistant) Reset(ctx context.Context, sessionID string) error {
	unlock := a.locks.Lock(sessionID)
	defer unlock()
	if err := a.sessions.Delete(ctx, sessionID); err != nil {
		return err
	}
	a.logger.Info("chat session reset", "session_id", sessionID)
	return nil
}

// CheckBackend reports whether the chat backend is reachable, when the
// backend supports it.
func (a *Assistant) CheckBackend(ctx context.Context) error {
	p, ok := a.llm.(Pinger)
	if !ok {
		return nil
	}
	if err := p.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}
	return nil
}

func (a *Assistant) newSession(id string) *Session {
	session := NewSession(id, a.cfg.SystemPrompt, a.now().UTC())
	session.History.AppendAssistant(a.cfg.Greeting)
	return session
}

func (a *Assistant) loadOrCreate(ctx context.Context, id string) (*Session, error) {
	session, err := a.sessions.Get(ctx, id)
	if errors.Is(err, ErrSessionNotFound) {
		a.logger.Info("chat session started", "session_id", id)
		return a.newSession(id), nil
	}
	return session, err
}

func (a *Assistant) save(ctx context.Context, session *Session) error {
	session.UpdatedAt = a.now().UTC()
	return a.sessions.Save(ctx, session)
}
