// Package bootstrap assembles the chat service from configuration. Both the
// HTTP server and the terminal client build on it.
package bootstrap

import (
	"fmt"
	"time"

	"github.com/wolfman30/mediassist/internal/appointment"
	"github.com/wolfman30/mediassist/internal/archive"
	appconfig "github.com/wolfman30/mediassist/internal/config"
	"github.com/wolfman30/mediassist/internal/conversation"
	"github.com/wolfman30/mediassist/internal/documents"
	"github.com/wolfman30/mediassist/internal/observability/metrics"
	"github.com/wolfman30/mediassist/pkg/logging"
)

// AssistantDeps are the collaborators BuildAssistant wires together.
type AssistantDeps struct {
	LLM          conversation.LLMClient
	Appointments appointment.Store
	Sessions     conversation.SessionStore
	Archive      *archive.Store
	Metrics      *metrics.ChatMetrics
}

// BuildAssistant wires the dialogue engine, document extraction and chat
// backend into an Assistant.
func BuildAssistant(cfg *appconfig.Config, deps AssistantDeps, logger *logging.Logger) (*conversation.Assistant, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if deps.LLM == nil {
		return nil, fmt.Errorf("bootstrap: chat backend is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if deps.Appointments == nil {
		deps.Appointments = appointment.NewInMemoryStore()
	}
	if deps.Sessions == nil {
		deps.Sessions = conversation.NewMemorySessionStore()
	}

	engine := appointment.NewEngine(deps.Appointments, EngineOptions(cfg, deps.Metrics, logger)...)
	opts := []conversation.AssistantOption{
		conversation.WithAssistantMetrics(deps.Metrics),
		conversation.WithAssistantLogger(logger),
	}
	if deps.Archive != nil && deps.Archive.Enabled() {
		opts = append(opts, conversation.WithArchive(deps.Archive))
		logger.Info("document archive enabled")
	}
	extractor := documents.NewExtractor(cfg.MaxUploadBytes)
	return conversation.NewAssistant(deps.LLM, engine, deps.Sessions, extractor, AssistantConfig(cfg), opts...), nil
}

// ClinicLocation resolves CLINIC_TIMEZONE, falling back to UTC.
func ClinicLocation(cfg *appconfig.Config, logger *logging.Logger) *time.Location {
	loc, err := time.LoadLocation(cfg.ClinicTimezone)
	if err != nil {
		logger.Warn("unknown clinic timezone, using UTC", "timezone", cfg.ClinicTimezone, "error", err)
		return time.UTC
	}
	return loc
}

// EngineOptions maps configuration onto the appointment engine.
func EngineOptions(cfg *appconfig.Config, m *metrics.ChatMetrics, logger *logging.Logger) []appointment.Option {
	return []appointment.Option{
		appointment.WithLocation(ClinicLocation(cfg, logger)),
		appointment.WithSlots(appointment.DefaultSlots(appointment.SlotOptions{StrictEmail: cfg.StrictEmailValidation})),
		appointment.WithMetrics(m),
		appointment.WithLogger(logger),
	}
}

// AssistantConfig maps configuration onto the assistant.
func AssistantConfig(cfg *appconfig.Config) conversation.AssistantConfig {
	return conversation.AssistantConfig{
		SystemPrompt:    conversation.DefaultSystemPrompt,
		Greeting:        conversation.DefaultGreeting,
		MaxContextTurns: cfg.MaxContextTurns,
		DocumentChars:   cfg.DocumentContextChars,
		MaxTokens:       int32(cfg.LLMMaxTokens),
		Temperature:     float32(cfg.LLMTemperature),
		Timeout:         cfg.LLMTimeout,
	}
}
