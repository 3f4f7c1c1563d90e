package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/wolfman30/mediassist/internal/appointment"
	appconfig "github.com/wolfman30/mediassist/internal/config"
	"github.com/wolfman30/mediassist/internal/conversation"
	"github.com/wolfman30/mediassist/internal/notify"
	"github.com/wolfman30/mediassist/pkg/logging"
)

type replyLLM struct{}

func (replyLLM) Complete(context.Context, conversation.LLMRequest) (conversation.LLMResponse, error) {
	return conversation.LLMResponse{Text: "ok"}, nil
}

func TestBuildAssistantRequiresConfigAndBackend(t *testing.T) {
	if _, err := BuildAssistant(nil, AssistantDeps{LLM: replyLLM{}}, nil); err == nil {
		t.Fatalf("expected error for nil config")
	}
	if _, err := BuildAssistant(&appconfig.Config{}, AssistantDeps{}, nil); err == nil {
		t.Fatalf("expected error without a chat backend")
	}
}

func TestBuildAssistantDefaultsToMemoryStores(t *testing.T) {
	cfg := &appconfig.Config{ClinicTimezone: "UTC", MaxUploadBytes: 1 << 20, DocumentContextChars: 1000}
	assistant, err := BuildAssistant(cfg, AssistantDeps{LLM: replyLLM{}}, logging.New("error"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reply, err := assistant.HandleMessage(context.Background(), "", "hello")
	if err != nil {
		t.Fatalf("handle message: %v", err)
	}
	if reply.Text != "ok" || reply.Source != conversation.SourceBackend {
		t.Fatalf("unexpected reply: %+v", reply)
	}
	turns, err := assistant.History(context.Background(), reply.SessionID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(turns) != 3 || turns[0].Content != conversation.DefaultGreeting {
		t.Fatalf("expected greeting, user and reply turns, got %+v", turns)
	}
}

func TestClinicLocation(t *testing.T) {
	logger := logging.New("error")
	if loc := ClinicLocation(&appconfig.Config{ClinicTimezone: "Not/AZone"}, logger); loc != time.UTC {
		t.Fatalf("expected UTC fallback, got %s", loc)
	}
	if loc := ClinicLocation(&appconfig.Config{ClinicTimezone: "UTC"}, logger); loc.String() != "UTC" {
		t.Fatalf("expected UTC, got %s", loc)
	}
}

func TestAssistantConfig(t *testing.T) {
	cfg := &appconfig.Config{
		MaxContextTurns:      12,
		DocumentContextChars: 1000,
		LLMMaxTokens:         256,
		LLMTemperature:       0.5,
		LLMTimeout:           5 * time.Second,
	}
	got := AssistantConfig(cfg)
	if got.MaxContextTurns != 12 || got.DocumentChars != 1000 || got.MaxTokens != 256 || got.Temperature != 0.5 || got.Timeout != 5*time.Second {
		t.Fatalf("unexpected assistant config: %+v", got)
	}
	if got.SystemPrompt != conversation.DefaultSystemPrompt || got.Greeting != conversation.DefaultGreeting {
		t.Fatalf("expected persona and greeting")
	}
}

func TestEngineOptionsStrictEmail(t *testing.T) {
	logger := logging.New("error")
	for _, strict := range []bool{false, true} {
		opts := EngineOptions(&appconfig.Config{ClinicTimezone: "UTC", StrictEmailValidation: strict}, nil, logger)
		engine := appointment.NewEngine(appointment.NewInMemoryStore(), opts...)
		var email appointment.SlotSpec
		for _, s := range engine.Slots() {
			if s.Name == appointment.SlotEmail {
				email = s
			}
		}
		_, err := email.Normalize("jane.doe@clinic", time.Now())
		if strict && err == nil {
			t.Fatalf("strict mode should reject an undotted domain")
		}
		if !strict && err != nil {
			t.Fatalf("permissive mode should accept it: %v", err)
		}
	}
}

func TestBuildRedisClientAndSessionStore(t *testing.T) {
	logger := logging.New("error")
	if client := BuildRedisClient(context.Background(), &appconfig.Config{}, logger, true); client != nil {
		t.Fatalf("expected nil client without REDIS_ADDR")
	}
	if _, ok := BuildSessionStore(nil, &appconfig.Config{}, logger).(*conversation.MemorySessionStore); !ok {
		t.Fatalf("expected memory session store without redis")
	}

	mr := miniredis.RunT(t)
	cfg := &appconfig.Config{RedisAddr: mr.Addr(), SessionTTL: time.Hour}
	client := BuildRedisClient(context.Background(), cfg, logger, true)
	if client == nil {
		t.Fatalf("expected redis client")
	}
	defer client.Close()
	if _, ok := BuildSessionStore(client, cfg, logger).(*conversation.RedisSessionStore); !ok {
		t.Fatalf("expected redis session store")
	}
}

func TestBuildRedisClientUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	client := BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: addr}, logging.New("error"), true)
	if client != nil {
		t.Fatalf("expected nil client when redis is down")
	}
}

func TestBuildPostgresPoolDisabled(t *testing.T) {
	pool, err := BuildPostgresPool(context.Background(), &appconfig.Config{}, logging.New("error"))
	if err != nil || pool != nil {
		t.Fatalf("expected nil pool and no error, got %v %v", pool, err)
	}
	if _, ok := BuildAppointmentStore(nil, logging.New("error")).(*appointment.InMemoryStore); !ok {
		t.Fatalf("expected in-memory appointment store")
	}
}

func TestBuildEmailSender(t *testing.T) {
	logger := logging.New("error")
	tests := []struct {
		name    string
		cfg     appconfig.Config
		wantNil bool
	}{
		{"disabled", appconfig.Config{EmailProvider: EmailProviderNone}, true},
		{"sendgrid missing key", appconfig.Config{EmailProvider: EmailProviderSendGrid}, true},
		{"sendgrid", appconfig.Config{EmailProvider: EmailProviderSendGrid, SendGridAPIKey: "k", SendGridFromEmail: "clinic@example.com"}, false},
		{"ses missing sender", appconfig.Config{EmailProvider: EmailProviderSES}, true},
		{"ses", appconfig.Config{EmailProvider: EmailProviderSES, SESFromEmail: "clinic@example.com"}, false},
		{"stub", appconfig.Config{EmailProvider: EmailProviderStub}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender, reason := BuildEmailSender(&tt.cfg, aws.Config{Region: "us-east-1"}, logger)
			if (sender == nil) != tt.wantNil {
				t.Fatalf("sender = %T (%s), wantNil %v", sender, reason, tt.wantNil)
			}
		})
	}
}

func TestWithConfirmations(t *testing.T) {
	cfg := &appconfig.Config{ClinicName: "Clinic"}
	store := appointment.NewInMemoryStore()
	if got := WithConfirmations(store, nil, cfg, nil); got != appointment.Store(store) {
		t.Fatalf("expected store unchanged without a sender")
	}
	wrapped := WithConfirmations(store, notify.NewLogSender(nil), cfg, nil)
	if _, ok := wrapped.(*notify.ConfirmingStore); !ok {
		t.Fatalf("expected confirming store, got %T", wrapped)
	}
}

func TestBuildArchiveAndNeedsAWS(t *testing.T) {
	logger := logging.New("error")
	cfg := &appconfig.Config{}
	if BuildArchive(cfg, aws.Config{}, logger) != nil {
		t.Fatalf("expected no archive without a bucket")
	}
	if NeedsAWS(cfg) {
		t.Fatalf("plain config should not need AWS")
	}

	cfg.DocumentArchiveBucket = "mediassist-docs"
	store := BuildArchive(cfg, aws.Config{Region: "us-east-1"}, logger)
	if !store.Enabled() {
		t.Fatalf("expected enabled archive")
	}
	if !NeedsAWS(cfg) || !NeedsAWS(&appconfig.Config{EmailProvider: EmailProviderSES}) {
		t.Fatalf("bucket or SES should need AWS")
	}
}
