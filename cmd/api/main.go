package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/mediassist/cmd/mainconfig"
	"github.com/wolfman30/mediassist/internal/api/router"
	"github.com/wolfman30/mediassist/internal/app/bootstrap"
	appconfig "github.com/wolfman30/mediassist/internal/config"
	"github.com/wolfman30/mediassist/internal/conversation"
	httpmiddleware "github.com/wolfman30/mediassist/internal/http/middleware"
	"github.com/wolfman30/mediassist/internal/observability/metrics"
	"github.com/wolfman30/mediassist/internal/webchat"
	"github.com/wolfman30/mediassist/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.NewWithFile(cfg.LogLevel, cfg.LogFile)
	defer func() { _ = logger.Close() }()
	logger.Info("starting mediassist API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"llm_provider", cfg.LLMProvider,
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "error", err)
		_ = logger.Close()
		os.Exit(1)
	}
	fmt.Println("Server exited gracefully")
}

func run(cfg *appconfig.Config, logger *logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsHandler, chatMetrics := setupMetrics()

	llm, closeLLM, err := mainconfig.BuildLLMClient(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeLLM()

	var awsCfg aws.Config
	if bootstrap.NeedsAWS(cfg) {
		if awsCfg, err = mainconfig.LoadAWSConfig(ctx, cfg); err != nil {
			return fmt.Errorf("load aws config: %w", err)
		}
	}

	checks := map[string]router.Check{}

	pool, err := bootstrap.BuildPostgresPool(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if pool != nil {
		defer pool.Close()
		checks["database"] = pool.Ping
	}
	appointments := bootstrap.BuildAppointmentStore(pool, logger)
	sender, emailMode := bootstrap.BuildEmailSender(cfg, awsCfg, logger)
	logger.Info("confirmation email", "mode", emailMode)
	appointments = bootstrap.WithConfirmations(appointments, sender, cfg, logger)

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	assistant, err := bootstrap.BuildAssistant(cfg, bootstrap.AssistantDeps{
		LLM:          llm,
		Appointments: appointments,
		Sessions:     bootstrap.BuildSessionStore(redisClient, cfg, logger),
		Archive:      bootstrap.BuildArchive(cfg, awsCfg, logger),
		Metrics:      chatMetrics,
	}, logger)
	if err != nil {
		return err
	}
	checks["chat_backend"] = assistant.CheckBackend
	reportBackend(ctx, assistant, logger)

	var limiter *httpmiddleware.RateLimiter
	if cfg.RateLimitRPS > 0 {
		limiter = httpmiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		defer limiter.Stop()
	}

	chatHandler := webchat.NewHandler(assistant, logger,
		webchat.WithMaxUploadBytes(cfg.MaxUploadBytes),
		webchat.WithAllowedOrigins(cfg.CORSAllowedOrigins),
	)
	r := router.New(&router.Config{
		Logger:             logger,
		ChatHandler:        chatHandler,
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimiter:        limiter,
		ReadinessChecks:    checks,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout(cfg),
		IdleTimeout:  60 * time.Second,
	}
	return serve(ctx, srv, logger)
}

// serve runs srv until ctx is cancelled, then shuts it down gracefully.
func serve(ctx context.Context, srv *http.Server, logger *logging.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

func setupMetrics() (http.Handler, *metrics.ChatMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), metrics.NewChatMetrics(reg)
}

// reportBackend logs whether the chat backend answers. An unreachable
// backend does not stop the server; chat requests fail with 503 until it
// comes back.
func reportBackend(ctx context.Context, assistant *conversation.Assistant, logger *logging.Logger) {
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := assistant.CheckBackend(checkCtx); err != nil {
		logger.Warn("chat backend unreachable at start-up", "error", err)
		return
	}
	logger.Info("chat backend reachable")
}

// writeTimeout leaves room for a full backend completion on top of the
// usual response budget.
func writeTimeout(cfg *appconfig.Config) time.Duration {
	return cfg.LLMTimeout + 15*time.Second
}
