// Command chat talks to the assistant from a terminal, with sessions and
// appointments kept in memory.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/wolfman30/mediassist/cmd/mainconfig"
	"github.com/wolfman30/mediassist/internal/app/bootstrap"
	appconfig "github.com/wolfman30/mediassist/internal/config"
	"github.com/wolfman30/mediassist/internal/conversation"
	"github.com/wolfman30/mediassist/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(appconfig.Load, mainconfig.BuildLLMClient).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

type llmBuilder func(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (conversation.LLMClient, func(), error)

type flags struct {
	provider string
	model    string
	verbose  bool
}

func newRootCmd(loadConfig func() *appconfig.Config, buildLLM llmBuilder) *cobra.Command {
	var f flags

	root := &cobra.Command{
		Use:          "chat",
		Short:        "Chat with the clinic assistant in the terminal",
		Long:         "Type a message and press enter. Commands: " + strings.Join(commandHelp, ", ") + ".",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			assistant, closeFn, err := setup(cmd, loadConfig, buildLLM, f)
			if err != nil {
				return err
			}
			defer closeFn()

			out := cmd.OutOrStdout()
			if err := checkBackend(cmd.Context(), assistant); err != nil {
				fmt.Fprintf(out, "Warning: the assistant backend is not reachable (%v). Messages may fail.\n", err)
			} else {
				fmt.Fprintln(out, "Connected to the assistant backend.")
			}
			return newREPL(assistant, cmd.InOrStdin(), out).Run(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&f.provider, "provider", "", "chat backend: ollama, gemini or bedrock (defaults to LLM_PROVIDER)")
	root.PersistentFlags().StringVar(&f.model, "model", "", "model name for the selected provider")
	root.PersistentFlags().BoolVarP(&f.verbose, "verbose", "v", false, "log debug output to stderr")

	root.AddCommand(&cobra.Command{
		Use:   "ping",
		Short: "Check the chat backend and send one test prompt",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			assistant, closeFn, err := setup(cmd, loadConfig, buildLLM, f)
			if err != nil {
				return err
			}
			defer closeFn()
			return ping(cmd.Context(), assistant, cmd.OutOrStdout())
		},
	})
	return root
}

func setup(cmd *cobra.Command, loadConfig func() *appconfig.Config, buildLLM llmBuilder, f flags) (*conversation.Assistant, func(), error) {
	cfg := loadConfig()
	applyFlags(cfg, f)

	level := "warn"
	if f.verbose {
		level = "debug"
	}
	logger := logging.NewWithWriter(cmd.ErrOrStderr(), level)

	llm, closeLLM, err := buildLLM(cmd.Context(), cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("chat backend: %w", err)
	}
	assistant, err := bootstrap.BuildAssistant(cfg, bootstrap.AssistantDeps{LLM: llm}, logger)
	if err != nil {
		closeLLM()
		return nil, nil, err
	}
	return assistant, closeLLM, nil
}

// applyFlags overrides the configured provider and its model.
func applyFlags(cfg *appconfig.Config, f flags) {
	if p := strings.ToLower(strings.TrimSpace(f.provider)); p != "" {
		cfg.LLMProvider = p
		// the fallback only applies to the configured primary
		cfg.LLMFallbackProvider = ""
	}
	model := strings.TrimSpace(f.model)
	if model == "" {
		return
	}
	switch cfg.LLMProvider {
	case appconfig.ProviderGemini:
		cfg.GeminiModelID = model
	case appconfig.ProviderBedrock:
		cfg.BedrockModelID = model
	default:
		cfg.OllamaModel = model
	}
}

func checkBackend(ctx context.Context, assistant *conversation.Assistant) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return assistant.CheckBackend(ctx)
}

const pingPrompt = "Reply with one short sentence confirming you can help book an appointment."

func ping(ctx context.Context, assistant *conversation.Assistant, out io.Writer) error {
	if err := checkBackend(ctx, assistant); err != nil {
		fmt.Fprintf(out, "backend unreachable: %v\n", err)
		return err
	}
	start := time.Now()
	reply, err := assistant.HandleMessage(ctx, "", pingPrompt)
	if err != nil {
		fmt.Fprintf(out, "completion failed: %v\n", err)
		return err
	}
	fmt.Fprintf(out, "backend ok (%s)\n%s\n", time.Since(start).Round(time.Millisecond), reply.Text)
	return nil
}
