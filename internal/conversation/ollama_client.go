package conversation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

const (
	defaultOllamaModel = "llama2"
	defaultOllamaURL   = "http://localhost:11434"
)

// OllamaLLMClient runs completions against a locally hosted Ollama model.
type OllamaLLMClient struct {
	llm     llms.Model
	model   string
	baseURL string
	http    *http.Client
}

// NewOllamaLLMClient connects to the Ollama server at baseURL.
func NewOllamaLLMClient(baseURL, model string) (*OllamaLLMClient, error) {
	if strings.TrimSpace(model) == "" {
		model = defaultOllamaModel
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultOllamaURL
	}
	llm, err := ollama.New(
		ollama.WithModel(model),
		ollama.WithServerURL(baseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("conversation: create ollama model: %w", err)
	}
	return &OllamaLLMClient{llm: llm, model: model, baseURL: strings.TrimRight(baseURL, "/"), http: http.DefaultClient}, nil
}

// NewOllamaLLMClientWithModel wraps an existing langchaingo model.
func NewOllamaLLMClientWithModel(llm llms.Model, model string) *OllamaLLMClient {
	if llm == nil {
		panic("conversation: langchaingo model cannot be nil")
	}
	return &OllamaLLMClient{llm: llm, model: model}
}

func (c *OllamaLLMClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	system, turns := splitSystem(req)

	messages := make([]llms.MessageContent, 0, len(turns)+1)
	if systemText := strings.TrimSpace(strings.Join(system, "\n\n")); systemText != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, systemText))
	}
	for _, msg := range turns {
		switch msg.Role {
		case ChatRoleUser:
			messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, msg.Content))
		case ChatRoleAssistant:
			messages = append(messages, llms.TextParts(llms.ChatMessageTypeAI, msg.Content))
		default:
			return LLMResponse{}, fmt.Errorf("conversation: unsupported role %q", msg.Role)
		}
	}

	var opts []llms.CallOption
	if req.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(int(req.MaxTokens)))
	}
	if req.Temperature >= 0 {
		opts = append(opts, llms.WithTemperature(float64(req.Temperature)))
	}
	if req.TopP > 0 {
		opts = append(opts, llms.WithTopP(float64(req.TopP)))
	}

	resp, err := c.llm.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return LLMResponse{}, fmt.Errorf("conversation: ollama completion failed: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return LLMResponse{}, errors.New("conversation: ollama returned no choices")
	}
	choice := resp.Choices[0]
	out := LLMResponse{
		Text:       strings.TrimSpace(choice.Content),
		StopReason: choice.StopReason,
	}
	if info := choice.GenerationInfo; info != nil {
		out.Usage = TokenUsage{
			InputTokens:  intInfo(info, "PromptTokens"),
			OutputTokens: intInfo(info, "CompletionTokens"),
			TotalTokens:  intInfo(info, "TotalTokens"),
		}
	}
	return out, nil
}

// Ping checks the Ollama server answers on its version endpoint.
func (c *OllamaLLMClient) Ping(ctx context.Context) error {
	if c.baseURL == "" {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/version", nil)
	if err != nil {
		return fmt.Errorf("conversation: ollama ping request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("conversation: ollama unreachable at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("conversation: ollama ping returned %d", resp.StatusCode)
	}
	return nil
}

// Model returns the configured model name.
func (c *OllamaLLMClient) Model() string {
	return c.model
}

func intInfo(info map[string]any, key string) int32 {
	switch v := info[key].(type) {
	case int:
		return int32(v)
	case int32:
		return v
	case int64:
		return int32(v)
	case float64:
		return int32(v)
	}
	return 0
}
