package conversation

import (
	"context"
	"errors"
	"strings"

	"github.com/wolfman30/mediassist/pkg/logging"
)

var errBlankReply = errors.New("conversation: backend returned a blank reply")

// FallbackLLMClient sends each request to the primary backend and, when that
// fails or answers with nothing, once to the secondary.
type FallbackLLMClient struct {
	primary   LLMClient
	secondary LLMClient
	logger    *logging.Logger
}

// NewFallbackLLMClient pairs two backends. A nil secondary makes the client
// a plain pass-through to primary.
func NewFallbackLLMClient(primary, secondary LLMClient, logger *logging.Logger) *FallbackLLMClient {
	if logger == nil {
		logger = logging.Default()
	}
	return &FallbackLLMClient{primary: primary, secondary: secondary, logger: logger}
}

func (c *FallbackLLMClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	resp, err := complete(ctx, c.primary, req)
	if err == nil || c.secondary == nil || ctx.Err() != nil {
		return resp, err
	}

	c.logger.Warn("primary chat backend failed, trying secondary", "error", err)
	resp, secondErr := complete(ctx, c.secondary, req)
	if secondErr != nil {
		c.logger.Error("secondary chat backend failed", "error", secondErr)
		return LLMResponse{}, errors.Join(err, secondErr)
	}
	return resp, nil
}

func complete(ctx context.Context, llm LLMClient, req LLMRequest) (LLMResponse, error) {
	resp, err := llm.Complete(ctx, req)
	if err != nil {
		return LLMResponse{}, err
	}
	if strings.TrimSpace(resp.Text) == "" {
		return LLMResponse{}, errBlankReply
	}
	return resp, nil
}

// Ping succeeds when either backend is reachable. Backends that cannot be
// pinged count as reachable.
func (c *FallbackLLMClient) Ping(ctx context.Context) error {
	err := ping(ctx, c.primary)
	if err == nil || c.secondary == nil {
		return err
	}
	if ping(ctx, c.secondary) == nil {
		c.logger.Warn("primary chat backend unreachable, secondary is up", "error", err)
		return nil
	}
	return err
}

func ping(ctx context.Context, llm LLMClient) error {
	if p, ok := llm.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
