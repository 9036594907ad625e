package llm

import (
	"context"

	"hermes/internal/agent/ports"
	"hermes/internal/errors"
	"hermes/internal/logging"
)

var _ ports.LLMClient = (*RetryClient)(nil)

// RetryClient wraps an LLMClient with transient-failure retries.
type RetryClient struct {
	inner  ports.LLMClient
	config errors.RetryConfig
	logger logging.Logger
}

// NewRetryClient wraps inner with up to maxAttempts attempts per call.
func NewRetryClient(inner ports.LLMClient, maxAttempts int, logger logging.Logger) *RetryClient {
	config := errors.DefaultRetryConfig()
	if maxAttempts > 0 {
		config.MaxAttempts = maxAttempts
	}
	return &RetryClient{inner: inner, config: config, logger: logging.OrNop(logger)}
}

// Model returns the wrapped client's model name.
func (c *RetryClient) Model() string {
	return c.inner.Model()
}

// Chat delegates to the wrapped client, retrying transient failures with
// exponential backoff.
func (c *RetryClient) Chat(ctx context.Context, messages []ports.Message) (string, error) {
	return errors.RetryWithResult(ctx, c.config, c.logger, func(ctx context.Context) (string, error) {
		return c.inner.Chat(ctx, messages)
	})
}
