// Package llm implements the chat client for a local Ollama server.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"hermes/internal/agent/ports"
	"hermes/internal/errors"
	"hermes/internal/logging"
)

var _ ports.LLMClient = (*OllamaClient)(nil)

// OllamaClient calls the /api/chat endpoint of a local Ollama server with
// streaming disabled.
type OllamaClient struct {
	apiURL      string
	model       string
	temperature float64
	httpClient  *http.Client
	logger      logging.Logger
}

// Config configures an OllamaClient.
type Config struct {
	APIURL      string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// NewOllamaClient returns a client for the configured endpoint.
func NewOllamaClient(config Config, logger logging.Logger) *OllamaClient {
	apiURL := strings.TrimRight(config.APIURL, "/")
	if apiURL == "" {
		apiURL = "http://localhost:11434/api/chat"
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OllamaClient{
		apiURL:      apiURL,
		model:       config.Model,
		temperature: config.Temperature,
		httpClient:  &http.Client{Timeout: timeout},
		logger:      logging.OrNop(logger),
	}
}

// Model returns the configured model name.
func (c *OllamaClient) Model() string {
	return c.model
}

type chatRequest struct {
	Model    string          `json:"model"`
	Messages []ports.Message `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  *chatOptions    `json:"options,omitempty"`
}

type chatOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
}

type chatResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done  bool   `json:"done"`
	Error string `json:"error,omitempty"`
}

// Chat sends the conversation and returns the assistant reply. A non-2xx
// response is transient; a 2xx response without content is a permanent
// protocol error.
func (c *OllamaClient) Chat(ctx context.Context, messages []ports.Message) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   false,
		Options:  c.options(),
	})
	if err != nil {
		return "", fmt.Errorf("encoding chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("building chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.NewTransientError(err, "ollama unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &errors.TransientError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("ollama returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	var response chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", errors.NewPermanentError(err, "malformed ollama response")
	}
	if response.Error != "" {
		return "", errors.NewPermanentError(nil, "ollama error: "+response.Error)
	}
	if response.Message.Content == "" {
		return "", errors.NewPermanentError(nil, "ollama response missing message content")
	}

	c.logger.Debug("chat completed model=%s elapsed=%s chars=%d",
		c.model, time.Since(start).Round(time.Millisecond), len(response.Message.Content))
	return response.Message.Content, nil
}

func (c *OllamaClient) options() *chatOptions {
	if c.temperature == 0 {
		return nil
	}
	return &chatOptions{Temperature: c.temperature}
}
