package llm

import (
	"context"
	"sync"

	"hermes/internal/agent/ports"
)

var _ ports.LLMClient = (*MockClient)(nil)

// MockClient returns scripted responses in call order. Tests use it to
// drive the pipeline deterministically.
type MockClient struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	calls     [][]ports.Message
	model     string
}

// NewMockClient returns a mock that replays responses in order. A nil
// entry in errs (or running past its end) means the call succeeds.
func NewMockClient(responses ...string) *MockClient {
	return &MockClient{responses: responses, model: "mock"}
}

// FailOnCall makes the nth call (0-based) return err.
func (m *MockClient) FailOnCall(n int, err error) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	for len(m.errs) <= n {
		m.errs = append(m.errs, nil)
	}
	m.errs[n] = err
	return m
}

// Model implements ports.LLMClient.
func (m *MockClient) Model() string {
	return m.model
}

// Chat implements ports.LLMClient.
func (m *MockClient) Chat(_ context.Context, messages []ports.Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	call := len(m.calls)
	m.calls = append(m.calls, messages)

	if call < len(m.errs) && m.errs[call] != nil {
		return "", m.errs[call]
	}
	if call < len(m.responses) {
		return m.responses[call], nil
	}
	return "", nil
}

// Calls returns the recorded message lists, one per Chat invocation.
func (m *MockClient) Calls() [][]ports.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]ports.Message(nil), m.calls...)
}
