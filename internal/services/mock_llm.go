package services

import (
	"context"
	"sync"
)

// MockModelName is what the mock reports from ModelName.
const MockModelName = "mock"

// MockLLMAPI is a mock implementation of LLMService for testing.
type MockLLMAPI struct {
	GenerateFunc func(ctx context.Context, prompt string) (string, error)

	// Track calls for testing
	GenerateCalls []string

	mu sync.Mutex // protects all fields above
}

// Ensure MockLLMAPI implements LLMService interface
var _ LLMService = (*MockLLMAPI)(nil)

// NewMockLLMAPI creates a new mock LLM service.
func NewMockLLMAPI() *MockLLMAPI {
	return &MockLLMAPI{
		GenerateCalls: make([]string, 0),
	}
}

// Generate mocks completion generation. Without an override it returns a
// fixed line so dialogue tests have something to assert on.
func (m *MockLLMAPI) Generate(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.GenerateCalls = append(m.GenerateCalls, prompt)
	fn := m.GenerateFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, prompt)
	}
	return "I have nothing more to say.", nil
}

func (m *MockLLMAPI) ModelName() string {
	return MockModelName
}

// CallCount returns how many completions were requested.
func (m *MockLLMAPI) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.GenerateCalls)
}

// LastPrompt returns the most recent prompt, or empty.
func (m *MockLLMAPI) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.GenerateCalls) == 0 {
		return ""
	}
	return m.GenerateCalls[len(m.GenerateCalls)-1]
}
