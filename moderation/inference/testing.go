package inference

import (
	"context"
	"sync"
)

// MockProvider is a scripted inference provider for tests. It counts calls so
// tests can assert the AI stage was (or was not) invoked.
type MockProvider struct {
	mu        sync.Mutex
	Responses []string
	Err       error
	Available bool
	calls     int
}

var _ Provider = (*MockProvider)(nil)

func NewMockProvider(responses ...string) *MockProvider {
	return &MockProvider{Responses: responses, Available: true}
}

func (m *MockProvider) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.Err != nil {
		return "", m.Err
	}
	if len(m.Responses) == 0 {
		return "", nil
	}
	resp := m.Responses[0]
	if len(m.Responses) > 1 {
		m.Responses = m.Responses[1:]
	}
	return resp, nil
}

func (m *MockProvider) IsModelAvailable(ctx context.Context, name string) (bool, error) {
	return m.Available, nil
}

func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
