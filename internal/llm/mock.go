package llm

import (
	"context"
	"strings"
	"sync"
)

const ProviderMock = "mock"

// MockClient answers without a network call. Respond, when set, decides the
// completion; otherwise a canned reply is derived from the prompt.
type MockClient struct {
	Respond func(req ChatRequest) (string, error)

	mu       sync.Mutex
	requests []ChatRequest
}

var _ Client = (*MockClient)(nil)

func NewMockClient() *MockClient {
	return &MockClient{}
}

func (m *MockClient) Provider() string { return ProviderMock }
func (m *MockClient) Model() string    { return "mock" }

func (m *MockClient) Complete(ctx context.Context, req ChatRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := validateMessages(req.Messages); err != nil {
		return "", err
	}
	m.mu.Lock()
	m.requests = append(m.requests, copyRequest(req))
	respond := m.Respond
	m.mu.Unlock()

	if respond != nil {
		return respond(req)
	}
	return cannedReply(req), nil
}

// Requests returns every request seen so far.
func (m *MockClient) Requests() []ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ChatRequest, 0, len(m.requests))
	for _, req := range m.requests {
		out = append(out, copyRequest(req))
	}
	return out
}

func (m *MockClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func copyRequest(req ChatRequest) ChatRequest {
	req.Messages = append([]Message(nil), req.Messages...)
	return req
}

func cannedReply(req ChatRequest) string {
	last := req.Messages[len(req.Messages)-1].Content
	if req.Messages[0].Role == RoleSystem && strings.Contains(req.Messages[0].Content, "SQL") {
		return "SELECT COUNT(*) FROM " + mockTableName(last)
	}
	if start := strings.Index(last, "Context:\n"); start >= 0 {
		evidence := last[start+len("Context:\n"):]
		if end := strings.Index(evidence, "\n\nOutput:"); end >= 0 {
			evidence = evidence[:end]
		}
		return "The data shows: " + strings.TrimSpace(evidence)
	}
	return "mock completion"
}

// mockTableName pulls the table out of a rendered CREATE TABLE sketch.
func mockTableName(prompt string) string {
	const marker = "CREATE TABLE "
	idx := strings.Index(prompt, marker)
	if idx < 0 {
		return "dual"
	}
	rest := prompt[idx+len(marker):]
	if end := strings.IndexAny(rest, " (\n"); end > 0 {
		return rest[:end]
	}
	return "dual"
}
