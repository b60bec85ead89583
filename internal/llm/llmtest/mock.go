// Package llmtest provides a testify mock of llm.Provider.
package llmtest

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/yairfalse/bucketlens/internal/llm"
)

// MockProvider is a testify mock of llm.Provider.
type MockProvider struct {
	mock.Mock
}

var _ llm.Provider = (*MockProvider)(nil)

func (m *MockProvider) Name() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockProvider) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*llm.ChatResponse), args.Error(1)
}

func (m *MockProvider) TestConnection(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// Text is a final answer response.
func Text(content string) *llm.ChatResponse {
	return &llm.ChatResponse{Content: content, StopReason: llm.StopEndTurn}
}

// Tools is a response requesting the given calls.
func Tools(calls ...llm.ToolCall) *llm.ChatResponse {
	return &llm.ChatResponse{StopReason: llm.StopToolUse, ToolCalls: calls}
}
