// Package llm contains the model provider clients used by the conversation layer.
package llm

import (
	"context"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Stop reasons reported in ChatResponse.StopReason.
const (
	StopEndTurn   = "end_turn"
	StopToolUse   = "tool_use"
	StopMaxTokens = "max_tokens"
)

// Message represents one conversation turn.
type Message struct {
	Role        string       `json:"role"`                   // "user" or "assistant"
	Content     string       `json:"content,omitempty"`      // Text content
	ToolCalls   []ToolCall   `json:"tool_calls,omitempty"`   // Assistant turn requesting tools
	ToolResults []ToolResult `json:"tool_results,omitempty"` // User turn carrying a batch of results
}

// ToolCall is one tool invocation requested by the model.
type ToolCall struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Input map[string]any `json:"input"`
}

// ToolResult answers one ToolCall.
type ToolResult struct {
	ToolUseID string `json:"tool_use_id"`
	Content   string `json:"content"`
	IsError   bool   `json:"is_error,omitempty"`
}

// Tool is a tool definition advertised to the model.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// ChatRequest is a request to a provider.
type ChatRequest struct {
	Messages    []Message `json:"messages"`
	Model       string    `json:"model,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
	System      string    `json:"system,omitempty"`
	Tools       []Tool    `json:"tools,omitempty"`
}

// ChatResponse is a provider's reply.
type ChatResponse struct {
	Content      string     `json:"content"`
	Model        string     `json:"model"`
	StopReason   string     `json:"stop_reason,omitempty"`
	ToolCalls    []ToolCall `json:"tool_calls,omitempty"`
	InputTokens  int        `json:"input_tokens,omitempty"`
	OutputTokens int        `json:"output_tokens,omitempty"`
}

// WantsTools reports whether the model asked for tool calls.
func (r *ChatResponse) WantsTools() bool {
	return r != nil && len(r.ToolCalls) > 0
}

// Provider defines the interface for model providers.
type Provider interface {
	// Chat sends a chat request and returns the response
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// TestConnection validates credentials and connectivity
	TestConnection(ctx context.Context) error

	// Name returns the provider name
	Name() string
}
