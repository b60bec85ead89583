package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aws/aws-sdk-go-v2/aws"
)

const defaultMaxTokens = 1024

// AnthropicClient talks to Claude through the Messages API, either directly
// or through Bedrock.
type AnthropicClient struct {
	client anthropic.Client
	model  string
	name   string
}

// NewAnthropicClient creates a client for the direct Anthropic API.
// An empty baseURL uses the SDK default.
func NewAnthropicClient(apiKey, model, baseURL string, httpClient *http.Client) *AnthropicClient {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0), // retries belong to the resilient wrapper
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	return &AnthropicClient{
		client: anthropic.NewClient(opts...),
		model:  model,
		name:   "anthropic",
	}
}

// NewBedrockClient creates a client that signs Messages API calls with the
// AWS credentials in awsCfg.
func NewBedrockClient(awsCfg aws.Config, model string) *AnthropicClient {
	return &AnthropicClient{
		client: anthropic.NewClient(
			bedrock.WithConfig(awsCfg),
			option.WithMaxRetries(0),
		),
		model: model,
		name:  "bedrock",
	}
}

// Name returns the provider name.
func (c *AnthropicClient) Name() string { return c.name }

// Chat sends one Messages API request.
func (c *AnthropicClient) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	params, err := c.buildParams(req)
	if err != nil {
		return nil, err
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, classify(c.name, err)
	}
	return fromAnthropic(msg)
}

// TestConnection sends a one-token request.
func (c *AnthropicClient) TestConnection(ctx context.Context) error {
	_, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: 1,
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock("ping"))},
	})
	if err != nil {
		return classify(c.name, err)
	}
	return nil
}

func (c *AnthropicClient) buildParams(req ChatRequest) (anthropic.MessageNewParams, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	for _, t := range req.Tools {
		params.Tools = append(params.Tools, anthropic.ToolUnionParam{OfTool: toAnthropicTool(t)})
	}

	for i, m := range req.Messages {
		mp, err := toAnthropicMessage(m)
		if err != nil {
			return params, fmt.Errorf("message %d: %w", i, err)
		}
		params.Messages = append(params.Messages, mp)
	}
	return params, nil
}

func toAnthropicTool(t Tool) *anthropic.ToolParam {
	schema := anthropic.ToolInputSchemaParam{}
	if props, ok := t.InputSchema["properties"]; ok {
		schema.Properties = props
	}
	if req, ok := t.InputSchema["required"].([]string); ok {
		schema.Required = req
	}
	tp := &anthropic.ToolParam{
		Name:        t.Name,
		InputSchema: schema,
	}
	if t.Description != "" {
		tp.Description = anthropic.String(t.Description)
	}
	return tp
}

func toAnthropicMessage(m Message) (anthropic.MessageParam, error) {
	var blocks []anthropic.ContentBlockParamUnion
	if m.Content != "" {
		blocks = append(blocks, anthropic.NewTextBlock(m.Content))
	}

	switch m.Role {
	case RoleAssistant:
		for _, tc := range m.ToolCalls {
			input := tc.Input
			if input == nil {
				input = map[string]any{}
			}
			blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
		}
		return anthropic.NewAssistantMessage(blocks...), nil
	case RoleUser:
		for _, tr := range m.ToolResults {
			blocks = append(blocks, anthropic.NewToolResultBlock(tr.ToolUseID, tr.Content, tr.IsError))
		}
		return anthropic.NewUserMessage(blocks...), nil
	default:
		return anthropic.MessageParam{}, fmt.Errorf("unsupported role %q", m.Role)
	}
}

func fromAnthropic(msg *anthropic.Message) (*ChatResponse, error) {
	resp := &ChatResponse{
		Model:        string(msg.Model),
		StopReason:   string(msg.StopReason),
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
	}

	var text strings.Builder
	for _, block := range msg.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			text.WriteString(b.Text)
		case anthropic.ToolUseBlock:
			input := map[string]any{}
			if len(b.Input) > 0 {
				if err := json.Unmarshal(b.Input, &input); err != nil {
					return nil, fmt.Errorf("decode tool input for %s: %w", b.Name, err)
				}
			}
			resp.ToolCalls = append(resp.ToolCalls, ToolCall{ID: b.ID, Name: b.Name, Input: input})
		}
	}
	resp.Content = text.String()
	return resp, nil
}
