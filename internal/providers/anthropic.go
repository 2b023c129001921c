package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/concordhq/concord/pkg/models"
)

// AnthropicAdapter implements Adapter for Anthropic's Messages API.
type AnthropicAdapter struct {
	BaseAdapter
	client       anthropic.Client
	configured   bool
	defaultModel string
}

// NewAnthropicAdapter creates an adapter bound to apiKey.
func NewAnthropicAdapter(apiKey, defaultModel string) *AnthropicAdapter {
	a := &AnthropicAdapter{
		BaseAdapter:  NewBaseAdapter("anthropic", 2, 500*time.Millisecond),
		defaultModel: defaultModel,
	}
	if defaultModel == "" {
		a.defaultModel = "claude-sonnet-4-20250514"
	}
	if apiKey != "" {
		a.client = anthropic.NewClient(option.WithAPIKey(apiKey))
		a.configured = true
	}
	return a
}

func (a *AnthropicAdapter) Provider() models.ProviderTag { return models.ProviderAnthropic }

func (a *AnthropicAdapter) SupportsTools() bool { return true }

func (a *AnthropicAdapter) Models() []models.ModelDescriptor {
	return []models.ModelDescriptor{
		{ID: "claude-sonnet-4-20250514", Provider: models.ProviderAnthropic, DisplayName: "Claude Sonnet 4", ContextSize: 200000,
			Capabilities: []models.Capability{models.CapabilityStreaming, models.CapabilityFunctionCall, models.CapabilityVision}, Active: true},
		{ID: "claude-opus-4-20250514", Provider: models.ProviderAnthropic, DisplayName: "Claude Opus 4", ContextSize: 200000,
			Capabilities: []models.Capability{models.CapabilityStreaming, models.CapabilityFunctionCall, models.CapabilityVision}, Active: true},
	}
}

func (a *AnthropicAdapter) Generate(ctx context.Context, env Envelope, tools []ToolDescriptor, cfg CompletionConfig) (*models.ModelResponse, error) {
	if !a.configured {
		return nil, NewProviderError("anthropic", cfg.Model, fmt.Errorf("no API key configured")).WithCode("authentication_error")
	}

	model := cfg.Model
	if model == "" {
		model = a.defaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	messages, err := toAnthropicMessages(env.Messages)
	if err != nil {
		return nil, NewProviderError("anthropic", model, err).WithCode("invalid_request_error")
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  messages,
		MaxTokens: int64(maxTokens),
	}
	if env.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: env.System}}
	}
	if len(tools) > 0 {
		toolParams, err := toAnthropicTools(tools)
		if err != nil {
			return nil, NewProviderError("anthropic", model, err).WithCode("invalid_request_error")
		}
		params.Tools = toolParams
		if cfg.ToolChoice == ToolChoiceRequired {
			params.ToolChoice = anthropic.ToolChoiceParamOfAny()
		}
	}

	var msg *anthropic.Message
	err = a.Retry(ctx, IsRetryable, func() error {
		var callErr error
		msg, callErr = a.client.Messages.New(ctx, params)
		if callErr != nil {
			return NewProviderError("anthropic", model, callErr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return fromAnthropicMessage(msg), nil
}

func toAnthropicMessages(messages []Message) ([]anthropic.MessageParam, error) {
	var result []anthropic.MessageParam
	for _, m := range messages {
		var content []anthropic.ContentBlockParamUnion
		if m.Content != "" {
			content = append(content, anthropic.NewTextBlock(m.Content))
		}
		for _, tr := range m.ToolResults {
			content = append(content, anthropic.NewToolResultBlock(tr.ToolCallID, tr.Content, tr.IsError))
		}
		for _, tc := range m.ToolCalls {
			var input map[string]interface{}
			if err := json.Unmarshal(tc.Arguments, &input); err != nil {
				return nil, fmt.Errorf("invalid tool call arguments for %s: %w", tc.Name, err)
			}
			content = append(content, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
		}
		if len(content) == 0 {
			continue
		}
		if m.Role == "assistant" {
			result = append(result, anthropic.NewAssistantMessage(content...))
		} else {
			result = append(result, anthropic.NewUserMessage(content...))
		}
	}
	return result, nil
}

func toAnthropicTools(tools []ToolDescriptor) ([]anthropic.ToolUnionParam, error) {
	var result []anthropic.ToolUnionParam
	for _, t := range tools {
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(t.Schema, &schema); err != nil {
			return nil, fmt.Errorf("invalid tool schema for %s: %w", t.Name, err)
		}
		toolParam := anthropic.ToolUnionParamOfTool(schema, t.Name)
		if toolParam.OfTool == nil {
			return nil, fmt.Errorf("invalid tool schema for %s", t.Name)
		}
		toolParam.OfTool.Description = anthropic.String(t.Description)
		result = append(result, toolParam)
	}
	return result, nil
}

func fromAnthropicMessage(msg *anthropic.Message) *models.ModelResponse {
	out := &models.ModelResponse{ModelID: string(msg.Model), Confidence: defaultSinglePassConfidence}
	for _, block := range msg.Content {
		switch v := block.AsAny().(type) {
		case anthropic.TextBlock:
			out.Content += v.Text
		case anthropic.ToolUseBlock:
			args, _ := json.Marshal(v.Input)
			out.ToolEvidence = append(out.ToolEvidence, models.ToolCall{
				ID:        v.ID,
				Name:      v.Name,
				Arguments: args,
			})
		}
	}
	return out
}
