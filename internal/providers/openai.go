package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/concordhq/concord/pkg/models"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAIAdapter implements Adapter for OpenAI's chat completions API.
type OpenAIAdapter struct {
	BaseAdapter
	client *openai.Client
}

// NewOpenAIAdapter creates an adapter bound to apiKey. A nil client results
// when apiKey is empty; Generate then fails fast rather than panicking.
func NewOpenAIAdapter(apiKey string) *OpenAIAdapter {
	a := &OpenAIAdapter{BaseAdapter: NewBaseAdapter("openai", 2, 500*time.Millisecond)}
	if apiKey != "" {
		a.client = openai.NewClient(apiKey)
	}
	return a
}

func (a *OpenAIAdapter) Provider() models.ProviderTag { return models.ProviderOpenAI }

func (a *OpenAIAdapter) SupportsTools() bool { return true }

func (a *OpenAIAdapter) Models() []models.ModelDescriptor {
	return []models.ModelDescriptor{
		{ID: "gpt-4o", Provider: models.ProviderOpenAI, DisplayName: "GPT-4o", ContextSize: 128000,
			Capabilities: []models.Capability{models.CapabilityStreaming, models.CapabilityFunctionCall, models.CapabilityVision}, Active: true},
		{ID: "gpt-4o-mini", Provider: models.ProviderOpenAI, DisplayName: "GPT-4o mini", ContextSize: 128000,
			Capabilities: []models.Capability{models.CapabilityStreaming, models.CapabilityFunctionCall, models.CapabilityVision}, Active: true},
	}
}

// Generate sends env to OpenAI and returns the synthesized response,
// retrying on retryable ProviderErrors per BaseAdapter.Retry.
func (a *OpenAIAdapter) Generate(ctx context.Context, env Envelope, tools []ToolDescriptor, cfg CompletionConfig) (*models.ModelResponse, error) {
	if a.client == nil {
		return nil, NewProviderError("openai", cfg.Model, fmt.Errorf("no API key configured")).WithCode("authentication_error")
	}

	req := openai.ChatCompletionRequest{
		Model:     cfg.Model,
		Messages:  toOpenAIMessages(env),
		MaxTokens: cfg.MaxTokens,
	}
	if len(tools) > 0 {
		req.Tools = toOpenAITools(tools)
		req.ToolChoice = toOpenAIToolChoice(cfg.ToolChoice)
	}

	var resp openai.ChatCompletionResponse
	err := a.Retry(ctx, IsRetryable, func() error {
		var callErr error
		resp, callErr = a.client.CreateChatCompletion(ctx, req)
		if callErr != nil {
			return NewProviderError("openai", cfg.Model, callErr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return fromOpenAIResponse(resp), nil
}

func toOpenAIMessages(env Envelope) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(env.Messages)+1)
	if env.System != "" {
		out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: env.System})
	}
	for _, m := range env.Messages {
		switch m.Role {
		case "assistant":
			msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: m.Content}
			for _, tc := range m.ToolCalls {
				msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: string(tc.Arguments),
					},
				})
			}
			out = append(out, msg)
		case "tool":
			for _, tr := range m.ToolResults {
				out = append(out, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					Content:    tr.Content,
					ToolCallID: tr.ToolCallID,
				})
			}
		default:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: m.Content})
		}
	}
	return out
}

func toOpenAITools(tools []ToolDescriptor) []openai.Tool {
	out := make([]openai.Tool, len(tools))
	for i, t := range tools {
		var schema map[string]any
		if err := json.Unmarshal(t.Schema, &schema); err != nil {
			schema = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		out[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  schema,
			},
		}
	}
	return out
}

func toOpenAIToolChoice(choice ToolChoice) any {
	switch choice {
	case ToolChoiceRequired:
		return "required"
	case ToolChoiceNone:
		return "none"
	default:
		return "auto"
	}
}

// defaultSinglePassConfidence is the documented fallback confidence for a
// final single-pass answer when the provider gives no confidence signal
// of its own (none of OpenAI, Grok, or DeepSeek's chat completions APIs do).
const defaultSinglePassConfidence = 0.8

func fromOpenAIResponse(resp openai.ChatCompletionResponse) *models.ModelResponse {
	out := &models.ModelResponse{ModelID: resp.Model, Confidence: defaultSinglePassConfidence}
	if len(resp.Choices) == 0 {
		return out
	}
	choice := resp.Choices[0]
	out.Content = choice.Message.Content
	for _, tc := range choice.Message.ToolCalls {
		out.ToolEvidence = append(out.ToolEvidence, models.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(tc.Function.Arguments),
		})
	}
	return out
}
