package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/concordhq/concord/pkg/models"
	openai "github.com/sashabaranov/go-openai"
)

const deepseekBaseURL = "https://api.deepseek.com/v1"

// DeepSeekAdapter implements Adapter for DeepSeek's OpenAI-compatible API.
// DeepSeek has no provider-native built-in tools (web search and the
// like), but it speaks the same OpenAI-compatible function-calling
// schema as Grok, so registry tools (Drive ops) are offered the same way.
type DeepSeekAdapter struct {
	BaseAdapter
	client *openai.Client
}

// NewDeepSeekAdapter creates an adapter bound to apiKey against DeepSeek's
// endpoint.
func NewDeepSeekAdapter(apiKey string) *DeepSeekAdapter {
	a := &DeepSeekAdapter{BaseAdapter: NewBaseAdapter("deepseek", 2, 500*time.Millisecond)}
	if apiKey != "" {
		cfg := openai.DefaultConfig(apiKey)
		cfg.BaseURL = deepseekBaseURL
		a.client = openai.NewClientWithConfig(cfg)
	}
	return a
}

func (a *DeepSeekAdapter) Provider() models.ProviderTag { return models.ProviderDeepSeek }

func (a *DeepSeekAdapter) SupportsTools() bool { return true }

func (a *DeepSeekAdapter) Models() []models.ModelDescriptor {
	return []models.ModelDescriptor{
		{ID: "deepseek-chat", Provider: models.ProviderDeepSeek, DisplayName: "DeepSeek Chat", ContextSize: 64000,
			Capabilities: []models.Capability{models.CapabilityStreaming, models.CapabilityFunctionCall}, Active: true},
	}
}

func (a *DeepSeekAdapter) Generate(ctx context.Context, env Envelope, tools []ToolDescriptor, cfg CompletionConfig) (*models.ModelResponse, error) {
	if a.client == nil {
		return nil, NewProviderError("deepseek", cfg.Model, fmt.Errorf("no API key configured")).WithCode("authentication_error")
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
			return NewProviderError("deepseek", cfg.Model, callErr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return fromOpenAIResponse(resp), nil
}
