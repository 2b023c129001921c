package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/concordhq/concord/pkg/models"
	openai "github.com/sashabaranov/go-openai"
)

const grokBaseURL = "https://api.x.ai/v1"

// GrokAdapter implements Adapter for xAI's Grok models, which speak an
// OpenAI-compatible wire protocol behind a different base URL.
type GrokAdapter struct {
	BaseAdapter
	client *openai.Client
}

// NewGrokAdapter creates an adapter bound to apiKey against xAI's endpoint.
func NewGrokAdapter(apiKey string) *GrokAdapter {
	a := &GrokAdapter{BaseAdapter: NewBaseAdapter("grok", 2, 500*time.Millisecond)}
	if apiKey != "" {
		cfg := openai.DefaultConfig(apiKey)
		cfg.BaseURL = grokBaseURL
		client := openai.NewClientWithConfig(cfg)
		a.client = client
	}
	return a
}

func (a *GrokAdapter) Provider() models.ProviderTag { return models.ProviderGrok }

func (a *GrokAdapter) SupportsTools() bool { return true }

func (a *GrokAdapter) Models() []models.ModelDescriptor {
	return []models.ModelDescriptor{
		{ID: "grok-4", Provider: models.ProviderGrok, DisplayName: "Grok 4", ContextSize: 256000,
			Capabilities: []models.Capability{models.CapabilityStreaming, models.CapabilityFunctionCall, models.CapabilityRealTimeSearch}, Active: true},
	}
}

func (a *GrokAdapter) Generate(ctx context.Context, env Envelope, tools []ToolDescriptor, cfg CompletionConfig) (*models.ModelResponse, error) {
	if a.client == nil {
		return nil, NewProviderError("grok", cfg.Model, fmt.Errorf("no API key configured")).WithCode("authentication_error")
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
			return NewProviderError("grok", cfg.Model, callErr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return fromOpenAIResponse(resp), nil
}
