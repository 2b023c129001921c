// Package providers implements Concord's Provider Adapters: a uniform
// Generate() contract over OpenAI, xAI Grok, Anthropic Claude, and
// DeepSeek, hiding each backend's wire-format differences from the
// consensus engine and tool loop driver.
package providers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/concordhq/concord/pkg/models"
)

// Message is one turn in the conversation sent to a model, independent of
// any provider's wire format.
type Message struct {
	Role        string             `json:"role"` // "user", "assistant", "tool"
	Content     string             `json:"content,omitempty"`
	ToolCalls   []models.ToolCall  `json:"tool_calls,omitempty"`
	ToolResults []ToolResultTurn   `json:"tool_results,omitempty"`
}

// ToolResultTurn carries one tool's output back to the model that called it.
type ToolResultTurn struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error,omitempty"`
}

// ToolDescriptor is the provider-agnostic shape of one callable tool; each
// adapter converts it into its own wire schema.
type ToolDescriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Schema      json.RawMessage `json:"schema"`
}

// ToolChoice constrains whether and how a model must call a tool.
type ToolChoice string

const (
	ToolChoiceAuto     ToolChoice = "auto"
	ToolChoiceRequired ToolChoice = "required"
	ToolChoiceNone     ToolChoice = "none"
)

// Envelope is the fully-assembled request body the Context Builder hands
// to every selected adapter for one consensus turn.
type Envelope struct {
	System   string
	Messages []Message
}

// CompletionConfig carries per-call generation parameters.
type CompletionConfig struct {
	Model       string
	MaxTokens   int
	Temperature float64
	ToolChoice  ToolChoice
	Timeout     time.Duration
}

// Adapter is the uniform interface every provider implementation
// satisfies. Implementations must be safe for concurrent use across
// sessions.
type Adapter interface {
	// Provider returns this adapter's catalog tag.
	Provider() models.ProviderTag

	// Generate sends env to the backend and returns one ModelResponse.
	// tools, when non-empty, are offered to the model per config.ToolChoice.
	Generate(ctx context.Context, env Envelope, tools []ToolDescriptor, config CompletionConfig) (*models.ModelResponse, error)

	// Models lists the catalog entries this adapter can serve.
	Models() []models.ModelDescriptor

	// SupportsTools reports whether this adapter can offer tool calling.
	SupportsTools() bool
}
