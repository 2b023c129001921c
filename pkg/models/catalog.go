package models

// ProviderTag identifies one of the four supported LLM backends.
type ProviderTag string

const (
	ProviderOpenAI    ProviderTag = "openai"
	ProviderGrok      ProviderTag = "grok"
	ProviderAnthropic ProviderTag = "anthropic"
	ProviderDeepSeek  ProviderTag = "deepseek"
)

// Capability is a single optional feature a model may advertise.
type Capability string

const (
	CapabilityStreaming      Capability = "streaming"
	CapabilityFunctionCall   Capability = "function_calling"
	CapabilityVision         Capability = "vision"
	CapabilityImageGen       Capability = "image_generation"
	CapabilityRealTimeSearch Capability = "real_time_search"
)

// ModelDescriptor is a catalog entry for one selectable model.
type ModelDescriptor struct {
	ID           string       `json:"id"`
	Provider     ProviderTag  `json:"provider"`
	DisplayName  string       `json:"display_name"`
	ContextSize  int          `json:"context_window"`
	Capabilities []Capability `json:"capabilities"`
	Active       bool         `json:"active"`
}

// HasCapability reports whether the descriptor advertises cap.
func (m ModelDescriptor) HasCapability(cap Capability) bool {
	for _, c := range m.Capabilities {
		if c == cap {
			return true
		}
	}
	return false
}

// ProviderCredentials holds per-process provider secrets. Never
// serialized or exposed to clients.
type ProviderCredentials struct {
	Provider ProviderTag `json:"-"`
	APIKey   string      `json:"-"`
	BaseURL  string      `json:"-"`
}
