package chat

// Personality describes the agent persona presented to the model.
type Personality struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Traits      []string `json:"traits"`
	Mood        string   `json:"mood"`
}

// AgentSettings is the full agent configuration a client carries for a session.
// The server is stateless per request, so every outgoing chat request embeds a
// complete snapshot of these settings rather than a delta.
type AgentSettings struct {
	// UserID identifies the requesting user.
	UserID string `json:"user_id"`

	// Provider is the LLM provider name (for example "anthropic" or "openai").
	Provider string `json:"provider"`

	// Model is the model identifier to run the turn against.
	Model string `json:"model"`

	// SystemPrompt is the system prompt for the agent.
	SystemPrompt string `json:"system_prompt,omitempty"`

	// Temperature controls response randomness.
	Temperature float64 `json:"temperature"`

	// MaxTokens is the response token budget.
	MaxTokens int `json:"max_tokens"`

	// Personality is the agent persona.
	Personality Personality `json:"personality"`

	// Context carries optional per-request key/value context.
	Context map[string]string `json:"context,omitempty"`

	// StreamAudio requests synthesized audio chunks alongside text.
	StreamAudio bool `json:"stream_audio"`

	// VoiceID selects the TTS voice when StreamAudio is set.
	VoiceID string `json:"voice_id,omitempty"`
}
