package schemas

import "context"

// GenerationOptions provides detailed parameters to control the text generation
// process of the reasoning model, such as creativity (temperature) and output format.
type GenerationOptions struct {
	Temperature     float64 `json:"temperature"`       // Controls randomness. Lower is more deterministic.
	ForceJSONFormat bool    `json:"force_json_format"` // If true, forces the model to output valid JSON.
	MaxOutputTokens int     `json:"max_output_tokens"` // Caps the reply length. Zero means provider default.
}

// GenerationRequest encapsulates a complete request to the reasoning model: the
// system and user prompts, any screen captures the model should look at, and
// generation options. Images are raw PNG bytes and are attached to the user turn
// in order, before the text.
type GenerationRequest struct {
	SystemPrompt string            `json:"system_prompt"` // Instructions for the model's persona and task.
	UserPrompt   string            `json:"user_prompt"`   // The specific query for this turn.
	Images       [][]byte          `json:"-"`             // PNG screen captures, attached inline.
	Options      GenerationOptions `json:"options"`       // Advanced generation parameters.
}

// LLMClient defines a standard interface for interacting with a vision-capable
// reasoning model, abstracting the specifics of the underlying provider.
type LLMClient interface {
	// Generate produces a text completion based on the provided request.
	Generate(ctx context.Context, req GenerationRequest) (string, error)
	// Close cleans up any resources held by the client (e.g., network connections).
	Close() error
}
