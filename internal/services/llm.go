package services

import (
	"context"
)

// LLMService defines the interface for interacting with the dialogue model.
// One prompt string in, one completion string out; the prompt carries the
// persona, context, and history, so no message-array plumbing is needed.
type LLMService interface {
	// Generate produces a completion for the prompt.
	Generate(ctx context.Context, prompt string) (string, error)

	// ModelName reports the configured model, for health and logging.
	ModelName() string
}
