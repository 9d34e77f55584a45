package generation

import "context"

// Model is a text generation backend.
//
//go:generate mockgen -destination ./mock/mock.go -package mock . Model
type Model interface {
	// Generate returns the model's text completion for prompt.
	Generate(ctx context.Context, prompt string) (string, error)
	Name() string
}
