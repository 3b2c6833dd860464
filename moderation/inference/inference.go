// Package inference wraps the opaque text-completion collaborator used by the
// context-augmented analyzer. The provider is exercised in a low-temperature,
// JSON-constrained mode; everything downstream treats its output as
// untrusted.
package inference

import (
	"context"
	"errors"
)

var (
	ErrModelUnavailable = errors.New("inference model not available")
	ErrProviderTimeout  = errors.New("inference provider timed out")
)

// GenerateRequest carries one completion request.
type GenerateRequest struct {
	Model       string
	Prompt      string
	JSONMode    bool
	Temperature float64
	MaxTokens   int
}

// Provider is the collaborator contract for the inference backend.
type Provider interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
	IsModelAvailable(ctx context.Context, name string) (bool, error)
}
