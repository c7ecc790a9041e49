// Package explain provides natural-language text generation for decision
// rationales and audit explanations, backed by an external inference service.
package explain

import (
	"context"
)

//go:generate mockgen -source=generator.go -destination=mocks/mocks.go -package=mocks Generator

// Generator produces free-form text for a prompt. Implementations must honor
// context cancellation; callers always keep a local fallback, so errors are
// advisory rather than fatal.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
