// Package ai produces categorized insights for highlighted text by prompting a
// language model with passages retrieved from the indexed documents.
package ai

import "context"

// Categories are the insight groups requested from the model, in display order.
var Categories = []string{
	"key_takeaways",
	"did_you_know",
	"contradictions",
	"examples",
	"inspirations",
}

// Generator completes a single text prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// PassageFinder returns passages related to the highlighted text.
type PassageFinder func(ctx context.Context, highlight string) ([]string, error)

// Noop answers every prompt with an empty object, yielding no insights.
type Noop struct{}

func (Noop) Generate(ctx context.Context, prompt string) (string, error) { return "{}", nil }
