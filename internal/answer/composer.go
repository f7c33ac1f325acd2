package answer

import (
	"context"
	"errors"
	"fmt"

	"github.com/tableqa/tableqa/internal/llm"
)

// ErrGeneration wraps every failure of the answer model call.
var ErrGeneration = errors.New("answer generation failed")

type Config struct {
	Model string
}

type Composer struct {
	client   llm.Client
	framing  Framing
	template Template
	model    string
}

func NewComposer(client llm.Client, framing Framing, template Template, cfg Config) (*Composer, error) {
	if client == nil {
		return nil, fmt.Errorf("llm client is required")
	}
	if err := framing.Validate(); err != nil {
		return nil, err
	}
	if template.IsZero() {
		template = DefaultTemplate()
	}
	return &Composer{
		client:   client,
		framing:  framing,
		template: template,
		model:    cfg.Model,
	}, nil
}

// Compose returns the model's text unmodified.
func (c *Composer) Compose(ctx context.Context, question, result string) (string, error) {
	messages, err := BuildMessages(c.framing, c.template, question, result)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	// Temperature is always 0.
	text, err := c.client.Complete(ctx, llm.ChatRequest{
		Model:    c.model,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	return text, nil
}
