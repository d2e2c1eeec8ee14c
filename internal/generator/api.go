package generator

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/fintorai/agentforge/internal/domain"
)

const apiMaxTokens = 8000

// APIClient generates code through the Anthropic Messages API. It returns
// assistant text only and never emits write events, so its output always goes
// through the fenced-block extraction fallback.
type APIClient struct {
	client anthropic.Client
	model  anthropic.Model
}

// NewAPIClient creates an API-backed generator.
func NewAPIClient(apiKey, model string) (*APIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic API key required")
	}
	return &APIClient{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  anthropic.Model(model),
	}, nil
}

// Generate performs a single Messages call. The workspace dir is unused: this
// generator cannot write files itself.
func (g *APIClient) Generate(ctx context.Context, dir, prompt string, events chan<- Event) (domain.AttemptOutcome, error) {
	message, err := g.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     g.model,
		MaxTokens: apiMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return domain.AttemptOutcome{ExitCode: 1, Stderr: err.Error()}, fmt.Errorf("anthropic messages: %w", err)
	}

	var sb strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" && block.Text != "" {
			events <- Event{Kind: EventText, Text: block.Text}
			sb.WriteString(block.Text)
		}
	}

	return domain.AttemptOutcome{
		Stdout:    sb.String(),
		Succeeded: true,
	}, nil
}

// Reset is a no-op: each Messages call is already stateless.
func (g *APIClient) Reset() {}
