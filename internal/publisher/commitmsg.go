package publisher

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/fintorai/agentforge/internal/domain"
)

// FallbackCommitMessage is used whenever a generated message is unavailable.
const FallbackCommitMessage = "feat: auto-generated agent workflow"

// CommitMessenger produces a commit message for a set of artifacts.
type CommitMessenger interface {
	CommitMessage(ctx context.Context, artifacts []domain.WrittenArtifact) (string, error)
}

// StaticMessenger always returns the fallback message.
type StaticMessenger struct{}

func (StaticMessenger) CommitMessage(ctx context.Context, artifacts []domain.WrittenArtifact) (string, error) {
	return FallbackCommitMessage, nil
}

// AnthropicMessenger asks the Messages API for a conventional-commit style
// one-liner describing the artifact set.
type AnthropicMessenger struct {
	client anthropic.Client
	model  anthropic.Model
}

func NewAnthropicMessenger(apiKey, model string) *AnthropicMessenger {
	return &AnthropicMessenger{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  anthropic.Model(model),
	}
}

func (m *AnthropicMessenger) CommitMessage(ctx context.Context, artifacts []domain.WrittenArtifact) (string, error) {
	var paths []string
	for _, a := range artifacts {
		paths = append(paths, a.Path)
	}
	prompt := "Write a single-line conventional commit message (max 72 characters) " +
		"for a commit adding these generated files: " + strings.Join(paths, ", ") +
		". Respond with the message only, no quotes."

	message, err := m.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     m.model,
		MaxTokens: 100,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", err
	}
	for _, block := range message.Content {
		if block.Type == "text" {
			line := strings.TrimSpace(block.Text)
			if i := strings.IndexByte(line, '\n'); i >= 0 {
				line = line[:i]
			}
			if line != "" {
				return line, nil
			}
		}
	}
	return FallbackCommitMessage, nil
}
