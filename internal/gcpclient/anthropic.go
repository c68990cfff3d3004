package gcpclient

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicAdapter wraps the Claude API to implement service.GenAIClient,
// the alternate LLM backend selected via LLM_PROVIDER=anthropic.
type AnthropicAdapter struct {
	client anthropic.Client
	model  anthropic.Model
}

// NewAnthropicAdapter creates an AnthropicAdapter for the given model (e.g.
// anthropic.ModelClaude3_7SonnetLatest).
func NewAnthropicAdapter(apiKey, model string) *AnthropicAdapter {
	return &AnthropicAdapter{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  anthropic.Model(model),
	}
}

// GenerateContent sends a single-turn completion request and returns the
// concatenated text of the response. Retries on rate limiting with the same
// backoff schedule used for Vertex AI.
func (a *AnthropicAdapter) GenerateContent(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return withRetry(ctx, "AnthropicGenerateContent", func() (string, error) {
		msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
			Model:     a.model,
			MaxTokens: 2048,
			System: []anthropic.TextBlockParam{
				{Text: systemPrompt},
			},
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
			},
		})
		if err != nil {
			return "", fmt.Errorf("gcpclient.AnthropicGenerateContent: %w", err)
		}

		var text string
		for _, block := range msg.Content {
			if block.Type == "text" {
				text += block.Text
			}
		}
		if text == "" {
			return "", fmt.Errorf("gcpclient.AnthropicGenerateContent: empty response")
		}
		return text, nil
	})
}

// HealthCheck validates the Anthropic connection with a minimal completion.
func (a *AnthropicAdapter) HealthCheck(ctx context.Context) error {
	resp, err := a.GenerateContent(ctx, "", "Reply with only: OK")
	if err != nil {
		return fmt.Errorf("anthropic health check failed (model: %s): %w", a.model, err)
	}
	if resp == "" {
		return fmt.Errorf("anthropic returned empty response (model: %s)", a.model)
	}
	return nil
}
