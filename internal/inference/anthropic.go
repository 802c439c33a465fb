package inference

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicClient implements the inference capability against the
// Anthropic API, for setups without a local model.
type AnthropicClient struct {
	api          *anthropic.Client
	defaultModel string
}

// NewAnthropicClient creates a client with the given API key and default
// model.
func NewAnthropicClient(apiKey, defaultModel string) *AnthropicClient {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	client := anthropic.NewClient(opts...)
	return &AnthropicClient{
		api:          &client,
		defaultModel: defaultModel,
	}
}

// Liveness issues a minimal one-token request. There is no dedicated
// ping endpoint, and an unauthorized or unreachable API must fail here
// rather than mid-review.
func (c *AnthropicClient) Liveness(ctx context.Context) error {
	_, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.defaultModel),
		MaxTokens: 1,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock("ping")),
		},
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// GenerateStructured sends the composed prompt and parses the single
// JSON object out of the response text.
func (c *AnthropicClient) GenerateStructured(ctx context.Context, model, prompt string, schema map[string]any) (json.RawMessage, error) {
	full, err := composePrompt(prompt, schema)
	if err != nil {
		return nil, err
	}
	if model == "" {
		model = c.defaultModel
	}

	msg, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: 4096,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(full)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	if text == "" {
		return nil, fmt.Errorf("no text content in API response")
	}

	return extractJSON(text)
}
