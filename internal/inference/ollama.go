package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

// OllamaClient talks to a local Ollama server through langchaingo.
type OllamaClient struct {
	llm        *ollama.LLM
	baseURL    string
	httpClient *http.Client
}

// NewOllamaClient creates a client for the given server URL and default
// model. Local backends can be slow to first-token, hence the generous
// timeout.
func NewOllamaClient(baseURL, defaultModel string) (*OllamaClient, error) {
	httpClient := &http.Client{
		Timeout: 5 * time.Minute,
		Transport: &http.Transport{
			ResponseHeaderTimeout: 60 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
		},
	}

	llm, err := ollama.New(
		ollama.WithServerURL(baseURL),
		ollama.WithModel(defaultModel),
		ollama.WithHTTPClient(httpClient),
	)
	if err != nil {
		return nil, fmt.Errorf("create ollama client: %w", err)
	}

	return &OllamaClient{
		llm:        llm,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
	}, nil
}

// Liveness hits the Ollama tags endpoint, the cheapest call that proves
// the server is up and answering.
func (c *OllamaClient) Liveness(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("build liveness request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: liveness probe returned %s", ErrUnavailable, resp.Status)
	}
	return nil
}

// GenerateStructured sends the composed prompt in JSON mode and parses
// the single JSON object out of the response.
func (c *OllamaClient) GenerateStructured(ctx context.Context, model, prompt string, schema map[string]any) (json.RawMessage, error) {
	full, err := composePrompt(prompt, schema)
	if err != nil {
		return nil, err
	}

	resp, err := c.llm.GenerateContent(ctx,
		[]llms.MessageContent{llms.TextParts(llms.ChatMessageTypeHuman, full)},
		llms.WithModel(model),
		llms.WithJSONMode(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrUnavailable)
	}

	return extractJSON(resp.Choices[0].Content)
}
