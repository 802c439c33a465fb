// Package inference abstracts the generative-model backend behind a
// small capability: a liveness probe and structured (JSON) generation.
package inference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// ErrUnavailable marks a failed liveness probe or generation call. It is
// fatal for the operation that hit it; there is no retry loop here.
var ErrUnavailable = errors.New("inference backend unavailable")

// Client is the consumed inference capability.
type Client interface {
	// Liveness probes the backend. Any error means no review-issuing
	// operation should be attempted.
	Liveness(ctx context.Context) error

	// GenerateStructured asks the model for a single JSON object
	// matching schema and returns the parsed raw JSON.
	GenerateStructured(ctx context.Context, model, prompt string, schema map[string]any) (json.RawMessage, error)
}

// composePrompt appends the JSON schema contract to the task prompt.
// json.Marshal sorts map keys, so the composed prompt is deterministic
// for a given configuration and can be snapshot-tested.
func composePrompt(prompt string, schema map[string]any) (string, error) {
	data, err := json.Marshal(schema)
	if err != nil {
		return "", fmt.Errorf("marshal schema: %w", err)
	}

	var sb strings.Builder
	sb.WriteString(prompt)
	sb.WriteString("\n\nRespond with a single JSON object matching this JSON schema. ")
	sb.WriteString("Return valid JSON only, no markdown fencing or explanation.\n\n")
	sb.Write(data)
	return sb.String(), nil
}

// extractJSON pulls a JSON object out of a model response: strips
// markdown fencing, then falls back to jsonrepair for almost-JSON.
func extractJSON(text string) (json.RawMessage, error) {
	text = strings.TrimSpace(text)

	// Strip markdown fencing if present
	if strings.HasPrefix(text, "```") {
		lines := strings.SplitN(text, "\n", 2)
		if len(lines) > 1 {
			text = lines[1]
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}

	if json.Valid([]byte(text)) {
		return json.RawMessage(text), nil
	}

	repaired, err := jsonrepair.JSONRepair(text)
	if err != nil {
		return nil, fmt.Errorf("parse model response as JSON: %w\nraw response: %s", err, text)
	}
	if !json.Valid([]byte(repaired)) {
		return nil, fmt.Errorf("model response is not valid JSON after repair\nraw response: %s", text)
	}
	return json.RawMessage(repaired), nil
}
