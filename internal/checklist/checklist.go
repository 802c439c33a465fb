// Package checklist evaluates the configured grooming checklist against
// a ticket and computes the weighted readiness score.
package checklist

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/groomkit/groom/internal/inference"
	"github.com/groomkit/groom/internal/models"
)

// Scorer runs checklist evaluations through an inference capability.
type Scorer struct {
	inf inference.Client
}

// NewScorer returns a Scorer backed by the given inference client.
func NewScorer(inf inference.Client) *Scorer {
	return &Scorer{inf: inf}
}

// BuildPrompt constructs the evaluation prompt: the checklist criteria
// followed by the serialized ticket document. Pure, snapshot-testable.
func BuildPrompt(entries []models.ChecklistEntry, doc string) string {
	var sb strings.Builder
	sb.WriteString("You assess whether a backlog ticket is ready for development. ")
	sb.WriteString("Answer each criterion below with true or false, judged strictly against the ticket content.\n\nCriteria:\n")
	for _, e := range entries {
		fmt.Fprintf(&sb, "- %q: %s\n", e.Key, e.Description)
	}
	sb.WriteString("\nTicket:\n\n")
	sb.WriteString(doc)
	return sb.String()
}

// BuildSchema constructs the JSON schema requesting exactly the
// configured keys, each typed as a boolean, all required.
func BuildSchema(entries []models.ChecklistEntry) map[string]any {
	properties := make(map[string]any, len(entries))
	required := make([]string, 0, len(entries))
	for _, e := range entries {
		properties[e.Key] = map[string]any{
			"type":        "boolean",
			"description": e.Description,
		}
		required = append(required, e.Key)
	}
	return map[string]any{
		"type":                 "object",
		"properties":           properties,
		"required":             required,
		"additionalProperties": false,
	}
}

// Evaluate runs one structured request over the serialized ticket and
// returns one result per configured entry, in configuration order. A
// response missing a configured key is a contract violation of the
// inference capability and surfaces as an error.
func (s *Scorer) Evaluate(ctx context.Context, doc string, entries []models.ChecklistEntry, model string) ([]models.ChecklistResult, error) {
	raw, err := s.inf.GenerateStructured(ctx, model, BuildPrompt(entries, doc), BuildSchema(entries))
	if err != nil {
		return nil, fmt.Errorf("evaluate checklist: %w", err)
	}

	var answers map[string]bool
	if err := json.Unmarshal(raw, &answers); err != nil {
		return nil, fmt.Errorf("parse checklist response: %w\nraw response: %s", err, raw)
	}

	results := make([]models.ChecklistResult, 0, len(entries))
	for _, e := range entries {
		value, ok := answers[e.Key]
		if !ok {
			return nil, fmt.Errorf("checklist response is missing key %q", e.Key)
		}
		results = append(results, models.ChecklistResult{Entry: e, Value: value})
	}
	return results, nil
}

// Score computes the normalized score: the weight of the true entries
// over the total weight. Total weight > 0 is a configuration invariant
// checked at load time, not here.
func Score(results []models.ChecklistResult) float64 {
	var total, achieved float64
	for _, r := range results {
		total += r.Entry.Weight
		if r.Value {
			achieved += r.Entry.Weight
		}
	}
	return achieved / total
}
