// Package estimate obtains a raw story-point/confidence estimate from
// the model and normalizes it against the checklist score.
package estimate

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/groomkit/groom/internal/inference"
	"github.com/groomkit/groom/internal/models"
)

// Estimator requests raw estimates through an inference capability.
type Estimator struct {
	inf inference.Client
}

// NewEstimator returns an Estimator backed by the given inference client.
func NewEstimator(inf inference.Client) *Estimator {
	return &Estimator{inf: inf}
}

// BuildPrompt constructs the estimation prompt over the serialized
// ticket document. Pure, snapshot-testable.
func BuildPrompt(doc string, scale []float64) string {
	points := make([]string, len(scale))
	for i, v := range scale {
		points[i] = trimFloat(v)
	}

	var sb strings.Builder
	sb.WriteString("You estimate backlog tickets for an agile team. ")
	sb.WriteString("Given the ticket below, estimate the implementation effort in story points ")
	fmt.Fprintf(&sb, "(typical values: %s) and your confidence in that estimate on a 0-100 scale.\n", strings.Join(points, ", "))
	sb.WriteString("\nTicket:\n\n")
	sb.WriteString(doc)
	return sb.String()
}

// BuildSchema constructs the JSON schema for a raw estimate.
func BuildSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"confidence": map[string]any{
				"type":        "number",
				"description": "Confidence in the estimate, 0-100",
			},
			"storyPoints": map[string]any{
				"type":        "number",
				"description": "Estimated effort in story points",
			},
		},
		"required":             []string{"confidence", "storyPoints"},
		"additionalProperties": false,
	}
}

// Generate runs one structured request and returns the raw estimate.
func (e *Estimator) Generate(ctx context.Context, doc string, scale []float64, model string) (models.Estimate, error) {
	raw, err := e.inf.GenerateStructured(ctx, model, BuildPrompt(doc, scale), BuildSchema())
	if err != nil {
		return models.Estimate{}, fmt.Errorf("generate estimate: %w", err)
	}

	var est models.Estimate
	if err := json.Unmarshal(raw, &est); err != nil {
		return models.Estimate{}, fmt.Errorf("parse estimate response: %w\nraw response: %s", err, raw)
	}
	return est, nil
}

// Normalize adjusts a raw estimate by the checklist score:
//
//	confidence  = round((raw*score + raw) / 2)
//	storyPoints = scale value nearest to (raw*score + raw) / 2
//
// Ties on story points resolve to the value declared first in the scale.
// Pure and total; keep the formula as is, changing it silently changes
// estimate outputs.
func Normalize(raw models.Estimate, score float64, scale []float64) models.NormalizedEstimate {
	confidence := math.Round((raw.Confidence*score + raw.Confidence) / 2)
	average := (raw.StoryPoints*score + raw.StoryPoints) / 2

	return models.NormalizedEstimate{
		Confidence:  int(confidence),
		StoryPoints: nearest(scale, average),
	}
}

// nearest returns the scale value with the minimum absolute distance to
// target, keeping the earliest declared value on ties.
func nearest(scale []float64, target float64) float64 {
	best := scale[0]
	bestDist := math.Abs(target - best)
	for _, v := range scale[1:] {
		if d := math.Abs(target - v); d < bestDist {
			best, bestDist = v, d
		}
	}
	return best
}

// trimFloat formats a scale value without trailing zeros.
func trimFloat(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
}
