package estimate

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groomkit/groom/internal/models"
)

type fakeInference struct {
	response string
	err      error
}

func (f *fakeInference) Liveness(ctx context.Context) error { return f.err }

func (f *fakeInference) GenerateStructured(ctx context.Context, model, prompt string, schema map[string]any) (json.RawMessage, error) {
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(f.response), nil
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt("key: GRM-1", []float64{1, 2, 3, 5, 8})

	assert.Contains(t, prompt, "story points")
	assert.Contains(t, prompt, "1, 2, 3, 5, 8")
	assert.Contains(t, prompt, "0-100")
	assert.Contains(t, prompt, "key: GRM-1")
}

func TestBuildSchema(t *testing.T) {
	schema := BuildSchema()

	props := schema["properties"].(map[string]any)
	assert.Contains(t, props, "confidence")
	assert.Contains(t, props, "storyPoints")
	assert.Equal(t, []string{"confidence", "storyPoints"}, schema["required"])
}

func TestGenerate(t *testing.T) {
	t.Run("parses raw estimate", func(t *testing.T) {
		e := NewEstimator(&fakeInference{response: `{"confidence": 80, "storyPoints": 5}`})

		est, err := e.Generate(context.Background(), "doc", []float64{1, 2, 3}, "m")
		require.NoError(t, err)
		assert.Equal(t, models.Estimate{Confidence: 80, StoryPoints: 5}, est)
	})

	t.Run("backend failure propagates", func(t *testing.T) {
		boom := errors.New("down")
		e := NewEstimator(&fakeInference{err: boom})

		_, err := e.Generate(context.Background(), "doc", []float64{1}, "m")
		assert.ErrorIs(t, err, boom)
	})
}

func TestNormalize(t *testing.T) {
	scale := []float64{1, 2, 3, 5, 8}

	t.Run("reference scenario", func(t *testing.T) {
		// score 0.25, raw {80, 5}: confidence round((20+80)/2)=50,
		// points (1.25+5)/2=3.125 -> nearest is 3
		n := Normalize(models.Estimate{Confidence: 80, StoryPoints: 5}, 0.25, scale)
		assert.Equal(t, 50, n.Confidence)
		assert.Equal(t, 3.0, n.StoryPoints)
	})

	t.Run("perfect score keeps the raw estimate", func(t *testing.T) {
		n := Normalize(models.Estimate{Confidence: 80, StoryPoints: 5}, 1.0, scale)
		assert.Equal(t, 80, n.Confidence)
		assert.Equal(t, 5.0, n.StoryPoints)
	})

	t.Run("zero score halves", func(t *testing.T) {
		n := Normalize(models.Estimate{Confidence: 80, StoryPoints: 8}, 0, scale)
		assert.Equal(t, 40, n.Confidence)
		// average is 4, equidistant from 3 and 5: first declared wins
		assert.Equal(t, 3.0, n.StoryPoints)
	})

	t.Run("tie break follows declared order", func(t *testing.T) {
		// declared descending: 5 comes before 3, so 4 snaps to 5
		n := Normalize(models.Estimate{Confidence: 50, StoryPoints: 8}, 0, []float64{8, 5, 3, 2, 1})
		assert.Equal(t, 5.0, n.StoryPoints)
	})

	t.Run("confidence rounds to nearest integer", func(t *testing.T) {
		// raw 75, score 0.5: (37.5+75)/2 = 56.25 -> 56
		n := Normalize(models.Estimate{Confidence: 75, StoryPoints: 1}, 0.5, scale)
		assert.Equal(t, 56, n.Confidence)
	})
}
