package checklist

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groomkit/groom/internal/models"
)

// fakeInference returns a canned JSON response and records the request.
type fakeInference struct {
	response string
	err      error

	gotModel  string
	gotPrompt string
	gotSchema map[string]any
	calls     int
}

func (f *fakeInference) Liveness(ctx context.Context) error { return f.err }

func (f *fakeInference) GenerateStructured(ctx context.Context, model, prompt string, schema map[string]any) (json.RawMessage, error) {
	f.calls++
	f.gotModel = model
	f.gotPrompt = prompt
	f.gotSchema = schema
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(f.response), nil
}

func entries() []models.ChecklistEntry {
	return []models.ChecklistEntry{
		{Key: "has_acceptance_criteria", Description: "Has acceptance criteria", Weight: 1},
		{Key: "has_context", Description: "Describes the problem context", Weight: 3},
	}
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt(entries(), "key: GRM-1\nsummary: Add login")

	assert.Contains(t, prompt, `"has_acceptance_criteria": Has acceptance criteria`)
	assert.Contains(t, prompt, `"has_context": Describes the problem context`)
	assert.Contains(t, prompt, "summary: Add login")
	assert.Contains(t, prompt, "true or false")
}

func TestBuildSchema(t *testing.T) {
	schema := BuildSchema(entries())

	assert.Equal(t, "object", schema["type"])
	assert.Equal(t, []string{"has_acceptance_criteria", "has_context"}, schema["required"])
	assert.Equal(t, false, schema["additionalProperties"])

	props := schema["properties"].(map[string]any)
	require.Len(t, props, 2)
	for _, e := range entries() {
		prop := props[e.Key].(map[string]any)
		assert.Equal(t, "boolean", prop["type"])
	}
}

func TestEvaluate(t *testing.T) {
	t.Run("parses one result per entry in configuration order", func(t *testing.T) {
		inf := &fakeInference{response: `{"has_context": false, "has_acceptance_criteria": true}`}
		s := NewScorer(inf)

		results, err := s.Evaluate(context.Background(), "doc", entries(), "qwen2.5:14b")
		require.NoError(t, err)

		require.Len(t, results, 2)
		assert.Equal(t, "has_acceptance_criteria", results[0].Entry.Key)
		assert.True(t, results[0].Value)
		assert.Equal(t, "has_context", results[1].Entry.Key)
		assert.False(t, results[1].Value)

		assert.Equal(t, "qwen2.5:14b", inf.gotModel)
		assert.Contains(t, inf.gotPrompt, "doc")
	})

	t.Run("missing key is a contract violation", func(t *testing.T) {
		inf := &fakeInference{response: `{"has_acceptance_criteria": true}`}
		s := NewScorer(inf)

		_, err := s.Evaluate(context.Background(), "doc", entries(), "m")
		require.Error(t, err)
		assert.Contains(t, err.Error(), `missing key "has_context"`)
	})

	t.Run("backend failure propagates", func(t *testing.T) {
		boom := errors.New("connection refused")
		inf := &fakeInference{err: boom}
		s := NewScorer(inf)

		_, err := s.Evaluate(context.Background(), "doc", entries(), "m")
		assert.ErrorIs(t, err, boom)
	})

	t.Run("wrong-typed answer is an error", func(t *testing.T) {
		inf := &fakeInference{response: `{"has_acceptance_criteria": "yes", "has_context": true}`}
		s := NewScorer(inf)

		_, err := s.Evaluate(context.Background(), "doc", entries(), "m")
		assert.Error(t, err)
	})
}

func TestScore(t *testing.T) {
	mk := func(values ...bool) []models.ChecklistResult {
		es := entries()
		results := make([]models.ChecklistResult, len(es))
		for i, e := range es {
			results[i] = models.ChecklistResult{Entry: e, Value: values[i]}
		}
		return results
	}

	t.Run("weighted scenario", func(t *testing.T) {
		// weights 1 and 3; only the weight-1 entry true => 1/4
		assert.InDelta(t, 0.25, Score(mk(true, false)), 1e-9)
	})

	t.Run("all true is exactly one", func(t *testing.T) {
		assert.Equal(t, 1.0, Score(mk(true, true)))
	})

	t.Run("all false is exactly zero", func(t *testing.T) {
		assert.Equal(t, 0.0, Score(mk(false, false)))
	})

	t.Run("bounds hold for every assignment", func(t *testing.T) {
		for _, a := range []bool{true, false} {
			for _, b := range []bool{true, false} {
				score := Score(mk(a, b))
				assert.GreaterOrEqual(t, score, 0.0)
				assert.LessOrEqual(t, score, 1.0)
			}
		}
	})
}
