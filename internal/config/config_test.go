package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groomkit/groom/internal/models"
)

func validSettings() *Settings {
	return &Settings{
		Checklist: []models.ChecklistEntry{
			{Key: "has_acceptance_criteria", Description: "Has acceptance criteria", Weight: 3},
			{Key: "has_context", Description: "Describes the problem context", Weight: 1},
		},
		Scale:   []float64{1, 2, 3, 5, 8},
		Backend: "ollama",
		Model:   "qwen2.5:14b",
	}
}

func TestValidate_OK(t *testing.T) {
	require.NoError(t, validSettings().Validate())
}

func TestValidate_Failures(t *testing.T) {
	t.Run("empty checklist", func(t *testing.T) {
		s := validSettings()
		s.Checklist = nil
		err := s.Validate()
		assert.ErrorIs(t, err, ErrInvalid)
		assert.Contains(t, err.Error(), "checklist is empty")
	})

	t.Run("zero weight", func(t *testing.T) {
		s := validSettings()
		s.Checklist[0].Weight = 0
		assert.ErrorIs(t, s.Validate(), ErrInvalid)
	})

	t.Run("negative weight", func(t *testing.T) {
		s := validSettings()
		s.Checklist[1].Weight = -2
		assert.ErrorIs(t, s.Validate(), ErrInvalid)
	})

	t.Run("duplicate key", func(t *testing.T) {
		s := validSettings()
		s.Checklist[1].Key = s.Checklist[0].Key
		err := s.Validate()
		assert.ErrorIs(t, err, ErrInvalid)
		assert.Contains(t, err.Error(), "duplicate")
	})

	t.Run("missing key", func(t *testing.T) {
		s := validSettings()
		s.Checklist[0].Key = ""
		assert.ErrorIs(t, s.Validate(), ErrInvalid)
	})

	t.Run("empty scale", func(t *testing.T) {
		s := validSettings()
		s.Scale = nil
		assert.ErrorIs(t, s.Validate(), ErrInvalid)
	})

	t.Run("non-positive scale value", func(t *testing.T) {
		s := validSettings()
		s.Scale = []float64{0, 1, 2}
		assert.ErrorIs(t, s.Validate(), ErrInvalid)
	})

	t.Run("unknown backend", func(t *testing.T) {
		s := validSettings()
		s.Backend = "gpt4all"
		assert.ErrorIs(t, s.Validate(), ErrInvalid)
	})

	t.Run("missing model", func(t *testing.T) {
		s := validSettings()
		s.Model = ""
		assert.ErrorIs(t, s.Validate(), ErrInvalid)
	})
}

func TestTotalWeight(t *testing.T) {
	s := validSettings()
	assert.InDelta(t, 4.0, s.TotalWeight(), 1e-9)
}
