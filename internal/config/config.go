package config

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"

	"github.com/groomkit/groom/internal/models"
)

// ErrInvalid marks a misconfiguration caught at settings-load time,
// before any network or inference call.
var ErrInvalid = errors.New("invalid configuration")

// Settings holds the process-wide read-only configuration. Loaded once
// at start and validated before any component uses it.
type Settings struct {
	Checklist []models.ChecklistEntry
	Scale     []float64 // story point scale, in declared order

	Backend string // "ollama" or "anthropic"
	Model   string // default model identifier
}

// Load decodes and validates the review-relevant settings from viper.
func Load() (*Settings, error) {
	s := &Settings{
		Backend: viper.GetString("inference.backend"),
		Model:   viper.GetString("inference.model"),
	}

	if err := viper.UnmarshalKey("checklist", &s.Checklist); err != nil {
		return nil, fmt.Errorf("%w: decode checklist: %v", ErrInvalid, err)
	}
	if err := viper.UnmarshalKey("estimate.scale", &s.Scale); err != nil {
		return nil, fmt.Errorf("%w: decode estimate scale: %v", ErrInvalid, err)
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks the configuration invariants the scorer and normalizer
// rely on: non-empty checklist with positive weights, non-empty scale.
func (s *Settings) Validate() error {
	if len(s.Checklist) == 0 {
		return fmt.Errorf("%w: checklist is empty", ErrInvalid)
	}

	seen := make(map[string]bool, len(s.Checklist))
	var total float64
	for i, e := range s.Checklist {
		if e.Key == "" {
			return fmt.Errorf("%w: checklist entry %d has no key", ErrInvalid, i)
		}
		if seen[e.Key] {
			return fmt.Errorf("%w: duplicate checklist key %q", ErrInvalid, e.Key)
		}
		seen[e.Key] = true
		if e.Weight <= 0 {
			return fmt.Errorf("%w: checklist entry %q has non-positive weight %v", ErrInvalid, e.Key, e.Weight)
		}
		total += e.Weight
	}
	if total <= 0 {
		return fmt.Errorf("%w: checklist total weight must be > 0", ErrInvalid)
	}

	if len(s.Scale) == 0 {
		return fmt.Errorf("%w: estimate scale is empty", ErrInvalid)
	}
	for i, v := range s.Scale {
		if v <= 0 {
			return fmt.Errorf("%w: estimate scale value %d is non-positive (%v)", ErrInvalid, i, v)
		}
	}

	switch s.Backend {
	case "ollama", "anthropic":
	default:
		return fmt.Errorf("%w: unknown inference backend %q", ErrInvalid, s.Backend)
	}
	if s.Model == "" {
		return fmt.Errorf("%w: inference.model is not set", ErrInvalid)
	}

	return nil
}

// DefaultChecklist returns the built-in readiness checklist, used as the
// viper default when the config file declares none.
func DefaultChecklist() []map[string]any {
	return []map[string]any{
		{"key": "summary_clear", "description": "Summary states the outcome, not the task", "weight": 1.0},
		{"key": "acceptance_criteria", "description": "Acceptance criteria are listed and testable", "weight": 3.0},
		{"key": "scope_bounded", "description": "Scope is bounded; out-of-scope work is named", "weight": 2.0},
		{"key": "dependencies_named", "description": "External dependencies and blockers are named", "weight": 1.0},
		{"key": "small_enough", "description": "Deliverable within a single sprint", "weight": 1.0},
	}
}

// TotalWeight returns the sum of all configured checklist weights.
func (s *Settings) TotalWeight() float64 {
	var total float64
	for _, e := range s.Checklist {
		total += e.Weight
	}
	return total
}
