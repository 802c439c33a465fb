package models

// Estimate is the raw model output for a ticket.
type Estimate struct {
	Confidence  float64 `json:"confidence"` // 0-100
	StoryPoints float64 `json:"storyPoints"`
}

// NormalizedEstimate is the raw estimate adjusted by the checklist score
// and snapped to the configured point scale.
type NormalizedEstimate struct {
	Confidence  int     `json:"confidence"`
	StoryPoints float64 `json:"storyPoints"`
}
