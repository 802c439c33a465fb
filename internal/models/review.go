package models

import "time"

// Review is the unit of record produced by the review engine. One per
// ticket key; immutable once stored, replaced wholesale on re-review.
type Review struct {
	Key        string             `json:"key"`
	Model      string             `json:"model"`
	Score      float64            `json:"score"` // 0-1
	Checklist  []ChecklistResult  `json:"checklist"`
	Estimate   Estimate           `json:"estimate"`
	Normalized NormalizedEstimate `json:"normalized"`
	Checksum   string             `json:"checksum"` // fingerprint of ticket content + model
	Ticket     Ticket             `json:"ticket"`   // snapshot the review was computed over
	CreatedAt  time.Time          `json:"createdAt"`
}

// ReviewDiff compares a stored review's captured snapshot against the
// current remote ticket. Computed on demand, never persisted.
type ReviewDiff struct {
	Key       string `json:"key"`
	HasReview bool   `json:"hasReview"`
	Outdated  bool   `json:"outdated"`
	Patch     string `json:"patch,omitempty"`
}

// CommentLink records which remote comment holds this tool's published
// report for a ticket, so publishes stay idempotent.
type CommentLink struct {
	ID        string    `json:"id"`
	Key       string    `json:"key"`
	CommentID string    `json:"commentId"`
	Link      string    `json:"link"`
	PostedAt  time.Time `json:"postedAt"`
}
