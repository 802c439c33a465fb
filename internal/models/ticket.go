package models

import "time"

// Ticket is an immutable-per-fetch snapshot of a remote tracker issue.
// The core only ever reads it; a fresh pull produces a fresh snapshot.
type Ticket struct {
	ID          string    `json:"id" yaml:"id"`
	Key         string    `json:"key" yaml:"key"`
	Self        string    `json:"self" yaml:"self"` // API self-link
	Summary     string    `json:"summary" yaml:"summary"`
	Description string    `json:"description" yaml:"description"` // tracker-native rich markup
	Created     time.Time `json:"created" yaml:"created"`
	Updated     time.Time `json:"updated" yaml:"updated"`
	Creator     string    `json:"creator" yaml:"creator"`
}

// Comment is a remote tracker comment on a ticket.
type Comment struct {
	ID      string    `json:"id"`
	Body    string    `json:"body"`
	Author  string    `json:"author"`
	Created time.Time `json:"created"`
	Link    string    `json:"link"`
}
