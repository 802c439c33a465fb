// Package tracker defines the consumed issue-tracker capability and its
// Jira REST implementation.
package tracker

import (
	"context"
	"errors"

	"github.com/groomkit/groom/internal/models"
)

// ErrNotFound is returned when a ticket or comment does not exist
// remotely.
var ErrNotFound = errors.New("not found upstream")

// ErrUpstream marks any other non-success response from the tracker
// API. It propagates as-is; there is no automatic retry.
var ErrUpstream = errors.New("upstream request failed")

// IssueSource is the consumed issue-tracker capability.
type IssueSource interface {
	FetchTicket(ctx context.Context, key string) (*models.Ticket, error)
	PushTicket(ctx context.Context, ticket *models.Ticket) error
	SearchTickets(ctx context.Context, jql string) ([]*models.Ticket, error)

	FetchComment(ctx context.Context, ticketKey, id string) (*models.Comment, error)
	PostComment(ctx context.Context, ticketKey, body string) (*models.Comment, error)
	UpdateComment(ctx context.Context, ticketKey, id, body string) error
}
