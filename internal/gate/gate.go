// Package gate publishes rendered reports as tracker comments,
// idempotently. A ticket gets at most one groom comment: the gate keeps
// a local link from ticket key to remote comment id and edits in place
// rather than posting duplicates.
package gate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/groomkit/groom/internal/models"
	"github.com/groomkit/groom/internal/store"
	"github.com/groomkit/groom/internal/tracker"
)

// Outcome says what a publish attempt actually did remotely.
type Outcome int

const (
	// OutcomePosted means a new comment was created.
	OutcomePosted Outcome = iota
	// OutcomeUpdated means the linked comment was edited in place.
	OutcomeUpdated
	// OutcomeUnchanged means the remote comment already carried this
	// exact body and nothing was sent.
	OutcomeUnchanged
)

// Published reports whether the attempt actually wrote to the tracker.
func (o Outcome) Published() bool { return o != OutcomeUnchanged }

func (o Outcome) String() string {
	switch o {
	case OutcomePosted:
		return "posted"
	case OutcomeUpdated:
		return "updated"
	default:
		return "unchanged"
	}
}

// Publisher pushes report bodies to the tracker.
type Publisher struct {
	store  store.Store
	source tracker.IssueSource

	now func() time.Time
}

// NewPublisher returns a Publisher over the given store and tracker.
func NewPublisher(s store.Store, source tracker.IssueSource) *Publisher {
	return &Publisher{store: s, source: source, now: time.Now}
}

// Publish puts body on the ticket as this tool's single report comment.
// First publish posts a comment and records the link; later publishes
// fetch the linked comment and edit it only when the body differs. A
// linked comment that was deleted remotely is reposted under a new link.
func (p *Publisher) Publish(ctx context.Context, ticketKey, body string) (Outcome, error) {
	var link models.CommentLink
	err := p.store.Get(ctx, store.NSComments, ticketKey, &link)
	if errors.Is(err, store.ErrNotFound) {
		return p.post(ctx, ticketKey, body)
	}
	if err != nil {
		return 0, fmt.Errorf("load comment link for %s: %w", ticketKey, err)
	}

	remote, err := p.source.FetchComment(ctx, ticketKey, link.CommentID)
	if errors.Is(err, tracker.ErrNotFound) {
		// Someone removed our comment on the tracker. Start over.
		return p.post(ctx, ticketKey, body)
	}
	if err != nil {
		return 0, fmt.Errorf("fetch published comment for %s: %w", ticketKey, err)
	}

	if remote.Body == body {
		return OutcomeUnchanged, nil
	}

	if err := p.source.UpdateComment(ctx, ticketKey, link.CommentID, body); err != nil {
		return 0, fmt.Errorf("update published comment for %s: %w", ticketKey, err)
	}
	link.PostedAt = p.now().UTC()
	if err := p.store.Put(ctx, store.NSComments, ticketKey, link); err != nil {
		return 0, fmt.Errorf("save comment link for %s: %w", ticketKey, err)
	}
	return OutcomeUpdated, nil
}

func (p *Publisher) post(ctx context.Context, ticketKey, body string) (Outcome, error) {
	comment, err := p.source.PostComment(ctx, ticketKey, body)
	if err != nil {
		return 0, fmt.Errorf("post comment on %s: %w", ticketKey, err)
	}

	link := models.CommentLink{
		ID:        ulid.Make().String(),
		Key:       ticketKey,
		CommentID: comment.ID,
		Link:      comment.Link,
		PostedAt:  p.now().UTC(),
	}
	if err := p.store.Put(ctx, store.NSComments, ticketKey, link); err != nil {
		return 0, fmt.Errorf("save comment link for %s: %w", ticketKey, err)
	}
	return OutcomePosted, nil
}

// Link returns the stored comment link for a ticket, or
// store.ErrNotFound when nothing has been published.
func (p *Publisher) Link(ctx context.Context, ticketKey string) (*models.CommentLink, error) {
	var link models.CommentLink
	if err := p.store.Get(ctx, store.NSComments, ticketKey, &link); err != nil {
		return nil, err
	}
	return &link, nil
}
