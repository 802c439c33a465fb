package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/groomkit/groom/internal/models"
)

// jiraTime is the timestamp layout Jira's REST API uses.
const jiraTime = "2006-01-02T15:04:05.000-0700"

// JiraClient is a thin client for the Jira REST v2 API. Only the handful
// of endpoints groom needs, called directly over HTTP with basic auth.
type JiraClient struct {
	baseURL    string
	email      string
	apiToken   string
	httpClient *http.Client
}

// NewJiraClient creates a client for the given Jira instance.
func NewJiraClient(baseURL, email, apiToken string) *JiraClient {
	return &JiraClient{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		email:    email,
		apiToken: apiToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// do issues one API request and decodes a JSON response into out (nil to
// discard). 404 maps to ErrNotFound, other non-2xx to ErrUpstream.
func (c *JiraClient) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.SetBasicAuth(c.email, c.apiToken)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrUpstream, method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s %s: %w", method, path, ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s %s returned %s: %s", ErrUpstream, method, path, resp.Status, strings.TrimSpace(string(snippet)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

// --- wire shapes ---

type jiraIssue struct {
	ID     string     `json:"id"`
	Key    string     `json:"key"`
	Self   string     `json:"self"`
	Fields jiraFields `json:"fields"`
}

type jiraFields struct {
	Summary     string    `json:"summary"`
	Description string    `json:"description"`
	Created     string    `json:"created"`
	Updated     string    `json:"updated"`
	Creator     *jiraUser `json:"creator"`
}

type jiraUser struct {
	DisplayName string `json:"displayName"`
}

type jiraComment struct {
	ID      string    `json:"id"`
	Self    string    `json:"self"`
	Body    string    `json:"body"`
	Author  *jiraUser `json:"author"`
	Created string    `json:"created"`
}

type jiraSearchResult struct {
	Issues []jiraIssue `json:"issues"`
}

func (i jiraIssue) toTicket() *models.Ticket {
	t := &models.Ticket{
		ID:          i.ID,
		Key:         i.Key,
		Self:        i.Self,
		Summary:     i.Fields.Summary,
		Description: i.Fields.Description,
	}
	if i.Fields.Creator != nil {
		t.Creator = i.Fields.Creator.DisplayName
	}
	if ts, err := time.Parse(jiraTime, i.Fields.Created); err == nil {
		t.Created = ts.UTC()
	}
	if ts, err := time.Parse(jiraTime, i.Fields.Updated); err == nil {
		t.Updated = ts.UTC()
	}
	return t
}

func (c jiraComment) toComment() *models.Comment {
	out := &models.Comment{
		ID:   c.ID,
		Body: c.Body,
		Link: c.Self,
	}
	if c.Author != nil {
		out.Author = c.Author.DisplayName
	}
	if ts, err := time.Parse(jiraTime, c.Created); err == nil {
		out.Created = ts.UTC()
	}
	return out
}

// --- IssueSource ---

// FetchTicket retrieves one issue snapshot by key.
func (c *JiraClient) FetchTicket(ctx context.Context, key string) (*models.Ticket, error) {
	var issue jiraIssue
	path := fmt.Sprintf("/rest/api/2/issue/%s?fields=summary,description,created,updated,creator", url.PathEscape(key))
	if err := c.do(ctx, http.MethodGet, path, nil, &issue); err != nil {
		return nil, fmt.Errorf("fetch ticket %s: %w", key, err)
	}
	return issue.toTicket(), nil
}

// PushTicket updates the remote summary and description from the local
// ticket.
func (c *JiraClient) PushTicket(ctx context.Context, ticket *models.Ticket) error {
	payload := map[string]any{
		"fields": map[string]any{
			"summary":     ticket.Summary,
			"description": ticket.Description,
		},
	}
	path := "/rest/api/2/issue/" + url.PathEscape(ticket.Key)
	if err := c.do(ctx, http.MethodPut, path, payload, nil); err != nil {
		return fmt.Errorf("push ticket %s: %w", ticket.Key, err)
	}
	return nil
}

// SearchTickets runs a JQL query and returns the matching snapshots in
// the order the tracker lists them.
func (c *JiraClient) SearchTickets(ctx context.Context, jql string) ([]*models.Ticket, error) {
	var result jiraSearchResult
	path := "/rest/api/2/search?fields=summary,description,created,updated,creator&jql=" + url.QueryEscape(jql)
	if err := c.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, fmt.Errorf("search tickets: %w", err)
	}

	tickets := make([]*models.Ticket, len(result.Issues))
	for i, issue := range result.Issues {
		tickets[i] = issue.toTicket()
	}
	return tickets, nil
}

// FetchComment retrieves one comment on a ticket.
func (c *JiraClient) FetchComment(ctx context.Context, ticketKey, id string) (*models.Comment, error) {
	var comment jiraComment
	path := fmt.Sprintf("/rest/api/2/issue/%s/comment/%s", url.PathEscape(ticketKey), url.PathEscape(id))
	if err := c.do(ctx, http.MethodGet, path, nil, &comment); err != nil {
		return nil, fmt.Errorf("fetch comment %s on %s: %w", id, ticketKey, err)
	}
	return comment.toComment(), nil
}

// PostComment adds a new comment to a ticket.
func (c *JiraClient) PostComment(ctx context.Context, ticketKey, body string) (*models.Comment, error) {
	var comment jiraComment
	path := fmt.Sprintf("/rest/api/2/issue/%s/comment", url.PathEscape(ticketKey))
	if err := c.do(ctx, http.MethodPost, path, map[string]string{"body": body}, &comment); err != nil {
		return nil, fmt.Errorf("post comment on %s: %w", ticketKey, err)
	}
	return comment.toComment(), nil
}

// UpdateComment replaces the body of an existing comment.
func (c *JiraClient) UpdateComment(ctx context.Context, ticketKey, id, body string) error {
	path := fmt.Sprintf("/rest/api/2/issue/%s/comment/%s", url.PathEscape(ticketKey), url.PathEscape(id))
	if err := c.do(ctx, http.MethodPut, path, map[string]string{"body": body}, nil); err != nil {
		return fmt.Errorf("update comment %s on %s: %w", id, ticketKey, err)
	}
	return nil
}
