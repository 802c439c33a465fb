package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groomkit/groom/internal/config"
	"github.com/groomkit/groom/internal/engine"
	"github.com/groomkit/groom/internal/gate"
	"github.com/groomkit/groom/internal/models"
	"github.com/groomkit/groom/internal/store"
	"github.com/groomkit/groom/internal/tracker"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

// fakeSource is an in-memory tracker for tickets and comments.
type fakeSource struct {
	tickets  map[string]*models.Ticket
	comments map[string]string
	nextID   int
	posts    int
	updates  int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		tickets:  map[string]*models.Ticket{},
		comments: map[string]string{},
	}
}

func (f *fakeSource) FetchTicket(_ context.Context, key string) (*models.Ticket, error) {
	t, ok := f.tickets[key]
	if !ok {
		return nil, tracker.ErrNotFound
	}
	return t, nil
}

func (f *fakeSource) PushTicket(_ context.Context, t *models.Ticket) error {
	f.tickets[t.Key] = t
	return nil
}

func (f *fakeSource) SearchTickets(_ context.Context, _ string) ([]*models.Ticket, error) {
	return nil, nil
}

func (f *fakeSource) FetchComment(_ context.Context, _, id string) (*models.Comment, error) {
	body, ok := f.comments[id]
	if !ok {
		return nil, tracker.ErrNotFound
	}
	return &models.Comment{ID: id, Body: body}, nil
}

func (f *fakeSource) PostComment(_ context.Context, _, body string) (*models.Comment, error) {
	f.posts++
	f.nextID++
	id := fmt.Sprintf("%d", f.nextID)
	f.comments[id] = body
	return &models.Comment{ID: id, Body: body}, nil
}

func (f *fakeSource) UpdateComment(_ context.Context, _, id, body string) error {
	f.updates++
	if _, ok := f.comments[id]; !ok {
		return tracker.ErrNotFound
	}
	f.comments[id] = body
	return nil
}

// fakeInference answers every checklist request true and estimates a
// fixed value.
type fakeInference struct {
	livenessErr error
}

func (f *fakeInference) Liveness(_ context.Context) error { return f.livenessErr }

func (f *fakeInference) GenerateStructured(_ context.Context, _, _ string, schema map[string]any) (json.RawMessage, error) {
	required, _ := schema["required"].([]string)
	for _, k := range required {
		if k == "storyPoints" {
			return json.Marshal(models.Estimate{Confidence: 80, StoryPoints: 5})
		}
	}
	return json.Marshal(map[string]bool{"ac": true, "scope": false})
}

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

func newTestServer(t *testing.T) (*Server, *fakeSource, store.Store) {
	t.Helper()

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() })

	settings := &config.Settings{
		Checklist: []models.ChecklistEntry{
			{Key: "ac", Description: "Has acceptance criteria", Weight: 1},
			{Key: "scope", Description: "Has a clear scope", Weight: 3},
		},
		Scale:   []float64{1, 2, 3, 5, 8},
		Backend: "ollama",
		Model:   "qwen2.5:14b",
	}

	source := newFakeSource()
	eng := engine.New(st, &fakeInference{}, settings)
	pub := gate.NewPublisher(st, source)

	srv := NewServer(st, source, eng, pub, settings)
	require.NotNil(t, srv)
	return srv, source, st
}

func seedTicket(t *testing.T, st store.Store, key, summary string) models.Ticket {
	t.Helper()
	ticket := models.Ticket{ID: "1000" + key, Key: key, Summary: summary, Description: "h1. " + summary}
	require.NoError(t, st.Put(context.Background(), store.NSTickets, key, ticket))
	return ticket
}

// callToolReq builds a mcpgo.CallToolRequest with the given name and arguments.
func callToolReq(name string, args map[string]any) mcpgo.CallToolRequest {
	return mcpgo.CallToolRequest{
		Params: mcpgo.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// resultText extracts the concatenated text from a CallToolResult.
func resultText(t *testing.T, result *mcpgo.CallToolResult) string {
	t.Helper()
	var b strings.Builder
	for _, c := range result.Content {
		tc, ok := c.(mcpgo.TextContent)
		if ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

// resultJSON parses the text result as JSON into the provided target.
func resultJSON(t *testing.T, result *mcpgo.CallToolResult, target any) {
	t.Helper()
	text := resultText(t, result)
	err := json.Unmarshal([]byte(text), target)
	require.NoError(t, err, "failed to parse result JSON: %s", text)
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestNewServer(t *testing.T) {
	srv, _, _ := newTestServer(t)
	require.NotNil(t, srv.MCPServer())
}

func TestHandleGetTicket_Mirrored(t *testing.T) {
	srv, _, st := newTestServer(t)
	seedTicket(t, st, "GRM-1", "Add login page")

	result, err := srv.handleGetTicket(context.Background(), callToolReq("groom_get_ticket", map[string]any{"key": "GRM-1"}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var ticket models.Ticket
	resultJSON(t, result, &ticket)
	assert.Equal(t, "Add login page", ticket.Summary)
}

func TestHandleGetTicket_NotMirrored(t *testing.T) {
	srv, _, _ := newTestServer(t)

	result, err := srv.handleGetTicket(context.Background(), callToolReq("groom_get_ticket", map[string]any{"key": "GRM-404"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "not mirrored")
}

func TestHandleGetTicket_Refresh(t *testing.T) {
	srv, source, st := newTestServer(t)
	ctx := context.Background()

	seedTicket(t, st, "GRM-1", "Old summary")
	source.tickets["GRM-1"] = &models.Ticket{ID: "10001", Key: "GRM-1", Summary: "New summary"}

	result, err := srv.handleGetTicket(ctx, callToolReq("groom_get_ticket", map[string]any{"key": "GRM-1", "refresh": true}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var ticket models.Ticket
	resultJSON(t, result, &ticket)
	assert.Equal(t, "New summary", ticket.Summary)

	// The mirror was updated too.
	var mirrored models.Ticket
	require.NoError(t, st.Get(ctx, store.NSTickets, "GRM-1", &mirrored))
	assert.Equal(t, "New summary", mirrored.Summary)
}

func TestHandleGetTicket_MissingKey(t *testing.T) {
	srv, _, _ := newTestServer(t)

	result, err := srv.handleGetTicket(context.Background(), callToolReq("groom_get_ticket", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleListTickets(t *testing.T) {
	srv, _, st := newTestServer(t)
	ctx := context.Background()

	reviewed := seedTicket(t, st, "GRM-1", "Add login page")
	seedTicket(t, st, "GRM-2", "Fix session expiry")

	_, _, err := srv.engine.Review(ctx, reviewed, engine.Options{})
	require.NoError(t, err)

	result, err := srv.handleListTickets(ctx, callToolReq("groom_list_tickets", nil))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var rows []struct {
		Key    string `json:"key"`
		Review string `json:"review"`
	}
	resultJSON(t, result, &rows)
	require.Len(t, rows, 2)

	states := map[string]string{}
	for _, r := range rows {
		states[r.Key] = r.Review
	}
	assert.Equal(t, "fresh", states["GRM-1"])
	assert.Equal(t, "unreviewed", states["GRM-2"])
}

func TestHandleReview(t *testing.T) {
	srv, _, st := newTestServer(t)
	seedTicket(t, st, "GRM-1", "Add login page")

	result, err := srv.handleReview(context.Background(), callToolReq("groom_review", map[string]any{"key": "GRM-1"}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var out struct {
		Decision string        `json:"decision"`
		Review   models.Review `json:"review"`
	}
	resultJSON(t, result, &out)
	assert.Equal(t, "fresh", out.Decision)
	assert.InDelta(t, 0.25, out.Review.Score, 1e-9)
	assert.Equal(t, 50, out.Review.Normalized.Confidence)

	// Second call is served from the cache.
	result, err = srv.handleReview(context.Background(), callToolReq("groom_review", map[string]any{"key": "GRM-1"}))
	require.NoError(t, err)
	resultJSON(t, result, &out)
	assert.Equal(t, "cached", out.Decision)
}

func TestHandleReview_NotMirrored(t *testing.T) {
	srv, _, _ := newTestServer(t)

	result, err := srv.handleReview(context.Background(), callToolReq("groom_review", map[string]any{"key": "GRM-404"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleDiff(t *testing.T) {
	srv, _, st := newTestServer(t)
	ctx := context.Background()

	ticket := seedTicket(t, st, "GRM-1", "Add login page")
	_, _, err := srv.engine.Review(ctx, ticket, engine.Options{})
	require.NoError(t, err)

	// Edit the mirror behind the review's back.
	ticket.Summary = "Add SSO login page"
	require.NoError(t, st.Put(ctx, store.NSTickets, "GRM-1", ticket))

	result, err := srv.handleDiff(ctx, callToolReq("groom_diff", map[string]any{"key": "GRM-1"}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var diff models.ReviewDiff
	resultJSON(t, result, &diff)
	assert.True(t, diff.HasReview)
	assert.True(t, diff.Outdated)
	assert.Contains(t, diff.Patch, "SSO")
}

func TestHandleStatus(t *testing.T) {
	t.Run("up", func(t *testing.T) {
		srv, _, _ := newTestServer(t)

		result, err := srv.handleStatus(context.Background(), callToolReq("groom_status", nil))
		require.NoError(t, err)
		assert.False(t, result.IsError)

		var out struct {
			Backend string `json:"backend"`
			Model   string `json:"model"`
			Up      bool   `json:"up"`
		}
		resultJSON(t, result, &out)
		assert.Equal(t, "ollama", out.Backend)
		assert.Equal(t, "qwen2.5:14b", out.Model)
		assert.True(t, out.Up)
	})

	t.Run("down", func(t *testing.T) {
		srv, _, st := newTestServer(t)
		srv.engine = engine.New(st, &fakeInference{livenessErr: fmt.Errorf("connection refused")}, srv.settings)

		result, err := srv.handleStatus(context.Background(), callToolReq("groom_status", nil))
		require.NoError(t, err)
		assert.False(t, result.IsError)

		var out struct {
			Up    bool   `json:"up"`
			Error string `json:"error"`
		}
		resultJSON(t, result, &out)
		assert.False(t, out.Up)
		assert.Contains(t, out.Error, "connection refused")
	})
}

func TestHandlePublish(t *testing.T) {
	srv, source, st := newTestServer(t)
	ctx := context.Background()

	ticket := seedTicket(t, st, "GRM-1", "Add login page")
	_, _, err := srv.engine.Review(ctx, ticket, engine.Options{})
	require.NoError(t, err)

	result, err := srv.handlePublish(ctx, callToolReq("groom_publish", map[string]any{"key": "GRM-1"}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var out map[string]string
	resultJSON(t, result, &out)
	assert.Equal(t, "posted", out["outcome"])
	assert.Equal(t, 1, source.posts)

	// Publishing the same review again touches nothing remotely.
	result, err = srv.handlePublish(ctx, callToolReq("groom_publish", map[string]any{"key": "GRM-1"}))
	require.NoError(t, err)
	resultJSON(t, result, &out)
	assert.Equal(t, "unchanged", out["outcome"])
	assert.Equal(t, 1, source.posts)
	assert.Equal(t, 0, source.updates)
}

func TestHandlePublish_NoReview(t *testing.T) {
	srv, _, st := newTestServer(t)
	seedTicket(t, st, "GRM-1", "Add login page")

	result, err := srv.handlePublish(context.Background(), callToolReq("groom_publish", map[string]any{"key": "GRM-1"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "no review stored")
}

func TestMCPIntegration_ListTools(t *testing.T) {
	srv, _, _ := newTestServer(t)

	mcpSrv := srv.MCPServer()
	require.NotNil(t, mcpSrv)

	ctx := context.Background()
	reqJSON := []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list","params":{}}`)
	respMsg := mcpSrv.HandleMessage(ctx, reqJSON)
	require.NotNil(t, respMsg)

	respBytes, err := json.Marshal(respMsg)
	require.NoError(t, err)

	var rpcResp struct {
		Result struct {
			Tools []struct {
				Name string `json:"name"`
			} `json:"tools"`
		} `json:"result"`
	}
	err = json.Unmarshal(respBytes, &rpcResp)
	require.NoError(t, err)

	toolNames := make(map[string]bool)
	for _, tool := range rpcResp.Result.Tools {
		toolNames[tool.Name] = true
	}

	expectedTools := []string{
		"groom_get_ticket",
		"groom_list_tickets",
		"groom_review",
		"groom_diff",
		"groom_status",
		"groom_publish",
	}
	for _, name := range expectedTools {
		assert.True(t, toolNames[name], "expected tool %q to be registered", name)
	}
}

// Compile-time interface check for the fake.
var _ tracker.IssueSource = (*fakeSource)(nil)
