package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/groomkit/groom/internal/config"
	"github.com/groomkit/groom/internal/engine"
	"github.com/groomkit/groom/internal/gate"
	"github.com/groomkit/groom/internal/models"
	"github.com/groomkit/groom/internal/report"
	"github.com/groomkit/groom/internal/store"
	"github.com/groomkit/groom/internal/tracker"
)

// Server wraps the groom data layer and exposes it as MCP tools.
type Server struct {
	store     store.Store
	source    tracker.IssueSource
	engine    *engine.Engine
	publisher *gate.Publisher
	settings  *config.Settings
}

// NewServer creates the MCP server wrapper with all required dependencies.
func NewServer(s store.Store, source tracker.IssueSource, eng *engine.Engine, pub *gate.Publisher, settings *config.Settings) *Server {
	return &Server{
		store:     s,
		source:    source,
		engine:    eng,
		publisher: pub,
		settings:  settings,
	}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("groom", "1.0.0", server.WithToolCapabilities(true))

	srv.AddTool(s.getTicketTool())
	srv.AddTool(s.listTicketsTool())
	srv.AddTool(s.reviewTool())
	srv.AddTool(s.diffTool())
	srv.AddTool(s.statusTool())
	srv.AddTool(s.publishTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

// groom_get_ticket
func (s *Server) getTicketTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("groom_get_ticket",
		mcp.WithDescription("Get a mirrored ticket by key. Returns the ticket as JSON. Set refresh=true to fetch the latest version from the tracker and update the mirror first."),
		mcp.WithString("key", mcp.Required(), mcp.Description("Ticket key, e.g. GRM-1")),
		mcp.WithBoolean("refresh", mcp.Description("Fetch from the tracker and update the local mirror before returning")),
	)
	return tool, s.handleGetTicket
}

func (s *Server) handleGetTicket(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := request.RequireString("key")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: key"), nil
	}

	if request.GetBool("refresh", false) {
		ticket, err := s.source.FetchTicket(ctx, key)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("fetch ticket %s: %v", key, err)), nil
		}
		if err := s.store.Put(ctx, store.NSTickets, key, ticket); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("mirror ticket %s: %v", key, err)), nil
		}
	}

	var ticket models.Ticket
	if err := s.store.Get(ctx, store.NSTickets, key, &ticket); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("ticket %s is not mirrored; pull it or set refresh=true", key)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("load ticket %s: %v", key, err)), nil
	}

	data, err := json.Marshal(ticket)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal ticket: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// groom_list_tickets
func (s *Server) listTicketsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("groom_list_tickets",
		mcp.WithDescription("List all mirrored tickets. Returns a JSON array with key, summary, updated timestamp, and review state (fresh, outdated, or unreviewed)."),
	)
	return tool, s.handleListTickets
}

func (s *Server) handleListTickets(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	keys, err := s.store.List(ctx, store.NSTickets)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list tickets: %v", err)), nil
	}

	type ticketOut struct {
		Key     string `json:"key"`
		Summary string `json:"summary"`
		Updated string `json:"updated,omitempty"`
		Review  string `json:"review"`
	}

	out := make([]ticketOut, 0, len(keys))
	for _, key := range keys {
		var ticket models.Ticket
		if err := s.store.Get(ctx, store.NSTickets, key, &ticket); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("load ticket %s: %v", key, err)), nil
		}

		state := "unreviewed"
		if d, err := s.engine.Diff(ctx, ticket); err == nil && d.HasReview {
			if d.Outdated {
				state = "outdated"
			} else {
				state = "fresh"
			}
		}

		row := ticketOut{Key: ticket.Key, Summary: ticket.Summary, Review: state}
		if !ticket.Updated.IsZero() {
			row.Updated = ticket.Updated.Format(time.RFC3339)
		}
		out = append(out, row)
	}

	data, err := json.Marshal(out)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal tickets: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// groom_review
func (s *Server) reviewTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("groom_review",
		mcp.WithDescription("Run the review and estimate engine on a mirrored ticket. Returns the review as JSON including checklist answers, score, raw and normalized estimates, and whether the result was cached or freshly computed."),
		mcp.WithString("key", mcp.Required(), mcp.Description("Ticket key")),
		mcp.WithBoolean("force", mcp.Description("Recompute even when a cached review exists")),
		mcp.WithString("model", mcp.Description("Override the configured inference model")),
	)
	return tool, s.handleReview
}

func (s *Server) handleReview(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := request.RequireString("key")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: key"), nil
	}

	ticket, err := s.mirroredTicket(ctx, key)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	opts := engine.Options{
		Force: request.GetBool("force", false),
		Model: request.GetString("model", ""),
	}
	review, decision, err := s.engine.Review(ctx, *ticket, opts)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("review %s: %v", key, err)), nil
	}

	result := map[string]any{
		"decision": decision.String(),
		"review":   review,
	}
	data, err := json.Marshal(result)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal review: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// groom_diff
func (s *Server) diffTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("groom_diff",
		mcp.WithDescription("Compare a stored review's ticket snapshot against the mirrored ticket. Returns hasReview, outdated, and a line patch when the content changed."),
		mcp.WithString("key", mcp.Required(), mcp.Description("Ticket key")),
	)
	return tool, s.handleDiff
}

func (s *Server) handleDiff(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := request.RequireString("key")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: key"), nil
	}

	ticket, err := s.mirroredTicket(ctx, key)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	diff, err := s.engine.Diff(ctx, *ticket)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("diff %s: %v", key, err)), nil
	}

	data, err := json.Marshal(diff)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal diff: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// groom_status
func (s *Server) statusTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("groom_status",
		mcp.WithDescription("Check whether the inference backend is reachable. Returns backend, model, and up as JSON."),
	)
	return tool, s.handleStatus
}

func (s *Server) handleStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result := map[string]any{
		"backend": s.settings.Backend,
		"model":   s.settings.Model,
		"up":      true,
	}
	if err := s.engine.Status(ctx); err != nil {
		result["up"] = false
		result["error"] = err.Error()
	}

	data, err := json.Marshal(result)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal status: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// groom_publish
func (s *Server) publishTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("groom_publish",
		mcp.WithDescription("Publish the stored review for a ticket to the tracker as a comment. Posts once, then edits the same comment in place on later publishes; an unchanged report makes no remote write. Returns the outcome: posted, updated, or unchanged."),
		mcp.WithString("key", mcp.Required(), mcp.Description("Ticket key")),
		mcp.WithString("format", mcp.Description("Comment body format: jira (default) or markdown")),
	)
	return tool, s.handlePublish
}

func (s *Server) handlePublish(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := request.RequireString("key")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: key"), nil
	}

	review, err := s.engine.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("no review stored for %s; run groom_review first", key)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("load review %s: %v", key, err)), nil
	}

	format := request.GetString("format", report.FormatJira)
	body, err := report.Format(&report.Report{Ticket: review.Ticket, Review: *review}, format)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	outcome, err := s.publisher.Publish(ctx, key, body)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("publish %s: %v", key, err)), nil
	}

	data, err := json.Marshal(map[string]string{"key": key, "outcome": outcome.String()})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal outcome: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// mirroredTicket loads a ticket from the local mirror.
func (s *Server) mirroredTicket(ctx context.Context, key string) (*models.Ticket, error) {
	var ticket models.Ticket
	if err := s.store.Get(ctx, store.NSTickets, key, &ticket); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("ticket %s is not mirrored; pull it first", key)
		}
		return nil, fmt.Errorf("load ticket %s: %w", key, err)
	}
	return &ticket, nil
}
