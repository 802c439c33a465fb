// Package report merges a review with ticket metadata into a renderable
// grooming report.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/groomkit/groom/internal/engine"
	"github.com/groomkit/groom/internal/markup"
	"github.com/groomkit/groom/internal/models"
	"github.com/groomkit/groom/internal/tracker"
)

// Recognized output formats.
const (
	FormatMarkdown = "markdown"
	FormatJira     = "jira"
	FormatWiki     = "wiki" // alias for jira
	FormatJSON     = "json"
	FormatYAML     = "yaml"
)

// Report packages a ticket with its review for rendering.
type Report struct {
	Ticket models.Ticket `json:"ticket" yaml:"ticket"`
	Review models.Review `json:"review" yaml:"review"`
}

// Assembler builds reports from the live tracker and the review engine.
type Assembler struct {
	source tracker.IssueSource
	engine *engine.Engine
}

// NewAssembler returns an Assembler over the given collaborators.
func NewAssembler(source tracker.IssueSource, eng *engine.Engine) *Assembler {
	return &Assembler{source: source, engine: eng}
}

// Collect fetches the current ticket and obtains a review for it,
// honoring opts.Force.
func (a *Assembler) Collect(ctx context.Context, key string, opts engine.Options) (*Report, engine.Decision, error) {
	ticket, err := a.source.FetchTicket(ctx, key)
	if err != nil {
		return nil, 0, err
	}

	review, decision, err := a.engine.Review(ctx, *ticket, opts)
	if err != nil {
		return nil, 0, err
	}

	return &Report{Ticket: *ticket, Review: *review}, decision, nil
}

// Format renders a report in the requested format. Rendering is a pure
// function of the report: the same report always yields byte-identical
// text, which the publication gate relies on.
func Format(r *Report, format string) (string, error) {
	switch format {
	case FormatMarkdown, "":
		return renderMarkdown(r), nil
	case FormatJira, FormatWiki:
		return markup.ToWiki(renderMarkdown(r)), nil
	case FormatJSON:
		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshal report: %w", err)
		}
		return string(data) + "\n", nil
	case FormatYAML:
		data, err := yaml.Marshal(r)
		if err != nil {
			return "", fmt.Errorf("marshal report: %w", err)
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("unknown report format: %s (use: markdown, jira, json, yaml)", format)
	}
}

func renderMarkdown(r *Report) string {
	rev := r.Review

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Grooming review: %s\n\n", r.Ticket.Key)
	fmt.Fprintf(&sb, "**%s**\n\n", r.Ticket.Summary)

	sb.WriteString("### Checklist\n\n")
	for _, c := range rev.Checklist {
		mark := "❌"
		if c.Value {
			mark = "✅"
		}
		fmt.Fprintf(&sb, "- %s %s\n", mark, c.Entry.Description)
	}

	sb.WriteString("\n### Details\n\n")
	fmt.Fprintf(&sb, "- Score: %d%%\n", int(rev.Score*100+0.5))
	fmt.Fprintf(&sb, "- Story points: %s (raw %s)\n", trimFloat(rev.Normalized.StoryPoints), trimFloat(rev.Estimate.StoryPoints))
	fmt.Fprintf(&sb, "- Confidence: %d%% (raw %s%%)\n", rev.Normalized.Confidence, trimFloat(rev.Estimate.Confidence))
	fmt.Fprintf(&sb, "- Model: %s\n", rev.Model)

	fmt.Fprintf(&sb, "\n_Generated by groom on %s_\n", rev.CreatedAt.UTC().Format("2006-01-02 15:04 UTC"))
	return sb.String()
}

// trimFloat formats a number without trailing zeros.
func trimFloat(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
}
