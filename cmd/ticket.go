package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/groomkit/groom/internal/codec"
	"github.com/groomkit/groom/internal/models"
	"github.com/groomkit/groom/internal/output"
	"github.com/groomkit/groom/internal/store"
)

var ticketPullJQL string

var ticketCmd = &cobra.Command{
	Use:   "ticket",
	Short: "Mirror and edit tracker tickets locally",
}

var ticketPullCmd = &cobra.Command{
	Use:   "pull [KEY...]",
	Short: "Fetch tickets from the tracker into the local mirror",
	Long: `Fetch tickets and store them in the local mirror.

With ticket keys, each named ticket is fetched. With --jql (or the
configured jira.jql), the query result set is mirrored instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return ticketPullRun(args)
	},
}

var ticketListCmd = &cobra.Command{
	Use:   "list",
	Short: "List mirrored tickets",
	RunE: func(cmd *cobra.Command, args []string) error {
		return ticketListRun()
	},
}

var ticketShowCmd = &cobra.Command{
	Use:   "show <KEY>",
	Short: "Print a mirrored ticket as its editable document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return ticketShowRun(args[0])
	},
}

var ticketEditCmd = &cobra.Command{
	Use:   "edit <KEY>",
	Short: "Edit a mirrored ticket in $EDITOR",
	Long: `Open the ticket's editable document in your editor.

The document has a YAML header (id, key, summary, ...), a '---'
delimiter line, and the description as markdown. A structurally broken
edit is never saved; you are offered the chance to fix it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return ticketEditRun(args[0])
	},
}

var ticketPushCmd = &cobra.Command{
	Use:   "push <KEY>",
	Short: "Push local summary and description back to the tracker",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return ticketPushRun(args[0])
	},
}

func init() {
	ticketPullCmd.Flags().StringVar(&ticketPullJQL, "jql", "", "JQL query to select tickets (default: configured jira.jql)")
	ticketCmd.AddCommand(ticketPullCmd)
	ticketCmd.AddCommand(ticketListCmd)
	ticketCmd.AddCommand(ticketShowCmd)
	ticketCmd.AddCommand(ticketEditCmd)
	ticketCmd.AddCommand(ticketPushCmd)
	rootCmd.AddCommand(ticketCmd)
}

func ticketPullRun(keys []string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	source, err := getSource()
	if err != nil {
		return err
	}
	ctx := context.Background()

	var tickets []*models.Ticket
	if len(keys) > 0 {
		for _, key := range keys {
			t, err := source.FetchTicket(ctx, key)
			if err != nil {
				return err
			}
			tickets = append(tickets, t)
		}
	} else {
		jql := ticketPullJQL
		if jql == "" {
			jql = viper.GetString("jira.jql")
		}
		if jql == "" {
			return fmt.Errorf("no ticket keys given and no JQL configured (set jira.jql or pass --jql)")
		}
		ui.VerboseLog("searching: %s", jql)
		tickets, err = source.SearchTickets(ctx, jql)
		if err != nil {
			return err
		}
	}

	if dryRun {
		for _, t := range tickets {
			ui.DryRunMsg("Would mirror %s: %s", t.Key, t.Summary)
		}
		return nil
	}

	for _, t := range tickets {
		if err := s.Put(ctx, store.NSTickets, t.Key, t); err != nil {
			return fmt.Errorf("mirror %s: %w", t.Key, err)
		}
		ui.Success("%s  %s", t.Key, t.Summary)
	}
	ui.Info("Mirrored %d ticket(s)", len(tickets))
	return nil
}

func ticketListRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	keys, err := s.List(ctx, store.NSTickets)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		ui.Info("No tickets mirrored. Use 'groom ticket pull <KEY>' to get started.")
		return nil
	}

	table := ui.Table([]string{"Key", "Summary", "Updated", "Review"})
	for _, key := range keys {
		var ticket models.Ticket
		if err := s.Get(ctx, store.NSTickets, key, &ticket); err != nil {
			return err
		}

		updated := "-"
		if !ticket.Updated.IsZero() {
			updated = ticket.Updated.Format(time.DateOnly)
		}

		table.Append([]string{
			output.Cyan(ticket.Key),
			truncate(ticket.Summary, 60),
			updated,
			reviewState(ctx, s, ticket),
		})
	}

	table.Render()
	return nil
}

// reviewState classifies a mirrored ticket against its stored review.
func reviewState(ctx context.Context, s store.Store, ticket models.Ticket) string {
	var review models.Review
	if err := s.Get(ctx, store.NSReviews, ticket.Key, &review); err != nil {
		return output.FreshnessColor("unreviewed")
	}
	if _, changed := codec.Diff(review.Ticket, ticket); changed {
		return output.FreshnessColor("outdated")
	}
	return output.FreshnessColor("fresh")
}

func ticketShowRun(key string) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	var ticket models.Ticket
	if err := s.Get(context.Background(), store.NSTickets, key, &ticket); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("ticket %s is not mirrored (run 'groom ticket pull %s')", key, key)
		}
		return err
	}

	fmt.Fprint(ui.Out, codec.Serialize(ticket))
	return nil
}

func ticketEditRun(key string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	var ticket models.Ticket
	if err := s.Get(ctx, store.NSTickets, key, &ticket); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("ticket %s is not mirrored (run 'groom ticket pull %s')", key, key)
		}
		return err
	}

	editor := resolveEditor()
	if editor == "" {
		return fmt.Errorf("no editor configured — set the editor config key or $EDITOR")
	}

	tmpFile := filepath.Join(os.TempDir(), fmt.Sprintf("groom-%s.md", key))
	if err := os.WriteFile(tmpFile, []byte(codec.Serialize(ticket)), 0600); err != nil {
		return fmt.Errorf("write edit file: %w", err)
	}
	defer func() { _ = os.Remove(tmpFile) }()

	if dryRun {
		ui.DryRunMsg("Would open %s in %s", tmpFile, editor)
		return nil
	}

	reader := bufio.NewReader(os.Stdin)
	for {
		editCmd := exec.Command(editor, tmpFile)
		editCmd.Stdin = os.Stdin
		editCmd.Stdout = os.Stdout
		editCmd.Stderr = os.Stderr
		if err := editCmd.Run(); err != nil {
			return fmt.Errorf("editor exited with error: %w", err)
		}

		data, err := os.ReadFile(tmpFile)
		if err != nil {
			return fmt.Errorf("read edited file: %w", err)
		}

		edited, err := codec.Deserialize(string(data))
		if err == nil {
			ticket.Summary = edited.Summary
			ticket.Description = edited.Description
			if err := s.Put(ctx, store.NSTickets, key, ticket); err != nil {
				return fmt.Errorf("save ticket %s: %w", key, err)
			}
			ui.Success("Saved %s (local only — use 'groom ticket push %s' to publish)", key, key)
			return nil
		}
		if !errors.Is(err, codec.ErrMalformedEdit) {
			return err
		}

		// The bad edit is never persisted. Keep the file so the user can
		// fix it in place.
		ui.Error("%v", err)
		fmt.Fprint(ui.Out, "Press Enter to re-edit, or type q to abandon the edit: ")
		answer, _ := reader.ReadString('\n')
		if strings.TrimSpace(answer) == "q" {
			ui.Warning("Edit abandoned; ticket unchanged")
			return nil
		}
	}
}

func ticketPushRun(key string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	source, err := getSource()
	if err != nil {
		return err
	}
	ctx := context.Background()

	var ticket models.Ticket
	if err := s.Get(ctx, store.NSTickets, key, &ticket); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("ticket %s is not mirrored (run 'groom ticket pull %s')", key, key)
		}
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would push %s: %s", ticket.Key, ticket.Summary)
		return nil
	}

	if err := source.PushTicket(ctx, &ticket); err != nil {
		return err
	}
	ui.Success("Pushed %s to the tracker", key)
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
