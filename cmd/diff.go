package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/groomkit/groom/internal/models"
	"github.com/groomkit/groom/internal/output"
	"github.com/groomkit/groom/internal/store"
)

var diffCmd = &cobra.Command{
	Use:   "diff <KEY>",
	Short: "Show what changed since the ticket was last reviewed",
	Long: `Compare the mirrored ticket against the snapshot its stored review
was computed over. Prints a line patch when the content drifted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return diffRun(args[0])
	},
}

func init() {
	rootCmd.AddCommand(diffCmd)
}

func diffRun(key string) error {
	eng, _, err := getEngine()
	if err != nil {
		return err
	}
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

	d, err := eng.Diff(ctx, ticket)
	if err != nil {
		return err
	}

	if !d.HasReview {
		ui.Info("%s has no review yet (%s)", key, output.FreshnessColor("unreviewed"))
		return nil
	}
	if !d.Outdated {
		ui.Success("%s review is current (%s)", key, output.FreshnessColor("fresh"))
		return nil
	}

	ui.Warning("%s changed since its review (%s)", key, output.FreshnessColor("outdated"))
	fmt.Fprint(ui.Out, d.Patch)
	return nil
}
