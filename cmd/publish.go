package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/groomkit/groom/internal/models"
	"github.com/groomkit/groom/internal/report"
	"github.com/groomkit/groom/internal/store"
)

var publishFormat string

var publishCmd = &cobra.Command{
	Use:   "publish <KEY>",
	Short: "Publish the stored review as a tracker comment",
	Long: `Render the stored review and attach it to the ticket as a comment.

The first publish posts a new comment; later publishes edit that same
comment in place. Publishing an unchanged report makes no remote write.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return publishRun(args[0])
	},
}

func init() {
	publishCmd.Flags().StringVar(&publishFormat, "format", report.FormatJira, "Comment body format: jira or markdown")
	rootCmd.AddCommand(publishCmd)
}

func publishRun(key string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	review, err := getStoredReview(ctx, s, key)
	if err != nil {
		return err
	}

	body, err := report.Format(&report.Report{Ticket: review.Ticket, Review: *review}, publishFormat)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would publish to %s:", key)
		fmt.Fprint(ui.Out, body)
		return nil
	}

	pub, err := getPublisher()
	if err != nil {
		return err
	}
	outcome, err := pub.Publish(ctx, key, body)
	if err != nil {
		return err
	}
	ui.Success("%s report %s", key, outcome)
	return nil
}

func getStoredReview(ctx context.Context, s store.Store, key string) (*models.Review, error) {
	var review models.Review
	if err := s.Get(ctx, store.NSReviews, key, &review); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("no review stored for %s (run 'groom review %s' first)", key, key)
		}
		return nil, err
	}
	return &review, nil
}
