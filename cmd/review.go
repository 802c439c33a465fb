package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/groomkit/groom/internal/engine"
	"github.com/groomkit/groom/internal/inference"
	"github.com/groomkit/groom/internal/models"
	"github.com/groomkit/groom/internal/report"
	"github.com/groomkit/groom/internal/store"
)

var (
	reviewForce    bool
	reviewModel    string
	reviewFormat   string
	reviewPublish  bool
	reviewAll      bool
	reviewOutdated bool
	reviewPull     bool
)

var reviewCmd = &cobra.Command{
	Use:   "review [KEY...]",
	Short: "Run the review and estimate engine on mirrored tickets",
	Long: `Score tickets against the readiness checklist and estimate story
points and confidence. Results are cached by content fingerprint: an
unchanged ticket returns its stored review without touching the
inference backend. Use --force to recompute.

With --all, every mirrored ticket is reviewed in order; --outdated
restricts that to tickets whose stored review no longer matches the
mirror. A failing ticket does not stop the batch unless the inference
backend itself is down.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if reviewAll && len(args) > 0 {
			return fmt.Errorf("--all cannot be combined with ticket keys")
		}
		if !reviewAll && len(args) == 0 {
			return fmt.Errorf("give at least one ticket key, or --all")
		}
		return reviewRun(args)
	},
}

func init() {
	reviewCmd.Flags().BoolVarP(&reviewForce, "force", "f", false, "Recompute even when a cached review exists")
	reviewCmd.Flags().StringVarP(&reviewModel, "model", "m", "", "Override the configured inference model")
	reviewCmd.Flags().StringVar(&reviewFormat, "format", report.FormatMarkdown, "Output format: markdown, jira, json, yaml")
	reviewCmd.Flags().BoolVar(&reviewPublish, "publish", false, "Publish the report to the tracker after reviewing")
	reviewCmd.Flags().BoolVar(&reviewAll, "all", false, "Review every mirrored ticket")
	reviewCmd.Flags().BoolVar(&reviewOutdated, "outdated", false, "With --all, only review tickets whose review is stale")
	reviewCmd.Flags().BoolVar(&reviewPull, "pull", false, "Fetch the latest ticket from the tracker before reviewing")
	rootCmd.AddCommand(reviewCmd)
}

func reviewRun(keys []string) error {
	eng, _, err := getEngine()
	if err != nil {
		return err
	}
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	if reviewAll {
		keys, err = s.List(ctx, store.NSTickets)
		if err != nil {
			return err
		}
		if len(keys) == 0 {
			ui.Info("No tickets mirrored. Use 'groom ticket pull <KEY>' to get started.")
			return nil
		}
	}

	return reviewBatch(ctx, eng, s, keys)
}

// reviewBatch reviews keys in order. A failing ticket is reported and
// the batch continues, unless the inference backend itself is down.
func reviewBatch(ctx context.Context, eng *engine.Engine, s store.Store, keys []string) error {
	var failed int
	for _, key := range keys {
		if err := reviewOne(ctx, eng, s, key); err != nil {
			// A dead backend fails every remaining ticket the same way.
			if errors.Is(err, inference.ErrUnavailable) {
				return fmt.Errorf("inference backend unavailable, aborting: %w", err)
			}
			ui.Error("%s: %v", key, err)
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d ticket(s) failed", failed, len(keys))
	}
	return nil
}

func reviewOne(ctx context.Context, eng *engine.Engine, s store.Store, key string) error {
	if reviewPull {
		return reviewViaTracker(ctx, eng, s, key)
	}

	var ticket models.Ticket
	if err := s.Get(ctx, store.NSTickets, key, &ticket); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("not mirrored (run 'groom ticket pull %s' or use --pull)", key)
		}
		return err
	}

	force := reviewForce
	if reviewAll && reviewOutdated {
		d, err := eng.Diff(ctx, ticket)
		if err != nil {
			return err
		}
		if d.HasReview && !d.Outdated {
			ui.VerboseLog("%s review is current, skipping", key)
			return nil
		}
		// The stale review must not be served back from the cache.
		force = true
	}

	if dryRun {
		ui.DryRunMsg("Would review %s", key)
		return nil
	}

	rev, decision, err := eng.Review(ctx, ticket, engine.Options{Force: force, Model: reviewModel})
	if err != nil {
		return err
	}
	ui.VerboseLog("%s review: %s", key, decision)

	body, err := report.Format(&report.Report{Ticket: ticket, Review: *rev}, reviewFormat)
	if err != nil {
		return err
	}
	fmt.Fprint(ui.Out, body)
	fmt.Fprintln(ui.Out)

	if reviewPublish {
		return publishReview(ctx, key, rev)
	}
	return nil
}

// reviewViaTracker fetches the live ticket, reviews it, and refreshes
// the mirror with the fetched snapshot.
func reviewViaTracker(ctx context.Context, eng *engine.Engine, s store.Store, key string) error {
	source, err := getSource()
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would fetch and review %s", key)
		return nil
	}

	assembler := report.NewAssembler(source, eng)
	r, decision, err := assembler.Collect(ctx, key, engine.Options{Force: reviewForce, Model: reviewModel})
	if err != nil {
		return err
	}
	ui.VerboseLog("%s review: %s", key, decision)

	if err := s.Put(ctx, store.NSTickets, key, r.Ticket); err != nil {
		return fmt.Errorf("mirror %s: %w", key, err)
	}

	body, err := report.Format(r, reviewFormat)
	if err != nil {
		return err
	}
	fmt.Fprint(ui.Out, body)
	fmt.Fprintln(ui.Out)

	if reviewPublish {
		return publishReview(ctx, key, &r.Review)
	}
	return nil
}

// publishReview renders the tracker-format report and runs it through
// the publication gate.
func publishReview(ctx context.Context, key string, rev *models.Review) error {
	pub, err := getPublisher()
	if err != nil {
		return err
	}

	body, err := report.Format(&report.Report{Ticket: rev.Ticket, Review: *rev}, report.FormatJira)
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
