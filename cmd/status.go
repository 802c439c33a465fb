package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/groomkit/groom/internal/output"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check the inference backend",
	Long: `Probe the configured inference backend and report whether reviews
can run. A down backend is fatal for every review-issuing command.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return statusRun()
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func statusRun() error {
	eng, settings, err := getEngine()
	if err != nil {
		return err
	}

	ui.Info("Backend: %s", output.Cyan(settings.Backend))
	ui.Info("Model:   %s", output.Cyan(settings.Model))

	if err := eng.Status(context.Background()); err != nil {
		ui.Error("Inference backend is down: %v", err)
		return err
	}
	ui.Success("Inference backend is up")
	return nil
}
