package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/groomkit/groom/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server for agent integration",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets MCP clients query and drive groom natively. Configure with:

  {
    "mcpServers": {
      "groom": { "command": "groom", "args": ["mcp"] }
    }
  }

Available tools: groom_get_ticket, groom_list_tickets, groom_review,
groom_diff, groom_status, groom_publish`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return mcpRun(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func mcpRun(ctx context.Context) error {
	eng, settings, err := getEngine()
	if err != nil {
		return err
	}
	s, err := getStore()
	if err != nil {
		return err
	}
	source, err := getSource()
	if err != nil {
		return err
	}
	pub, err := getPublisher()
	if err != nil {
		return err
	}

	srv := mcp.NewServer(s, source, eng, pub, settings)
	if ctx == nil {
		ctx = context.Background()
	}
	return srv.ServeStdio(ctx)
}
