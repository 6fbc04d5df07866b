package main

import (
	"context"
	"os"
	"os/signal"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"openhistoria/internal/mcp"
)

func mcpCmd() *cobra.Command {
	var resume bool
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCP(resume)
		},
	}
	cmd.Flags().BoolVar(&resume, "resume", true, "Continue from the autosave")
	return cmd
}

func runMCP(resume bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a, err := newApp(ctx, appOptions{Resume: resume, Storage: true})
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	server := mcp.NewServer(a.coordinator, version)
	return server.Run(ctx, &sdk.StdioTransport{})
}
