package main

import (
	"github.com/spf13/cobra"

	mcpserver "github.com/fleetworks/quartermaster/internal/mcp"
)

func mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP stdio server",
		Long:  "Expose vault search, merged retrieval, and note operations as MCP tools over stdio.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			mcpserver.Version = Version
			srv := &mcpserver.Server{
				Adapter: a.adapter,
				Engine:  a.engine,
			}
			return srv.Serve(cmd.Context())
		},
	}
}
