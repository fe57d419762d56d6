// Package main is the entrypoint for the quartermaster CLI.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	// .env is optional; missing file is not an error.
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "qm",
		Short: "Quartermaster knowledge mediator",
		Long:  "qm mediates markdown knowledge across the org, ship, and agent vaults:\nmerged retrieval, signed shared writes, and an encrypted private index.",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	root.AddCommand(initCmd())
	root.AddCommand(versionCmd())
	root.AddCommand(indexCmd())
	root.AddCommand(statsCmd())
	root.AddCommand(searchCmd())
	root.AddCommand(retrieveCmd())
	root.AddCommand(treeCmd())
	root.AddCommand(getCmd())
	root.AddCommand(saveCmd())
	root.AddCommand(mvCmd())
	root.AddCommand(rmCmd())
	root.AddCommand(graphCmd())
	root.AddCommand(syncCmd())
	root.AddCommand(watchCmd())
	root.AddCommand(mcpCmd())
	root.AddCommand(configCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the qm version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("qm %s\n", Version)
			return nil
		},
	}
}

// ---------- error helpers ----------

type qmError struct {
	message string
	hint    string
}

func (e *qmError) Error() string {
	return fmt.Sprintf("%s\n  Hint: %s", e.message, e.hint)
}

func userError(message, hint string) error {
	return &qmError{message: message, hint: hint}
}
