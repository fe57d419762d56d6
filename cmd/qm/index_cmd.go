package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fleetworks/quartermaster/internal/cli"
)

func indexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Index the private vault into SQLite",
		Long:  "Walk the private vault, chunk and embed every markdown note, and remove index rows for notes that no longer exist on disk.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.index.SyncAll(cmd.Context()); err != nil {
				return fmt.Errorf("index: %w", err)
			}

			docs, chunks, err := a.index.Stats()
			if err != nil {
				return err
			}
			fmt.Printf("Indexed %s notes (%s chunks)\n",
				cli.FormatNumber(docs), cli.FormatNumber(chunks))
			return nil
		},
	}
}

func statsCmd() *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show private index statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			docs, chunks, err := a.index.Stats()
			if err != nil {
				return err
			}

			if jsonOut {
				data, _ := json.MarshalIndent(map[string]int{
					"documents": docs,
					"chunks":    chunks,
				}, "", "  ")
				fmt.Println(string(data))
				return nil
			}

			cli.Section("Private index")
			fmt.Printf("  Notes:  %s\n", cli.FormatNumber(docs))
			fmt.Printf("  Chunks: %s\n", cli.FormatNumber(chunks))
			cli.Section("Paths")
			fmt.Printf("  Vault:  %s\n", cli.ShortenHome(a.cfg.Vault.PrivatePath))
			fmt.Printf("  DB:     %s\n", cli.ShortenHome(a.cfg.DBPath()))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}
