package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fleetworks/quartermaster/internal/cli"
	"github.com/fleetworks/quartermaster/internal/watcher"
)

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Watch the private vault and auto-reindex",
		Long:  "Monitor the private vault for markdown changes. Modified, created, and deleted notes are reindexed with a 2-second debounce.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			fmt.Printf("Watching %s\n", cli.ShortenHome(a.cfg.Vault.PrivatePath))
			w := &watcher.Watcher{
				Index: a.index,
				Root:  a.cfg.Vault.PrivatePath,
				Skip:  a.cfg.SkipDirSet(),
			}
			return w.Run(cmd.Context())
		},
	}
}
