package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func syncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Inspect and drive shared-knowledge synchronization",
	}
	cmd.AddCommand(syncLogCmd())
	cmd.AddCommand(syncReconcileCmd())
	return cmd
}

func syncLogCmd() *cobra.Command {
	var (
		after   int64
		limit   int
		follow  bool
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Page through the bridge's ordered event log",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			cursor := after
			for {
				page, err := a.bridge.ListSyncEvents(cmd.Context(), cursor, limit)
				if err != nil {
					return fmt.Errorf("list sync events: %w", err)
				}

				if jsonOut {
					data, _ := json.MarshalIndent(page, "", "  ")
					fmt.Println(string(data))
				} else {
					for _, e := range page.Events {
						fmt.Printf("%-8d %-22s %-7s %-6s %s\n",
							e.Cursor, e.OccurredAt, e.Operation, e.Domain, e.CanonicalPath)
					}
				}

				if !follow || len(page.Events) == 0 {
					if !jsonOut && len(page.Events) > 0 {
						fmt.Printf("\nNext cursor: %d\n", page.NextCursor)
					}
					return nil
				}
				cursor = page.NextCursor
			}
		},
	}
	cmd.Flags().Int64Var(&after, "after", 0, "Start after this cursor")
	cmd.Flags().IntVar(&limit, "limit", 50, "Events per page")
	cmd.Flags().BoolVar(&follow, "follow", false, "Keep paging until the log is drained")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func syncReconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Run one reconciliation pass over queued merges",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.bridge.RunSyncReconcile(cmd.Context())
			if err != nil {
				return fmt.Errorf("reconcile: %w", err)
			}
			fmt.Printf("Applied %d merges, %d remaining\n", res.Applied, res.Remaining)
			return nil
		},
	}
}
