package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fleetworks/quartermaster/internal/cli"
	"github.com/fleetworks/quartermaster/internal/config"
	"github.com/fleetworks/quartermaster/internal/retrieval"
	"github.com/fleetworks/quartermaster/internal/vault"
)

func searchCmd() *cobra.Command {
	var (
		vaultName string
		scope     string
		topK      int
		lexical   bool
		jsonOut   bool
	)
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search a vault from the command line",
		Long:  "Search one vault, or the joined view of all of them. Results are deduplicated per note with the best-scoring excerpt.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")

			vid, err := parseVault(vaultName)
			if err != nil {
				return err
			}
			sc, err := parseScope(scope)
			if err != nil {
				return err
			}

			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			hits, err := a.adapter.Search(cmd.Context(), vid, vault.SearchRequest{
				Query: query,
				K:     topK,
				Mode:  queryMode(lexical),
				Scope: sc,
			})
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}

			if jsonOut {
				data, _ := json.MarshalIndent(hits, "", "  ")
				fmt.Println(string(data))
				return nil
			}

			if len(hits) == 0 {
				fmt.Println("No results found.")
				return nil
			}
			for i, h := range hits {
				fmt.Printf("\n%d. %s  %s\n", i+1, h.Title, cli.Score(h.Score))
				fmt.Printf("   %s\n", h.Path)
				fmt.Printf("   %s\n", compactExcerpt(h.Excerpt))
			}
			fmt.Println()
			return nil
		},
	}
	cmd.Flags().StringVar(&vaultName, "vault", "", "Vault to search (org, ship, agent-public, agent-private, joined)")
	cmd.Flags().StringVar(&scope, "scope", "", "Retrieval scope for joined searches (ship, fleet, all)")
	cmd.Flags().IntVar(&topK, "top-k", config.DefaultTopK, "Number of results")
	cmd.Flags().BoolVar(&lexical, "lexical", false, "Skip embeddings, lexical scoring only")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func retrieveCmd() *cobra.Command {
	var (
		scope     string
		topK      int
		lexical   bool
		noPrivate bool
		jsonOut   bool
	)
	cmd := &cobra.Command{
		Use:   "retrieve [query]",
		Short: "Run merged retrieval and print labeled citations",
		Long:  "Query the shared knowledge service and the private index together, merge by score, and print the relabeled citation list with its Sources footer.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")

			sc, err := parseScope(scope)
			if err != nil {
				return err
			}

			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			resp, err := a.engine.Query(cmd.Context(), retrieval.Request{
				Query:          query,
				Scope:          sc,
				K:              topK,
				Mode:           queryMode(lexical),
				DisablePrivate: noPrivate,
				Context:        a.adapter.Ctx,
			})
			if err != nil {
				return fmt.Errorf("retrieve: %w", err)
			}

			if jsonOut {
				data, _ := json.MarshalIndent(resp, "", "  ")
				fmt.Println(string(data))
				return nil
			}

			for _, c := range resp.Citations {
				fmt.Printf("\n[%s] %s  %s\n", c.ID, c.Title, cli.Score(c.Score))
				fmt.Printf("    %s\n", c.Path)
				fmt.Printf("    %s\n", compactExcerpt(c.Excerpt))
			}
			if resp.FallbackUsed {
				warnf("semantic retrieval degraded, lexical scoring used")
			}
			fmt.Printf("\n%s\n", retrieval.BuildCitationFooter(resp.Citations))
			return nil
		},
	}
	cmd.Flags().StringVar(&scope, "scope", "", "Retrieval scope (ship, fleet, all)")
	cmd.Flags().IntVar(&topK, "top-k", config.DefaultTopK, "Number of citations")
	cmd.Flags().BoolVar(&lexical, "lexical", false, "Skip embeddings, lexical scoring only")
	cmd.Flags().BoolVar(&noPrivate, "no-private", false, "Exclude the private index")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

// compactExcerpt flattens an excerpt onto one line for terminal display.
func compactExcerpt(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) > 150 {
		s = s[:150] + "..."
	}
	return s
}
