package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fleetworks/quartermaster/internal/cli"
	"github.com/fleetworks/quartermaster/internal/vault"
)

func treeCmd() *cobra.Command {
	var (
		vaultName string
		jsonOut   bool
	)
	cmd := &cobra.Command{
		Use:   "tree",
		Short: "List a vault's notes as a tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			vid, err := parseVault(vaultName)
			if err != nil {
				return err
			}

			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			nodes, err := a.adapter.Tree(cmd.Context(), vid)
			if err != nil {
				return err
			}

			if jsonOut {
				data, _ := json.MarshalIndent(nodes, "", "  ")
				fmt.Println(string(data))
				return nil
			}
			printTree(nodes, 0)
			return nil
		},
	}
	cmd.Flags().StringVar(&vaultName, "vault", "", "Vault to list (default joined)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func printTree(nodes []vault.Node, depth int) {
	for _, n := range nodes {
		fmt.Println(cli.TreeLine(depth, n.Name, n.Type == "folder"))
		printTree(n.Children, depth+1)
	}
}

func graphCmd() *cobra.Command {
	var (
		vaultName string
		jsonOut   bool
	)
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Show a vault's link graph",
		Long:  "Build the note link graph of one vault. Ghost nodes mark link targets that have no backing note yet.",
		RunE: func(cmd *cobra.Command, args []string) error {
			vid, err := parseVault(vaultName)
			if err != nil {
				return err
			}

			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			g, err := a.adapter.Graph(cmd.Context(), vid)
			if err != nil {
				return err
			}

			if jsonOut {
				data, _ := json.MarshalIndent(g, "", "  ")
				fmt.Println(string(data))
				return nil
			}

			fmt.Printf("Notes: %s  Ghosts: %s  Edges: %s  Unresolved: %s\n",
				cli.FormatNumber(g.Stats.Notes),
				cli.FormatNumber(g.Stats.Ghosts),
				cli.FormatNumber(g.Stats.Edges),
				cli.FormatNumber(g.Stats.Unresolved))
			for _, e := range g.Edges {
				marker := "->"
				if !e.Resolved {
					marker = "-?"
				}
				fmt.Printf("  %s %s %s\n", e.From, marker, e.To)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&vaultName, "vault", "", "Vault to graph (default joined)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}
