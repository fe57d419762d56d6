package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fleetworks/quartermaster/internal/bridge"
	"github.com/fleetworks/quartermaster/internal/vault"
)

func getCmd() *cobra.Command {
	var (
		vaultName string
		jsonOut   bool
	)
	cmd := &cobra.Command{
		Use:   "get [path]",
		Short: "Read a note",
		Long:  "Read a note from one vault. Joined paths use the <vault>:<path> form, everything else is relative to the chosen vault.",
		Args:  cobra.ExactArgs(1),
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

			f, err := a.adapter.ReadFile(cmd.Context(), vid, args[0])
			if err != nil {
				return err
			}

			if jsonOut {
				data, _ := json.MarshalIndent(f, "", "  ")
				fmt.Println(string(data))
				return nil
			}

			fmt.Println(f.Content)
			if len(f.Links) > 0 {
				fmt.Printf("\nLinks: %s\n", strings.Join(f.Links, ", "))
			}
			if len(f.Backlinks) > 0 {
				fmt.Printf("Backlinks: %s\n", strings.Join(f.Backlinks, ", "))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&vaultName, "vault", "", "Vault to read from (default joined)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON with link sets")
	return cmd
}

func saveCmd() *cobra.Command {
	var (
		vaultName string
		tags      []string
		source    string
		stdin     bool
	)
	cmd := &cobra.Command{
		Use:   "save [path] [content]",
		Short: "Create or update a note",
		Long:  "Write a note into one vault. Shared vaults go through the knowledge bridge as signed envelopes; the private vault writes to disk and reindexes.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			vid, err := parseVault(vaultName)
			if err != nil {
				return err
			}

			var content string
			switch {
			case stdin:
				data, err := io.ReadAll(os.Stdin)
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				content = string(data)
			case len(args) == 2:
				content = args[1]
			default:
				return fmt.Errorf("content required (pass it as an argument or use --stdin)")
			}

			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.adapter.SaveFile(cmd.Context(), vid, args[0], content, saveOptions(tags, source))
			if err != nil {
				return err
			}
			printWriteResult("Saved", args[0], res)
			return nil
		},
	}
	cmd.Flags().StringVar(&vaultName, "vault", "", "Target vault (default joined, path decides)")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "Tags attached to the write (repeatable)")
	cmd.Flags().StringVar(&source, "source", "", "Provenance note recorded with the write")
	cmd.Flags().BoolVar(&stdin, "stdin", false, "Read content from stdin")
	return cmd
}

func mvCmd() *cobra.Command {
	var vaultName string
	cmd := &cobra.Command{
		Use:   "mv [from] [to]",
		Short: "Move or rename a note within its vault",
		Args:  cobra.ExactArgs(2),
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

			res, err := a.adapter.MoveFile(cmd.Context(), vid, args[0], args[1])
			if err != nil {
				return err
			}
			printWriteResult("Moved", args[0]+" -> "+args[1], res)
			return nil
		},
	}
	cmd.Flags().StringVar(&vaultName, "vault", "", "Vault holding both paths (default joined)")
	return cmd
}

func rmCmd() *cobra.Command {
	var (
		vaultName string
		hard      bool
	)
	cmd := &cobra.Command{
		Use:   "rm [path]",
		Short: "Delete a note",
		Long:  "Delete a note. The default is a soft delete into a timestamped _trash folder; --hard removes the note permanently.",
		Args:  cobra.ExactArgs(1),
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

			res, err := a.adapter.DeleteFile(cmd.Context(), vid, args[0], !hard)
			if err != nil {
				return err
			}
			verb := "Trashed"
			if hard {
				verb = "Deleted"
			}
			printWriteResult(verb, args[0], res)
			return nil
		},
	}
	cmd.Flags().StringVar(&vaultName, "vault", "", "Vault to delete from (default joined)")
	cmd.Flags().BoolVar(&hard, "hard", false, "Remove permanently instead of moving to _trash")
	return cmd
}

func saveOptions(tags []string, source string) vault.SaveOptions {
	return vault.SaveOptions{Tags: tags, Source: source}
}

// printWriteResult reports the outcome of a write, including the
// bridge's duplicate and merge-queue states when present.
func printWriteResult(verb, what string, res *bridge.WriteResult) {
	switch {
	case res == nil:
		fmt.Printf("%s %s\n", verb, what)
	case res.Duplicate:
		fmt.Printf("%s %s (already applied)\n", verb, what)
	case res.MergeQueued:
		fmt.Printf("%s %s (merge queued)\n", verb, what)
	case res.EventID != "":
		fmt.Printf("%s %s (event %s)\n", verb, what, res.EventID)
	default:
		fmt.Printf("%s %s\n", verb, what)
	}
}
