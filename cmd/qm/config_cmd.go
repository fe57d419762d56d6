package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/fleetworks/quartermaster/internal/config"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage quartermaster configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			redacted := *cfg
			redacted.Bridge.APIKey = redactSecret(redacted.Bridge.APIKey)
			redacted.Enclave.APIKey = redactSecret(redacted.Enclave.APIKey)
			redacted.Embedding.APIKey = redactSecret(redacted.Embedding.APIKey)
			return toml.NewEncoder(os.Stdout).Encode(redacted)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print path to the active config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			p := config.FilePath()
			if p == "" {
				return fmt.Errorf("no config file found (run 'qm init' to create one)")
			}
			fmt.Println(p)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "edit",
		Short: "Open the config file in $EDITOR",
		RunE: func(cmd *cobra.Command, args []string) error {
			p := config.FilePath()
			if p == "" {
				return fmt.Errorf("no config file found (run 'qm init' to create one)")
			}
			editor := os.Getenv("EDITOR")
			if editor == "" {
				editor = "vi"
			}
			ed := exec.Command(editor, p)
			ed.Stdin = os.Stdin
			ed.Stdout = os.Stdout
			ed.Stderr = os.Stderr
			return ed.Run()
		},
	})

	return cmd
}

func redactSecret(s string) string {
	if s == "" {
		return ""
	}
	return "<redacted>"
}
