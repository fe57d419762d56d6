package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/fleetworks/quartermaster/internal/cli"
	"github.com/fleetworks/quartermaster/internal/sealed"
)

const configTemplate = `# Quartermaster configuration.
# Env vars (QM_*) override anything set here.

[vault]
private_path = %q
%s
[bridge]
url = "http://localhost:8480"
core_id = "qm-core"
cluster_id = "default"

[enclave]
url = "http://localhost:8481"

[embedding]
provider = "ollama"
model = "nomic-embed-text"

[identity]
user_id = ""
ship_deployment_id = ""
`

func initCmd() *cobra.Command {
	var encrypt bool
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Set up a private vault and config file",
		Long:  "Create the private vault directory, write .qm/config.toml, and optionally generate an age identity so private notes are sealed at rest.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) == 1 {
				root = args[0]
			}
			absRoot, err := filepath.Abs(root)
			if err != nil {
				return err
			}
			return runInit(absRoot, encrypt)
		},
	}
	cmd.Flags().BoolVar(&encrypt, "encrypt", false, "Generate an age identity and seal private notes at rest")
	return cmd
}

func runInit(root string, encrypt bool) error {
	qmDir := filepath.Join(root, ".qm")
	if err := os.MkdirAll(qmDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", qmDir, err)
	}

	keyLine := ""
	var recipient string
	if encrypt {
		keyFile := filepath.Join(qmDir, "identity.age")
		if _, err := os.Stat(keyFile); err == nil {
			return fmt.Errorf("identity already exists: %s", keyFile)
		}
		var err error
		recipient, err = sealed.GenerateIdentity(keyFile)
		if err != nil {
			return fmt.Errorf("generate identity: %w", err)
		}
		keyLine = fmt.Sprintf("encryption_key_file = %q\nrequire_encryption = true\n", keyFile)
	}

	configPath := filepath.Join(qmDir, "config.toml")
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config already exists: %s", configPath)
	}
	content := fmt.Sprintf(configTemplate, root, keyLine)
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	cli.Header("Quartermaster initialized")
	lines := []string{
		"Vault:  " + cli.ShortenHome(root),
		"Config: " + cli.ShortenHome(configPath),
	}
	if encrypt {
		lines = append(lines, "Sealed: age identity generated")
	}
	cli.Box(lines)

	if recipient != "" {
		fmt.Printf("\n  Recipient (safe to share): %s\n", recipient)
	}
	fmt.Println("\n  Next steps:")
	fmt.Println("    qm index           index the private vault")
	fmt.Println("    qm search <query>  search it")
	fmt.Println("    qm mcp             expose tools over MCP")
	fmt.Println()
	return nil
}
