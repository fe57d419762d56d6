package main

import (
	"fmt"
	"os"

	"github.com/fleetworks/quartermaster/internal/bridge"
	"github.com/fleetworks/quartermaster/internal/config"
	"github.com/fleetworks/quartermaster/internal/embedding"
	"github.com/fleetworks/quartermaster/internal/pathmap"
	"github.com/fleetworks/quartermaster/internal/privindex"
	"github.com/fleetworks/quartermaster/internal/retrieval"
	"github.com/fleetworks/quartermaster/internal/sealed"
	"github.com/fleetworks/quartermaster/internal/signer"
	"github.com/fleetworks/quartermaster/internal/store"
	"github.com/fleetworks/quartermaster/internal/vault"
)

// app wires every subsystem from the effective configuration. Commands
// that only touch the private index still get a bridge client; it simply
// fails on use when the bridge is unreachable.
type app struct {
	cfg     *config.Config
	db      *store.DB
	index   *privindex.Index
	bridge  *bridge.Client
	adapter *vault.Adapter
	engine  *retrieval.Engine
}

func openApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return openAppWith(cfg)
}

func openAppWith(cfg *config.Config) (*app, error) {
	if cfg.Vault.PrivatePath == "" {
		return nil, userError("No private vault configured",
			"run 'qm init <path>' or set QM_PRIVATE_VAULT")
	}

	provider, err := embedding.NewProvider(embedding.ProviderConfig{
		Provider:   cfg.Embedding.Provider,
		Model:      cfg.Embedding.Model,
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Dimensions: cfg.Embedding.Dimensions,
	})
	if err != nil {
		return nil, err
	}

	dims := cfg.Embedding.Dimensions
	if provider != nil {
		dims = provider.Dimensions()
	}
	if dims <= 0 {
		dims = 768
	}

	db, err := store.Open(cfg.DBPath(), dims)
	if err != nil {
		return nil, userError("Cannot open quartermaster database",
			"run 'qm init' to set up, or check QM_DATA_DIR")
	}

	var codec *sealed.Codec
	if cfg.Vault.EncryptionKeyFile != "" {
		codec, err = sealed.LoadCodec(cfg.Vault.EncryptionKeyFile)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("load encryption identity: %w", err)
		}
	}

	index := privindex.New(privindex.Config{
		DB:                db,
		Provider:          provider,
		Codec:             codec,
		Root:              cfg.Vault.PrivatePath,
		Skip:              cfg.SkipDirSet(),
		RequireEncryption: cfg.Vault.RequireEncryption,
	})

	var enclave *signer.Client
	if cfg.Enclave.URL != "" {
		enclave = signer.NewClient(cfg.Enclave.URL, cfg.Enclave.APIKey, cfg.EnclaveTimeout())
	}
	policy := signer.PolicyBestEffort
	if cfg.Bridge.RequireSignatures {
		policy = signer.PolicyRequired
	}

	br := bridge.NewClient(bridge.Options{
		BaseURL: cfg.Bridge.URL,
		APIKey:  cfg.Bridge.APIKey,
		CoreID:  cfg.Bridge.CoreID,
		Policy:  policy,
		Enclave: enclave,
		DB:      db,
		Timeout: cfg.BridgeTimeout(),
	})

	adapter := &vault.Adapter{
		Bridge:            br,
		Index:             index,
		Root:              cfg.Vault.PrivatePath,
		Codec:             codec,
		EncryptWrites:     codec != nil,
		RequireEncryption: cfg.Vault.RequireEncryption,
		Ctx: pathmap.Context{
			UserID:           cfg.Identity.UserID,
			ShipDeploymentID: cfg.Identity.ShipDeploymentID,
			ClusterID:        cfg.Bridge.ClusterID,
		},
	}

	return &app{
		cfg:     cfg,
		db:      db,
		index:   index,
		bridge:  br,
		adapter: adapter,
		engine:  &retrieval.Engine{Bridge: br, Index: index},
	}, nil
}

func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
}

// parseVault maps the --vault flag to a vault id. Empty means joined.
func parseVault(name string) (pathmap.VaultID, error) {
	switch name {
	case "", "joined":
		return pathmap.VaultJoined, nil
	case "org":
		return pathmap.VaultOrg, nil
	case "ship":
		return pathmap.VaultShip, nil
	case "agent-public", "public":
		return pathmap.VaultAgentPublic, nil
	case "agent-private", "private":
		return pathmap.VaultAgentPrivate, nil
	}
	return "", fmt.Errorf("unknown vault %q (org, ship, agent-public, agent-private, joined)", name)
}

// parseScope maps the --scope flag to a retrieval scope.
func parseScope(name string) (retrieval.Scope, error) {
	switch name {
	case "", "all":
		return retrieval.ScopeAll, nil
	case "ship":
		return retrieval.ScopeShip, nil
	case "fleet":
		return retrieval.ScopeFleet, nil
	}
	return "", fmt.Errorf("unknown scope %q (ship, fleet, all)", name)
}

// parseMode maps the --lexical flag to a query mode.
func queryMode(lexical bool) privindex.Mode {
	if lexical {
		return privindex.ModeLexical
	}
	return privindex.ModeHybrid
}

func warnf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "qm: warning: "+format+"\n", args...)
}
