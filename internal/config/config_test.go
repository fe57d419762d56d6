package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Bridge.URL == "" {
		t.Error("no default bridge URL")
	}
	if cfg.Embedding.Provider != "ollama" {
		t.Errorf("default provider = %q", cfg.Embedding.Provider)
	}
	if cfg.BridgeTimeout() <= 0 || cfg.EnclaveTimeout() <= 0 {
		t.Error("timeouts must default positive")
	}
}

func TestLoadFromTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[bridge]
url = "https://bridge.example"
core_id = "core-7"
require_signatures = true

[vault]
private_path = "/srv/vault"
skip_dirs = ["archive"]

[identity]
user_id = "u1"
ship_deployment_id = "ship-42"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Bridge.URL != "https://bridge.example" {
		t.Errorf("bridge url = %q", cfg.Bridge.URL)
	}
	if !cfg.Bridge.RequireSignatures {
		t.Error("require_signatures not read")
	}
	if cfg.Identity.ShipDeploymentID != "ship-42" {
		t.Errorf("ship id = %q", cfg.Identity.ShipDeploymentID)
	}
	// Unset keys keep their defaults.
	if cfg.Enclave.URL != DefaultConfig().Enclave.URL {
		t.Errorf("enclave url = %q", cfg.Enclave.URL)
	}

	skip := cfg.SkipDirSet()
	if !skip["archive"] || !skip["_trash"] || !skip[".git"] {
		t.Errorf("skip set = %v", skip)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("[bridge]\nurl = \"https://file.example\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("QM_BRIDGE_URL", "https://env.example")
	t.Setenv("QM_REQUIRE_ENCRYPTION", "yes")
	t.Setenv("QM_SKIP_DIRS", "drafts, tmp")

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Bridge.URL != "https://env.example" {
		t.Errorf("env did not win: %q", cfg.Bridge.URL)
	}
	if !cfg.Vault.RequireEncryption {
		t.Error("truthy env not applied")
	}
	skip := cfg.SkipDirSet()
	if !skip["drafts"] || !skip["tmp"] {
		t.Errorf("env skip dirs not merged: %v", skip)
	}
}

func TestLoadFromMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Bridge.CoreID != DefaultConfig().Bridge.CoreID {
		t.Errorf("core id = %q", cfg.Bridge.CoreID)
	}
}

func TestIsTruthy(t *testing.T) {
	for _, v := range []string{"1", "true", "YES", " on "} {
		if !isTruthy(v) {
			t.Errorf("isTruthy(%q) = false", v)
		}
	}
	for _, v := range []string{"", "0", "false", "off", "maybe"} {
		if isTruthy(v) {
			t.Errorf("isTruthy(%q) = true", v)
		}
	}
}

func TestDataDirPrefersEnv(t *testing.T) {
	t.Setenv("QM_DATA_DIR", "/tmp/qm-data")
	cfg := DefaultConfig()
	if cfg.DataDir() != "/tmp/qm-data" {
		t.Errorf("DataDir = %q", cfg.DataDir())
	}
	if cfg.DBPath() != filepath.Join("/tmp/qm-data", "quartermaster.db") {
		t.Errorf("DBPath = %q", cfg.DBPath())
	}
}
