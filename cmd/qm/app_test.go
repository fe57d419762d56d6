package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fleetworks/quartermaster/internal/pathmap"
	"github.com/fleetworks/quartermaster/internal/privindex"
	"github.com/fleetworks/quartermaster/internal/retrieval"
)

func TestParseVault(t *testing.T) {
	cases := []struct {
		in      string
		want    pathmap.VaultID
		wantErr bool
	}{
		{"", pathmap.VaultJoined, false},
		{"joined", pathmap.VaultJoined, false},
		{"org", pathmap.VaultOrg, false},
		{"ship", pathmap.VaultShip, false},
		{"agent-public", pathmap.VaultAgentPublic, false},
		{"public", pathmap.VaultAgentPublic, false},
		{"agent-private", pathmap.VaultAgentPrivate, false},
		{"private", pathmap.VaultAgentPrivate, false},
		{"warehouse", "", true},
	}
	for _, c := range cases {
		got, err := parseVault(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("parseVault(%q): expected error", c.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseVault(%q): %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("parseVault(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestParseScope(t *testing.T) {
	if s, err := parseScope(""); err != nil || s != retrieval.ScopeAll {
		t.Errorf("empty scope = %q, %v; want all", s, err)
	}
	if s, err := parseScope("fleet"); err != nil || s != retrieval.ScopeFleet {
		t.Errorf("fleet scope = %q, %v", s, err)
	}
	if _, err := parseScope("galaxy"); err == nil {
		t.Error("expected error for unknown scope")
	}
}

func TestQueryMode(t *testing.T) {
	if queryMode(false) != privindex.ModeHybrid {
		t.Error("default mode should be hybrid")
	}
	if queryMode(true) != privindex.ModeLexical {
		t.Error("--lexical should select lexical mode")
	}
}

func TestCompactExcerpt(t *testing.T) {
	got := compactExcerpt("line one\nline two\r\n")
	if strings.ContainsAny(got, "\n\r") {
		t.Errorf("excerpt still has newlines: %q", got)
	}

	long := strings.Repeat("x", 200)
	got = compactExcerpt(long)
	if len(got) != 153 {
		t.Errorf("truncated length = %d, want 153", len(got))
	}
	if !strings.HasSuffix(got, "...") {
		t.Error("truncated excerpt should end with ellipsis")
	}
}

func TestRedactSecret(t *testing.T) {
	if redactSecret("") != "" {
		t.Error("empty secret should stay empty")
	}
	if got := redactSecret("sk-live-123"); got != "<redacted>" {
		t.Errorf("redactSecret = %q", got)
	}
}

func TestRunInitCreatesConfig(t *testing.T) {
	root := t.TempDir()
	if err := runInit(root, false); err != nil {
		t.Fatalf("runInit: %v", err)
	}

	configPath := filepath.Join(root, ".qm", "config.toml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("config not written: %v", err)
	}
	if !strings.Contains(string(data), "private_path") {
		t.Error("config missing private_path")
	}

	// Second init must not clobber the existing config.
	if err := runInit(root, false); err == nil {
		t.Error("expected error on re-init")
	}
}

func TestRunInitEncryptGeneratesIdentity(t *testing.T) {
	root := t.TempDir()
	if err := runInit(root, true); err != nil {
		t.Fatalf("runInit --encrypt: %v", err)
	}

	keyFile := filepath.Join(root, ".qm", "identity.age")
	if _, err := os.Stat(keyFile); err != nil {
		t.Fatalf("identity not written: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(root, ".qm", "config.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "encryption_key_file") {
		t.Error("config missing encryption_key_file")
	}
	if !strings.Contains(string(data), "require_encryption = true") {
		t.Error("config missing require_encryption")
	}
}
