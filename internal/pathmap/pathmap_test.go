package pathmap

import (
	"errors"
	"testing"
)

func TestNormalizePath(t *testing.T) {
	t.Run("forces md suffix", func(t *testing.T) {
		got, err := NormalizePath("notes/engines")
		if err != nil {
			t.Fatalf("NormalizePath: %v", err)
		}
		if got != "notes/engines.md" {
			t.Errorf("got %q, want notes/engines.md", got)
		}
	})

	t.Run("md check is case-insensitive", func(t *testing.T) {
		got, err := NormalizePath("notes/ENGINES.MD")
		if err != nil {
			t.Fatalf("NormalizePath: %v", err)
		}
		if got != "notes/ENGINES.MD" {
			t.Errorf("got %q, suffix should not be doubled", got)
		}
	})

	t.Run("backslashes and leading slashes", func(t *testing.T) {
		got, err := NormalizePath(`\notes\ops\checklist.md`)
		if err != nil {
			t.Fatalf("NormalizePath: %v", err)
		}
		if got != "notes/ops/checklist.md" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("drops empty segments", func(t *testing.T) {
		got, err := NormalizePath("a//b///c.md")
		if err != nil {
			t.Fatalf("NormalizePath: %v", err)
		}
		if got != "a/b/c.md" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		inputs := []string{"notes/engines", "a//b/c", `kb\fleet\comms.md`, " x.md "}
		for _, in := range inputs {
			once, err := NormalizePath(in)
			if err != nil {
				t.Fatalf("NormalizePath(%q): %v", in, err)
			}
			twice, err := NormalizePath(once)
			if err != nil {
				t.Fatalf("NormalizePath(%q) second pass: %v", once, err)
			}
			if once != twice {
				t.Errorf("not idempotent for %q: %q != %q", in, once, twice)
			}
		}
	})

	t.Run("rejects traversal segments", func(t *testing.T) {
		for _, in := range []string{"a/../b.md", "a/./b.md", "..", "../x.md"} {
			_, err := NormalizePath(in)
			if !errors.Is(err, ErrPathTraversal) {
				t.Errorf("NormalizePath(%q) = %v, want ErrPathTraversal", in, err)
			}
		}
	})

	t.Run("rejects empty", func(t *testing.T) {
		for _, in := range []string{"", "   ", "///"} {
			_, err := NormalizePath(in)
			if !errors.Is(err, ErrEmptyPath) {
				t.Errorf("NormalizePath(%q) = %v, want ErrEmptyPath", in, err)
			}
		}
	})
}

func TestToCanonicalPath(t *testing.T) {
	ctx := Context{UserID: "u-7", ShipDeploymentID: "ship-42", ClusterID: "cluster-1"}

	t.Run("org uses cluster namespace", func(t *testing.T) {
		ref, err := ToCanonicalPath(VaultOrg, "handbook/comms.md", ctx)
		if err != nil {
			t.Fatalf("ToCanonicalPath: %v", err)
		}
		if ref.CanonicalPath != "org/cluster-1/handbook/comms.md" {
			t.Errorf("got %q", ref.CanonicalPath)
		}
	})

	t.Run("ship prefix maps to ship namespace", func(t *testing.T) {
		ref, err := ToCanonicalPath(VaultShip, "kb/ships/ship-42/startup.md", ctx)
		if err != nil {
			t.Fatalf("ToCanonicalPath: %v", err)
		}
		if ref.CanonicalPath != "ship/ship-42/startup.md" {
			t.Errorf("got %q, want ship/ship-42/startup.md", ref.CanonicalPath)
		}
	})

	t.Run("fleet prefix maps to fleet namespace", func(t *testing.T) {
		ref, err := ToCanonicalPath(VaultShip, "kb/fleet/comms.md", ctx)
		if err != nil {
			t.Fatalf("ToCanonicalPath: %v", err)
		}
		if ref.CanonicalPath != "ship/fleet/comms.md" {
			t.Errorf("got %q, want ship/fleet/comms.md", ref.CanonicalPath)
		}
	})

	t.Run("unprefixed path falls back to ship context", func(t *testing.T) {
		ref, err := ToCanonicalPath(VaultShip, "drills/evac.md", ctx)
		if err != nil {
			t.Fatalf("ToCanonicalPath: %v", err)
		}
		if ref.CanonicalPath != "ship/ship-42/drills/evac.md" {
			t.Errorf("got %q", ref.CanonicalPath)
		}
	})

	t.Run("fallback defaults to fleet without ship context", func(t *testing.T) {
		ref, err := ToCanonicalPath(VaultShip, "drills/evac.md", Context{})
		if err != nil {
			t.Fatalf("ToCanonicalPath: %v", err)
		}
		if ref.CanonicalPath != "ship/fleet/drills/evac.md" {
			t.Errorf("got %q, want ship/fleet/drills/evac.md", ref.CanonicalPath)
		}
	})

	t.Run("agent-public uses user namespace", func(t *testing.T) {
		ref, err := ToCanonicalPath(VaultAgentPublic, "ideas/warp.md", ctx)
		if err != nil {
			t.Fatalf("ToCanonicalPath: %v", err)
		}
		if ref.CanonicalPath != "agent-public/u-7/ideas/warp.md" {
			t.Errorf("got %q", ref.CanonicalPath)
		}
	})

	t.Run("agent-public anonymous without user", func(t *testing.T) {
		ref, err := ToCanonicalPath(VaultAgentPublic, "ideas/warp.md", Context{})
		if err != nil {
			t.Fatalf("ToCanonicalPath: %v", err)
		}
		if ref.CanonicalPath != "agent-public/anonymous/ideas/warp.md" {
			t.Errorf("got %q", ref.CanonicalPath)
		}
	})

	t.Run("private vault is rejected", func(t *testing.T) {
		_, err := ToCanonicalPath(VaultAgentPrivate, "notes/x.md", ctx)
		if !errors.Is(err, ErrNotShared) {
			t.Errorf("got %v, want ErrNotShared", err)
		}
	})
}

func TestFromCanonicalPath(t *testing.T) {
	ctx := Context{UserID: "u-7", ShipDeploymentID: "ship-42", ClusterID: "cluster-1"}

	t.Run("domain mismatch fails", func(t *testing.T) {
		_, err := FromCanonicalPath(DomainOrg, "ship/fleet/comms.md", ctx)
		if !errors.Is(err, ErrDomainMismatch) {
			t.Errorf("got %v, want ErrDomainMismatch", err)
		}
	})

	t.Run("too few segments fails", func(t *testing.T) {
		_, err := FromCanonicalPath(DomainShip, "ship/fleet", ctx)
		if !errors.Is(err, ErrMalformedPath) {
			t.Errorf("got %v, want ErrMalformedPath", err)
		}
	})

	t.Run("cross-user public path is re-qualified", func(t *testing.T) {
		got, err := FromCanonicalPath(DomainAgentPublic, "agent-public/u-9/ideas/warp.md", ctx)
		if err != nil {
			t.Fatalf("FromCanonicalPath: %v", err)
		}
		if got != "u-9/ideas/warp.md" {
			t.Errorf("got %q, want u-9/ideas/warp.md", got)
		}
	})
}

func TestRoundTrip(t *testing.T) {
	ctx := Context{UserID: "u-7", ShipDeploymentID: "ship-42", ClusterID: "cluster-1"}

	cases := []struct {
		vault VaultID
		path  string
	}{
		{VaultOrg, "handbook/comms.md"},
		{VaultOrg, "deep/nested/dir/doc"},
		{VaultShip, "kb/ships/ship-42/startup.md"},
		{VaultShip, "kb/fleet/comms.md"},
		{VaultShip, "kb/ships/ship-9/logs/day1"},
		{VaultAgentPublic, "ideas/warp.md"},
		{VaultAgentPublic, "scratch"},
	}
	for _, tc := range cases {
		normalized, err := NormalizePath(tc.path)
		if err != nil {
			t.Fatalf("NormalizePath(%q): %v", tc.path, err)
		}
		ref, err := ToCanonicalPath(tc.vault, tc.path, ctx)
		if err != nil {
			t.Fatalf("ToCanonicalPath(%s, %q): %v", tc.vault, tc.path, err)
		}
		back, err := FromCanonicalPath(ref.Domain, ref.CanonicalPath, ctx)
		if err != nil {
			t.Fatalf("FromCanonicalPath(%q): %v", ref.CanonicalPath, err)
		}
		if back != normalized {
			t.Errorf("%s %q: round trip got %q, want %q", tc.vault, tc.path, back, normalized)
		}
	}
}

func TestClassifyCanonical(t *testing.T) {
	cases := []struct {
		path   string
		scope  ScopeType
		shipID string
	}{
		{"ship/ship-42/startup.md", ScopeShip, "ship-42"},
		{"ship/fleet/comms.md", ScopeFleet, ""},
		{"org/cluster-1/handbook.md", ScopeGlobal, ""},
		{"agent-public/u-7/ideas.md", ScopeGlobal, ""},
	}
	for _, tc := range cases {
		scope, shipID := ClassifyCanonical(tc.path)
		if scope != tc.scope || shipID != tc.shipID {
			t.Errorf("ClassifyCanonical(%q) = %s/%s, want %s/%s",
				tc.path, scope, shipID, tc.scope, tc.shipID)
		}
	}
}

func TestResolvePhysicalTarget(t *testing.T) {
	t.Run("joined path recovers physical vault", func(t *testing.T) {
		got, err := ResolvePhysicalTarget(VaultJoined, "agent-private:notes/engines.md")
		if err != nil {
			t.Fatalf("ResolvePhysicalTarget: %v", err)
		}
		if got.Vault != VaultAgentPrivate || got.Path != "notes/engines.md" {
			t.Errorf("got %+v", got)
		}
	})

	t.Run("direct vault normalizes path", func(t *testing.T) {
		got, err := ResolvePhysicalTarget(VaultShip, "kb/fleet/comms")
		if err != nil {
			t.Fatalf("ResolvePhysicalTarget: %v", err)
		}
		if got.Vault != VaultShip || got.Path != "kb/fleet/comms.md" {
			t.Errorf("got %+v", got)
		}
	})

	t.Run("joined path with unknown vault fails", func(t *testing.T) {
		_, err := ResolvePhysicalTarget(VaultJoined, "mystery:notes/x.md")
		if !errors.Is(err, ErrUnknownVault) {
			t.Errorf("got %v, want ErrUnknownVault", err)
		}
	})

	t.Run("joined path without separator fails", func(t *testing.T) {
		_, err := ResolvePhysicalTarget(VaultJoined, "notes/x.md")
		if !errors.Is(err, ErrMalformedPath) {
			t.Errorf("got %v, want ErrMalformedPath", err)
		}
	})
}
