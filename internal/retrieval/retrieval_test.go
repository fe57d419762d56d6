package retrieval

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fleetworks/quartermaster/internal/bridge"
	"github.com/fleetworks/quartermaster/internal/pathmap"
	"github.com/fleetworks/quartermaster/internal/privindex"
	"github.com/fleetworks/quartermaster/internal/signer"
	"github.com/fleetworks/quartermaster/internal/store"
)

func newBridge(t *testing.T, url string) *bridge.Client {
	t.Helper()
	db, err := store.OpenMemory(4)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return bridge.NewClient(bridge.Options{
		BaseURL: url,
		CoreID:  "core-test",
		Policy:  signer.PolicyBestEffort,
		DB:      db,
	})
}

func newPrivIndex(t *testing.T) (*privindex.Index, string) {
	t.Helper()
	db, err := store.OpenMemory(4)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	root := t.TempDir()
	return privindex.New(privindex.Config{DB: db, Root: root}), root
}

func indexNote(t *testing.T, ix *privindex.Index, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := ix.UpsertJoinedPath(context.Background(), "agent-private:"+rel); err != nil {
		t.Fatal(err)
	}
}

func TestShipScopeWithoutDeploymentIsNoOp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no shared-service query should be issued")
	}))
	defer srv.Close()

	e := &Engine{Bridge: newBridge(t, srv.URL)}
	resp, err := e.Query(context.Background(), Request{
		Query:   "anything",
		Scope:   ScopeShip,
		Context: pathmap.Context{UserID: "u1"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Citations) != 0 {
		t.Errorf("expected no citations, got %d", len(resp.Citations))
	}
}

func TestPrivateBoostRanksAboveEqualPublic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(bridge.QueryResponse{
			Mode: "lexical",
			Results: []bridge.RemoteResult{{
				RemoteCitation: bridge.RemoteCitation{
					CanonicalPath: "org/default/handbook.md",
					Title:         "Handbook",
					Excerpt:       "warp handbook",
					Score:         1.0,
					LexicalScore:  1.0,
				},
			}},
		})
	}))
	defer srv.Close()

	ix, root := newPrivIndex(t)
	indexNote(t, ix, root, "notes/engines.md", "warp core nominal")

	e := &Engine{Bridge: newBridge(t, srv.URL), Index: ix}
	resp, err := e.Query(context.Background(), Request{
		Query:   "warp",
		Scope:   ScopeAll,
		Mode:    privindex.ModeLexical,
		Context: pathmap.Context{UserID: "u1", ClusterID: "default"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Citations) != 2 {
		t.Fatalf("expected 2 citations, got %d", len(resp.Citations))
	}
	// Lexical 0.92 plus the private boost outranks the public 1.0.
	first := resp.Citations[0]
	if first.Path != "agent-private:notes/engines.md" {
		t.Errorf("first citation = %+v, want boosted private note", first)
	}
	if first.ID != "S1" || resp.Citations[1].ID != "S2" {
		t.Errorf("ids = %q, %q", first.ID, resp.Citations[1].ID)
	}
	if resp.Citations[1].Path != "org:handbook.md" {
		t.Errorf("public citation path = %q", resp.Citations[1].Path)
	}
}

func TestScopeFilterDropsOverReturnedCitations(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(bridge.QueryResponse{
			Mode: "lexical",
			Results: []bridge.RemoteResult{
				{RemoteCitation: bridge.RemoteCitation{CanonicalPath: "ship/ship-42/startup.md", Score: 0.9}},
				{RemoteCitation: bridge.RemoteCitation{CanonicalPath: "ship/fleet/comms.md", Score: 0.8}},
				{RemoteCitation: bridge.RemoteCitation{CanonicalPath: "ship/ship-99/other.md", Score: 0.7}},
			},
		})
	}))
	defer srv.Close()

	e := &Engine{Bridge: newBridge(t, srv.URL)}
	resp, err := e.Query(context.Background(), Request{
		Query:   "startup",
		Scope:   ScopeShip,
		Mode:    privindex.ModeLexical,
		Context: pathmap.Context{UserID: "u1", ShipDeploymentID: "ship-42"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Citations) != 1 {
		t.Fatalf("expected 1 citation after scope filter, got %d", len(resp.Citations))
	}
	c := resp.Citations[0]
	if c.Path != "ship:kb/ships/ship-42/startup.md" {
		t.Errorf("path = %q", c.Path)
	}
	if c.ScopeType != pathmap.ScopeShip || c.ShipDeploymentID != "ship-42" {
		t.Errorf("scope = %s/%s", c.ScopeType, c.ShipDeploymentID)
	}
}

func TestFallbackUnionSemantics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(bridge.QueryResponse{Mode: "lexical", FallbackUsed: true})
	}))
	defer srv.Close()

	e := &Engine{Bridge: newBridge(t, srv.URL)}
	resp, err := e.Query(context.Background(), Request{
		Query: "warp",
		Scope: ScopeFleet,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !resp.FallbackUsed {
		t.Error("expected FallbackUsed when a constituent signaled it")
	}
	if resp.Mode != privindex.ModeLexical {
		t.Errorf("mode = %q", resp.Mode)
	}
}

func TestBuildCitationFooter(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		footer := BuildCitationFooter(nil)
		if !strings.Contains(footer, "[S0]") {
			t.Errorf("footer = %q, want [S0]", footer)
		}
		if !strings.Contains(footer, "No indexed knowledge sources retrieved.") {
			t.Errorf("footer = %q", footer)
		}
	})

	t.Run("one source", func(t *testing.T) {
		footer := BuildCitationFooter([]Citation{{ID: "S1", Path: "p.md", Title: "T"}})
		if !strings.Contains(footer, "[S1] T - p.md") {
			t.Errorf("footer = %q", footer)
		}
	})
}

func TestEnforceCitationFooterIdempotent(t *testing.T) {
	cits := []Citation{{ID: "S1", Path: "p.md", Title: "T"}}
	once := EnforceCitationFooter("The warp core is nominal. [S1]", cits)
	twice := EnforceCitationFooter(once, cits)
	if once != twice {
		t.Errorf("not idempotent:\nonce:  %q\ntwice: %q", once, twice)
	}
	if strings.Count(once, "Sources:") != 1 {
		t.Errorf("footer duplicated: %q", once)
	}
}
