// Package mcp exposes the vault adapter as an MCP server over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/fleetworks/quartermaster/internal/pathmap"
	"github.com/fleetworks/quartermaster/internal/privindex"
	"github.com/fleetworks/quartermaster/internal/retrieval"
	"github.com/fleetworks/quartermaster/internal/vault"
)

// Version is set by the caller before Serve.
var Version = "dev"

// Server wires vault operations into MCP tools.
type Server struct {
	Adapter *vault.Adapter
	Engine  *retrieval.Engine
}

// Serve runs the MCP server on stdio until the transport closes.
func (s *Server) Serve(ctx context.Context) error {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "quartermaster",
		Version: Version,
	}, nil)
	s.registerTools(server)
	return server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_vault",
		Description: "Search one vault (org, ship, agent-public, agent-private, or joined) for relevant notes.\n\nArgs:\n  query: Natural language search query\n  vault: Vault to search (default joined)\n  scope: ship | fleet | all, joined vault only (default all)\n  top_k: Number of results (default 12, max 100)\n  mode: hybrid | lexical (default hybrid)\n\nReturns a ranked list of notes with paths, titles, and excerpts.",
	}, s.handleSearchVault)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "retrieve",
		Description: "Run a merged retrieval across every store the scope implies and return relabeled citations plus a ready-to-append sources footer.\n\nArgs:\n  query: Natural language query\n  scope: ship | fleet | all (default all)\n  top_k: Number of citations (default 12, max 100)\n  mode: hybrid | lexical (default hybrid)\n\nReturns citations S1..Sk with scores and the citation footer text.",
	}, s.handleRetrieve)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "read_note",
		Description: "Read the full content of a note from a vault, including resolved links and backlinks.\n\nArgs:\n  vault: Vault id (default joined)\n  path: Note path in that vault's path space\n\nReturns markdown content plus link sets.",
	}, s.handleReadNote)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "save_note",
		Description: "Write or replace a note. Private-vault writes stay local; shared-vault writes go through the signed bridge.\n\nArgs:\n  vault: Vault id\n  path: Note path in that vault's path space\n  content: Full markdown content\n  tags: Optional tags\n\nReturns the write acknowledgment.",
	}, s.handleSaveNote)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "vault_tree",
		Description: "List a vault's folder and file hierarchy. The joined vault concatenates all shared domains plus the private vault.\n\nArgs:\n  vault: Vault id (default joined)\n\nReturns a nested tree of folders and files.",
	}, s.handleVaultTree)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "vault_graph",
		Description: "Fetch a vault's note link graph with ghost nodes and aggregate stats.\n\nArgs:\n  vault: Vault id (default joined)\n\nReturns nodes, edges, and stats.",
	}, s.handleVaultGraph)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "index_stats",
		Description: "Report the size of the local private index.\n\nReturns document and chunk counts.",
	}, s.handleIndexStats)
}

type searchInput struct {
	Query string `json:"query" jsonschema:"Natural language search query"`
	Vault string `json:"vault,omitempty" jsonschema:"Vault to search (default joined)"`
	Scope string `json:"scope,omitempty" jsonschema:"ship | fleet | all (joined vault only)"`
	TopK  int    `json:"top_k,omitempty" jsonschema:"Number of results (default 12, max 100)"`
	Mode  string `json:"mode,omitempty" jsonschema:"hybrid | lexical"`
}

type retrieveInput struct {
	Query string `json:"query" jsonschema:"Natural language query"`
	Scope string `json:"scope,omitempty" jsonschema:"ship | fleet | all (default all)"`
	TopK  int    `json:"top_k,omitempty" jsonschema:"Number of citations (default 12, max 100)"`
	Mode  string `json:"mode,omitempty" jsonschema:"hybrid | lexical"`
}

type readInput struct {
	Vault string `json:"vault,omitempty" jsonschema:"Vault id (default joined)"`
	Path  string `json:"path" jsonschema:"Note path in the vault's path space"`
}

type saveInput struct {
	Vault   string   `json:"vault" jsonschema:"Vault id"`
	Path    string   `json:"path" jsonschema:"Note path in the vault's path space"`
	Content string   `json:"content" jsonschema:"Full markdown content"`
	Tags    []string `json:"tags,omitempty" jsonschema:"Optional tags"`
}

type vaultInput struct {
	Vault string `json:"vault,omitempty" jsonschema:"Vault id (default joined)"`
}

type emptyInput struct{}

func (s *Server) handleSearchVault(ctx context.Context, req *mcp.CallToolRequest, input searchInput) (*mcp.CallToolResult, any, error) {
	hits, err := s.Adapter.Search(ctx, vaultOrJoined(input.Vault), vault.SearchRequest{
		Query: input.Query,
		K:     input.TopK,
		Mode:  privindex.Mode(input.Mode),
		Scope: retrieval.Scope(input.Scope),
	})
	if err != nil {
		return textResult(fmt.Sprintf("Search error: %v", err)), nil, nil
	}
	if len(hits) == 0 {
		return textResult("No results found."), nil, nil
	}
	for i := range hits {
		hits[i].Excerpt = screenExcerpt(hits[i].Excerpt)
	}
	return jsonResult(hits), nil, nil
}

func (s *Server) handleRetrieve(ctx context.Context, req *mcp.CallToolRequest, input retrieveInput) (*mcp.CallToolResult, any, error) {
	scope := retrieval.Scope(input.Scope)
	if scope == "" {
		scope = retrieval.ScopeAll
	}
	resp, err := s.Engine.Query(ctx, retrieval.Request{
		Query:   input.Query,
		Scope:   scope,
		K:       input.TopK,
		Mode:    privindex.Mode(input.Mode),
		Context: s.Adapter.Ctx,
	})
	if err != nil {
		return textResult(fmt.Sprintf("Retrieval error: %v", err)), nil, nil
	}
	for i := range resp.Citations {
		resp.Citations[i].Excerpt = screenExcerpt(resp.Citations[i].Excerpt)
	}
	out := struct {
		*retrieval.Response
		Footer string `json:"footer"`
	}{resp, retrieval.BuildCitationFooter(resp.Citations)}
	return jsonResult(out), nil, nil
}

func (s *Server) handleReadNote(ctx context.Context, req *mcp.CallToolRequest, input readInput) (*mcp.CallToolResult, any, error) {
	f, err := s.Adapter.ReadFile(ctx, vaultOrJoined(input.Vault), input.Path)
	if err != nil {
		return textResult(fmt.Sprintf("Read error: %v", err)), nil, nil
	}
	return jsonResult(f), nil, nil
}

func (s *Server) handleSaveNote(ctx context.Context, req *mcp.CallToolRequest, input saveInput) (*mcp.CallToolResult, any, error) {
	if input.Vault == "" || input.Path == "" {
		return textResult("Error: vault and path are required."), nil, nil
	}
	res, err := s.Adapter.SaveFile(ctx, pathmap.VaultID(input.Vault), input.Path, input.Content, vault.SaveOptions{
		Tags:   input.Tags,
		Source: "mcp",
	})
	if err != nil {
		return textResult(fmt.Sprintf("Save error: %v", err)), nil, nil
	}
	return jsonResult(res), nil, nil
}

func (s *Server) handleVaultTree(ctx context.Context, req *mcp.CallToolRequest, input vaultInput) (*mcp.CallToolResult, any, error) {
	nodes, err := s.Adapter.Tree(ctx, vaultOrJoined(input.Vault))
	if err != nil {
		return textResult(fmt.Sprintf("Tree error: %v", err)), nil, nil
	}
	return jsonResult(nodes), nil, nil
}

func (s *Server) handleVaultGraph(ctx context.Context, req *mcp.CallToolRequest, input vaultInput) (*mcp.CallToolResult, any, error) {
	g, err := s.Adapter.Graph(ctx, vaultOrJoined(input.Vault))
	if err != nil {
		return textResult(fmt.Sprintf("Graph error: %v", err)), nil, nil
	}
	return jsonResult(g), nil, nil
}

func (s *Server) handleIndexStats(ctx context.Context, req *mcp.CallToolRequest, input emptyInput) (*mcp.CallToolResult, any, error) {
	docs, chunks, err := s.Adapter.Index.Stats()
	if err != nil {
		return textResult(fmt.Sprintf("Stats error: %v", err)), nil, nil
	}
	return jsonResult(map[string]int{"documents": docs, "chunks": chunks}), nil, nil
}

func vaultOrJoined(v string) pathmap.VaultID {
	if v == "" {
		return pathmap.VaultJoined
	}
	return pathmap.VaultID(v)
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

func jsonResult(v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return textResult(fmt.Sprintf("Encoding error: %v", err))
	}
	return textResult(string(data))
}
