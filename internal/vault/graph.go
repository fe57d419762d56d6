package vault

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/fleetworks/quartermaster/internal/pathmap"
)

// GraphNode is a note or ghost node; ghost nodes are link targets with
// no backing document.
type GraphNode struct {
	ID    string `json:"id"`
	Path  string `json:"path"`
	Title string `json:"title"`
	Ghost bool   `json:"ghost"`
}

// GraphEdge is a directed link between node IDs.
type GraphEdge struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Resolved bool   `json:"resolved"`
}

// GraphStats aggregates the node and edge counts of a graph.
type GraphStats struct {
	Notes      int `json:"notes"`
	Ghosts     int `json:"ghosts"`
	Edges      int `json:"edges"`
	Unresolved int `json:"unresolved"`
}

// Graph is the link graph of one vault view.
type Graph struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
	Stats GraphStats  `json:"stats"`
}

// Graph returns a vault's link graph. The joined view concatenates the
// shared-domain graphs and the private graph, then recomputes aggregate
// stats from the concatenated sets rather than summing sub-results, so
// overlapping node spaces cannot double-count.
func (a *Adapter) Graph(ctx context.Context, vault pathmap.VaultID) (*Graph, error) {
	switch vault {
	case pathmap.VaultAgentPrivate:
		return a.privateGraph(ctx, vault)

	case pathmap.VaultJoined:
		graphs := make([]*Graph, len(pathmap.Domains)+1)
		g, gctx := errgroup.WithContext(ctx)
		var mu sync.Mutex
		for i, domain := range pathmap.Domains {
			g.Go(func() error {
				dg, err := a.domainGraph(gctx, pathmap.VaultJoined, domain)
				if err != nil {
					return err
				}
				mu.Lock()
				graphs[i] = dg
				mu.Unlock()
				return nil
			})
		}
		g.Go(func() error {
			pg, err := a.privateGraph(gctx, pathmap.VaultJoined)
			if err != nil {
				return err
			}
			mu.Lock()
			graphs[len(pathmap.Domains)] = pg
			mu.Unlock()
			return nil
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}

		merged := &Graph{}
		for _, sub := range graphs {
			merged.Nodes = append(merged.Nodes, sub.Nodes...)
			merged.Edges = append(merged.Edges, sub.Edges...)
		}
		merged.Stats = computeStats(merged.Nodes, merged.Edges)
		return merged, nil

	default:
		domain, err := pathmap.DomainFor(vault)
		if err != nil {
			return nil, err
		}
		return a.domainGraph(ctx, vault, domain)
	}
}

// domainGraph fetches one shared domain's graph and rewrites node paths
// into the caller's space.
func (a *Adapter) domainGraph(ctx context.Context, requestVault pathmap.VaultID, domain pathmap.Domain) (*Graph, error) {
	remote, err := a.Bridge.GetGraph(ctx, string(domain), "", true)
	if err != nil {
		return nil, err
	}
	out := &Graph{
		Stats: GraphStats(remote.Stats),
	}
	for _, n := range remote.Nodes {
		p, ok := a.canonicalToRequestSpace(requestVault, domain, n.CanonicalPath)
		if !ok {
			p = n.CanonicalPath
		}
		out.Nodes = append(out.Nodes, GraphNode{ID: n.ID, Path: p, Title: n.Title, Ghost: n.Ghost})
	}
	for _, e := range remote.Edges {
		out.Edges = append(out.Edges, GraphEdge{From: e.From, To: e.To, Resolved: e.Resolved})
	}
	return out, nil
}

// privateGraph builds the private vault's link graph from indexed
// documents and the links embedded in their content.
func (a *Adapter) privateGraph(ctx context.Context, requestVault pathmap.VaultID) (*Graph, error) {
	docs, err := a.Index.Documents()
	if err != nil {
		return nil, err
	}

	present := func(rel string) string {
		return presentPath(requestVault, pathmap.VaultAgentPrivate, rel)
	}

	out := &Graph{}
	nodeIDs := make(map[string]string)
	for _, d := range docs {
		rel := strings.TrimPrefix(d.JoinedPath, string(pathmap.VaultAgentPrivate)+":")
		id := present(rel)
		nodeIDs[rel] = id
		out.Nodes = append(out.Nodes, GraphNode{ID: id, Path: id, Title: d.Title, Ghost: false})
	}

	ghosts := make(map[string]bool)
	for _, d := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rel := strings.TrimPrefix(d.JoinedPath, string(pathmap.VaultAgentPrivate)+":")
		content, _, err := a.readPrivate(rel)
		if err != nil {
			continue
		}
		for _, linkRel := range extractNoteLinks(content) {
			toID, resolved := nodeIDs[linkRel]
			if !resolved {
				toID = present(linkRel)
				if !ghosts[linkRel] {
					ghosts[linkRel] = true
					out.Nodes = append(out.Nodes, GraphNode{
						ID:    toID,
						Path:  toID,
						Title: titleFromPath(linkRel),
						Ghost: true,
					})
				}
			}
			out.Edges = append(out.Edges, GraphEdge{From: nodeIDs[rel], To: toID, Resolved: resolved})
		}
	}

	out.Stats = computeStats(out.Nodes, out.Edges)
	return out, nil
}

func computeStats(nodes []GraphNode, edges []GraphEdge) GraphStats {
	var s GraphStats
	for _, n := range nodes {
		if n.Ghost {
			s.Ghosts++
		} else {
			s.Notes++
		}
	}
	s.Edges = len(edges)
	for _, e := range edges {
		if !e.Resolved {
			s.Unresolved++
		}
	}
	return s
}

// Link syntax recognized in private notes.
var (
	reWikiLink     = regexp.MustCompile(`\[\[([^\]|#]+)(?:[|#][^\]]*)?\]\]`)
	reMarkdownLink = regexp.MustCompile(`\]\(([^)\s:]+\.md)\)`)
)

// extractNoteLinks finds note-to-note link targets in markdown content,
// normalized to relative .md paths.
func extractNoteLinks(content string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(raw string) {
		raw = strings.TrimSpace(raw)
		raw = strings.TrimPrefix(raw, "./")
		if raw == "" {
			return
		}
		if !strings.HasSuffix(strings.ToLower(raw), ".md") {
			raw += ".md"
		}
		if p, err := pathmap.NormalizePath(raw); err == nil && !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	for _, m := range reWikiLink.FindAllStringSubmatch(content, -1) {
		add(m[1])
	}
	for _, m := range reMarkdownLink.FindAllStringSubmatch(content, -1) {
		add(m[1])
	}
	sort.Strings(out)
	return out
}

// privateBacklinks lists private notes that link to rel.
func (a *Adapter) privateBacklinks(ctx context.Context, rel string) ([]string, error) {
	g, err := a.privateGraph(ctx, pathmap.VaultAgentPrivate)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range g.Edges {
		if e.To == rel && e.From != rel {
			out = append(out, e.From)
		}
	}
	sort.Strings(out)
	return out, nil
}
