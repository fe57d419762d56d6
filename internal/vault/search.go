package vault

import (
	"context"
	"sort"
	"strings"

	"github.com/fleetworks/quartermaster/internal/bridge"
	"github.com/fleetworks/quartermaster/internal/pathmap"
	"github.com/fleetworks/quartermaster/internal/privindex"
	"github.com/fleetworks/quartermaster/internal/retrieval"
)

// SearchHit is one ranked document in the caller's path space.
type SearchHit struct {
	Path    string  `json:"path"`
	Title   string  `json:"title"`
	Excerpt string  `json:"excerpt"`
	Score   float64 `json:"score"`
}

// SearchRequest scopes a vault search.
type SearchRequest struct {
	Query string
	K     int
	Mode  privindex.Mode
	// Scope applies to joined-vault searches only.
	Scope retrieval.Scope
}

// Search queries one vault. The private vault uses the local index, a
// single shared vault queries its one domain, and the joined vault runs
// the merged engine and deduplicates on final path.
func (a *Adapter) Search(ctx context.Context, vault pathmap.VaultID, req SearchRequest) ([]SearchHit, error) {
	k := privindex.ClampTopK(req.K)

	switch vault {
	case pathmap.VaultAgentPrivate:
		results, _, err := a.Index.Search(ctx, req.Query, k, req.Mode)
		if err != nil {
			return nil, err
		}
		hits := make([]SearchHit, 0, len(results))
		for _, r := range results {
			hits = append(hits, SearchHit{
				Path:    strings.TrimPrefix(r.Path, string(pathmap.VaultAgentPrivate)+":"),
				Title:   r.Title,
				Excerpt: r.Excerpt,
				Score:   r.Score,
			})
		}
		return hits, nil

	case pathmap.VaultJoined:
		scope := req.Scope
		if scope == "" {
			scope = retrieval.ScopeAll
		}
		engine := &retrieval.Engine{Bridge: a.Bridge, Index: a.Index}
		resp, err := engine.Query(ctx, retrieval.Request{
			Query:   req.Query,
			Scope:   scope,
			K:       k,
			Mode:    req.Mode,
			Context: a.Ctx,
		})
		if err != nil {
			return nil, err
		}
		return dedupeHits(citationHits(resp.Citations), k), nil

	default:
		domain, err := pathmap.DomainFor(vault)
		if err != nil {
			return nil, err
		}
		resp, err := a.Bridge.QueryMemory(ctx, bridge.QueryRequest{
			Query:  req.Query,
			Domain: string(domain),
			K:      k,
			Mode:   string(req.Mode),
		})
		if err != nil {
			return nil, err
		}
		var hits []SearchHit
		for _, r := range resp.Results {
			p, ok := a.canonicalToRequestSpace(vault, domain, r.CanonicalPath)
			if !ok {
				continue
			}
			hits = append(hits, SearchHit{Path: p, Title: r.Title, Excerpt: r.Excerpt, Score: r.Score})
		}
		sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
		if len(hits) > k {
			hits = hits[:k]
		}
		return hits, nil
	}
}

func citationHits(cits []retrieval.Citation) []SearchHit {
	hits := make([]SearchHit, 0, len(cits))
	for _, c := range cits {
		hits = append(hits, SearchHit{Path: c.Path, Title: c.Title, Excerpt: c.Excerpt, Score: c.Score})
	}
	return hits
}

// dedupeHits keeps the first occurrence per path. Input must already be
// in ranking order.
func dedupeHits(hits []SearchHit, k int) []SearchHit {
	seen := make(map[string]bool, len(hits))
	out := make([]SearchHit, 0, len(hits))
	for _, h := range hits {
		if seen[h.Path] {
			continue
		}
		seen[h.Path] = true
		out = append(out, h)
	}
	if len(out) > k {
		out = out[:k]
	}
	return out
}
