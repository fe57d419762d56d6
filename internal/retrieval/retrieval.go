// Package retrieval answers one logical query across every store a
// requested scope implies and merges the ranked results into a single
// relabeled citation list.
package retrieval

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/fleetworks/quartermaster/internal/bridge"
	"github.com/fleetworks/quartermaster/internal/pathmap"
	"github.com/fleetworks/quartermaster/internal/privindex"
)

// privateBoost is added to every private-index score before merging.
// Deliberate bias toward personal notes over shared ones.
const privateBoost = 0.15

// Scope selects which stores a merged query fans out to.
type Scope string

const (
	ScopeShip  Scope = "ship"
	ScopeFleet Scope = "fleet"
	ScopeAll   Scope = "all"
)

// Citation is one merged, relabeled hit. Path is a joined path in the
// caller's vault space.
type Citation struct {
	ID               string            `json:"id"`
	Path             string            `json:"path"`
	Title            string            `json:"title"`
	Excerpt          string            `json:"excerpt"`
	ScopeType        pathmap.ScopeType `json:"scopeType"`
	ShipDeploymentID string            `json:"shipDeploymentId,omitempty"`
	Score            float64           `json:"score"`
	LexicalScore     float64           `json:"lexicalScore"`
	SemanticScore    float64           `json:"semanticScore"`
}

// Request is one merged retrieval invocation.
type Request struct {
	Query string
	Scope Scope
	K     int
	Mode  privindex.Mode

	// DisablePrivate skips the private index even for ScopeAll.
	DisablePrivate bool

	Context pathmap.Context
}

// Response carries the merged citations and the degradation state of
// whichever constituent queries actually ran.
type Response struct {
	Citations    []Citation     `json:"citations"`
	Mode         privindex.Mode `json:"mode"`
	FallbackUsed bool           `json:"fallbackUsed"`
}

// Engine fans a query out to the shared service and the private index.
type Engine struct {
	Bridge *bridge.Client
	Index  *privindex.Index
}

// target is one shared-service query to issue.
type target struct {
	domain string
	prefix string
}

// targetsFor computes the shared-service targets a scope implies. Ship
// scope without a ship deployment id has nothing to query and returns an
// empty list rather than an error.
func targetsFor(scope Scope, ctx pathmap.Context) []target {
	switch scope {
	case ScopeShip:
		if ctx.ShipDeploymentID == "" {
			return nil
		}
		return []target{{domain: string(pathmap.DomainShip), prefix: "ship/" + ctx.ShipDeploymentID + "/"}}
	case ScopeFleet:
		return []target{{domain: string(pathmap.DomainShip), prefix: "ship/" + pathmap.FleetNamespace + "/"}}
	default:
		return []target{{}}
	}
}

// Query runs the merged retrieval: shared-service targets in parallel,
// plus the private index when scope is all, then merge, sort, truncate,
// and relabel.
func (e *Engine) Query(ctx context.Context, req Request) (*Response, error) {
	k := privindex.ClampTopK(req.K)
	if req.Mode != privindex.ModeLexical {
		req.Mode = privindex.ModeHybrid
	}

	targets := targetsFor(req.Scope, req.Context)
	if e.Bridge == nil {
		targets = nil
	}
	queryPrivate := req.Scope == ScopeAll && !req.DisablePrivate && e.Index != nil

	var mu sync.Mutex
	var merged []Citation
	publicModes := make([]string, len(targets))
	publicFallback := false
	privateMode := privindex.Mode("")
	privateFallback := false

	g, gctx := errgroup.WithContext(ctx)
	for i, tgt := range targets {
		g.Go(func() error {
			resp, err := e.Bridge.QueryMemory(gctx, bridge.QueryRequest{
				Query:  req.Query,
				Domain: tgt.domain,
				Prefix: tgt.prefix,
				K:      k,
				Mode:   string(req.Mode),
			})
			if err != nil {
				return err
			}
			cits := e.mapRemote(resp.Results, req.Scope, req.Context)
			mu.Lock()
			merged = append(merged, cits...)
			publicModes[i] = resp.Mode
			if resp.FallbackUsed {
				publicFallback = true
			}
			mu.Unlock()
			return nil
		})
	}
	if queryPrivate {
		g.Go(func() error {
			res, err := e.Index.Query(gctx, req.Query, k, req.Mode)
			if err != nil {
				return err
			}
			mu.Lock()
			for _, c := range res.Citations {
				merged = append(merged, Citation{
					Path:          c.Path,
					Title:         c.Title,
					Excerpt:       c.Excerpt,
					ScopeType:     pathmap.ScopeGlobal,
					Score:         c.Score + privateBoost,
					LexicalScore:  c.LexicalScore,
					SemanticScore: c.SemanticScore,
				})
			}
			privateMode = res.Mode
			privateFallback = res.FallbackUsed
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })
	if len(merged) > k {
		merged = merged[:k]
	}
	for i := range merged {
		merged[i].ID = "S" + strconv.Itoa(i+1)
	}
	if merged == nil {
		merged = []Citation{}
	}

	mode := req.Mode
	if req.Mode != privindex.ModeLexical {
		mode = resultMode(publicModes, privateMode, len(targets) > 0)
	}
	return &Response{
		Citations:    merged,
		Mode:         mode,
		FallbackUsed: publicFallback || privateFallback,
	}, nil
}

// resultMode picks the reported mode: the first public response when any
// public query ran, else the private response, else hybrid.
func resultMode(publicModes []string, privateMode privindex.Mode, ranPublic bool) privindex.Mode {
	if ranPublic {
		for _, m := range publicModes {
			if m != "" {
				return privindex.Mode(m)
			}
		}
	}
	if privateMode != "" {
		return privateMode
	}
	return privindex.ModeHybrid
}

// mapRemote converts shared-service citations into joined-path citations
// and drops anything whose inferred scope does not match the request.
// The shared service can over-return; the path structure is the truth.
func (e *Engine) mapRemote(results []bridge.RemoteResult, scope Scope, ctx pathmap.Context) []Citation {
	var out []Citation
	for _, r := range results {
		scopeType, shipID := pathmap.ClassifyCanonical(r.CanonicalPath)
		switch scope {
		case ScopeShip:
			if scopeType != pathmap.ScopeShip || shipID != ctx.ShipDeploymentID {
				continue
			}
		case ScopeFleet:
			if scopeType != pathmap.ScopeFleet {
				continue
			}
		}

		joined, ok := joinedFromCanonical(r.CanonicalPath, ctx)
		if !ok {
			continue
		}
		out = append(out, Citation{
			Path:             joined,
			Title:            r.Title,
			Excerpt:          r.Excerpt,
			ScopeType:        scopeType,
			ShipDeploymentID: shipID,
			Score:            r.Score,
			LexicalScore:     r.LexicalScore,
			SemanticScore:    r.SemanticScore,
		})
	}
	return out
}

// joinedFromCanonical maps a canonical path back into the caller's
// joined-path space.
func joinedFromCanonical(canonicalPath string, ctx pathmap.Context) (string, bool) {
	domain, ok := canonicalDomain(canonicalPath)
	if !ok {
		return "", false
	}
	physical, err := pathmap.FromCanonicalPath(domain, canonicalPath, ctx)
	if err != nil {
		return "", false
	}
	return pathmap.JoinedPath(pathmap.VaultFor(domain), physical), true
}

func canonicalDomain(canonicalPath string) (pathmap.Domain, bool) {
	for _, d := range pathmap.Domains {
		if len(canonicalPath) > len(d) && canonicalPath[:len(d)] == string(d) && canonicalPath[len(d)] == '/' {
			return d, true
		}
	}
	return "", false
}
