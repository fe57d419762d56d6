package vault

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/fleetworks/quartermaster/internal/bridge"
	"github.com/fleetworks/quartermaster/internal/pathmap"
)

// Tree lists a vault's folder/file hierarchy. The joined vault fetches
// all three shared-domain trees plus the private tree in parallel and
// concatenates them, re-tagged with the joined-path convention.
func (a *Adapter) Tree(ctx context.Context, vault pathmap.VaultID) ([]Node, error) {
	switch vault {
	case pathmap.VaultAgentPrivate:
		nodes, err := a.privateTree()
		if err != nil {
			return nil, err
		}
		return nodes, nil

	case pathmap.VaultJoined:
		results := make([][]Node, len(pathmap.Domains)+1)
		g, gctx := errgroup.WithContext(ctx)
		var mu sync.Mutex
		for i, domain := range pathmap.Domains {
			g.Go(func() error {
				nodes, err := a.domainTree(gctx, pathmap.VaultJoined, domain)
				if err != nil {
					return err
				}
				mu.Lock()
				results[i] = nodes
				mu.Unlock()
				return nil
			})
		}
		g.Go(func() error {
			nodes, err := a.privateTree()
			if err != nil {
				return err
			}
			retagJoined(nodes, pathmap.VaultAgentPrivate)
			mu.Lock()
			results[len(pathmap.Domains)] = nodes
			mu.Unlock()
			return nil
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
		var all []Node
		for _, nodes := range results {
			all = append(all, nodes...)
		}
		return all, nil

	default:
		domain, err := pathmap.DomainFor(vault)
		if err != nil {
			return nil, err
		}
		return a.domainTree(ctx, vault, domain)
	}
}

// domainTree fetches one shared domain's tree and rewrites every file
// node's canonical path into the caller's path space.
func (a *Adapter) domainTree(ctx context.Context, requestVault pathmap.VaultID, domain pathmap.Domain) ([]Node, error) {
	remote, err := a.Bridge.GetTree(ctx, string(domain), "")
	if err != nil {
		return nil, err
	}
	return a.mapTreeNodes(requestVault, domain, remote), nil
}

func (a *Adapter) mapTreeNodes(requestVault pathmap.VaultID, domain pathmap.Domain, remote []bridge.TreeNode) []Node {
	var out []Node
	for _, rn := range remote {
		n := Node{Type: rn.Type, Name: rn.Name}
		if rn.Type == "file" {
			p, ok := a.canonicalToRequestSpace(requestVault, domain, rn.CanonicalPath)
			if !ok {
				continue
			}
			n.Path = p
		}
		n.Children = a.mapTreeNodes(requestVault, domain, rn.Children)
		out = append(out, n)
	}
	return out
}

// privateTree walks the private vault directory into a nested listing.
// Hidden entries and the trash prefix are skipped.
func (a *Adapter) privateTree() ([]Node, error) {
	return a.walkPrivateDir(a.Root, "")
}

func (a *Adapter) walkPrivateDir(dir, rel string) ([]Node, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var out []Node
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") || name == "_trash" {
			continue
		}
		childRel := name
		if rel != "" {
			childRel = rel + "/" + name
		}
		if e.IsDir() {
			children, err := a.walkPrivateDir(filepath.Join(dir, name), childRel)
			if err != nil {
				return nil, err
			}
			out = append(out, Node{Type: "folder", Name: name, Children: children})
			continue
		}
		if !strings.EqualFold(filepath.Ext(name), ".md") {
			continue
		}
		out = append(out, Node{Type: "file", Name: name, Path: childRel})
	}
	return out, nil
}

// retagJoined rewrites file paths into the joined-path convention.
func retagJoined(nodes []Node, vault pathmap.VaultID) {
	for i := range nodes {
		if nodes[i].Type == "file" {
			nodes[i].Path = pathmap.JoinedPath(vault, nodes[i].Path)
		}
		retagJoined(nodes[i].Children, vault)
	}
}
