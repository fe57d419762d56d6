package vault

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fleetworks/quartermaster/internal/bridge"
	"github.com/fleetworks/quartermaster/internal/pathmap"
)

// ReadFile fetches one note. Shared-domain responses have their link sets
// translated back into the caller's path space.
func (a *Adapter) ReadFile(ctx context.Context, vault pathmap.VaultID, notePath string) (*File, error) {
	target, err := pathmap.ResolvePhysicalTarget(vault, notePath)
	if err != nil {
		return nil, err
	}

	if target.Vault == pathmap.VaultAgentPrivate {
		content, rel, err := a.readPrivate(target.Path)
		if err != nil {
			return nil, err
		}
		links := extractNoteLinks(content)
		backlinks, err := a.privateBacklinks(ctx, rel)
		if err != nil {
			return nil, err
		}
		return &File{
			Path:      presentPath(vault, target.Vault, rel),
			Title:     titleFromPath(rel),
			Content:   content,
			Links:     presentAll(vault, target.Vault, links),
			Backlinks: presentAll(vault, target.Vault, backlinks),
		}, nil
	}

	ref, err := pathmap.ToCanonicalPath(target.Vault, target.Path, a.Ctx)
	if err != nil {
		return nil, err
	}
	doc, err := a.Bridge.GetFile(ctx, string(ref.Domain), ref.CanonicalPath)
	if err != nil {
		return nil, err
	}

	f := &File{
		Path:    presentPath(vault, target.Vault, target.Path),
		Title:   doc.Title,
		Content: doc.ContentMarkdown,
	}
	if f.Title == "" {
		f.Title = titleFromPath(target.Path)
	}
	for _, l := range doc.Links {
		if p, ok := a.canonicalToRequestSpace(vault, ref.Domain, l); ok {
			f.Links = append(f.Links, p)
		}
	}
	for _, b := range doc.Backlinks {
		if p, ok := a.canonicalToRequestSpace(vault, ref.Domain, b); ok {
			f.Backlinks = append(f.Backlinks, p)
		}
	}
	return f, nil
}

// SaveOptions carries write metadata through to the bridge envelope.
type SaveOptions struct {
	Tags      []string
	Citations []string
	Source    string
}

// SaveFile writes a note. Private notes go straight to disk and the
// index; shared notes become signed bridge envelopes.
func (a *Adapter) SaveFile(ctx context.Context, vault pathmap.VaultID, notePath, content string, opts SaveOptions) (*bridge.WriteResult, error) {
	target, err := pathmap.ResolvePhysicalTarget(vault, notePath)
	if err != nil {
		return nil, err
	}

	if target.Vault == pathmap.VaultAgentPrivate {
		rel, err := a.writePrivate(target.Path, content)
		if err != nil {
			return nil, err
		}
		if a.Index != nil {
			if err := a.Index.UpsertJoinedPath(ctx, pathmap.JoinedPath(target.Vault, rel)); err != nil {
				return nil, err
			}
		}
		return &bridge.WriteResult{}, nil
	}

	ref, err := pathmap.ToCanonicalPath(target.Vault, target.Path, a.Ctx)
	if err != nil {
		return nil, err
	}
	return a.Bridge.UpsertMemory(ctx, string(ref.Domain), ref.CanonicalPath, content, bridge.WriteOptions{
		UserID:    a.Ctx.UserID,
		Tags:      opts.Tags,
		Citations: opts.Citations,
		Source:    opts.Source,
	})
}

// MoveFile relocates a note inside one physical vault. Cross-vault moves
// fail with ErrCrossVaultMove.
func (a *Adapter) MoveFile(ctx context.Context, vault pathmap.VaultID, fromPath, toPath string) (*bridge.WriteResult, error) {
	from, err := pathmap.ResolvePhysicalTarget(vault, fromPath)
	if err != nil {
		return nil, err
	}
	to, err := pathmap.ResolvePhysicalTarget(vault, toPath)
	if err != nil {
		return nil, err
	}
	if from.Vault != to.Vault {
		return nil, fmt.Errorf("%w: %s -> %s", ErrCrossVaultMove, from.Vault, to.Vault)
	}

	if from.Vault == pathmap.VaultAgentPrivate {
		srcPath, srcRel, err := a.privateFilePath(from.Path)
		if err != nil {
			return nil, err
		}
		dstPath, dstRel, err := a.privateFilePath(to.Path)
		if err != nil {
			return nil, err
		}
		if _, err := os.Stat(srcPath); errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, srcRel)
		}
		if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
			return nil, err
		}
		if err := os.Rename(srcPath, dstPath); err != nil {
			return nil, fmt.Errorf("move %s: %w", srcRel, err)
		}
		if a.Index != nil {
			err := a.Index.SyncPaths(ctx, []string{
				pathmap.JoinedPath(from.Vault, srcRel),
				pathmap.JoinedPath(to.Vault, dstRel),
			})
			if err != nil {
				return nil, err
			}
		}
		return &bridge.WriteResult{}, nil
	}

	fromRef, err := pathmap.ToCanonicalPath(from.Vault, from.Path, a.Ctx)
	if err != nil {
		return nil, err
	}
	toRef, err := pathmap.ToCanonicalPath(to.Vault, to.Path, a.Ctx)
	if err != nil {
		return nil, err
	}
	return a.Bridge.MoveMemory(ctx, string(fromRef.Domain), fromRef.CanonicalPath, toRef.CanonicalPath, bridge.WriteOptions{
		UserID: a.Ctx.UserID,
	})
}

// DeleteFile removes a note. Soft deletes relocate the document under a
// timestamped _trash/ prefix so content survives; hard deletes remove it.
func (a *Adapter) DeleteFile(ctx context.Context, vault pathmap.VaultID, notePath string, soft bool) (*bridge.WriteResult, error) {
	target, err := pathmap.ResolvePhysicalTarget(vault, notePath)
	if err != nil {
		return nil, err
	}

	if soft {
		trashed := trashPath(target.Path, time.Now().UTC())
		res, err := a.MoveFile(ctx, target.Vault, target.Path, trashed)
		if err != nil {
			return nil, err
		}
		// Trash keeps the content on disk but drops out of the index.
		if target.Vault == pathmap.VaultAgentPrivate && a.Index != nil {
			if _, rel, perr := a.privateFilePath(trashed); perr == nil {
				if derr := a.Index.DeleteJoinedPath(pathmap.JoinedPath(target.Vault, rel)); derr != nil {
					return nil, derr
				}
			}
		}
		return res, nil
	}

	if target.Vault == pathmap.VaultAgentPrivate {
		path, rel, err := a.privateFilePath(target.Path)
		if err != nil {
			return nil, err
		}
		if err := os.Remove(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", ErrNotFound, rel)
			}
			return nil, err
		}
		if a.Index != nil {
			if err := a.Index.DeleteJoinedPath(pathmap.JoinedPath(target.Vault, rel)); err != nil {
				return nil, err
			}
		}
		return &bridge.WriteResult{}, nil
	}

	ref, err := pathmap.ToCanonicalPath(target.Vault, target.Path, a.Ctx)
	if err != nil {
		return nil, err
	}
	return a.Bridge.DeleteMemory(ctx, string(ref.Domain), ref.CanonicalPath, bridge.WriteOptions{
		UserID: a.Ctx.UserID,
	})
}

// trashPath prefixes a physical path with a timestamped _trash segment.
func trashPath(physicalPath string, now time.Time) string {
	return "_trash/" + now.Format("20060102T150405Z") + "/" + physicalPath
}

func presentAll(requestVault, physVault pathmap.VaultID, paths []string) []string {
	if len(paths) == 0 {
		return nil
	}
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		out = append(out, presentPath(requestVault, physVault, p))
	}
	return out
}
