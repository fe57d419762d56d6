// Package privindex maintains the encrypted private note index and serves
// lexical and hybrid queries over it.
package privindex

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/frontmatter"

	"github.com/fleetworks/quartermaster/internal/config"
	"github.com/fleetworks/quartermaster/internal/embedding"
	"github.com/fleetworks/quartermaster/internal/pathmap"
	"github.com/fleetworks/quartermaster/internal/sealed"
	"github.com/fleetworks/quartermaster/internal/store"
)

// ErrEncryptionRequired is returned when plaintext content is found while
// the index is configured to accept only sealed envelopes.
var ErrEncryptionRequired = errors.New("note is not encrypted and encryption is required")

// NoteMeta holds the frontmatter fields the index cares about.
type NoteMeta struct {
	Title string   `yaml:"title"`
	Tags  []string `yaml:"tags"`
}

// Config wires an Index to its storage, embedding, and decryption layers.
type Config struct {
	DB       *store.DB
	Provider embedding.Provider
	Codec    *sealed.Codec

	// Root is the private vault directory joined paths resolve under.
	Root string
	// Skip lists directory names excluded from sync walks.
	Skip map[string]bool
	// RequireEncryption rejects plaintext notes during indexing.
	RequireEncryption bool
}

// Index reads private notes from disk and keeps their chunk rows and
// embeddings current in the store.
type Index struct {
	cfg Config
}

func New(cfg Config) *Index {
	return &Index{cfg: cfg}
}

// filePath resolves a joined path like "agent-private:notes/a.md" to its
// location under the private vault root.
func (ix *Index) filePath(joinedPath string) (string, error) {
	vault, inner, err := pathmap.SplitJoinedPath(joinedPath)
	if err != nil {
		return "", err
	}
	if vault != pathmap.VaultAgentPrivate {
		return "", fmt.Errorf("joined path %q is not in the private vault", joinedPath)
	}
	rel, err := pathmap.NormalizePath(inner)
	if err != nil {
		return "", fmt.Errorf("joined path %q: %w", joinedPath, err)
	}
	return filepath.Join(ix.cfg.Root, filepath.FromSlash(rel)), nil
}

// UpsertJoinedPath reads, decrypts, chunks, and embeds the note at the
// given joined path, replacing any prior rows for it. A missing file is
// treated as a delete. Embedding failures are reported on stderr and the
// note is kept indexed for lexical search.
func (ix *Index) UpsertJoinedPath(ctx context.Context, joinedPath string) error {
	path, err := ix.filePath(joinedPath)
	if err != nil {
		return err
	}

	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return ix.DeleteJoinedPath(joinedPath)
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if ix.cfg.RequireEncryption && !sealed.IsEnvelope(raw) {
		return fmt.Errorf("%s: %w", joinedPath, ErrEncryptionRequired)
	}
	plain, err := sealed.Open(raw, ix.cfg.Codec)
	if err != nil {
		if ix.cfg.RequireEncryption {
			return fmt.Errorf("decrypt %s: %w", joinedPath, err)
		}
		// Without a required-encryption policy the stored bytes are
		// indexed as-is rather than losing the note.
		fmt.Fprintf(os.Stderr, "qm: warning: decrypt %s failed, indexing stored bytes: %v\n", joinedPath, err)
		plain = raw
	}

	var meta NoteMeta
	body, err := frontmatter.Parse(strings.NewReader(string(plain)), &meta)
	if err != nil {
		// Malformed frontmatter indexes as plain body.
		body = plain
		meta = NoteMeta{}
	}
	title := meta.Title
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), ".md")
	}

	hash := sha256.Sum256(plain)
	doc := store.DocumentRow{
		JoinedPath:    joinedPath,
		PhysicalPath:  path,
		Title:         title,
		ContentHash:   hex.EncodeToString(hash[:]),
		ByteSize:      info.Size(),
		Mtime:         float64(info.ModTime().UnixNano()) / 1e9,
		LastIndexedAt: time.Now().UTC().Format(time.RFC3339),
	}

	chunks := ChunkByHeadings(string(body))
	rows := make([]store.ChunkRow, 0, len(chunks))
	for i, c := range chunks {
		rows = append(rows, store.ChunkRow{
			JoinedPath:        joinedPath,
			ChunkIndex:        i,
			Heading:           c.Heading,
			Content:           c.Text,
			NormalizedContent: normalizeContent(c.Heading + " " + c.Text),
			TokenCount:        estimateTokens(c.Text),
		})
	}

	if ix.cfg.Provider != nil {
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			text := c.Heading + "\n" + c.Text
			if len(text) > config.MaxEmbedChars {
				text = text[:config.MaxEmbedChars]
			}
			texts[i] = text
		}
		vecs, err := ix.cfg.Provider.EmbedDocuments(ctx, texts)
		if err != nil {
			fmt.Fprintf(os.Stderr, "qm: warning: embedding %s failed, keeping lexical index: %v\n", joinedPath, err)
		} else {
			for i := range rows {
				rows[i].Embedding = vecs[i]
			}
		}
	}

	if err := ix.cfg.DB.ReplaceDocument(&doc, rows); err != nil {
		return fmt.Errorf("index %s: %w", joinedPath, err)
	}
	return nil
}

// Documents lists every indexed private document.
func (ix *Index) Documents() ([]store.DocumentRow, error) {
	return ix.cfg.DB.ListDocuments()
}

// Stats reports the current index size.
func (ix *Index) Stats() (docs, chunks int, err error) {
	if docs, err = ix.cfg.DB.DocumentCount(); err != nil {
		return 0, 0, err
	}
	if chunks, err = ix.cfg.DB.ChunkCount(); err != nil {
		return 0, 0, err
	}
	return docs, chunks, nil
}

// DeleteJoinedPath removes the note's document and chunk rows.
func (ix *Index) DeleteJoinedPath(joinedPath string) error {
	return ix.cfg.DB.DeleteDocument(joinedPath)
}

// SyncPaths reindexes a batch of joined paths, processing deletes before
// upserts so a move lands in its final state. Paths outside the private
// vault are skipped. The first upsert error is returned after the whole
// batch is attempted.
func (ix *Index) SyncPaths(ctx context.Context, joinedPaths []string) error {
	seen := make(map[string]bool, len(joinedPaths))
	var deletes, upserts []string
	for _, jp := range joinedPaths {
		if seen[jp] {
			continue
		}
		seen[jp] = true
		path, err := ix.filePath(jp)
		if err != nil {
			continue
		}
		if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
			deletes = append(deletes, jp)
		} else {
			upserts = append(upserts, jp)
		}
	}

	var firstErr error
	for _, jp := range deletes {
		if err := ix.DeleteJoinedPath(jp); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, jp := range upserts {
		if err := ix.UpsertJoinedPath(ctx, jp); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// SyncAll walks the private vault root and reindexes every markdown file,
// dropping rows for files that no longer exist.
func (ix *Index) SyncAll(ctx context.Context) error {
	known := make(map[string]bool)
	docs, err := ix.cfg.DB.ListDocuments()
	if err != nil {
		return err
	}
	for _, d := range docs {
		known[d.JoinedPath] = true
	}

	var paths []string
	err = filepath.WalkDir(ix.cfg.Root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if ix.cfg.Skip[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(path), ".md") {
			return nil
		}
		rel, err := filepath.Rel(ix.cfg.Root, path)
		if err != nil {
			return err
		}
		jp := pathmap.JoinedPath(pathmap.VaultAgentPrivate, filepath.ToSlash(rel))
		paths = append(paths, jp)
		delete(known, jp)
		return nil
	})
	if err != nil {
		return fmt.Errorf("walk %s: %w", ix.cfg.Root, err)
	}

	for jp := range known {
		if err := ix.DeleteJoinedPath(jp); err != nil {
			return err
		}
	}
	return ix.SyncPaths(ctx, paths)
}
