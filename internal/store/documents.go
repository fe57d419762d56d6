package store

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
)

// DocumentRow is one indexed note in the private store.
type DocumentRow struct {
	ID            int64
	JoinedPath    string
	PhysicalPath  string
	Title         string
	ContentHash   string
	ByteSize      int64
	Mtime         float64
	ChunkCount    int
	LastIndexedAt string
}

// ChunkRow is one heading-scoped segment of a document. Embedding is nil
// when the chunk was indexed in lexical-only mode.
type ChunkRow struct {
	ID                int64
	DocumentID        int64
	JoinedPath        string
	ChunkIndex        int
	Heading           string
	Content           string
	NormalizedContent string
	TokenCount        int
	Embedding         []float32

	// DocTitle is the owning document's title, populated by queries that
	// join against the documents table.
	DocTitle string
}

// ReplaceDocument upserts the document row and fully replaces its chunk set
// in one transaction. Partial chunk states are never visible to readers:
// either the old chunk set or the new one, never a mix.
func (db *DB) ReplaceDocument(doc *DocumentRow, chunks []ChunkRow) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var docID int64
	err = tx.QueryRow(
		`INSERT INTO documents (joined_path, physical_path, title, content_hash, byte_size, mtime, chunk_count, last_indexed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(joined_path) DO UPDATE SET
			physical_path = excluded.physical_path,
			title = excluded.title,
			content_hash = excluded.content_hash,
			byte_size = excluded.byte_size,
			mtime = excluded.mtime,
			chunk_count = excluded.chunk_count,
			last_indexed_at = excluded.last_indexed_at
		 RETURNING id`,
		doc.JoinedPath, doc.PhysicalPath, doc.Title, doc.ContentHash,
		doc.ByteSize, doc.Mtime, len(chunks), doc.LastIndexedAt,
	).Scan(&docID)
	if err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	doc.ID = docID

	if err := deleteChunksTx(tx, docID); err != nil {
		return err
	}

	for i := range chunks {
		c := &chunks[i]
		c.DocumentID = docID
		c.JoinedPath = doc.JoinedPath
		var chunkID int64
		err = tx.QueryRow(
			`INSERT INTO chunks (document_id, joined_path, chunk_index, heading, content, normalized_content, token_count)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 RETURNING id`,
			c.DocumentID, c.JoinedPath, c.ChunkIndex, c.Heading,
			c.Content, c.NormalizedContent, c.TokenCount,
		).Scan(&chunkID)
		if err != nil {
			return fmt.Errorf("insert chunk %d: %w", c.ChunkIndex, err)
		}
		c.ID = chunkID

		if len(c.Embedding) > 0 {
			blob, err := sqlite_vec.SerializeFloat32(c.Embedding)
			if err != nil {
				return fmt.Errorf("serialize embedding for chunk %d: %w", c.ChunkIndex, err)
			}
			if _, err := tx.Exec(
				`INSERT INTO chunks_vec (chunk_id, embedding) VALUES (?, ?)`,
				chunkID, blob,
			); err != nil {
				return fmt.Errorf("insert embedding for chunk %d: %w", c.ChunkIndex, err)
			}
		}
	}

	return tx.Commit()
}

// DeleteDocument removes a document and all of its chunks.
func (db *DB) DeleteDocument(joinedPath string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var docID int64
	err = tx.QueryRow(`SELECT id FROM documents WHERE joined_path = ?`, joinedPath).Scan(&docID)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup document: %w", err)
	}

	if err := deleteChunksTx(tx, docID); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM documents WHERE id = ?`, docID); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return tx.Commit()
}

func deleteChunksTx(tx *sql.Tx, docID int64) error {
	if _, err := tx.Exec(
		`DELETE FROM chunks_vec WHERE chunk_id IN (SELECT id FROM chunks WHERE document_id = ?)`,
		docID,
	); err != nil {
		return fmt.Errorf("delete chunk embeddings: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM chunks WHERE document_id = ?`, docID); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	return nil
}

// GetDocument returns the document row for a joined path, or nil if absent.
func (db *DB) GetDocument(joinedPath string) (*DocumentRow, error) {
	var d DocumentRow
	err := db.conn.QueryRow(
		`SELECT id, joined_path, physical_path, title, content_hash, byte_size, mtime, chunk_count, last_indexed_at
		 FROM documents WHERE joined_path = ?`, joinedPath,
	).Scan(&d.ID, &d.JoinedPath, &d.PhysicalPath, &d.Title, &d.ContentHash,
		&d.ByteSize, &d.Mtime, &d.ChunkCount, &d.LastIndexedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return &d, nil
}

// ListDocuments returns every document row ordered by joined path.
func (db *DB) ListDocuments() ([]DocumentRow, error) {
	rows, err := db.conn.Query(
		`SELECT id, joined_path, physical_path, title, content_hash, byte_size, mtime, chunk_count, last_indexed_at
		 FROM documents ORDER BY joined_path`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []DocumentRow
	for rows.Next() {
		var d DocumentRow
		if err := rows.Scan(&d.ID, &d.JoinedPath, &d.PhysicalPath, &d.Title, &d.ContentHash,
			&d.ByteSize, &d.Mtime, &d.ChunkCount, &d.LastIndexedAt); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// RecentChunks returns up to limit chunks ordered most-recent document
// first. This is the bounded candidate window retrieval scans instead of
// the full corpus, trading recall for bounded latency.
func (db *DB) RecentChunks(limit int) ([]ChunkRow, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := db.conn.Query(
		`SELECT c.id, c.document_id, c.joined_path, c.chunk_index, c.heading,
			c.content, c.normalized_content, c.token_count, d.title, v.embedding
		 FROM chunks c
		 JOIN documents d ON d.id = c.document_id
		 LEFT JOIN chunks_vec v ON v.chunk_id = c.id
		 ORDER BY d.mtime DESC, c.document_id DESC, c.chunk_index ASC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent chunks: %w", err)
	}
	defer rows.Close()

	var chunks []ChunkRow
	for rows.Next() {
		var c ChunkRow
		var blob []byte
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.JoinedPath, &c.ChunkIndex, &c.Heading,
			&c.Content, &c.NormalizedContent, &c.TokenCount, &c.DocTitle, &blob); err != nil {
			return nil, err
		}
		if len(blob) > 0 {
			c.Embedding = deserializeFloat32(blob)
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// DocumentCount returns the number of indexed documents.
func (db *DB) DocumentCount() (int, error) {
	var n int
	err := db.conn.QueryRow(`SELECT COUNT(*) FROM documents`).Scan(&n)
	return n, err
}

// ChunkCount returns the number of indexed chunks.
func (db *DB) ChunkCount() (int, error) {
	var n int
	err := db.conn.QueryRow(`SELECT COUNT(*) FROM chunks`).Scan(&n)
	return n, err
}

// deserializeFloat32 decodes the little-endian float32 blob format that
// sqlite-vec stores embeddings in.
func deserializeFloat32(blob []byte) []float32 {
	n := len(blob) / 4
	vec := make([]float32, n)
	for i := 0; i < n; i++ {
		bits := binary.LittleEndian.Uint32(blob[i*4 : i*4+4])
		vec[i] = math.Float32frombits(bits)
	}
	return vec
}
