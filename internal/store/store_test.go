package store

import (
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenMemory(4)
	if err != nil {
		t.Fatalf("open memory db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestReplaceDocumentSwapsChunkSet(t *testing.T) {
	db := openTestDB(t)

	doc := DocumentRow{JoinedPath: "agent-private:notes/a.md", PhysicalPath: "/v/notes/a.md", Title: "A", Mtime: 1}
	err := db.ReplaceDocument(&doc, []ChunkRow{
		{ChunkIndex: 0, Content: "one", NormalizedContent: "one"},
		{ChunkIndex: 1, Content: "two", NormalizedContent: "two", Embedding: []float32{1, 0, 0, 0}},
	})
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if doc.ID == 0 {
		t.Error("document ID not backfilled")
	}

	// Reindex with a smaller chunk set; the old chunks must vanish.
	doc2 := DocumentRow{JoinedPath: "agent-private:notes/a.md", PhysicalPath: "/v/notes/a.md", Title: "A", Mtime: 2}
	err = db.ReplaceDocument(&doc2, []ChunkRow{
		{ChunkIndex: 0, Content: "new", NormalizedContent: "new"},
	})
	if err != nil {
		t.Fatalf("replace again: %v", err)
	}
	if doc2.ID != doc.ID {
		t.Errorf("upsert created a new row: %d vs %d", doc2.ID, doc.ID)
	}

	chunks, err := db.RecentChunks(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 1 {
		t.Fatalf("chunk count = %d, want 1", len(chunks))
	}
	if chunks[0].Content != "new" {
		t.Errorf("stale chunk survived: %q", chunks[0].Content)
	}

	got, err := db.GetDocument("agent-private:notes/a.md")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.ChunkCount != 1 {
		t.Errorf("chunk_count not updated: %+v", got)
	}
}

func TestRecentChunksOrderAndEmbedding(t *testing.T) {
	db := openTestDB(t)

	older := DocumentRow{JoinedPath: "agent-private:notes/old.md", PhysicalPath: "/v/old.md", Title: "Old", Mtime: 100}
	if err := db.ReplaceDocument(&older, []ChunkRow{
		{ChunkIndex: 0, Content: "old", NormalizedContent: "old"},
	}); err != nil {
		t.Fatal(err)
	}

	vec := []float32{0.5, -1.25, 0, 2}
	newer := DocumentRow{JoinedPath: "agent-private:notes/new.md", PhysicalPath: "/v/new.md", Title: "New", Mtime: 200}
	if err := db.ReplaceDocument(&newer, []ChunkRow{
		{ChunkIndex: 0, Content: "new", NormalizedContent: "new", Embedding: vec},
	}); err != nil {
		t.Fatal(err)
	}

	chunks, err := db.RecentChunks(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 2 {
		t.Fatalf("chunk count = %d", len(chunks))
	}
	if chunks[0].JoinedPath != "agent-private:notes/new.md" {
		t.Errorf("most recent document not first: %s", chunks[0].JoinedPath)
	}
	if chunks[0].DocTitle != "New" {
		t.Errorf("doc title not joined: %q", chunks[0].DocTitle)
	}

	got := chunks[0].Embedding
	if len(got) != len(vec) {
		t.Fatalf("embedding dims = %d, want %d", len(got), len(vec))
	}
	for i := range vec {
		if got[i] != vec[i] {
			t.Errorf("embedding[%d] = %v, want %v", i, got[i], vec[i])
		}
	}
	if chunks[1].Embedding != nil {
		t.Error("lexical-only chunk should have nil embedding")
	}
}

func TestRecentChunksZeroLimit(t *testing.T) {
	db := openTestDB(t)
	chunks, err := db.RecentChunks(0)
	if err != nil {
		t.Fatal(err)
	}
	if chunks != nil {
		t.Errorf("expected nil for zero limit, got %d chunks", len(chunks))
	}
}

func TestDeleteDocumentIdempotent(t *testing.T) {
	db := openTestDB(t)

	doc := DocumentRow{JoinedPath: "agent-private:notes/a.md", PhysicalPath: "/v/a.md"}
	if err := db.ReplaceDocument(&doc, []ChunkRow{
		{ChunkIndex: 0, Content: "x", NormalizedContent: "x"},
	}); err != nil {
		t.Fatal(err)
	}

	if err := db.DeleteDocument("agent-private:notes/a.md"); err != nil {
		t.Fatal(err)
	}
	if n, _ := db.DocumentCount(); n != 0 {
		t.Errorf("documents remain: %d", n)
	}
	if n, _ := db.ChunkCount(); n != 0 {
		t.Errorf("chunks remain: %d", n)
	}

	// Deleting a path that does not exist is a no-op.
	if err := db.DeleteDocument("agent-private:notes/a.md"); err != nil {
		t.Errorf("second delete errored: %v", err)
	}
}

func TestPutSignerFirstWriteWins(t *testing.T) {
	db := openTestDB(t)

	first := &SignerRow{UserID: "u1", KeyRef: "usr_mem:u1", Address: "0xaaa"}
	if err := db.PutSigner(first); err != nil {
		t.Fatal(err)
	}

	// A concurrent provisioner losing the race must not overwrite.
	second := &SignerRow{UserID: "u1", KeyRef: "usr_mem:u1", Address: "0xbbb"}
	if err := db.PutSigner(second); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetSigner("u1")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.Address != "0xaaa" {
		t.Errorf("winner row overwritten: %+v", got)
	}
}

func TestGetSignerMissing(t *testing.T) {
	db := openTestDB(t)
	got, err := db.GetSigner("nobody")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("expected nil for missing signer, got %+v", got)
	}
}

func TestMetaRoundTrip(t *testing.T) {
	db := openTestDB(t)
	if got := db.GetMeta("missing"); got != "" {
		t.Errorf("missing meta = %q", got)
	}
	if err := db.SetMeta("schema", "1"); err != nil {
		t.Fatal(err)
	}
	if err := db.SetMeta("schema", "2"); err != nil {
		t.Fatal(err)
	}
	if got := db.GetMeta("schema"); got != "2" {
		t.Errorf("meta = %q, want 2", got)
	}
}
