package services

import (
	"os"
	"path/filepath"
	"testing"

	"ragviet-backend/internal/config"
	"ragviet-backend/internal/vectorstore"
)

func newIngestFixture(t *testing.T, snapshotPath string) (*IngestService, *vectorstore.Store) {
	t.Helper()
	store := vectorstore.New()
	cfg := &config.Config{SnapshotPath: snapshotPath}
	return &IngestService{config: cfg, store: store}, store
}

func prepareChunks(filename, userID string, texts ...string) preparedFile {
	p := preparedFile{filename: filename, pageCount: 1}
	for i, text := range texts {
		p.chunks = append(p.chunks, vectorstore.ChunkMeta{
			Text:       text,
			Filename:   filename,
			PageNumber: 1,
			ChunkID:    i,
			UserID:     userID,
		})
		p.vectors = append(p.vectors, []float32{float32(i), 1})
	}
	return p
}

func TestIndexPreparedReplacesPreviousVersion(t *testing.T) {
	dir := t.TempDir()
	svc, store := newIngestFixture(t, filepath.Join(dir, "snap.json.gz"))

	old := prepareChunks("bao-cao.pdf", "u1", "phiên bản cũ", "trang cũ")
	if err := store.Add(old.vectors, old.chunks); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	fresh := prepareChunks("bao-cao.pdf", "u1", "phiên bản mới")
	if err := svc.indexPrepared("u1", []preparedFile{fresh}); err != nil {
		t.Fatalf("indexPrepared failed: %v", err)
	}

	if got := store.CountByUser("u1"); got != 1 {
		t.Fatalf("expected 1 chunk after re-upload, got %d", got)
	}
	stats := store.GetStats("u1")
	if stats.Files["bao-cao.pdf"] != 1 {
		t.Fatalf("expected the new version only, got %v", stats.Files)
	}
	if _, err := os.Stat(svc.config.SnapshotPath); err != nil {
		t.Fatalf("snapshot not written: %v", err)
	}
}

func TestIndexPreparedKeepsOtherUsersFiles(t *testing.T) {
	dir := t.TempDir()
	svc, store := newIngestFixture(t, filepath.Join(dir, "snap.json.gz"))

	other := prepareChunks("bao-cao.pdf", "u2", "tài liệu của người khác")
	if err := store.Add(other.vectors, other.chunks); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	mine := prepareChunks("bao-cao.pdf", "u1", "tài liệu của tôi")
	if err := svc.indexPrepared("u1", []preparedFile{mine}); err != nil {
		t.Fatalf("indexPrepared failed: %v", err)
	}

	if got := store.CountByUser("u2"); got != 1 {
		t.Fatalf("other user's chunks were touched, have %d", got)
	}
	if got := store.CountByUser("u1"); got != 1 {
		t.Fatalf("expected 1 chunk for uploader, got %d", got)
	}
}

func TestIndexPreparedRollsBackOnSnapshotFailure(t *testing.T) {
	dir := t.TempDir()
	// Make the snapshot path unusable: its parent is a regular file, so
	// MkdirAll inside Save fails.
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	svc, store := newIngestFixture(t, filepath.Join(blocker, "snap.json.gz"))

	fresh := prepareChunks("bao-cao.pdf", "u1", "một", "hai")
	if err := svc.indexPrepared("u1", []preparedFile{fresh}); err == nil {
		t.Fatal("expected snapshot failure")
	}

	if got := store.CountByUser("u1"); got != 0 {
		t.Fatalf("chunks not rolled back after failed snapshot, have %d", got)
	}
}

func TestIndexPreparedEmptyBatchWritesNothing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snap.json.gz")
	svc, _ := newIngestFixture(t, path)

	noText := preparedFile{filename: "scan.pdf", pageCount: 3}
	if err := svc.indexPrepared("u1", []preparedFile{noText}); err != nil {
		t.Fatalf("indexPrepared failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("empty batch should not write a snapshot")
	}
}
