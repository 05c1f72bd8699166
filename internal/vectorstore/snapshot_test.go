package vectorstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestSnapshotRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.json.gz")

	s := New()
	addChunks(t, s, "u1", "a.pdf", 1, 2, 3)
	addChunks(t, s, "u2", "b.pdf", 1)
	if err := s.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded := New()
	if err := loaded.Load(path); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Len() != s.Len() {
		t.Fatalf("loaded %d chunks, want %d", loaded.Len(), s.Len())
	}
	if loaded.Dimension() != s.Dimension() {
		t.Fatalf("loaded dimension %d, want %d", loaded.Dimension(), s.Dimension())
	}

	// Search behaves identically on the restored store.
	before, err := s.Search(vec(0, 1, 0), 3, "u1", "")
	if err != nil {
		t.Fatalf("Search on original failed: %v", err)
	}
	after, err := loaded.Search(vec(0, 1, 0), 3, "u1", "")
	if err != nil {
		t.Fatalf("Search on restored failed: %v", err)
	}
	if len(before) != len(after) {
		t.Fatalf("result counts differ: %d vs %d", len(before), len(after))
	}
	for i := range before {
		if before[i].ChunkMeta != after[i].ChunkMeta {
			t.Fatalf("result %d differs after reload: %+v vs %+v", i, before[i], after[i])
		}
	}
}

func TestLoadMissingFileStartsEmpty(t *testing.T) {
	s := New()
	if err := s.Load(filepath.Join(t.TempDir(), "missing.json.gz")); err != nil {
		t.Fatalf("missing snapshot should not be an error, got %v", err)
	}
	if s.Len() != 0 {
		t.Fatalf("store not empty: %d", s.Len())
	}
}

func TestLoadCorruptFileReturnsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.json.gz")
	if err := os.WriteFile(path, []byte("not a gzip stream"), 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	s := New()
	if err := s.Load(path); err == nil {
		t.Fatal("expected error for corrupt snapshot")
	}
}

func TestSaveConcurrentWithDelete(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.json.gz")

	s := New()
	for i := 0; i < 50; i++ {
		addChunks(t, s, "u1", fmt.Sprintf("doc-%d.pdf", i), 1, 2, 3)
	}
	addChunks(t, s, "u1", "keep.pdf", 1)

	// Snapshots race against deletes rebuilding the row slices; every
	// serialized state must still be internally consistent.
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			if err := s.Save(path); err != nil {
				t.Errorf("Save failed: %v", err)
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			s.DeleteByFilename(fmt.Sprintf("doc-%d.pdf", i), "u1")
		}
	}()
	wg.Wait()

	if err := s.Save(path); err != nil {
		t.Fatalf("final Save failed: %v", err)
	}
	loaded := New()
	if err := loaded.Load(path); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Len() != 1 || loaded.Filenames("u1")[0] != "keep.pdf" {
		t.Fatalf("final snapshot inconsistent: %d chunks, files %v", loaded.Len(), loaded.Filenames("u1"))
	}
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.json.gz")

	s := New()
	addChunks(t, s, "u1", "a.pdf", 1)
	if err := s.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "store.json.gz" {
		t.Fatalf("unexpected directory contents: %v", entries)
	}
}
