package vectorstore

import (
	"testing"
)

func vec(vals ...float32) []float32 { return vals }

func addChunks(t *testing.T, s *Store, userID, filename string, pages ...int) {
	t.Helper()
	var vectors [][]float32
	var metas []ChunkMeta
	for i, p := range pages {
		vectors = append(vectors, vec(float32(i), float32(p), 0))
		metas = append(metas, ChunkMeta{
			Text:       "chunk",
			Filename:   filename,
			PageNumber: p,
			ChunkID:    i,
			UserID:     userID,
		})
	}
	if err := s.Add(vectors, metas); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
}

func TestAddRejectsMismatchedLengths(t *testing.T) {
	s := New()
	err := s.Add([][]float32{vec(1, 2, 3)}, nil)
	if err == nil {
		t.Fatal("expected error for mismatched vector/metadata lengths")
	}
}

func TestAddFixesDimension(t *testing.T) {
	s := New()
	if err := s.Add([][]float32{vec(1, 2, 3)}, []ChunkMeta{{UserID: "u1"}}); err != nil {
		t.Fatalf("first add failed: %v", err)
	}
	if got := s.Dimension(); got != 3 {
		t.Fatalf("Dimension = %d, want 3", got)
	}
	err := s.Add([][]float32{vec(1, 2)}, []ChunkMeta{{UserID: "u1"}})
	if err == nil {
		t.Fatal("expected error for wrong-dimension vector")
	}
}

func TestAddMixedDimensionBatchLeavesStoreUntouched(t *testing.T) {
	s := New()
	err := s.Add(
		[][]float32{vec(1, 2, 3), vec(1, 2)},
		[]ChunkMeta{{UserID: "u1"}, {UserID: "u1"}},
	)
	if err == nil {
		t.Fatal("expected error for mixed-dimension batch")
	}
	if s.Len() != 0 || s.Dimension() != 0 {
		t.Fatalf("failed batch changed the store: len=%d dim=%d", s.Len(), s.Dimension())
	}
	// The dimension is still free for the next batch.
	if err := s.Add([][]float32{vec(1, 2)}, []ChunkMeta{{UserID: "u1"}}); err != nil {
		t.Fatalf("Add after failed batch: %v", err)
	}
}

func TestSearchOrdersByDistance(t *testing.T) {
	s := New()
	vectors := [][]float32{vec(0, 0, 0), vec(10, 0, 0), vec(1, 0, 0)}
	metas := []ChunkMeta{
		{Text: "origin", Filename: "a.pdf", PageNumber: 1, ChunkID: 0, UserID: "u1"},
		{Text: "far", Filename: "a.pdf", PageNumber: 2, ChunkID: 0, UserID: "u1"},
		{Text: "near", Filename: "a.pdf", PageNumber: 3, ChunkID: 0, UserID: "u1"},
	}
	if err := s.Add(vectors, metas); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	results, err := s.Search(vec(0, 0, 0), 3, "u1", "")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	if results[0].Text != "origin" || results[1].Text != "near" || results[2].Text != "far" {
		t.Fatalf("wrong order: %q %q %q", results[0].Text, results[1].Text, results[2].Text)
	}
	if results[0].Distance > results[1].Distance || results[1].Distance > results[2].Distance {
		t.Fatal("distances are not ascending")
	}
}

func TestSearchIsolatesUsers(t *testing.T) {
	s := New()
	addChunks(t, s, "alice", "a.pdf", 1, 2)
	addChunks(t, s, "bob", "b.pdf", 1, 2, 3)

	results, err := s.Search(vec(0, 0, 0), 10, "alice", "")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	for _, r := range results {
		if r.UserID != "alice" {
			t.Fatalf("result leaked from user %q", r.UserID)
		}
	}
	if len(results) != 2 {
		t.Fatalf("got %d results for alice, want 2", len(results))
	}
}

func TestSearchFilenameFilterWidensScan(t *testing.T) {
	s := New()
	// Many close chunks in a.pdf, the target file b.pdf sits farther away.
	// A topK-only scan would be saturated by a.pdf before filtering.
	var vectors [][]float32
	var metas []ChunkMeta
	for i := 0; i < 5; i++ {
		vectors = append(vectors, vec(float32(i)*0.01, 0, 0))
		metas = append(metas, ChunkMeta{Text: "a", Filename: "a.pdf", PageNumber: 1, ChunkID: i, UserID: "u1"})
	}
	vectors = append(vectors, vec(5, 0, 0))
	metas = append(metas, ChunkMeta{Text: "b", Filename: "b.pdf", PageNumber: 1, ChunkID: 0, UserID: "u1"})
	if err := s.Add(vectors, metas); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	results, err := s.Search(vec(0, 0, 0), 2, "u1", "b.pdf")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 || results[0].Filename != "b.pdf" {
		t.Fatalf("filename filter failed, got %+v", results)
	}
}

func TestSearchEmptyStore(t *testing.T) {
	s := New()
	results, err := s.Search(vec(1, 2, 3), 5, "u1", "")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if results != nil {
		t.Fatalf("expected nil results on empty store, got %v", results)
	}
}

func TestAdjacentChunksExpandsAndDedupes(t *testing.T) {
	s := New()
	addChunks(t, s, "u1", "a.pdf", 1, 2, 3, 4, 5, 6)

	hit := SearchResult{ChunkMeta: ChunkMeta{Filename: "a.pdf", PageNumber: 3, ChunkID: 2, UserID: "u1"}}
	expanded := s.AdjacentChunks([]SearchResult{hit}, 2, "u1")

	// Pages 1..5 are within range of page 3.
	if len(expanded) != 5 {
		t.Fatalf("got %d expanded chunks, want 5", len(expanded))
	}
	for i := 1; i < len(expanded); i++ {
		prev, cur := expanded[i-1], expanded[i]
		if prev.PageNumber > cur.PageNumber {
			t.Fatal("expanded chunks are not page-ordered")
		}
	}
	for _, r := range expanded {
		if r.PageNumber > 5 {
			t.Fatalf("page %d is outside the expansion range", r.PageNumber)
		}
	}
}

func TestAdjacentChunksStaysWithinFile(t *testing.T) {
	s := New()
	addChunks(t, s, "u1", "a.pdf", 1, 2)
	addChunks(t, s, "u1", "b.pdf", 1, 2)

	hit := SearchResult{ChunkMeta: ChunkMeta{Filename: "a.pdf", PageNumber: 1, ChunkID: 0, UserID: "u1"}}
	expanded := s.AdjacentChunks([]SearchResult{hit}, 2, "u1")
	for _, r := range expanded {
		if r.Filename != "a.pdf" {
			t.Fatalf("expansion crossed into %q", r.Filename)
		}
	}
}

func TestDeleteByFilenameRebuilds(t *testing.T) {
	s := New()
	addChunks(t, s, "u1", "a.pdf", 1, 2)
	addChunks(t, s, "u1", "b.pdf", 1)
	addChunks(t, s, "u2", "a.pdf", 1)

	removed := s.DeleteByFilename("a.pdf", "u1")
	if removed != 2 {
		t.Fatalf("removed %d chunks, want 2", removed)
	}
	if s.Len() != 2 {
		t.Fatalf("store has %d chunks, want 2", s.Len())
	}

	// u2's copy of a.pdf must survive, and search still works after rebuild.
	results, err := s.Search(vec(0, 0, 0), 10, "u2", "")
	if err != nil {
		t.Fatalf("Search after delete failed: %v", err)
	}
	if len(results) != 1 || results[0].Filename != "a.pdf" {
		t.Fatalf("u2 lost chunks in another user's delete: %+v", results)
	}
}

func TestDeleteByUser(t *testing.T) {
	s := New()
	addChunks(t, s, "u1", "a.pdf", 1, 2)
	addChunks(t, s, "u2", "b.pdf", 1)

	if removed := s.DeleteByUser("u1"); removed != 2 {
		t.Fatalf("removed %d, want 2", removed)
	}
	if got := s.CountByUser("u1"); got != 0 {
		t.Fatalf("u1 still has %d chunks", got)
	}
	if got := s.CountByUser("u2"); got != 1 {
		t.Fatalf("u2 has %d chunks, want 1", got)
	}
}

func TestDeleteResetsDimensionWhenEmpty(t *testing.T) {
	s := New()
	addChunks(t, s, "u1", "a.pdf", 1)
	s.DeleteByUser("u1")
	if s.Dimension() != 0 {
		t.Fatalf("dimension not reset, got %d", s.Dimension())
	}
	// A different dimension is accepted again after the reset.
	if err := s.Add([][]float32{{1, 2}}, []ChunkMeta{{UserID: "u1"}}); err != nil {
		t.Fatalf("Add after reset failed: %v", err)
	}
}

func TestDeleteTempFilesByUser(t *testing.T) {
	s := New()
	addChunks(t, s, "u1", "tmpabc123.pdf", 1)
	addChunks(t, s, "u1", "TMPXYZ.PDF", 1)
	addChunks(t, s, "u1", "tmp_listed.pdf", 1)
	addChunks(t, s, "u1", "orphan.pdf", 1)
	addChunks(t, s, "u1", "report.pdf", 1)
	addChunks(t, s, "u2", "orphan.pdf", 1)

	// Temp-style names go even when listed; real names go only when
	// missing from the valid set.
	valid := map[string]bool{"tmp_listed.pdf": true, "report.pdf": true}
	removed := s.DeleteTempFilesByUser("u1", valid)
	if removed != 4 {
		t.Fatalf("removed %d chunks, want 4", removed)
	}

	names := s.Filenames("u1")
	if len(names) != 1 || names[0] != "report.pdf" {
		t.Fatalf("unexpected surviving files: %v", names)
	}
	if got := s.CountByUser("u2"); got != 1 {
		t.Fatalf("another user's chunks were purged, have %d", got)
	}
}

func TestDeleteTempFilesByUserWithoutValidSet(t *testing.T) {
	s := New()
	addChunks(t, s, "u1", "tmpabc123.pdf", 1)
	addChunks(t, s, "u1", "report.pdf", 1)

	// With no valid set only temp-style names are dropped.
	if removed := s.DeleteTempFilesByUser("u1", nil); removed != 1 {
		t.Fatalf("removed %d chunks, want 1", removed)
	}
	names := s.Filenames("u1")
	if len(names) != 1 || names[0] != "report.pdf" {
		t.Fatalf("unexpected surviving files: %v", names)
	}
}

func TestGetStats(t *testing.T) {
	s := New()
	addChunks(t, s, "u1", "a.pdf", 1, 2)
	addChunks(t, s, "u1", "b.pdf", 1)
	addChunks(t, s, "u2", "c.pdf", 1)

	st := s.GetStats("u1")
	if st.TotalFiles != 2 || st.TotalChunks != 3 {
		t.Fatalf("stats = %+v, want 2 files / 3 chunks", st)
	}
	if st.Files["a.pdf"] != 2 || st.Files["b.pdf"] != 1 {
		t.Fatalf("per-file counts wrong: %v", st.Files)
	}
}

func TestClearAll(t *testing.T) {
	s := New()
	addChunks(t, s, "u1", "a.pdf", 1, 2)
	s.ClearAll()
	if s.Len() != 0 || s.Dimension() != 0 {
		t.Fatalf("store not cleared: len=%d dim=%d", s.Len(), s.Dimension())
	}
}

func TestFilenamesAndCounts(t *testing.T) {
	s := New()
	addChunks(t, s, "u1", "b.pdf", 1, 2)
	addChunks(t, s, "u1", "a.pdf", 1)

	names := s.Filenames("u1")
	if len(names) != 2 || names[0] != "a.pdf" || names[1] != "b.pdf" {
		t.Fatalf("Filenames = %v, want sorted [a.pdf b.pdf]", names)
	}
	if got := s.CountByUser("u1"); got != 3 {
		t.Fatalf("CountByUser = %d, want 3", got)
	}
}
