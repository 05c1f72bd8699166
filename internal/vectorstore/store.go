package vectorstore

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"sync"
)

// ChunkMeta describes one indexed chunk. The store keeps vectors and
// metadata in two parallel slices: the vector at index i always belongs
// to the metadata at index i.
type ChunkMeta struct {
	Text       string `json:"text"`
	Filename   string `json:"filename"`
	PageNumber int    `json:"page_number"`
	ChunkID    int    `json:"chunk_id"`
	UserID     string `json:"user_id"`
}

// SearchResult is one retrieval hit with its L2 distance. Smaller
// distance means more similar.
type SearchResult struct {
	ChunkMeta
	Distance    float64 `json:"distance"`
	RerankScore float64 `json:"rerank_score,omitempty"`
}

// tempFilePattern matches throwaway upload names that older ingests left
// behind (tmpabc123.pdf and the like).
var tempFilePattern = regexp.MustCompile(`(?i)^tmp[a-z0-9_]+\.pdf$`)

// Store is an in-memory dense vector index with per-user isolation.
// Deletions rebuild the slices instead of tombstoning so the positional
// correspondence between vectors and metadata never breaks.
type Store struct {
	mu      sync.RWMutex
	snapMu  sync.Mutex
	dim     int
	vectors [][]float32
	meta    []ChunkMeta
}

func New() *Store {
	return &Store{}
}

// Dimension returns the fixed vector dimension, 0 while the store is empty.
func (s *Store) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dim
}

// Len returns the number of indexed chunks.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vectors)
}

// Add appends vector/metadata pairs. The first vector ever added fixes
// the store dimension; anything else is rejected.
func (s *Store) Add(vectors [][]float32, metas []ChunkMeta) error {
	if len(vectors) != len(metas) {
		return fmt.Errorf("vector/metadata length mismatch: %d != %d", len(vectors), len(metas))
	}
	if len(vectors) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate the whole batch before touching any state, so a bad
	// batch on an empty store does not pin the dimension.
	dim := s.dim
	if dim == 0 {
		dim = len(vectors[0])
	}
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("vector %d has dimension %d, store expects %d", i, len(v), dim)
		}
	}

	s.dim = dim
	s.vectors = append(s.vectors, vectors...)
	s.meta = append(s.meta, metas...)
	return nil
}

// Search runs an exact L2 kNN and then walks the candidates in ascending
// distance, dropping rows that fail the user or filename filter. With any
// filter active the raw scan widens to topK*3 candidates so filtering does
// not starve the result set.
func (s *Store) Search(query []float32, topK int, userID, filename string) ([]SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.vectors) == 0 {
		return nil, nil
	}
	if len(query) != s.dim {
		return nil, fmt.Errorf("query dimension %d does not match store dimension %d", len(query), s.dim)
	}

	searchK := topK
	if userID != "" || filename != "" {
		searchK = topK * 3
	}
	if searchK > len(s.vectors) {
		searchK = len(s.vectors)
	}

	candidates := make([]SearchResult, 0, len(s.vectors))
	for i, vec := range s.vectors {
		candidates = append(candidates, SearchResult{
			ChunkMeta: s.meta[i],
			Distance:  l2Distance(query, vec),
		})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Distance < candidates[j].Distance
	})

	kept := make([]SearchResult, 0, topK)
	for _, c := range candidates[:searchK] {
		if userID != "" && c.UserID != userID {
			continue
		}
		if filename != "" && c.Filename != filename {
			continue
		}
		kept = append(kept, c)
		if len(kept) == topK {
			break
		}
	}
	return kept, nil
}

// AdjacentChunks expands hits with same-file chunks from neighboring
// pages (the seed's own page is already covered by the seed itself).
// Output is deduplicated and ordered by (filename, page, chunk).
func (s *Store) AdjacentChunks(hits []SearchResult, pageRange int, userID string) []SearchResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type key struct {
		filename string
		page     int
		chunk    int
	}

	seen := make(map[key]SearchResult)
	for _, h := range hits {
		seen[key{h.Filename, h.PageNumber, h.ChunkID}] = h
	}

	for _, h := range hits {
		for i, m := range s.meta {
			if m.UserID != userID || m.Filename != h.Filename {
				continue
			}
			delta := abs(m.PageNumber - h.PageNumber)
			if delta == 0 || delta > pageRange {
				continue
			}
			k := key{m.Filename, m.PageNumber, m.ChunkID}
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = SearchResult{ChunkMeta: s.meta[i], Distance: h.Distance}
		}
	}

	out := make([]SearchResult, 0, len(seen))
	for _, r := range seen {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Filename != out[j].Filename {
			return out[i].Filename < out[j].Filename
		}
		if out[i].PageNumber != out[j].PageNumber {
			return out[i].PageNumber < out[j].PageNumber
		}
		return out[i].ChunkID < out[j].ChunkID
	})
	return out
}

// DeleteByFilename removes every chunk of one file for one user.
// Returns the number of chunks removed.
func (s *Store) DeleteByFilename(filename, userID string) int {
	return s.rebuild(func(m ChunkMeta) bool {
		return m.UserID == userID && m.Filename == filename
	})
}

// DeleteByUser removes all chunks belonging to a user.
func (s *Store) DeleteByUser(userID string) int {
	return s.rebuild(func(m ChunkMeta) bool {
		return m.UserID == userID
	})
}

// DeleteTempFilesByUser purges a user's leftover upload chunks:
// anything with a temp-style name, plus, when a valid set is given,
// anything whose filename is not in the set. A nil valid set limits
// the purge to temp-style names only.
func (s *Store) DeleteTempFilesByUser(userID string, validFilenames map[string]bool) int {
	return s.rebuild(func(m ChunkMeta) bool {
		if m.UserID != userID {
			return false
		}
		if tempFilePattern.MatchString(m.Filename) {
			return true
		}
		return validFilenames != nil && !validFilenames[m.Filename]
	})
}

// rebuild drops every row matching the predicate. The kept rows go
// into freshly allocated slices: Save hands out the old slice headers
// after releasing the lock, so the old backing arrays must never be
// written again.
func (s *Store) rebuild(drop func(ChunkMeta) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	keptVectors := make([][]float32, 0, len(s.vectors))
	keptMeta := make([]ChunkMeta, 0, len(s.meta))
	removed := 0
	for i, m := range s.meta {
		if drop(m) {
			removed++
			continue
		}
		keptVectors = append(keptVectors, s.vectors[i])
		keptMeta = append(keptMeta, m)
	}
	s.vectors = keptVectors
	s.meta = keptMeta
	if len(s.vectors) == 0 {
		s.dim = 0
	}
	return removed
}

// ClearAll drops every chunk and resets the dimension.
func (s *Store) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vectors = nil
	s.meta = nil
	s.dim = 0
}

// Stats summarizes a user's slice of the index.
type Stats struct {
	TotalFiles  int            `json:"total_files"`
	TotalChunks int            `json:"total_chunks"`
	Files       map[string]int `json:"files"`
}

// GetStats reports per-file chunk counts for one user.
func (s *Store) GetStats(userID string) Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{Files: make(map[string]int)}
	for _, m := range s.meta {
		if m.UserID != userID {
			continue
		}
		st.TotalChunks++
		st.Files[m.Filename]++
	}
	st.TotalFiles = len(st.Files)
	return st
}

// Filenames lists the distinct filenames indexed for a user.
func (s *Store) Filenames(userID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var names []string
	for _, m := range s.meta {
		if m.UserID != userID || seen[m.Filename] {
			continue
		}
		seen[m.Filename] = true
		names = append(names, m.Filename)
	}
	sort.Strings(names)
	return names
}

// CountByUser returns the number of chunks indexed for a user.
func (s *Store) CountByUser(userID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, m := range s.meta {
		if m.UserID == userID {
			n++
		}
	}
	return n
}

func l2Distance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
