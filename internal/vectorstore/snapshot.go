package vectorstore

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// snapshotFile is the on-disk representation of the full store.
type snapshotFile struct {
	Dimension int         `json:"dimension"`
	Vectors   [][]float32 `json:"vectors"`
	Meta      []ChunkMeta `json:"meta"`
}

// Save writes a gzip-compressed JSON snapshot atomically: the payload
// goes to a temp file in the same directory, then renames over the
// target so readers never see a partial write. Writers are serialized
// by snapMu, so of two overlapping Saves the later capture is the one
// that lands on disk; the row slices are copied under the read lock so
// encoding runs against a stable view even while mutations rebuild.
func (s *Store) Save(path string) error {
	s.snapMu.Lock()
	defer s.snapMu.Unlock()

	s.mu.RLock()
	snap := snapshotFile{
		Dimension: s.dim,
		Vectors:   append([][]float32(nil), s.vectors...),
		Meta:      append([]ChunkMeta(nil), s.meta...),
	}
	s.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "vector_store_*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp snapshot: %w", err)
	}
	tmpPath := tmp.Name()

	gz := gzip.NewWriter(tmp)
	if err := json.NewEncoder(gz).Encode(snap); err != nil {
		gz.Close()
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := gz.Close(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close gzip writer: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp snapshot: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to move snapshot into place: %w", err)
	}
	return nil
}

// Load replaces the store contents from a snapshot. A missing file is
// not an error: the store simply starts empty. A corrupt file is
// reported so the caller can log it and start empty anyway.
func (s *Store) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("failed to open gzip reader: %w", err)
	}
	defer gz.Close()

	var snap snapshotFile
	if err := json.NewDecoder(gz).Decode(&snap); err != nil {
		return fmt.Errorf("failed to decode snapshot: %w", err)
	}

	if len(snap.Vectors) != len(snap.Meta) {
		return fmt.Errorf("snapshot is inconsistent: %d vectors, %d metadata entries",
			len(snap.Vectors), len(snap.Meta))
	}
	for i, v := range snap.Vectors {
		if len(v) != snap.Dimension {
			return fmt.Errorf("snapshot vector %d has dimension %d, expected %d", i, len(v), snap.Dimension)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.dim = snap.Dimension
	s.vectors = snap.Vectors
	s.meta = snap.Meta
	return nil
}
