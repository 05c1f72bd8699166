package services

import (
	"context"
	"fmt"
	"mime/multipart"

	"ragviet-backend/internal/ai"
	"ragviet-backend/internal/config"
	"ragviet-backend/internal/logger"
	"ragviet-backend/internal/vectorstore"
	"ragviet-backend/models"
)

// maxConcurrentUploads bounds how many upload requests run the heavy
// parse/embed path at once in this process.
const maxConcurrentUploads = 3

// IngestService coordinates the upload transaction: validate, store the
// original, extract, chunk, embed, index, snapshot, then register the
// file record. Each file in a batch fails in isolation.
type IngestService struct {
	config   *config.Config
	pdf      *PDFService
	blob     *BlobService
	chat     *ChatService
	embedder ai.Embedder
	store    *vectorstore.Store

	uploadSlots chan struct{}
}

func NewIngestService(cfg *config.Config, pdf *PDFService, blob *BlobService, chat *ChatService, embedder ai.Embedder, store *vectorstore.Store) *IngestService {
	return &IngestService{
		config:      cfg,
		pdf:         pdf,
		blob:        blob,
		chat:        chat,
		embedder:    embedder,
		store:       store,
		uploadSlots: make(chan struct{}, maxConcurrentUploads),
	}
}

// BatchError marks a request-level problem with the upload batch itself,
// as opposed to an internal failure. Routes map it to a 400.
type BatchError struct {
	msg string
}

func (e *BatchError) Error() string { return e.msg }

// UploadSummary is the per-request report returned to the client.
type UploadSummary struct {
	Results     []models.UploadFileResult `json:"results"`
	TotalChunks int                       `json:"total_chunks"`
	Succeeded   int                       `json:"succeeded"`
	Failed      int                       `json:"failed"`
}

type preparedFile struct {
	filename  string
	size      int64
	pageCount int
	blobURL   string
	chunks    []vectorstore.ChunkMeta
	vectors   [][]float32
}

// UploadFiles runs the full ingestion transaction for a batch. All
// parsing and embedding happens before the index is touched; the index
// append and snapshot come last so a crash mid-batch never leaves a
// half-indexed file visible.
func (s *IngestService) UploadFiles(ctx context.Context, userID string, files []*multipart.FileHeader) (*UploadSummary, error) {
	if len(files) == 0 {
		return nil, &BatchError{msg: "no files provided"}
	}
	if len(files) > s.config.MaxBatch {
		return nil, &BatchError{msg: fmt.Sprintf("too many files: maximum %d per upload", s.config.MaxBatch)}
	}

	select {
	case s.uploadSlots <- struct{}{}:
		defer func() { <-s.uploadSlots }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	// Drop temp-named and orphaned chunks before adding new ones.
	// Everything the user has properly registered stays, as does
	// anything in the incoming batch.
	incoming := make([]string, len(files))
	seen := map[string]bool{}
	for i, header := range files {
		if seen[header.Filename] {
			return nil, &BatchError{msg: fmt.Sprintf("duplicate filename in batch: %s", header.Filename)}
		}
		seen[header.Filename] = true
		incoming[i] = header.Filename
	}
	s.purgeTempChunks(ctx, userID, incoming)

	summary := &UploadSummary{}
	var prepared []preparedFile

	for _, header := range files {
		result := models.UploadFileResult{Filename: header.Filename}

		p, err := s.prepareFile(ctx, userID, header)
		if err != nil {
			result.Status = models.UploadStatusFailed
			result.Error = err.Error()
			summary.Results = append(summary.Results, result)
			summary.Failed++
			continue
		}

		if len(p.chunks) == 0 {
			// Registered with zero chunks so the user sees the file
			// exists but holds no extractable text.
			result.Status = models.UploadStatusNoText
		} else {
			result.Status = models.UploadStatusSuccess
		}
		result.ChunkCount = len(p.chunks)
		result.PageCount = p.pageCount
		summary.Results = append(summary.Results, result)
		summary.Succeeded++
		summary.TotalChunks += len(p.chunks)
		prepared = append(prepared, *p)
	}

	if err := s.indexPrepared(userID, prepared); err != nil {
		return nil, err
	}

	for _, p := range prepared {
		record := &models.FileRecord{
			UserID:     userID,
			Filename:   p.filename,
			ChunkCount: len(p.chunks),
			PageCount:  p.pageCount,
			BlobURL:    p.blobURL,
			SizeBytes:  p.size,
		}
		if err := s.chat.SaveFileRecord(ctx, record); err != nil {
			logger.Error("failed to save file record", "filename", p.filename, "error", err)
		}
	}

	logger.Info("upload batch complete",
		"user_id", userID,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"chunks", summary.TotalChunks)
	return summary, nil
}

// prepareFile does everything for one file that can run outside the
// index lock: validation, blob upload, extraction, chunking, embedding.
func (s *IngestService) prepareFile(ctx context.Context, userID string, header *multipart.FileHeader) (*preparedFile, error) {
	if err := s.pdf.ValidateUpload(header); err != nil {
		return nil, err
	}

	file, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer file.Close()

	tempPath, err := s.pdf.SaveTemp(file)
	if err != nil {
		return nil, err
	}
	defer s.pdf.Cleanup(tempPath)

	blobURL, err := s.blob.Upload(ctx, userID, header.Filename, tempPath)
	if err != nil {
		return nil, fmt.Errorf("failed to store original: %w", err)
	}

	chunks, pageCount, err := s.pdf.ProcessPDF(tempPath, header.Filename)
	if err != nil {
		return nil, err
	}
	for i := range chunks {
		chunks[i].UserID = userID
	}

	p := &preparedFile{
		filename:  header.Filename,
		size:      header.Size,
		pageCount: pageCount,
		blobURL:   blobURL,
		chunks:    chunks,
	}
	if len(chunks) == 0 {
		return p, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}
	p.vectors = vectors
	return p, nil
}

// indexPrepared replaces any previous version of each file in the index,
// appends the new chunks in one batch and snapshots. A failed snapshot
// rolls the new chunks back out so the index never diverges from disk.
func (s *IngestService) indexPrepared(userID string, prepared []preparedFile) error {
	var vectors [][]float32
	var metas []vectorstore.ChunkMeta
	for _, p := range prepared {
		s.store.DeleteByFilename(p.filename, userID)
		vectors = append(vectors, p.vectors...)
		metas = append(metas, p.chunks...)
	}
	if len(vectors) == 0 {
		return nil
	}

	if err := s.store.Add(vectors, metas); err != nil {
		return fmt.Errorf("failed to index chunks: %w", err)
	}
	if err := s.store.Save(s.config.SnapshotPath); err != nil {
		for _, p := range prepared {
			s.store.DeleteByFilename(p.filename, userID)
		}
		return fmt.Errorf("failed to persist index: %w", err)
	}
	return nil
}

// purgeTempChunks garbage-collects chunks left behind by interrupted
// uploads: temp-named chunks always go, and chunks whose filename is
// neither registered for the user nor part of the current batch are
// orphans and go with them.
func (s *IngestService) purgeTempChunks(ctx context.Context, userID string, incoming []string) {
	var valid map[string]bool
	records, err := s.chat.GetUserFiles(ctx, userID)
	if err != nil {
		// Without the registry orphans cannot be told apart from real
		// files; a nil set restricts the purge to temp names.
		logger.Warn("could not list registered files, purging temp names only", "error", err)
	} else {
		valid = make(map[string]bool, len(records)+len(incoming))
		for _, r := range records {
			valid[r.Filename] = true
		}
		for _, name := range incoming {
			valid[name] = true
		}
	}

	if removed := s.store.DeleteTempFilesByUser(userID, valid); removed > 0 {
		logger.Info("purged temp chunks", "user_id", userID, "removed", removed)
		if err := s.store.Save(s.config.SnapshotPath); err != nil {
			logger.Error("snapshot after temp purge failed", "error", err)
		}
	}
}

// DeleteFile removes one document everywhere: index, snapshot, blob
// storage and the file record.
func (s *IngestService) DeleteFile(ctx context.Context, userID, filename string) (int, error) {
	record, err := s.chat.GetUserFile(ctx, userID, filename)
	if err != nil {
		return 0, err
	}
	removed := s.store.DeleteByFilename(filename, userID)
	if record == nil && removed == 0 {
		return 0, fmt.Errorf("Không tìm thấy file: %s", filename)
	}
	if err := s.store.Save(s.config.SnapshotPath); err != nil {
		return removed, fmt.Errorf("failed to persist index: %w", err)
	}
	if err := s.blob.Delete(ctx, userID, filename); err != nil {
		logger.Warn("failed to delete stored original", "filename", filename, "error", err)
	}
	if err := s.chat.DeleteUserFile(ctx, userID, filename); err != nil {
		return removed, err
	}
	return removed, nil
}

// ClearFiles removes every document the user has.
func (s *IngestService) ClearFiles(ctx context.Context, userID string) (int, error) {
	removed := s.store.DeleteByUser(userID)
	if err := s.store.Save(s.config.SnapshotPath); err != nil {
		return removed, fmt.Errorf("failed to persist index: %w", err)
	}
	if err := s.blob.DeleteAll(ctx, userID); err != nil {
		logger.Warn("failed to clear stored originals", "user_id", userID, "error", err)
	}
	if err := s.chat.ClearUserFiles(ctx, userID); err != nil {
		return removed, err
	}
	return removed, nil
}
