package services

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"ragviet-backend/internal/config"
	"ragviet-backend/internal/logger"
	"ragviet-backend/internal/vectorstore"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"
)

// PDFService validates uploaded PDFs and turns them into per-page text
// chunks ready for embedding. Chunk boundaries never cross pages so a
// chunk's page_number is always exact.
type PDFService struct {
	config  *config.Config
	tempDir string
}

func NewPDFService(cfg *config.Config) *PDFService {
	baseDir := cfg.FileStorageDir
	if baseDir == "" {
		baseDir = "./storage"
	}
	tempDir := filepath.Join(baseDir, "temp")
	os.MkdirAll(tempDir, 0755)

	return &PDFService{
		config:  cfg,
		tempDir: tempDir,
	}
}

// PageText is the extracted text of one PDF page.
type PageText struct {
	Page int
	Text string
}

// ValidateUpload rejects a file before any bytes are written to disk.
func (s *PDFService) ValidateUpload(header *multipart.FileHeader) error {
	if header.Size > s.config.MaxFileSize {
		return fmt.Errorf("file size %d exceeds maximum allowed size %d", header.Size, s.config.MaxFileSize)
	}
	if header.Size == 0 {
		return fmt.Errorf("file is empty")
	}
	return s.validateFilename(header.Filename)
}

// validateFilename ensures filename is safe
func (s *PDFService) validateFilename(filename string) error {
	if filename == "" {
		return fmt.Errorf("filename is required")
	}
	if len(filename) > 255 {
		return fmt.Errorf("filename too long (max 255 characters)")
	}

	dangerous := []string{"../", "..\\", "<", ">", ":", "\"", "|", "?", "*", "\x00"}
	for _, char := range dangerous {
		if strings.Contains(filename, char) {
			return fmt.Errorf("filename contains invalid or dangerous characters")
		}
	}

	if !strings.HasSuffix(strings.ToLower(filename), ".pdf") {
		return fmt.Errorf("only PDF files (.pdf extension) are allowed")
	}
	return nil
}

// SaveTemp streams an upload to a temp file and validates its content.
// The caller owns the returned path and must remove it when done.
func (s *PDFService) SaveTemp(file multipart.File) (string, error) {
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("failed to reset file position: %w", err)
	}

	tempPath := filepath.Join(s.tempDir, uuid.NewString()+".pdf")
	tempFile, err := os.Create(tempPath)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}

	written, err := io.Copy(tempFile, file)
	if err != nil {
		tempFile.Close()
		os.Remove(tempPath)
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}
	if written == 0 {
		os.Remove(tempPath)
		return "", fmt.Errorf("file is empty")
	}

	if err := s.validateContent(tempPath); err != nil {
		os.Remove(tempPath)
		return "", err
	}
	return tempPath, nil
}

// validateContent checks the stored bytes look like a real PDF: magic
// header up front, EOF markers near the end.
func (s *PDFService) validateContent(filePath string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open file for validation: %w", err)
	}
	defer file.Close()

	header := make([]byte, 1024)
	n, err := file.Read(header)
	if err != nil && err != io.EOF {
		return fmt.Errorf("failed to read file header: %w", err)
	}
	if n < 4 {
		return fmt.Errorf("file is too small or empty")
	}
	if string(header[:4]) != "%PDF" {
		return fmt.Errorf("invalid PDF file: missing PDF magic bytes")
	}

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to get file info: %w", err)
	}
	if info.Size() > 2048 {
		trailer := make([]byte, 2048)
		if _, err := file.ReadAt(trailer, info.Size()-2048); err != nil {
			return fmt.Errorf("failed to read PDF trailer: %w", err)
		}
		trailerStr := string(trailer)
		if !strings.Contains(trailerStr, "%%EOF") && !strings.Contains(trailerStr, "startxref") {
			return fmt.Errorf("invalid or corrupted PDF: missing EOF markers")
		}
	}
	return nil
}

// ExtractPages pulls plain text per page. Pages that yield no text are
// skipped, which keeps scanned-image pages out of the index.
func (s *PDFService) ExtractPages(filePath string) ([]PageText, int, error) {
	file, reader, err := pdf.Open(filePath)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer file.Close()

	totalPages := reader.NumPage()
	var pages []PageText
	for i := 1; i <= totalPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		fonts := make(map[string]*pdf.Font)
		text, err := page.GetPlainText(fonts)
		if err != nil {
			logger.Warn("failed to extract page text", "page", i, "error", err)
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		pages = append(pages, PageText{Page: i, Text: text})
	}
	return pages, totalPages, nil
}

// ProcessPDF extracts and chunks a stored PDF. The returned chunks carry
// filename, page number and a per-page chunk id; the caller tags the
// owning user before indexing.
func (s *PDFService) ProcessPDF(filePath, filename string) ([]vectorstore.ChunkMeta, int, error) {
	pages, totalPages, err := s.ExtractPages(filePath)
	if err != nil {
		return nil, 0, err
	}

	var chunks []vectorstore.ChunkMeta
	for _, page := range pages {
		for chunkID, text := range s.chunkPage(page.Text) {
			chunks = append(chunks, vectorstore.ChunkMeta{
				Text:       text,
				Filename:   filename,
				PageNumber: page.Page,
				ChunkID:    chunkID,
			})
		}
	}
	return chunks, totalPages, nil
}

// chunkPage slides a fixed character window over one page's text. The
// window never spans pages and the chunk counter restarts per page.
func (s *PDFService) chunkPage(text string) []string {
	window := s.config.ChunkWindowSize
	overlap := s.config.ChunkOverlap
	if overlap >= window {
		overlap = window / 4
	}
	step := window - overlap

	runes := []rune(text)
	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + window
		if end > len(runes) {
			end = len(runes)
		}
		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// Cleanup removes a temp file, ignoring failures beyond a log line.
func (s *PDFService) Cleanup(filePath string) {
	if filePath == "" {
		return
	}
	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		logger.Warn("failed to cleanup temp file", "path", filePath, "error", err)
	}
}
