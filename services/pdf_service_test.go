package services

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ragviet-backend/internal/config"
)

func newTestPDFService(t *testing.T, window, overlap int) *PDFService {
	t.Helper()
	return &PDFService{
		config: &config.Config{
			MaxFileSize:     1 << 20,
			ChunkWindowSize: window,
			ChunkOverlap:    overlap,
			FileStorageDir:  t.TempDir(),
		},
		tempDir: t.TempDir(),
	}
}

func TestChunkPageWindowArithmetic(t *testing.T) {
	s := newTestPDFService(t, 400, 100)

	text := strings.Repeat("a", 1000)
	chunks := s.chunkPage(text)
	// step 300: [0:400], [300:700], [600:1000]
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	if len(chunks[0]) != 400 || len(chunks[1]) != 400 || len(chunks[2]) != 400 {
		t.Fatalf("chunk lengths = %d/%d/%d, want 400 each", len(chunks[0]), len(chunks[1]), len(chunks[2]))
	}
}

func TestChunkPageShortTextSingleChunk(t *testing.T) {
	s := newTestPDFService(t, 400, 100)

	chunks := s.chunkPage("Điều 1. Phạm vi điều chỉnh của nghị định này.")
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if !strings.HasPrefix(chunks[0], "Điều 1.") {
		t.Fatalf("unexpected chunk text: %q", chunks[0])
	}
}

func TestChunkPageCountsRunesNotBytes(t *testing.T) {
	s := newTestPDFService(t, 400, 100)

	// 500 Vietnamese runes is well over 400 bytes but only crosses the
	// window boundary once when counted in characters.
	text := strings.Repeat("ệ", 500)
	chunks := s.chunkPage(text)
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	if n := len([]rune(chunks[0])); n != 400 {
		t.Fatalf("first chunk has %d runes, want 400", n)
	}
}

func TestChunkPageOverlapCarriesContext(t *testing.T) {
	s := newTestPDFService(t, 400, 100)

	text := strings.Repeat("x", 350) + strings.Repeat("y", 350)
	chunks := s.chunkPage(text)
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	// Second window starts at 300, so it re-reads the last 50 x's.
	if !strings.HasPrefix(chunks[1], strings.Repeat("x", 50)+"y") {
		t.Fatal("second chunk does not start with the overlapped tail of the first")
	}
}

func TestChunkPageEmptyText(t *testing.T) {
	s := newTestPDFService(t, 400, 100)
	if chunks := s.chunkPage(""); len(chunks) != 0 {
		t.Fatalf("expected no chunks for empty text, got %d", len(chunks))
	}
}

func TestValidateFilename(t *testing.T) {
	s := newTestPDFService(t, 400, 100)

	valid := []string{"nghi-dinh-100.pdf", "Thông tư 32.PDF", "quyet_dinh.pdf"}
	for _, name := range valid {
		if err := s.validateFilename(name); err != nil {
			t.Errorf("validateFilename(%q) = %v, want nil", name, err)
		}
	}

	invalid := []string{
		"",
		"report.docx",
		"../etc/passwd.pdf",
		"bad|name.pdf",
		"question?.pdf",
		strings.Repeat("a", 256) + ".pdf",
	}
	for _, name := range invalid {
		if err := s.validateFilename(name); err == nil {
			t.Errorf("validateFilename(%q) succeeded, want error", name)
		}
	}
}

func TestValidateContent(t *testing.T) {
	s := newTestPDFService(t, 400, 100)
	dir := t.TempDir()

	good := filepath.Join(dir, "good.pdf")
	if err := os.WriteFile(good, []byte("%PDF-1.4\n1 0 obj\nendobj\n%%EOF"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := s.validateContent(good); err != nil {
		t.Fatalf("valid small PDF rejected: %v", err)
	}

	bad := filepath.Join(dir, "bad.pdf")
	if err := os.WriteFile(bad, []byte("this is not a pdf at all"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := s.validateContent(bad); err == nil {
		t.Fatal("non-PDF content accepted")
	}

	truncated := filepath.Join(dir, "truncated.pdf")
	body := append([]byte("%PDF-1.7\n"), []byte(strings.Repeat("0", 4096))...)
	if err := os.WriteFile(truncated, body, 0644); err != nil {
		t.Fatal(err)
	}
	if err := s.validateContent(truncated); err == nil {
		t.Fatal("PDF without EOF markers accepted")
	}
}
