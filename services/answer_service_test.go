package services

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"ragviet-backend/internal/ai"
	"ragviet-backend/internal/config"
	"ragviet-backend/internal/vectorstore"
)

// fixedEmbedder returns the same query vector for every text.
type fixedEmbedder struct {
	vec []float32
}

func (f fixedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return f.vec, nil
}

func (f fixedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vec
	}
	return out, nil
}

func (f fixedEmbedder) Dimension() int { return len(f.vec) }

type stubGenerator struct {
	reply   string
	err     error
	prompts []string
}

func (g *stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	return g.reply, g.err
}

func newAnswerFixture(t *testing.T, gen *stubGenerator) (*AnswerService, *vectorstore.Store) {
	t.Helper()
	store := vectorstore.New()
	cfg := &config.Config{
		SearchTopK: 30,
		RerankTopK: 15,
		PageRange:  2,
	}
	return &AnswerService{
		config:   cfg,
		embedder: fixedEmbedder{vec: []float32{0, 0, 0}},
		reranker: ai.NewReranker(cfg),
		llm:      gen,
		store:    store,
	}, store
}

func seedChunks(t *testing.T, store *vectorstore.Store, user, file string, pages ...int) {
	t.Helper()
	vectors := make([][]float32, len(pages))
	metas := make([]vectorstore.ChunkMeta, len(pages))
	for i, page := range pages {
		vectors[i] = []float32{float32(i), 0, 0}
		metas[i] = vectorstore.ChunkMeta{
			Text:       fmt.Sprintf("Nội dung trang %d của %s", page, file),
			Filename:   file,
			PageNumber: page,
			ChunkID:    0,
			UserID:     user,
		}
	}
	if err := store.Add(vectors, metas); err != nil {
		t.Fatal(err)
	}
}

func TestRetrieveAndGenerateGroundsPromptInDocuments(t *testing.T) {
	gen := &stubGenerator{reply: "**Trả lời** từ tài liệu."}
	svc, store := newAnswerFixture(t, gen)
	seedChunks(t, store, "u1", "nghi-dinh.pdf", 1, 2, 3)

	got := svc.retrieveAndGenerate(context.Background(), "u1", "mức phạt là bao nhiêu?", "")
	if got != "**Trả lời** từ tài liệu." {
		t.Fatalf("got %q", got)
	}
	if len(gen.prompts) != 1 {
		t.Fatalf("generator called %d times, want 1", len(gen.prompts))
	}
	prompt := gen.prompts[0]
	if !strings.Contains(prompt, "CÂU HỎI: mức phạt là bao nhiêu?") {
		t.Fatal("prompt does not carry the question")
	}
	if !strings.Contains(prompt, "Nội dung trang 1 của nghi-dinh.pdf") {
		t.Fatal("prompt does not carry document context")
	}
	if strings.Contains(prompt, "(trong file:") {
		t.Fatal("prompt mentions a selected file when none was given")
	}
}

func TestRetrieveAndGenerateSelectedFileScope(t *testing.T) {
	gen := &stubGenerator{reply: "ok"}
	svc, store := newAnswerFixture(t, gen)
	seedChunks(t, store, "u1", "thong-tu.pdf", 1)

	svc.retrieveAndGenerate(context.Background(), "u1", "quy định nghiệp vụ?", "thong-tu.pdf")
	if len(gen.prompts) != 1 {
		t.Fatalf("generator called %d times, want 1", len(gen.prompts))
	}
	if !strings.Contains(gen.prompts[0], "(trong file: thong-tu.pdf)") {
		t.Fatal("prompt does not scope to the selected file")
	}
}

func TestRetrieveAndGenerateNoResults(t *testing.T) {
	gen := &stubGenerator{reply: "should not be called"}
	svc, store := newAnswerFixture(t, gen)
	seedChunks(t, store, "u1", "bao-cao.pdf", 1)

	got := svc.retrieveAndGenerate(context.Background(), "u1", "câu hỏi", "khong-ton-tai.pdf")
	want := noResultsReply + " (đã tìm trong file: khong-ton-tai.pdf)"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	if len(gen.prompts) != 0 {
		t.Fatal("generator was called with no retrieved context")
	}
}

func TestRetrieveAndGenerateDegradesToContextDump(t *testing.T) {
	gen := &stubGenerator{err: fmt.Errorf("all models failed")}
	svc, store := newAnswerFixture(t, gen)
	seedChunks(t, store, "u1", "quyet-dinh.pdf", 4)

	got := svc.retrieveAndGenerate(context.Background(), "u1", "câu hỏi", "")
	if !strings.HasPrefix(got, "⚠️ Lỗi khi tạo câu trả lời:") {
		t.Fatalf("degraded reply missing error banner: %q", got)
	}
	if !strings.Contains(got, "Nội dung trang 4 của quyet-dinh.pdf") {
		t.Fatal("degraded reply does not include the retrieved context")
	}
}

func TestBuildContextMergesAndOrdersByFileThenPage(t *testing.T) {
	chunks := []vectorstore.SearchResult{
		{ChunkMeta: vectorstore.ChunkMeta{Text: "b trang 2", Filename: "b.pdf", PageNumber: 2}},
		{ChunkMeta: vectorstore.ChunkMeta{Text: "a trang 5  phần  hai", Filename: "a.pdf", PageNumber: 5}},
		{ChunkMeta: vectorstore.ChunkMeta{Text: "a trang 5 phần một", Filename: "a.pdf", PageNumber: 5}},
		{ChunkMeta: vectorstore.ChunkMeta{Text: "a trang 1", Filename: "a.pdf", PageNumber: 1}},
	}

	got := buildContext(chunks)
	parts := strings.Split(got, "\n\n---\n\n")
	if len(parts) != 3 {
		t.Fatalf("got %d passages, want 3", len(parts))
	}
	if parts[0] != "a trang 1" {
		t.Fatalf("first passage = %q", parts[0])
	}
	// Same-page chunks merge in input order with whitespace collapsed.
	if parts[1] != "a trang 5 phần hai a trang 5 phần một" {
		t.Fatalf("merged passage = %q", parts[1])
	}
	if parts[2] != "b trang 2" {
		t.Fatalf("last passage = %q", parts[2])
	}
}

func TestBuildContextEmpty(t *testing.T) {
	if got := buildContext(nil); got != "" {
		t.Fatalf("expected empty context, got %q", got)
	}
}
