package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ragviet-backend/internal/vectorstore"
)

func docs(texts ...string) []vectorstore.SearchResult {
	out := make([]vectorstore.SearchResult, len(texts))
	for i, txt := range texts {
		out[i] = vectorstore.SearchResult{ChunkMeta: vectorstore.ChunkMeta{Text: txt}}
	}
	return out
}

func newTestReranker(endpoint string) *Reranker {
	return &Reranker{
		endpoint:   endpoint,
		model:      "test-reranker",
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

func TestRerankWithoutEndpointKeepsOrder(t *testing.T) {
	r := newTestReranker("")
	in := docs("a", "b", "c", "d")
	out := r.Rerank(context.Background(), "q", in, 2)
	if len(out) != 2 || out[0].Text != "a" || out[1].Text != "b" {
		t.Fatalf("expected input[:2] unchanged, got %+v", out)
	}
}

func TestRerankSortsByScoreDescending(t *testing.T) {
	// Scores each pair by document length so longer texts win.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		var body rerankRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		resp := rerankResponse{}
		for _, pair := range body.Pairs {
			resp.Scores = append(resp.Scores, float64(len(pair[1])))
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	r := newTestReranker(srv.URL)
	out := r.Rerank(context.Background(), "q", docs("bb", "dddd", "a", "ccc"), 3)
	if len(out) != 3 {
		t.Fatalf("got %d results, want 3", len(out))
	}
	want := []string{"dddd", "ccc", "bb"}
	for i, w := range want {
		if out[i].Text != w {
			t.Fatalf("position %d = %q, want %q", i, out[i].Text, w)
		}
	}
	for i := 1; i < len(out); i++ {
		if out[i-1].RerankScore < out[i].RerankScore {
			t.Fatal("scores are not descending")
		}
	}
}

func TestRerankDegradesOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	r := newTestReranker(srv.URL)
	in := docs("a", "b", "c")
	out := r.Rerank(context.Background(), "q", in, 2)
	if len(out) != 2 || out[0].Text != "a" || out[1].Text != "b" {
		t.Fatalf("expected graceful degradation to input[:2], got %+v", out)
	}
}

func TestRerankEmptyInput(t *testing.T) {
	r := newTestReranker("")
	if out := r.Rerank(context.Background(), "q", nil, 5); out != nil {
		t.Fatalf("expected nil for empty input, got %v", out)
	}
}
