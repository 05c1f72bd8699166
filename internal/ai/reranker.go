package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"ragviet-backend/internal/config"
	"ragviet-backend/internal/logger"
	"ragviet-backend/internal/vectorstore"
)

// Reranker reorders dense-search candidates with a cross-encoder. Its
// absence is operational, not fatal: without an endpoint the input order
// is kept and truncated to topK.
type Reranker struct {
	endpoint   string
	model      string
	httpClient *http.Client
}

func NewReranker(cfg *config.Config) *Reranker {
	return &Reranker{
		endpoint: cfg.RerankerURL,
		model:    cfg.RerankerModel,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Available reports whether a scoring endpoint is configured.
func (r *Reranker) Available() bool {
	return r.endpoint != ""
}

// Rerank scores every (query, text) pair, sorts descending by score and
// keeps topK. On any scoring failure the original order is returned
// truncated to topK.
func (r *Reranker) Rerank(ctx context.Context, query string, docs []vectorstore.SearchResult, topK int) []vectorstore.SearchResult {
	if len(docs) == 0 {
		return nil
	}
	if !r.Available() {
		return truncate(docs, topK)
	}

	scores, err := r.score(ctx, query, docs)
	if err != nil {
		logger.Error("rerank failed, keeping dense order", "error", err)
		return truncate(docs, topK)
	}

	out := make([]vectorstore.SearchResult, len(docs))
	copy(out, docs)
	for i := range out {
		out[i].RerankScore = scores[i]
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RerankScore > out[j].RerankScore
	})
	return truncate(out, topK)
}

type rerankRequest struct {
	Model string      `json:"model"`
	Pairs [][2]string `json:"pairs"`
}

type rerankResponse struct {
	Scores []float64 `json:"scores"`
	Error  string    `json:"error,omitempty"`
}

func (r *Reranker) score(ctx context.Context, query string, docs []vectorstore.SearchResult) ([]float64, error) {
	reqBody := rerankRequest{Model: r.model}
	for _, d := range docs {
		reqBody.Pairs = append(reqBody.Pairs, [2]string{query, d.Text})
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", r.endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("reranker returned %d: %s", resp.StatusCode, string(body))
	}

	var parsed rerankResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %v", err)
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("reranker error: %s", parsed.Error)
	}
	if len(parsed.Scores) != len(docs) {
		return nil, fmt.Errorf("got %d scores for %d pairs", len(parsed.Scores), len(docs))
	}
	return parsed.Scores, nil
}

func truncate(docs []vectorstore.SearchResult, topK int) []vectorstore.SearchResult {
	if len(docs) > topK {
		return docs[:topK]
	}
	return docs
}
