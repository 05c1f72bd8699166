package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"ragviet-backend/internal/config"
	"ragviet-backend/internal/logger"

	"github.com/google/generative-ai-go/genai"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
)

// Embedder turns text into fixed-dimension float32 vectors. The same
// text always yields the same vector for one active model.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// NewEmbedder selects the provider. Default is the HF inference chain of
// Vietnamese sentence encoders; "google" uses the Gemini embedding model.
func NewEmbedder(cfg *config.Config) (Embedder, error) {
	switch cfg.EmbeddingsProvider {
	case "huggingface", "":
		return NewHFEmbedder(cfg), nil
	case "google":
		return NewGoogleEmbedder(cfg), nil
	default:
		return nil, fmt.Errorf("unknown embeddings provider: %s", cfg.EmbeddingsProvider)
	}
}

// HFEmbedder calls a feature-extraction inference endpoint with an
// ordered model fallback chain. The first model that answers becomes the
// active model and fixes the vector dimension for the process lifetime.
type HFEmbedder struct {
	apiKey     string
	baseURL    string
	models     []string
	httpClient *http.Client
	limiter    *rate.Limiter

	mu     sync.Mutex
	active int // index into models, -1 until the first success
	dim    int
}

func NewHFEmbedder(cfg *config.Config) *HFEmbedder {
	return &HFEmbedder{
		apiKey:  cfg.HFAPIKey,
		baseURL: cfg.HFInferenceURL,
		models:  cfg.EmbeddingModels,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(5), 10),
		active:  -1,
	}
}

// Dimension is 0 until the first successful call.
func (e *HFEmbedder) Dimension() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dim
}

func (e *HFEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds all texts with the active model, falling through the
// chain on error. A model that succeeds once is sticky.
func (e *HFEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	e.mu.Lock()
	start := e.active
	if start < 0 {
		start = 0
	}
	e.mu.Unlock()

	var lastErr error
	for i := start; i < len(e.models); i++ {
		model := e.models[i]
		vecs, err := e.embedWithModel(ctx, model, texts)
		if err != nil {
			logger.Warn("embedding model failed, falling through", "model", model, "error", err)
			lastErr = err
			continue
		}

		e.mu.Lock()
		if e.active < 0 {
			e.active = i
			e.dim = len(vecs[0])
			logger.Info("embedding model selected", "model", model, "dimension", e.dim)
		} else {
			e.active = i
		}
		dim := e.dim
		e.mu.Unlock()

		for j, v := range vecs {
			if len(v) != dim {
				return nil, fmt.Errorf("model %s returned dimension %d for text %d, expected %d", model, len(v), j, dim)
			}
		}
		return vecs, nil
	}
	return nil, fmt.Errorf("all embedding models failed: %v", lastErr)
}

// embedWithModel posts the batch to one model, retrying transient
// failures with exponential backoff before giving up on the model.
func (e *HFEmbedder) embedWithModel(ctx context.Context, model string, texts []string) ([][]float32, error) {
	const maxRetries = 2

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		vecs, err := e.makeRequest(ctx, model, texts)
		if err == nil {
			return vecs, nil
		}
		lastErr = err
		if attempt < maxRetries {
			select {
			case <-time.After(time.Duration(1<<attempt) * time.Second):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, lastErr
}

func (e *HFEmbedder) makeRequest(ctx context.Context, model string, texts []string) ([][]float32, error) {
	payload := map[string]interface{}{
		"inputs":  texts,
		"options": map[string]bool{"wait_for_model": true},
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", e.baseURL+"/"+model, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+e.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("inference API returned %d: %s", resp.StatusCode, string(body))
	}

	var vecs [][]float32
	if err := json.Unmarshal(body, &vecs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal embeddings: %v", err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("got %d embeddings for %d texts", len(vecs), len(texts))
	}
	for i, v := range vecs {
		if len(v) == 0 {
			return nil, fmt.Errorf("empty embedding for text %d", i)
		}
	}
	return vecs, nil
}

// GoogleEmbedder uses the Gemini embedding model, mirroring the provider
// switch the rest of the platform uses.
type GoogleEmbedder struct {
	apiKey string
	model  string

	mu  sync.Mutex
	dim int
}

func NewGoogleEmbedder(cfg *config.Config) *GoogleEmbedder {
	return &GoogleEmbedder{
		apiKey: cfg.GeminiAPIKey,
		model:  cfg.GoogleEmbeddingsModel,
	}
}

func (e *GoogleEmbedder) Dimension() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dim
}

func (e *GoogleEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *GoogleEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if e.apiKey == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY for embeddings")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(e.apiKey))
	if err != nil {
		return nil, err
	}
	defer client.Close()

	model := client.EmbeddingModel(e.model)
	batch := model.NewBatch()
	for _, t := range texts {
		batch.AddContent(genai.Text(t))
	}
	resp, err := model.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("got %d embeddings for %d texts", len(resp.Embeddings), len(texts))
	}

	vecs := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, fmt.Errorf("no embedding returned for text %d", i)
		}
		vecs[i] = emb.Values
	}

	e.mu.Lock()
	if e.dim == 0 {
		e.dim = len(vecs[0])
	}
	e.mu.Unlock()
	return vecs, nil
}
