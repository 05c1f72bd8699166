package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ragviet-backend/internal/config"
	"ragviet-backend/internal/logger"

	"github.com/sony/gobreaker"
)

// incompleteSuffixes mark answers the model cut off mid-enumeration.
// The list is empirical and loaded from here, not scattered in call sites.
var incompleteSuffixes = []string{"như sau:", "bao gồm:", "cụ thể:", "gồm:"}

// ChatCompleter is a single chat-completions call against one model.
type ChatCompleter interface {
	Complete(ctx context.Context, model, prompt string, maxTokens int) (string, error)
}

// LLM wraps a ChatCompleter with the model fallback chain and the
// single completeness retry.
type LLM struct {
	completer ChatCompleter
	primary   string
	fallbacks []string
	maxTokens int
}

func NewLLM(cfg *config.Config) *LLM {
	return &LLM{
		completer: NewGroqClient(cfg),
		primary:   cfg.LLMModel,
		fallbacks: cfg.LLMFallbacks,
		maxTokens: cfg.LLMMaxTokens,
	}
}

// NewLLMWithCompleter is used by tests to substitute the HTTP client.
func NewLLMWithCompleter(c ChatCompleter, primary string, fallbacks []string, maxTokens int) *LLM {
	return &LLM{completer: c, primary: primary, fallbacks: fallbacks, maxTokens: maxTokens}
}

// Generate runs the prompt through the primary model and, on provider
// error, walks the fallback list until one succeeds. An answer that ends
// in a known incompleteness suffix is retried once with a doubled token
// budget; the longer reply wins.
func (l *LLM) Generate(ctx context.Context, prompt string) (string, error) {
	models := append([]string{l.primary}, l.fallbacks...)

	var lastErr error
	for _, model := range models {
		reply, err := l.completer.Complete(ctx, model, prompt, l.maxTokens)
		if err != nil {
			logger.Warn("model failed, trying next", "model", model, "error", err)
			lastErr = err
			continue
		}

		if IsIncomplete(reply) {
			logger.Info("answer looks truncated, retrying with larger budget", "model", model)
			retry, retryErr := l.completer.Complete(ctx, model, prompt, l.maxTokens*2)
			if retryErr == nil && len(retry) > len(reply) {
				return retry, nil
			}
		}
		return reply, nil
	}
	return "", fmt.Errorf("all models failed: %v", lastErr)
}

// IsIncomplete reports whether a reply ends mid-enumeration: a known
// Vietnamese list-introduction suffix, or a bare trailing colon on a
// reply shorter than three lines.
func IsIncomplete(reply string) bool {
	trimmed := strings.TrimSpace(reply)
	if trimmed == "" {
		return false
	}
	for _, suffix := range incompleteSuffixes {
		if strings.HasSuffix(trimmed, suffix) {
			return true
		}
	}
	if strings.HasSuffix(trimmed, ":") && len(strings.Split(trimmed, "\n")) < 3 {
		return true
	}
	return false
}

// GroqClient talks to a Groq-style OpenAI-compatible chat completions
// endpoint. A circuit breaker sheds calls when the provider is down so
// queries degrade fast instead of stacking up timeouts.
type GroqClient struct {
	apiKey      string
	apiURL      string
	temperature float64
	httpClient  *http.Client
	breaker     *gobreaker.CircuitBreaker
}

func NewGroqClient(cfg *config.Config) *GroqClient {
	return &GroqClient{
		apiKey:      cfg.GroqAPIKey,
		apiURL:      cfg.GroqAPIURL,
		temperature: cfg.LLMTemperature,
		httpClient: &http.Client{
			Timeout: 90 * time.Second,
		},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "groq",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func (g *GroqClient) Complete(ctx context.Context, model, prompt string, maxTokens int) (string, error) {
	result, err := g.breaker.Execute(func() (interface{}, error) {
		return g.makeRequest(ctx, model, prompt, maxTokens)
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func (g *GroqClient) makeRequest(ctx context.Context, model, prompt string, maxTokens int) (string, error) {
	request := chatCompletionRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
		Temperature: g.temperature,
		MaxTokens:   maxTokens,
	}
	jsonData, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", g.apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %v", err)
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %v", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("API error: %s (%s)", parsed.Error.Message, parsed.Error.Type)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("provider returned %d: %s", resp.StatusCode, string(body))
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return parsed.Choices[0].Message.Content, nil
}
