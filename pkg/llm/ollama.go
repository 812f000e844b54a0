package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"
)

// OllamaClient is a Client backed by a local Ollama-compatible HTTP server.
// It caps in-flight calls with a weighted semaphore so that at most one
// outstanding call exists per logical connection slot, per the Adapter's
// concurrency contract.
type OllamaClient struct {
	baseURL    string
	httpClient *http.Client
	sem        *semaphore.Weighted
	defaults   Options
	maxRetries int
	logger     *slog.Logger
}

// OllamaConfig configures an OllamaClient.
type OllamaConfig struct {
	BaseURL        string // e.g. http://localhost:11434
	MaxConcurrency int64  // connection pool size; default 4
	CallTimeout    time.Duration // default 60s, per spec.md §5
	DefaultModel   string
	MaxRetries     int // structured-output retries, default 2
	Logger         *slog.Logger
}

// NewOllamaClient creates a Client against a local Ollama backend.
func NewOllamaClient(cfg OllamaConfig) *OllamaClient {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 4
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 60 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 2
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &OllamaClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.CallTimeout,
		},
		sem:        semaphore.NewWeighted(cfg.MaxConcurrency),
		defaults:   Options{Model: cfg.DefaultModel, Temperature: 0.7, TopP: 1.0},
		maxRetries: cfg.MaxRetries,
		logger:     cfg.Logger,
	}
}

func (c *OllamaClient) mergeOpts(opts Options) Options {
	merged := c.defaults
	if opts.Model != "" {
		merged.Model = opts.Model
	}
	if opts.Temperature != 0 {
		merged.Temperature = opts.Temperature
	}
	if opts.TopP != 0 {
		merged.TopP = opts.TopP
	}
	if opts.MaxTokens != 0 {
		merged.MaxTokens = opts.MaxTokens
	}
	return merged
}

type ollamaGenerateRequest struct {
	Model   string      `json:"model"`
	Prompt  string      `json:"prompt"`
	Stream  bool        `json:"stream"`
	Think   any         `json:"think,omitempty"`
	Options ollamaOptions `json:"options,omitempty"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	TopP        float64 `json:"top_p,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
	Options  ollamaOptions       `json:"options,omitempty"`
}

type ollamaStreamChunk struct {
	Response  string `json:"response"`
	Thinking  string `json:"thinking"`
	Message   *ollamaChatMessage `json:"message"`
	Done      bool   `json:"done"`
}

func isThinkingCapableModel(model string) bool {
	m := strings.ToLower(model)
	if strings.Contains(m, "qwen3-coder") || strings.Contains(m, "qwen2-coder") {
		return false
	}
	return strings.Contains(m, "qwen3") || strings.Contains(m, "deepseek-r1") ||
		strings.Contains(m, "deepseek-v3") || strings.Contains(m, "gpt-oss")
}

// Generate issues a single-shot, non-streaming completion.
func (c *OllamaClient) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return "", &LLMTransientErrorLocal{Cause: err}
	}
	defer c.sem.Release(1)

	merged := c.mergeOpts(opts)
	req := ollamaGenerateRequest{
		Model:  merged.Model,
		Prompt: prompt,
		Stream: false,
		Options: ollamaOptions{
			Temperature: merged.Temperature,
			TopP:        merged.TopP,
			NumPredict:  merged.MaxTokens,
		},
	}
	if isThinkingCapableModel(merged.Model) {
		req.Think = true
	}

	var lastErr error
	for attempt := 0; attempt <= 2; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * 500 * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
		body, err := c.doJSON(ctx, "/api/generate", req)
		if err != nil {
			lastErr = &LLMTransientErrorLocal{Cause: err}
			continue
		}
		var chunk ollamaStreamChunk
		if err := json.Unmarshal(body, &chunk); err != nil {
			return "", fmt.Errorf("decode ollama response: %w", err)
		}
		return chunk.Response, nil
	}
	return "", lastErr
}

// GenerateStream issues a streaming completion, separating text and
// thinking deltas via Aggregator.
func (c *OllamaClient) GenerateStream(ctx context.Context, prompt string, opts Options) (<-chan Delta, <-chan error) {
	deltas := make(chan Delta)
	errCh := make(chan error, 1)

	go func() {
		defer close(deltas)
		defer close(errCh)

		if err := c.sem.Acquire(ctx, 1); err != nil {
			errCh <- err
			return
		}
		defer c.sem.Release(1)

		merged := c.mergeOpts(opts)
		req := ollamaGenerateRequest{
			Model:  merged.Model,
			Prompt: prompt,
			Stream: true,
			Options: ollamaOptions{
				Temperature: merged.Temperature,
				TopP:        merged.TopP,
				NumPredict:  merged.MaxTokens,
			},
		}
		if isThinkingCapableModel(merged.Model) {
			req.Think = true
		}

		buf, err := json.Marshal(req)
		if err != nil {
			errCh <- err
			return
		}
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(buf))
		if err != nil {
			errCh <- err
			return
		}
		httpReq.Header.Set("Content-Type", "application/json")
		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			errCh <- &LLMTransientErrorLocal{Cause: err}
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			errCh <- &LLMFatalErrorLocal{Cause: fmt.Errorf("ollama returned status %d", resp.StatusCode)}
			return
		}

		agg := NewAggregator()
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			default:
			}
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			var chunk ollamaStreamChunk
			if err := json.Unmarshal(line, &chunk); err != nil {
				continue
			}
			if chunk.Thinking != "" {
				for _, d := range agg.FeedThinkingDelta(chunk.Thinking) {
					deltas <- d
				}
			}
			if chunk.Response != "" {
				for _, d := range agg.Feed(chunk.Response) {
					deltas <- d
				}
			}
			if chunk.Done {
				break
			}
		}
		if err := scanner.Err(); err != nil {
			errCh <- err
			return
		}
		deltas <- agg.Close()
	}()

	return deltas, errCh
}

// Chat issues a multi-turn completion using the backend's native chat
// framing; no custom role delimiters are embedded in the prompt text.
func (c *OllamaClient) Chat(ctx context.Context, messages []Message, opts Options) (string, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return "", &LLMTransientErrorLocal{Cause: err}
	}
	defer c.sem.Release(1)

	merged := c.mergeOpts(opts)
	req := ollamaChatRequest{
		Model:  merged.Model,
		Stream: false,
		Options: ollamaOptions{
			Temperature: merged.Temperature,
			TopP:        merged.TopP,
			NumPredict:  merged.MaxTokens,
		},
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, ollamaChatMessage{Role: string(m.Role), Content: m.Content})
	}

	body, err := c.doJSON(ctx, "/api/chat", req)
	if err != nil {
		return "", &LLMTransientErrorLocal{Cause: err}
	}
	var chunk ollamaStreamChunk
	if err := json.Unmarshal(body, &chunk); err != nil {
		return "", fmt.Errorf("decode ollama chat response: %w", err)
	}
	if chunk.Message != nil {
		return chunk.Message.Content, nil
	}
	return chunk.Response, nil
}

// GenerateStructured requests JSON-mode generation constrained by schema
// and validates the result (see structured.go), retrying on failure.
func (c *OllamaClient) GenerateStructured(ctx context.Context, prompt string, schema *JSONSchema, opts Options) (map[string]any, error) {
	return generateStructured(ctx, c, prompt, schema, opts, c.maxRetries)
}

// ModelInfo describes one model available on the backend, for GET /api/models.
type ModelInfo struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
}

// ListModels queries the backend's model catalog (Ollama's /api/tags).
func (c *OllamaClient) ListModels(ctx context.Context) ([]ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, string(body))
	}

	var parsed struct {
		Models []struct {
			Name       string    `json:"name"`
			Size       int64     `json:"size"`
			ModifiedAt time.Time `json:"modified_at"`
		} `json:"models"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("ollama: parse model list: %w", err)
	}

	out := make([]ModelInfo, len(parsed.Models))
	for i, m := range parsed.Models {
		out[i] = ModelInfo{Name: m.Name, Size: m.Size, ModifiedAt: m.ModifiedAt}
	}
	return out, nil
}

func (c *OllamaClient) doJSON(ctx context.Context, path string, payload any) ([]byte, error) {
	buf, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// LLMTransientErrorLocal mirrors stage.LLMTransientError without importing
// pkg/stage (which would create an import cycle, since stage agents import
// pkg/llm). Stage agents wrap this into stage.LLMTransientError at the
// boundary.
type LLMTransientErrorLocal struct{ Cause error }

func (e *LLMTransientErrorLocal) Error() string { return "transient LLM error: " + e.Cause.Error() }
func (e *LLMTransientErrorLocal) Unwrap() error  { return e.Cause }

// LLMFatalErrorLocal mirrors stage.LLMFatalError; see LLMTransientErrorLocal.
type LLMFatalErrorLocal struct{ Cause error }

func (e *LLMFatalErrorLocal) Error() string { return "fatal LLM error: " + e.Cause.Error() }
func (e *LLMFatalErrorLocal) Unwrap() error  { return e.Cause }
