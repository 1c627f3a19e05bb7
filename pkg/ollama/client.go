package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/garnizeh/mockinterview/internal/config"
	"github.com/garnizeh/mockinterview/internal/metrics"
)

var ErrCircuitOpen = errors.New("ollama circuit open")

// Client wraps the Ollama API client and adds retries, timeout, and circuit breaker.
type Client struct {
	api    *api.Client
	cfg    config.OllamaConfig
	client *http.Client

	// simple circuit breaker state
	failures  int32
	openUntil int64 // unix nano
	closed    int32 // atomic flag for Close()
}

// GenerateOptions tunes a single Generate call.
type GenerateOptions struct {
	// Format is a JSON schema (or "json") the model output must follow.
	Format      json.RawMessage
	Temperature *float64
	NumPredict  int
}

// GenerateResult is the accumulated model output of a Generate call.
type GenerateResult struct {
	Text string         `json:"text"`
	Meta map[string]any `json:"meta,omitempty"`
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatOptions bounds a streamed chat completion.
type ChatOptions struct {
	MaxTokens int
	// Temperature is left to the model when nil.
	Temperature *float64
}

// NewClient creates a new Ollama client wrapper.
func NewClient(cfg config.OllamaConfig, httpClient *http.Client) (*Client, error) {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	u, err := url.ParseRequestURI(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}

	c := &Client{
		api:    api.NewClient(u, httpClient),
		cfg:    cfg,
		client: httpClient,
	}
	logger.Info("ollama: NewClient created", slog.String("base_url", cfg.BaseURL), slog.Duration("timeout", cfg.Timeout))
	return c, nil
}

// NewDefaultClient uses a tuned transport without a whole-request timeout, so
// long streamed replies are bounded by their contexts instead.
func NewDefaultClient(cfg config.OllamaConfig) (*Client, error) {
	defaultClient := &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 15 * time.Second,
			}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}

	return NewClient(cfg, defaultClient)
}

func (c *Client) isCircuitOpen() bool {
	if atomic.LoadInt32(&c.failures) < int32(c.cfg.CircuitFailureThreshold) {
		return false
	}

	if time.Now().UnixNano() < atomic.LoadInt64(&c.openUntil) {
		return true
	}

	// attempt half-open: reset failures and allow a request
	atomic.StoreInt32(&c.failures, 0)
	return false
}

// Close releases idle connections on the underlying HTTP transport when
// supported. Close is idempotent.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}
	if c.client != nil && c.client.Transport != nil {
		if tr, ok := c.client.Transport.(interface{ CloseIdleConnections() }); ok {
			tr.CloseIdleConnections()
			logger.Info("ollama: client Close() called - CloseIdleConnections invoked")
		}
	}
	return nil
}

// package-level logger for pkg/ollama; can be replaced by callers
var logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))

// SetLogger sets the logger used by pkg/ollama. Passing nil is a no-op.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

func (c *Client) recordFailure() {
	v := atomic.AddInt32(&c.failures, 1)
	if v >= int32(c.cfg.CircuitFailureThreshold) {
		atomic.StoreInt64(&c.openUntil, time.Now().Add(c.cfg.CircuitReset).UnixNano())
	}
}

func (c *Client) recordSuccess() {
	atomic.StoreInt32(&c.failures, 0)
}

// Health pings the Ollama instance by listing the locally available models.
func (c *Client) Health(ctx context.Context) error {
	models, err := c.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if len(models) == 0 {
		return fmt.Errorf("health check failed: no models returned")
	}
	return nil
}

// ModelInfo is a lightweight model descriptor returned by ListModels.
type ModelInfo struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// ListModels returns the models known to the Ollama instance.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	if c.isCircuitOpen() {
		return nil, ErrCircuitOpen
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	resp, err := c.api.List(ctx)
	if err != nil {
		c.recordFailure()
		return nil, err
	}

	out := make([]ModelInfo, 0, len(resp.Models))
	for _, m := range resp.Models {
		out = append(out, ModelInfo{Name: m.Name, Size: m.Size})
	}

	c.recordSuccess()
	return out, nil
}

// Generate sends a prompt to the model and accumulates the streamed response.
// Failed attempts are retried with linear backoff until cfg.Retries is exhausted.
func (c *Client) Generate(ctx context.Context, model string, prompt string, opts GenerateOptions) (GenerateResult, error) {
	var lastErr error
	var empty GenerateResult
	if c.isCircuitOpen() {
		return empty, ErrCircuitOpen
	}

	options := map[string]any{}
	if opts.Temperature != nil {
		options["temperature"] = *opts.Temperature
	}
	if opts.NumPredict > 0 {
		options["num_predict"] = opts.NumPredict
	}

	for attempt := 0; attempt <= c.cfg.Retries; attempt++ {
		ctxReq, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		req := &api.GenerateRequest{Model: model, Prompt: prompt, Format: opts.Format, Options: options}
		var sb strings.Builder
		var evalCount int
		start := time.Now()
		err := c.api.Generate(ctxReq, req, func(r api.GenerateResponse) error {
			sb.WriteString(r.Response)
			if r.Done {
				evalCount = r.EvalCount
			}
			return nil
		})
		cancel()
		metrics.ObserveLLM("generate", start, err)

		if err == nil {
			c.recordSuccess()
			meta := map[string]any{"model": model, "latency_ms": time.Since(start).Milliseconds(), "eval_count": evalCount, "attempts": attempt + 1}
			return GenerateResult{Text: sb.String(), Meta: meta}, nil
		}

		lastErr = err
		c.recordFailure()
		if ctx.Err() != nil {
			return empty, ctx.Err()
		}
		logger.Warn("ollama: generate attempt failed", slog.Int("attempt", attempt+1), slog.String("model", model), slog.Any("err", err))

		if attempt < c.cfg.Retries {
			if err := sleep(ctx, c.cfg.Backoff*time.Duration(attempt+1)); err != nil {
				return empty, err
			}
			if c.isCircuitOpen() {
				return empty, ErrCircuitOpen
			}
		}
	}

	return empty, fmt.Errorf("generate failed after retries: %w", lastErr)
}

// Chat streams an assistant reply, calling fn with each non-empty content chunk.
// An error from fn aborts the upstream stream and is returned. A failed attempt
// is retried only while nothing has been emitted yet.
func (c *Client) Chat(ctx context.Context, model string, messages []ChatMessage, opts ChatOptions, fn func(chunk string) error) error {
	if c.isCircuitOpen() {
		return ErrCircuitOpen
	}

	msgs := make([]api.Message, 0, len(messages))
	for _, m := range messages {
		msgs = append(msgs, api.Message{Role: m.Role, Content: m.Content})
	}
	options := map[string]any{}
	if opts.MaxTokens > 0 {
		options["num_predict"] = opts.MaxTokens
	}
	if opts.Temperature != nil {
		options["temperature"] = *opts.Temperature
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.Retries; attempt++ {
		emitted := false
		var cbErr error
		start := time.Now()
		req := &api.ChatRequest{Model: model, Messages: msgs, Options: options}
		err := c.api.Chat(ctx, req, func(r api.ChatResponse) error {
			if r.Message.Content == "" {
				return nil
			}
			emitted = true
			if err := fn(r.Message.Content); err != nil {
				cbErr = err
				return err
			}
			return nil
		})
		metrics.ObserveLLM("chat", start, err)

		if err == nil {
			c.recordSuccess()
			return nil
		}
		if cbErr != nil {
			// the consumer went away; not an upstream failure
			return cbErr
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		lastErr = err
		c.recordFailure()
		if emitted {
			return fmt.Errorf("chat stream interrupted: %w", err)
		}
		logger.Warn("ollama: chat attempt failed", slog.Int("attempt", attempt+1), slog.String("model", model), slog.Any("err", err))

		if attempt < c.cfg.Retries {
			if err := sleep(ctx, c.cfg.Backoff*time.Duration(attempt+1)); err != nil {
				return err
			}
			if c.isCircuitOpen() {
				return ErrCircuitOpen
			}
		}
	}

	return fmt.Errorf("chat failed after retries: %w", lastErr)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
