// Package ollama provides an LLM service adapter using Ollama.
//
// The client adapts the requested context window to the prompt size and
// streams the answer, falling back to a single buffered request when the
// stream fails.
package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/llm/ollamaapi"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/llm/transport"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// Ensure Client implements the interface.
var _ driven.LLMService = (*Client)(nil)

// Default configuration values.
const (
	DefaultBaseURL  = ollamaapi.DefaultBaseURL
	DefaultLLMModel = "llama3.2"
)

// Context window estimation.
const (
	// CharsPerToken approximates tokenisation for window sizing.
	CharsPerToken = 4

	// growth is the headroom applied when enlarging the window, in tenths.
	growthTenths = 12

	// ServerDefaultContext is the window Ollama uses when num_ctx is omitted.
	ServerDefaultContext = 2048
)

// Config holds configuration for the Ollama client.
type Config struct {
	// BaseURL is the Ollama API base URL (default: http://localhost:11434).
	BaseURL string

	// Model is the LLM model to use (default: llama3.2).
	Model string

	// Streaming selects the chunked transport as the primary strategy.
	Streaming bool

	// Limiter throttles requests when set.
	Limiter *transport.RateLimiter
}

// Client generates answers with Ollama's /api/generate endpoint.
type Client struct {
	api      *ollamaapi.Client
	primary  transport.Transport
	fallback transport.Transport
	models   driven.ModelInfoStore
	model    string
}

// Option customises a Client.
type Option func(*Client)

// WithTransports replaces the primary and fallback transports.
func WithTransports(primary, fallback transport.Transport) Option {
	return func(c *Client) {
		c.primary = primary
		c.fallback = fallback
	}
}

// New creates a client. The model info store is shared across clients for
// the lifetime of the process.
func New(cfg Config, models driven.ModelInfoStore, opts ...Option) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultLLMModel
	}

	fallback := transport.NewBuffered(nil, cfg.Limiter)
	c := &Client{
		api:      ollamaapi.New(cfg.BaseURL, fallback),
		primary:  transport.New(transport.Options{Streaming: cfg.Streaming, Limiter: cfg.Limiter}),
		fallback: fallback,
		models:   models,
		model:    cfg.Model,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// generateRequest is the Ollama /api/generate request format.
type generateRequest struct {
	Model   string   `json:"model"`
	Prompt  string   `json:"prompt"`
	System  string   `json:"system,omitempty"`
	Stream  bool     `json:"stream"`
	Images  []string `json:"images,omitempty"`
	Options options  `json:"options"`
}

// options holds generation parameters.
type options struct {
	Temperature float64 `json:"temperature"`
	NumCtx      int     `json:"num_ctx,omitempty"`
}

// generateResponse is one /api/generate response object, streamed or not.
type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

// Process generates an answer. It streams first and falls back to one
// buffered request if the stream fails for any reason other than ctx.
func (c *Client) Process(ctx context.Context, req domain.ProcessRequest, onUpdate driven.UpdateFunc) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if onUpdate == nil {
		onUpdate = func(string) {}
	}

	prompt := BuildPrompt(req)
	body := generateRequest{
		Model:  c.model,
		Prompt: prompt,
		System: req.Action,
		Stream: true,
		Images: req.Images,
		Options: options{
			Temperature: req.Temperature,
			NumCtx:      c.contextWindow(ctx, req.Action+prompt),
		},
	}

	text, streamErr := c.stream(ctx, body, onUpdate)
	if streamErr == nil {
		return text, nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	logger.Warn("ollama: %s stream failed, retrying buffered: %v", c.primary.Name(), streamErr)

	body.Stream = false
	text, err := c.buffered(ctx, body)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("%w: stream: %v; buffered: %w", domain.ErrTransportFailed, streamErr, err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	onUpdate(text)
	return text, nil
}

// BuildPrompt places retrieved context ahead of the user prompt.
func BuildPrompt(req domain.ProcessRequest) string {
	if strings.TrimSpace(req.Context) == "" {
		return req.Prompt
	}
	return req.Context + "\n\n" + req.Prompt
}

// EstimateTokens approximates the token count of text.
func EstimateTokens(text string) int {
	return utf8.RuneCountInString(text) / CharsPerToken
}

// contextWindow returns the num_ctx to request, or 0 to leave the server
// default. The window only grows; a smaller request reuses the last window
// so the model is not reloaded. Until a window has been requested the
// server default counts as the last one.
func (c *Client) contextWindow(ctx context.Context, text string) int {
	info := c.modelInfo(ctx)
	estimated := EstimateTokens(text)

	last := info.LastContextLength
	if last == 0 {
		last = ServerDefaultContext
	}

	if info.ContextLength > 0 && estimated > last {
		window := min(info.ContextLength, estimated*growthTenths/10)
		info.LastContextLength = window
		c.models.Set(c.model, info)
		logger.Debug("ollama: %s context window %d (estimated %d tokens)", c.model, window, estimated)
		return window
	}

	return info.LastContextLength
}

// modelInfo returns cached model info, fetching the maximum context length
// on first use. A failed lookup is not cached.
func (c *Client) modelInfo(ctx context.Context) domain.ModelInfo {
	if info, ok := c.models.Get(c.model); ok {
		return info
	}

	length, err := c.api.ContextLength(ctx, c.model)
	if err != nil {
		logger.Warn("ollama: model info for %s unavailable: %v", c.model, err)
		return domain.ModelInfo{}
	}

	info := domain.ModelInfo{ContextLength: length}
	c.models.Set(c.model, info)
	return info
}

// stream runs the request on the primary transport, reporting the
// cumulative answer after every decoded line.
func (c *Client) stream(ctx context.Context, body generateRequest, onUpdate driven.UpdateFunc) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	stream, err := c.primary.Do(ctx, transport.Request{URL: c.api.BaseURL() + "/api/generate", Body: payload})
	if err != nil {
		return "", err
	}
	defer stream.Close()

	var answer strings.Builder
	lines := transport.NewLineReader(stream)
	for {
		line, err := lines.Next()
		if errors.Is(err, io.EOF) {
			return answer.String(), nil
		}
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		var event generateResponse
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			logger.Warn("ollama: skipping malformed stream line: %v", err)
			continue
		}
		if event.Error != "" {
			return "", fmt.Errorf("ollama stream error: %s", event.Error)
		}

		if err := ctx.Err(); err != nil {
			return "", err
		}
		if event.Response != "" {
			answer.WriteString(event.Response)
			onUpdate(answer.String())
		}
		if event.Done {
			return answer.String(), nil
		}
	}
}

// buffered runs the request on the fallback transport and returns the
// complete answer.
func (c *Client) buffered(ctx context.Context, body generateRequest) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	stream, err := c.fallback.Do(ctx, transport.Request{URL: c.api.BaseURL() + "/api/generate", Body: payload})
	if err != nil {
		return "", err
	}
	defer stream.Close()

	data, err := transport.ReadAll(stream)
	if err != nil {
		return "", err
	}

	var resp generateResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidResponse, err)
	}
	if resp.Error != "" {
		return "", fmt.Errorf("ollama error: %s", resp.Error)
	}
	return resp.Response, nil
}

// ListModels returns installed models with ":latest" removed.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	return c.api.ListModels(ctx)
}

// ModelName returns the name of the LLM model being used.
func (c *Client) ModelName() string {
	return c.model
}

// Ping validates the server is reachable without running inference.
func (c *Client) Ping(ctx context.Context) error {
	return c.api.Ping(ctx)
}

// Close releases resources.
func (c *Client) Close() error {
	return nil
}
