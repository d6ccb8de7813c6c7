// Package openai provides an LLM service adapter for OpenAI-compatible APIs
// (OpenAI, LM Studio, vLLM, llama.cpp server).
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/llm/transport"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// Ensure Client implements the interface.
var _ driven.LLMService = (*Client)(nil)

// Default configuration values.
const (
	DefaultBaseURL  = "https://api.openai.com/v1"
	DefaultLLMModel = "gpt-4o-mini"
)

// sseDone terminates a chat completion stream.
const sseDone = "[DONE]"

// Config holds configuration for the OpenAI-compatible client.
type Config struct {
	// APIKey is sent as a bearer token. Local servers usually accept none.
	APIKey string

	// BaseURL is the API base URL (default: https://api.openai.com/v1).
	BaseURL string

	// Model is the LLM model to use (default: gpt-4o-mini).
	Model string

	// Streaming selects the chunked transport as the primary strategy.
	Streaming bool

	// Limiter throttles requests when set.
	Limiter *transport.RateLimiter
}

// Client generates answers with the /chat/completions endpoint.
type Client struct {
	primary  transport.Transport
	fallback transport.Transport
	baseURL  string
	apiKey   string
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

// New creates a client.
func New(cfg Config, opts ...Option) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultLLMModel
	}

	c := &Client{
		primary:  transport.New(transport.Options{Streaming: cfg.Streaming, Limiter: cfg.Limiter}),
		fallback: transport.NewBuffered(nil, cfg.Limiter),
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// chatCompletionRequest is the OpenAI /chat/completions request format.
type chatCompletionRequest struct {
	Model       string              `json:"model"`
	Messages    []chatCompletionMsg `json:"messages"`
	Temperature float64             `json:"temperature"`
	Stream      bool                `json:"stream"`
}

// chatCompletionMsg is the OpenAI chat message format. Content is either a
// string or a list of content parts when images are attached.
type chatCompletionMsg struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

// chatCompletionResponse covers both buffered responses and stream chunks.
type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
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

	body := chatCompletionRequest{
		Model:       c.model,
		Messages:    buildMessages(req),
		Temperature: req.Temperature,
		Stream:      true,
	}

	text, streamErr := c.stream(ctx, body, onUpdate)
	if streamErr == nil {
		return text, nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	logger.Warn("openai: %s stream failed, retrying buffered: %v", c.primary.Name(), streamErr)

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

// buildMessages turns a request into a system message (the action) and a
// user message carrying the context, the prompt and any images.
func buildMessages(req domain.ProcessRequest) []chatCompletionMsg {
	var messages []chatCompletionMsg
	if req.Action != "" {
		messages = append(messages, chatCompletionMsg{Role: "system", Content: req.Action})
	}

	text := req.Prompt
	if strings.TrimSpace(req.Context) != "" {
		text = req.Context + "\n\n" + req.Prompt
	}

	if len(req.Images) == 0 {
		return append(messages, chatCompletionMsg{Role: "user", Content: text})
	}

	parts := []contentPart{{Type: "text", Text: text}}
	for _, img := range req.Images {
		parts = append(parts, contentPart{
			Type:     "image_url",
			ImageURL: &imageURL{URL: "data:image/png;base64," + img},
		})
	}
	return append(messages, chatCompletionMsg{Role: "user", Content: parts})
}

// stream reads server-sent events, reporting the cumulative answer after
// every delta.
func (c *Client) stream(ctx context.Context, body chatCompletionRequest, onUpdate driven.UpdateFunc) (string, error) {
	s, err := c.do(ctx, c.primary, body)
	if err != nil {
		return "", err
	}
	defer s.Close()

	var answer strings.Builder
	lines := transport.NewLineReader(s)
	for {
		line, err := lines.Next()
		if errors.Is(err, io.EOF) {
			return answer.String(), nil
		}
		if err != nil {
			return "", err
		}

		data, ok := strings.CutPrefix(strings.TrimSpace(line), "data:")
		if !ok {
			continue
		}
		data = strings.TrimSpace(data)
		if data == sseDone {
			return answer.String(), nil
		}

		var chunk chatCompletionResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			logger.Warn("openai: skipping malformed stream event: %v", err)
			continue
		}
		if chunk.Error != nil {
			return "", fmt.Errorf("openai stream error: %s", chunk.Error.Message)
		}

		if err := ctx.Err(); err != nil {
			return "", err
		}
		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			answer.WriteString(chunk.Choices[0].Delta.Content)
			onUpdate(answer.String())
		}
	}
}

// buffered runs the request on the fallback transport.
func (c *Client) buffered(ctx context.Context, body chatCompletionRequest) (string, error) {
	s, err := c.do(ctx, c.fallback, body)
	if err != nil {
		return "", err
	}
	defer s.Close()

	data, err := transport.ReadAll(s)
	if err != nil {
		return "", err
	}

	var resp chatCompletionResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidResponse, err)
	}
	if resp.Error != nil {
		return "", fmt.Errorf("openai error: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no response choices returned", domain.ErrInvalidResponse)
	}

	return resp.Choices[0].Message.Content, nil
}

func (c *Client) do(ctx context.Context, tr transport.Transport, body chatCompletionRequest) (transport.Stream, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	return tr.Do(ctx, transport.Request{
		URL:    c.baseURL + "/chat/completions",
		Body:   payload,
		Header: c.header(),
	})
}

func (c *Client) header() http.Header {
	h := http.Header{}
	if c.apiKey != "" {
		h.Set("Authorization", "Bearer "+c.apiKey)
	}
	return h
}

// modelsResponse is the /models response format.
type modelsResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

// ListModels returns the model IDs served by the provider.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	s, err := c.fallback.Do(ctx, transport.Request{
		Method: http.MethodGet,
		URL:    c.baseURL + "/models",
		Header: c.header(),
	})
	if err != nil {
		return nil, fmt.Errorf("openai: list models: %w", err)
	}
	defer s.Close()

	data, err := transport.ReadAll(s)
	if err != nil {
		return nil, fmt.Errorf("openai: list models: %w", err)
	}

	var resp modelsResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("%w: openai models: %v", domain.ErrInvalidResponse, err)
	}

	models := make([]string, 0, len(resp.Data))
	for _, m := range resp.Data {
		models = append(models, m.ID)
	}
	return models, nil
}

// ModelName returns the name of the LLM model being used.
func (c *Client) ModelName() string {
	return c.model
}

// Ping validates the service is reachable by checking the /models endpoint.
// This is a lightweight check that validates the API key without running inference.
func (c *Client) Ping(ctx context.Context) error {
	s, err := c.fallback.Do(ctx, transport.Request{
		Method: http.MethodGet,
		URL:    c.baseURL + "/models",
		Header: c.header(),
	})
	if err != nil {
		return fmt.Errorf("openai: ping failed: %w", err)
	}
	return s.Close()
}

// Close releases resources.
func (c *Client) Close() error {
	// HTTP client doesn't need explicit cleanup
	return nil
}
