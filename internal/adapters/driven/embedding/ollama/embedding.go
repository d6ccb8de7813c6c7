// Package ollama provides an embedding service adapter using Ollama.
package ollama

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/embedding"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/llm/ollamaapi"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/llm/transport"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// Default configuration values.
const (
	DefaultBaseURL = ollamaapi.DefaultBaseURL
	DefaultModel   = "nomic-embed-text"

	// FallbackContextLength is the group budget when the model does not
	// report its context length.
	FallbackContextLength = 2048
)

// Config holds configuration for the Ollama embedding service.
type Config struct {
	// BaseURL is the Ollama API base URL (default: http://localhost:11434).
	BaseURL string

	// Model is the embedding model to use (default: nomic-embed-text).
	Model string

	// Limiter throttles requests when set.
	Limiter *transport.RateLimiter
}

// EmbeddingService generates embeddings using Ollama's /api/embed endpoint.
type EmbeddingService struct {
	api       *ollamaapi.Client
	transport transport.Transport
	models    driven.ModelInfoStore
	model     string
}

// embedRequest is the Ollama /api/embed request format.
type embedRequest struct {
	Model   string        `json:"model"`
	Input   []string      `json:"input"`
	Options *embedOptions `json:"options,omitempty"`
}

type embedOptions struct {
	NumCtx int `json:"num_ctx,omitempty"`
}

// embedResponse is the Ollama /api/embed response format.
type embedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
	Error      string      `json:"error,omitempty"`
}

// NewEmbeddingService creates a new Ollama embedding service. The model info
// store caches the embedding model's context length for the process.
func NewEmbeddingService(cfg Config, models driven.ModelInfoStore) *EmbeddingService {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	tr := transport.NewBuffered(nil, cfg.Limiter)
	return &EmbeddingService{
		api:       ollamaapi.New(cfg.BaseURL, tr),
		transport: tr,
		models:    models,
		model:     cfg.Model,
	}
}

// Embed generates embeddings for texts, one request per group of texts
// that fits the model's context length.
func (s *EmbeddingService) Embed(ctx context.Context, texts []string, onProgress driven.ProgressFunc) ([][]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(texts) == 0 {
		return nil, nil
	}

	known, budget := s.contextLength(ctx)
	groups := embedding.Groups(texts, budget)
	logger.Debug("ollama: embedding %d texts in %d groups (budget %d tokens)", len(texts), len(groups), budget)

	var opts *embedOptions
	if known {
		opts = &embedOptions{NumCtx: budget}
	}

	return embedding.Run(ctx, groups, func(ctx context.Context, group []string) ([][]float64, error) {
		return s.embedGroup(ctx, group, opts)
	}, onProgress)
}

// contextLength returns the group budget in tokens and whether the model
// reported it.
func (s *EmbeddingService) contextLength(ctx context.Context) (bool, int) {
	if s.models != nil {
		if info, ok := s.models.Get(s.model); ok && info.ContextLength > 0 {
			return true, info.ContextLength
		}
	}

	length, err := s.api.ContextLength(ctx, s.model)
	if err != nil {
		logger.Warn("ollama: context length for %s unavailable: %v", s.model, err)
		return false, FallbackContextLength
	}
	if length <= 0 {
		return false, FallbackContextLength
	}

	if s.models != nil {
		info, _ := s.models.Get(s.model)
		info.ContextLength = length
		s.models.Set(s.model, info)
	}
	return true, length
}

func (s *EmbeddingService) embedGroup(ctx context.Context, group []string, opts *embedOptions) ([][]float64, error) {
	payload, err := json.Marshal(embedRequest{Model: s.model, Input: group, Options: opts})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	stream, err := s.transport.Do(ctx, transport.Request{URL: s.api.BaseURL() + "/api/embed", Body: payload})
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	defer stream.Close()

	data, err := transport.ReadAll(stream)
	if err != nil {
		return nil, fmt.Errorf("ollama embed: read response: %w", err)
	}

	var resp embedResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("%w: ollama embed: %v", domain.ErrInvalidResponse, err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("ollama embed error: %s", resp.Error)
	}
	return resp.Embeddings, nil
}

// ModelName returns the name of the embedding model being used.
func (s *EmbeddingService) ModelName() string {
	return s.model
}

// Ping validates the service is reachable by checking the /api/tags endpoint.
// This is a lightweight check that validates connectivity without running inference.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	return s.api.Ping(ctx)
}

// Close releases resources.
func (s *EmbeddingService) Close() error {
	// HTTP client doesn't need explicit cleanup
	return nil
}
