// Package openai provides an embedding service adapter for OpenAI-compatible
// APIs.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/embedding"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/llm/transport"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "text-embedding-3-small"

	// DefaultMaxTokens is the per-request token budget of the
	// text-embedding-3 family.
	DefaultMaxTokens = 8191
)

// Config holds configuration for the OpenAI embedding service.
type Config struct {
	// APIKey is sent as a bearer token when set.
	APIKey string

	// BaseURL is the API base URL (default: https://api.openai.com/v1).
	// Can be changed for Azure OpenAI or compatible APIs.
	BaseURL string

	// Model is the embedding model to use (default: text-embedding-3-small).
	Model string

	// MaxTokens bounds the estimated tokens sent in one request.
	MaxTokens int

	// Limiter throttles requests when set.
	Limiter *transport.RateLimiter
}

// EmbeddingService generates embeddings using the /embeddings endpoint.
type EmbeddingService struct {
	transport transport.Transport
	baseURL   string
	apiKey    string
	model     string
	maxTokens int
}

// embeddingRequest is the OpenAI API request format.
type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// embeddingResponse is the OpenAI API response format.
type embeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// NewEmbeddingService creates a new OpenAI embedding service.
func NewEmbeddingService(cfg Config) *EmbeddingService {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}

	return &EmbeddingService{
		transport: transport.NewBuffered(nil, cfg.Limiter),
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}
}

// Embed generates embeddings for texts, one request per group that fits the
// token budget.
func (s *EmbeddingService) Embed(ctx context.Context, texts []string, onProgress driven.ProgressFunc) ([][]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(texts) == 0 {
		return nil, nil
	}

	groups := embedding.Groups(texts, s.maxTokens)
	return embedding.Run(ctx, groups, s.embedGroup, onProgress)
}

func (s *EmbeddingService) embedGroup(ctx context.Context, group []string) ([][]float64, error) {
	payload, err := json.Marshal(embeddingRequest{Model: s.model, Input: group})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	stream, err := s.transport.Do(ctx, transport.Request{
		URL:    s.baseURL + "/embeddings",
		Body:   payload,
		Header: s.header(),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	defer stream.Close()

	data, err := transport.ReadAll(stream)
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: read response: %w", err)
	}

	var resp embeddingResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("%w: openai embeddings: %v", domain.ErrInvalidResponse, err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("openai error: %s", resp.Error.Message)
	}

	// Order by index; a missing or out-of-range index is a malformed response.
	embeddings := make([][]float64, len(resp.Data))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(embeddings) || embeddings[d.Index] != nil {
			return nil, fmt.Errorf("%w: openai embeddings: bad index %d", domain.ErrInvalidResponse, d.Index)
		}
		embeddings[d.Index] = d.Embedding
	}
	return embeddings, nil
}

func (s *EmbeddingService) header() http.Header {
	h := http.Header{}
	if s.apiKey != "" {
		h.Set("Authorization", "Bearer "+s.apiKey)
	}
	return h
}

// ModelName returns the name of the embedding model being used.
func (s *EmbeddingService) ModelName() string {
	return s.model
}

// Ping validates the service is reachable by checking the /models endpoint.
// This is a lightweight check that validates the API key without running inference.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	stream, err := s.transport.Do(ctx, transport.Request{
		Method: http.MethodGet,
		URL:    s.baseURL + "/models",
		Header: s.header(),
	})
	if err != nil {
		return fmt.Errorf("openai: ping failed: %w", err)
	}
	return stream.Close()
}

// Close releases resources.
func (s *EmbeddingService) Close() error {
	// HTTP client doesn't need explicit cleanup
	return nil
}
