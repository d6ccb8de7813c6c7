// Package ollamaapi wraps the Ollama metadata endpoints shared by the
// generation and embedding adapters: model info and the model list.
package ollamaapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/llm/transport"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// DefaultBaseURL is the address of a local Ollama server.
const DefaultBaseURL = "http://localhost:11434"

// Client calls the Ollama metadata API over a buffered transport.
type Client struct {
	baseURL   string
	transport transport.Transport
}

// New creates a client for baseURL. A nil transport gets a buffered one.
func New(baseURL string, tr transport.Transport) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if tr == nil {
		tr = transport.NewBuffered(nil, nil)
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		transport: tr,
	}
}

// BaseURL returns the server address without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// showResponse is the subset of /api/show the client reads.
type showResponse struct {
	ModelInfo map[string]any `json:"model_info"`
}

// ContextLength returns the model's maximum context in tokens, read from the
// "<family>.context_length" key of /api/show. It returns 0 when the server
// does not report one.
func (c *Client) ContextLength(ctx context.Context, model string) (int, error) {
	body, err := json.Marshal(map[string]string{"model": model})
	if err != nil {
		return 0, fmt.Errorf("marshal request: %w", err)
	}

	var resp showResponse
	if err := c.call(ctx, http.MethodPost, "/api/show", body, &resp); err != nil {
		return 0, err
	}

	return findContextLength(resp.ModelInfo), nil
}

// findContextLength looks for a numeric key ending in ".context_length".
// Keys are checked in sorted order so the result is deterministic.
func findContextLength(info map[string]any) int {
	keys := make([]string, 0, len(info))
	for key := range info {
		if key == "context_length" || strings.HasSuffix(key, ".context_length") {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	for _, key := range keys {
		if n, ok := info[key].(float64); ok && n > 0 {
			return int(n)
		}
	}
	return 0
}

// tagsResponse is the /api/tags response format.
type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// ListModels returns the installed model names with ":latest" removed.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	var resp tagsResponse
	if err := c.call(ctx, http.MethodGet, "/api/tags", nil, &resp); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		names = append(names, strings.TrimSuffix(m.Name, ":latest"))
	}
	return names, nil
}

// Ping checks the server answers /api/tags.
func (c *Client) Ping(ctx context.Context) error {
	stream, err := c.transport.Do(ctx, transport.Request{Method: http.MethodGet, URL: c.baseURL + "/api/tags"})
	if err != nil {
		return fmt.Errorf("ollama: ping failed: %w", err)
	}
	return stream.Close()
}

func (c *Client) call(ctx context.Context, method, path string, body []byte, out any) error {
	stream, err := c.transport.Do(ctx, transport.Request{
		Method: method,
		URL:    c.baseURL + path,
		Body:   body,
	})
	if err != nil {
		return fmt.Errorf("ollama %s: %w", path, err)
	}
	defer stream.Close()

	data, err := transport.ReadAll(stream)
	if err != nil {
		return fmt.Errorf("ollama %s: read response: %w", path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: ollama %s: %v", domain.ErrInvalidResponse, path, err)
	}
	return nil
}
