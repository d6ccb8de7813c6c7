package ollama

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

type embedServer struct {
	mu         sync.Mutex
	calls      []embedRequest
	showCalls  atomic.Int32
	contextLen int
	showStatus int
	short      bool
}

func (e *embedServer) start(t *testing.T) *httptest.Server {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/show":
			e.showCalls.Add(1)
			if e.showStatus != 0 {
				w.WriteHeader(e.showStatus)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"model_info": map[string]any{"nomic-bert.context_length": e.contextLen},
			})
		case "/api/embed":
			var req embedRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			e.mu.Lock()
			e.calls = append(e.calls, req)
			e.mu.Unlock()

			n := len(req.Input)
			if e.short {
				n--
			}
			vecs := make([][]float64, n)
			for i := range vecs {
				vecs[i] = []float64{float64(len(req.Input[i])), 1}
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": vecs})
		case "/api/tags":
			_, _ = io.WriteString(w, `{"models":[]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func (e *embedServer) requests() []embedRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]embedRequest(nil), e.calls...)
}

func TestNewEmbeddingService_Defaults(t *testing.T) {
	s := NewEmbeddingService(Config{}, nil)
	assert.Equal(t, DefaultModel, s.ModelName())
	assert.Equal(t, DefaultBaseURL, s.api.BaseURL())
	assert.NoError(t, s.Close())
}

func TestEmbed_SingleGroup(t *testing.T) {
	e := &embedServer{contextLen: 8192}
	server := e.start(t)
	store := memory.NewModelInfoStore()
	s := NewEmbeddingService(Config{BaseURL: server.URL}, store)

	var progress [][2]int
	out, err := s.Embed(context.Background(), []string{"a", "bb", "ccc"}, func(p, total int) {
		progress = append(progress, [2]int{p, total})
	})

	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1, 1}, {2, 1}, {3, 1}}, out)
	assert.Equal(t, [][2]int{{3, 3}}, progress)

	reqs := e.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, DefaultModel, reqs[0].Model)
	require.NotNil(t, reqs[0].Options)
	assert.Equal(t, 8192, reqs[0].Options.NumCtx)

	info, ok := store.Get(DefaultModel)
	require.True(t, ok)
	assert.Equal(t, 8192, info.ContextLength)

	_, err = s.Embed(context.Background(), []string{"d"}, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(1), e.showCalls.Load(), "context length is cached")
}

func TestEmbed_SplitsByContextBudget(t *testing.T) {
	e := &embedServer{contextLen: 100}
	server := e.start(t)
	s := NewEmbeddingService(Config{BaseURL: server.URL}, memory.NewModelInfoStore())

	// Each text estimates to 60 tokens, so every group holds one text.
	texts := []string{strings.Repeat("a", 240), strings.Repeat("b", 240), strings.Repeat("c", 240)}
	var progress []int
	out, err := s.Embed(context.Background(), texts, func(p, _ int) {
		progress = append(progress, p)
	})

	require.NoError(t, err)
	assert.Len(t, out, 3)
	assert.Len(t, e.requests(), 3)
	assert.Equal(t, []int{1, 2, 3}, progress)
}

func TestEmbed_FallbackBudgetWhenUnknown(t *testing.T) {
	e := &embedServer{showStatus: http.StatusNotFound}
	server := e.start(t)
	s := NewEmbeddingService(Config{BaseURL: server.URL}, memory.NewModelInfoStore())

	// 1500 + 1500 tokens exceed the 2048 fallback budget.
	texts := []string{strings.Repeat("x", 6000), strings.Repeat("y", 6000)}
	_, err := s.Embed(context.Background(), texts, nil)

	require.NoError(t, err)
	reqs := e.requests()
	require.Len(t, reqs, 2)
	assert.Nil(t, reqs[0].Options, "num_ctx is only sent when known")
}

func TestEmbed_CountMismatch(t *testing.T) {
	e := &embedServer{contextLen: 8192, short: true}
	server := e.start(t)
	s := NewEmbeddingService(Config{BaseURL: server.URL}, nil)

	_, err := s.Embed(context.Background(), []string{"a", "b"}, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidResponse)
}

func TestEmbed_CancelBetweenGroups(t *testing.T) {
	e := &embedServer{contextLen: 100}
	server := e.start(t)
	s := NewEmbeddingService(Config{BaseURL: server.URL}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	texts := []string{strings.Repeat("a", 240), strings.Repeat("b", 240), strings.Repeat("c", 240)}
	out, err := s.Embed(ctx, texts, func(p, _ int) {
		if p == 1 {
			cancel()
		}
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, out, 1)
	assert.Len(t, e.requests(), 1)
}

func TestEmbed_CancelledBeforeStart(t *testing.T) {
	e := &embedServer{contextLen: 100}
	server := e.start(t)
	s := NewEmbeddingService(Config{BaseURL: server.URL}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := s.Embed(ctx, []string{"a"}, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, out)
	assert.Empty(t, e.requests())
	assert.Equal(t, int32(0), e.showCalls.Load())
}

func TestEmbed_Empty(t *testing.T) {
	s := NewEmbeddingService(Config{BaseURL: "http://127.0.0.1:0"}, nil)
	out, err := s.Embed(context.Background(), nil, nil)
	assert.NoError(t, err)
	assert.Nil(t, out)
}

func TestPing(t *testing.T) {
	server := (&embedServer{}).start(t)
	s := NewEmbeddingService(Config{BaseURL: server.URL}, nil)
	assert.NoError(t, s.Ping(context.Background()))
}
