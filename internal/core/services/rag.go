package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// Ensure RAGService implements the interface.
var _ driving.RAGService = (*RAGService)(nil)

// RAGService answers questions from the notes linked to a root document.
// It runs collect, chunk and retrieve, then hands the formatted context to
// the language model.
type RAGService struct {
	collector   *Collector
	pipeline    driven.PostProcessorPipeline
	retriever   *RetrievalEngine
	llm         driven.LLMService
	prompts     driven.PromptStore
	temperature float64
}

// RAGOption configures a RAGService.
type RAGOption func(*RAGService)

// WithTemperature sets the generation temperature sent with every request.
func WithTemperature(t float64) RAGOption {
	return func(s *RAGService) {
		if t >= 0 {
			s.temperature = t
		}
	}
}

// NewRAGService creates a RAG service. The retriever and LLM are optional:
// without a retriever questions are answered without context, without an
// LLM only Context and Collect work.
func NewRAGService(
	collector *Collector,
	pipeline driven.PostProcessorPipeline,
	retriever *RetrievalEngine,
	llm driven.LLMService,
	prompts driven.PromptStore,
	opts ...RAGOption,
) *RAGService {
	s := &RAGService{
		collector:   collector,
		pipeline:    pipeline,
		retriever:   retriever,
		llm:         llm,
		prompts:     prompts,
		temperature: domain.DefaultTemperature,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Collect returns the documents reachable from rootPath.
func (s *RAGService) Collect(ctx context.Context, rootPath string) (*domain.Collection, error) {
	return s.collector.Collect(ctx, rootPath)
}

// Context returns the formatted retrieval context for query.
func (s *RAGService) Context(ctx context.Context, rootPath, query string, progress *driving.Progress) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", fmt.Errorf("%w: empty query", domain.ErrInvalidInput)
	}
	if s.retriever == nil {
		return "", domain.ErrEmbeddingUnavailable
	}

	collection, err := s.collector.Collect(ctx, rootPath)
	if err != nil {
		return "", err
	}

	docs, err := s.chunk(ctx, collection)
	if err != nil {
		return "", err
	}

	text, err := s.retriever.Retrieve(ctx, query, docs, progress)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}
	return text, err
}

// Ask answers req.Prompt. A retrieval failure is logged and the question is
// answered without context, except for an unavailable cache, which fails
// the call.
func (s *RAGService) Ask(
	ctx context.Context,
	req driving.AskRequest,
	progress *driving.Progress,
	onUpdate func(string),
) (string, error) {
	if s.llm == nil {
		return "", domain.ErrLLMUnavailable
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return "", fmt.Errorf("%w: empty prompt", domain.ErrInvalidInput)
	}

	var retrieved string
	if s.retriever != nil && req.RootPath != "" {
		var err error
		retrieved, err = s.Context(ctx, req.RootPath, req.Prompt, progress)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		if errors.Is(err, domain.ErrCacheUnavailable) {
			return "", fmt.Errorf("retrieve context: %w", err)
		}
		if err != nil {
			if !errors.Is(err, domain.ErrEmbeddingUnavailable) {
				logger.Warn("rag: answering without context: %v", err)
			}
			retrieved = ""
		}
	}

	action := req.Action
	if action == "" {
		action = s.loadPrompt(driven.PromptAskSystem, "")
	}
	if retrieved != "" {
		if tmpl := s.loadPrompt(driven.PromptContext, ""); strings.Count(tmpl, "%s") == 1 {
			retrieved = fmt.Sprintf(tmpl, retrieved)
		}
	}

	logger.Section("Generate")
	logger.Debug("Model %s, context %d chars", s.llm.ModelName(), len(retrieved))

	answer, err := s.llm.Process(ctx, domain.ProcessRequest{
		Prompt:      req.Prompt,
		Action:      action,
		Context:     retrieved,
		Images:      req.Images,
		Temperature: s.temperature,
	}, onUpdate)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}
	if err != nil {
		return "", fmt.Errorf("generate answer: %w", err)
	}
	return answer, nil
}

// chunk splits every collected document through the post-processor
// pipeline. Documents that fail to chunk are logged and left out.
func (s *RAGService) chunk(ctx context.Context, collection *domain.Collection) ([]domain.ChunkedDocument, error) {
	logger.Section("Chunk")

	docs := collection.Documents()
	out := make([]domain.ChunkedDocument, 0, len(docs))
	total := 0
	for i := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		chunks, err := s.pipeline.Process(ctx, &docs[i])
		if err != nil {
			logger.Warn("rag: chunking %s: %v", docs[i].Path, err)
			continue
		}

		texts := make([]string, len(chunks))
		for j, c := range chunks {
			texts[j] = c.Content
		}
		total += len(texts)
		out = append(out, domain.ChunkedDocument{Document: docs[i], Chunks: texts})
	}

	logger.Debug("Split %d documents into %d chunks", len(out), total)
	return out, nil
}

func (s *RAGService) loadPrompt(name, fallback string) string {
	if s.prompts == nil {
		return fallback
	}
	prompt, err := s.prompts.Load(name)
	if err != nil {
		logger.Warn("rag: loading prompt %s: %v", name, err)
		return fallback
	}
	return prompt
}
