package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-rag/internal/logger"
	"github.com/custodia-labs/sercha-rag/internal/normalisers/markdown"
)

// VectorIndexFactory creates an empty similarity index for one query.
type VectorIndexFactory func() driven.VectorIndex

// RetrievalEngine embeds chunks, ranks them against a query and formats the
// best matches as prompt context.
type RetrievalEngine struct {
	embedder driven.EmbeddingService
	cache    driven.Cache
	newIndex VectorIndexFactory

	topK     int
	maxChars int
}

// RetrievalOption configures a RetrievalEngine.
type RetrievalOption func(*RetrievalEngine)

// WithTopK sets the number of chunks retrieved per query.
func WithTopK(k int) RetrievalOption {
	return func(e *RetrievalEngine) {
		if k > 0 {
			e.topK = k
		}
	}
}

// WithMaxContextChars caps the formatted context length.
func WithMaxContextChars(n int) RetrievalOption {
	return func(e *RetrievalEngine) {
		if n > 0 {
			e.maxChars = n
		}
	}
}

// NewRetrievalEngine creates a retrieval engine. The cache is optional.
func NewRetrievalEngine(
	embedder driven.EmbeddingService,
	cache driven.Cache,
	newIndex VectorIndexFactory,
	opts ...RetrievalOption,
) *RetrievalEngine {
	e := &RetrievalEngine{
		embedder: embedder,
		cache:    cache,
		newIndex: newIndex,
		topK:     domain.DefaultTopK,
		maxChars: domain.DefaultMaxContextChars,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// pendingDoc is a document whose chunks need fresh embeddings.
type pendingDoc struct {
	index int
	mtime int64
	start int
}

// Retrieve returns the formatted context for query. Cancellation is not an
// error: the engine returns an empty string and stops issuing work. An
// unavailable cache fails the call; other cache errors only cost a
// recomputation.
func (e *RetrievalEngine) Retrieve(
	ctx context.Context,
	query string,
	docs []domain.ChunkedDocument,
	progress *driving.Progress,
) (string, error) {
	if ctx.Err() != nil {
		return "", nil
	}
	if e.embedder == nil || strings.TrimSpace(query) == "" {
		return "", nil
	}
	logger.Section("Retrieve")

	vectors := make([][][]float64, len(docs))
	var texts []string
	var pending []pendingDoc
	for i, doc := range docs {
		if len(doc.Chunks) == 0 {
			continue
		}
		mtime := doc.Document.Meta.Stat.ModTime.UnixMilli()
		cached, err := e.cachedEmbeddings(ctx, doc, mtime)
		if err != nil {
			return "", err
		}
		if cached != nil {
			vectors[i] = cached
			continue
		}
		pending = append(pending, pendingDoc{index: i, mtime: mtime, start: len(texts)})
		texts = append(texts, doc.Chunks...)
	}
	if len(texts) == 0 && allEmpty(vectors) {
		return "", nil
	}

	// The query rides along in the same batch.
	texts = append(texts, query)
	logger.Debug("Embedding %d chunks (%d documents cached)", len(texts)-1, len(docs)-len(pending))

	embedded, err := e.embedder.Embed(ctx, texts, progressReporter(progress, 1))
	if ctx.Err() != nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("embed chunks: %w", err)
	}
	if len(embedded) != len(texts) {
		return "", fmt.Errorf("%w: got %d embeddings for %d texts", domain.ErrInvalidResponse, len(embedded), len(texts))
	}
	queryVec := embedded[len(embedded)-1]

	for _, p := range pending {
		doc := docs[p.index]
		vectors[p.index] = embedded[p.start : p.start+len(doc.Chunks)]
		if err := e.storeEmbeddings(ctx, doc, p.mtime, vectors[p.index]); err != nil {
			return "", err
		}
	}

	results, err := e.search(ctx, queryVec, docs, vectors)
	if ctx.Err() != nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	return FormatResults(results, e.maxChars), nil
}

// cachedEmbeddings returns the cached vectors for doc when the entry is
// fresh, was produced by the current model and covers exactly the current
// chunks. A nil result without error means the document must be embedded.
func (e *RetrievalEngine) cachedEmbeddings(
	ctx context.Context,
	doc domain.ChunkedDocument,
	mtime int64,
) ([][]float64, error) {
	if e.cache == nil {
		return nil, nil
	}

	entry, err := e.cache.GetEmbeddings(ctx, doc.Document.Path)
	switch {
	case errors.Is(err, domain.ErrCacheUnavailable):
		return nil, fmt.Errorf("embedding cache: %w", err)
	case errors.Is(err, domain.ErrNotFound):
		return nil, nil
	case err != nil:
		logger.Warn("retrieval: embedding cache read for %s: %v", doc.Document.Path, err)
		return nil, nil
	}
	if !entry.IsFreshFor(mtime, e.embedder.ModelName()) || len(entry.Chunks) != len(doc.Chunks) {
		return nil, nil
	}

	out := make([][]float64, len(entry.Chunks))
	for i, chunk := range entry.Chunks {
		if chunk.Content != doc.Chunks[i] {
			return nil, nil
		}
		out[i] = chunk.Embedding
	}
	return out, nil
}

func (e *RetrievalEngine) storeEmbeddings(
	ctx context.Context,
	doc domain.ChunkedDocument,
	mtime int64,
	vectors [][]float64,
) error {
	if e.cache == nil {
		return nil
	}

	entry := domain.EmbeddingCacheEntry{
		MTime:  mtime,
		Model:  e.embedder.ModelName(),
		Chunks: make([]domain.EmbeddedChunk, len(vectors)),
	}
	for i, vec := range vectors {
		entry.Chunks[i] = domain.EmbeddedChunk{Content: doc.Chunks[i], Embedding: vec}
	}

	err := e.cache.PutEmbeddings(ctx, doc.Document.Path, entry)
	if errors.Is(err, domain.ErrCacheUnavailable) {
		return fmt.Errorf("embedding cache: %w", err)
	}
	if err != nil {
		logger.Warn("retrieval: caching embeddings for %s: %v", doc.Document.Path, err)
	}
	return nil
}

// search indexes every chunk vector and returns the top matches. Vectors
// that do not match the query dimension are skipped.
func (e *RetrievalEngine) search(
	ctx context.Context,
	query []float64,
	docs []domain.ChunkedDocument,
	vectors [][][]float64,
) ([]domain.RetrievalResult, error) {
	index := e.newIndex()
	defer index.Close()

	for i, docVectors := range vectors {
		for j, vec := range docVectors {
			if len(vec) != len(query) {
				logger.Warn("retrieval: skipping chunk %d of %s: dimension %d, query %d", j, docs[i].Document.Path, len(vec), len(query))
				continue
			}
			if err := index.Add(ctx, chunkKey(i, j), vec); err != nil {
				logger.Warn("retrieval: skipping chunk %d of %s: %v", j, docs[i].Document.Path, err)
			}
		}
	}

	hits, err := index.Search(ctx, query, e.topK)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	results := make([]domain.RetrievalResult, 0, len(hits))
	for _, hit := range hits {
		i, j, ok := parseChunkKey(hit.ChunkID)
		if !ok {
			continue
		}
		results = append(results, domain.RetrievalResult{
			Document: docs[i].Document,
			Content:  docs[i].Chunks[j],
			Score:    hit.Similarity,
		})
	}
	return results, nil
}

func chunkKey(doc, chunk int) string {
	return strconv.Itoa(doc) + ":" + strconv.Itoa(chunk)
}

func parseChunkKey(key string) (doc, chunk int, ok bool) {
	a, b, found := strings.Cut(key, ":")
	if !found {
		return 0, 0, false
	}
	doc, errA := strconv.Atoi(a)
	chunk, errB := strconv.Atoi(b)
	return doc, chunk, errA == nil && errB == nil
}

func allEmpty(vectors [][][]float64) bool {
	for _, v := range vectors {
		if len(v) > 0 {
			return false
		}
	}
	return true
}

// progressReporter adapts provider progress to the caller's step counter.
// The total is reported once, the first time progress arrives; steps only
// ever increase. The last extra texts of the batch are not chunks (the
// query) and are left out of both counts.
func progressReporter(p *driving.Progress, extra int) driven.ProgressFunc {
	if p == nil || (p.OnTotal == nil && p.OnStep == nil) {
		return nil
	}

	totalSent := false
	last := 0
	return func(processed, total int) {
		total = max(total-extra, 0)
		processed = min(processed, total)
		if !totalSent {
			totalSent = true
			if p.OnTotal != nil {
				p.OnTotal(total)
			}
		}
		if processed > last {
			last = processed
			if p.OnStep != nil {
				p.OnStep(processed)
			}
		}
	}
}

// CreatedTime returns the frontmatter "created" time of doc, or the file
// creation time when the field is absent or unparseable.
func CreatedTime(doc domain.Document) time.Time {
	if doc.Extension() == "md" {
		if fm, err := markdown.ParseFrontmatter(doc.Content); err == nil && fm.HasCreated() {
			return fm.Created
		}
	}
	return doc.Meta.Stat.CreateTime
}

// resultGroup is the set of results of one document basename.
type resultGroup struct {
	name    string
	created time.Time
	results []domain.RetrievalResult
}

// FormatResults renders results grouped by document basename. Groups are
// ordered newest first by the latest created time among their results,
// chunks within a group by descending score. Output stops before the
// first piece that would take it past maxChars runes.
func FormatResults(results []domain.RetrievalResult, maxChars int) string {
	if len(results) == 0 {
		return ""
	}
	if maxChars <= 0 {
		maxChars = domain.DefaultMaxContextChars
	}

	byName := make(map[string]*resultGroup)
	var groups []*resultGroup
	for _, r := range results {
		name := r.Document.Meta.Basename
		if name == "" {
			name = domain.Basename(r.Document.Path)
		}
		g, ok := byName[name]
		if !ok {
			g = &resultGroup{name: name}
			byName[name] = g
			groups = append(groups, g)
		}
		if created := CreatedTime(r.Document); created.After(g.created) {
			g.created = created
		}
		g.results = append(g.results, r)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		if !groups[i].created.Equal(groups[j].created) {
			return groups[i].created.After(groups[j].created)
		}
		return groups[i].name < groups[j].name
	})

	var b strings.Builder
	used := 0
	appendPiece := func(piece string) bool {
		n := utf8.RuneCountInString(piece)
		if used+n > maxChars {
			return false
		}
		b.WriteString(piece)
		used += n
		return true
	}

	for _, g := range groups {
		slices.SortStableFunc(g.results, func(a, b domain.RetrievalResult) int {
			switch {
			case a.Score > b.Score:
				return -1
			case a.Score < b.Score:
				return 1
			default:
				return 0
			}
		})

		full := true
		for i, r := range g.results {
			piece := strings.TrimSpace(r.Content) + "\n\n"
			// A header is only written together with its first chunk.
			if i == 0 {
				piece = "## " + g.name + "\n\n" + piece
			}
			if !appendPiece(piece) {
				full = false
				break
			}
		}
		if !full {
			break
		}
	}

	return strings.TrimSpace(b.String())
}
