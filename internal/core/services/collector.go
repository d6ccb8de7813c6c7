package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/logger"
	"github.com/custodia-labs/sercha-rag/internal/normalisers/markdown"
)

// DefaultMaxConcurrentReads bounds simultaneous file reads and extractions.
const DefaultMaxConcurrentReads = 8

// Collector walks the link graph around a root document.
//
// Forward links are followed up to the maximum depth. Every forward-reached
// markdown document also pulls in the documents linking to it, at the same
// depth; those backlink documents are never expanded further.
type Collector struct {
	files     driven.FileStore
	links     driven.LinkIndex
	extractor driven.TextExtractor
	cache     driven.Cache

	maxDepth   int
	extensions map[string]bool
	reads      *semaphore.Weighted
}

// CollectorOption configures a Collector.
type CollectorOption func(*Collector)

// WithMaxDepth sets the forward-link depth bound.
func WithMaxDepth(depth int) CollectorOption {
	return func(c *Collector) {
		if depth >= 0 {
			c.maxDepth = depth
		}
	}
}

// WithExtensions sets the file extensions the collector follows.
func WithExtensions(exts []string) CollectorOption {
	return func(c *Collector) {
		if len(exts) == 0 {
			return
		}
		c.extensions = make(map[string]bool, len(exts))
		for _, ext := range exts {
			c.extensions[strings.ToLower(strings.TrimPrefix(ext, "."))] = true
		}
	}
}

// WithMaxConcurrentReads caps simultaneous file reads and extractions.
func WithMaxConcurrentReads(n int) CollectorOption {
	return func(c *Collector) {
		if n > 0 {
			c.reads = semaphore.NewWeighted(int64(n))
		}
	}
}

// NewCollector creates a collector. The extractor and cache are optional:
// without an extractor PDF documents fail individually, without a cache
// every extraction is recomputed.
func NewCollector(
	files driven.FileStore,
	links driven.LinkIndex,
	extractor driven.TextExtractor,
	cache driven.Cache,
	opts ...CollectorOption,
) *Collector {
	c := &Collector{
		files:     files,
		links:     links,
		extractor: extractor,
		cache:     cache,
		maxDepth:  domain.DefaultMaxDepth,
		reads:     semaphore.NewWeighted(DefaultMaxConcurrentReads),
	}
	WithExtensions(domain.DefaultExtensions())(c)

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Collect reads the root document and every document reachable from it.
// A failure to read the root and an unavailable cache are returned; any
// other document that cannot be read is logged and left out.
func (c *Collector) Collect(ctx context.Context, rootPath string) (*domain.Collection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logger.Section("Collect")

	root, err := c.load(ctx, rootPath, 0, false)
	if err != nil {
		return nil, fmt.Errorf("read root document %s: %w", rootPath, err)
	}

	w := &walk{
		Collector: c,
		root:      rootPath,
		visited:   make(map[string]struct{}),
		docs:      make(map[string]domain.Document),
	}
	if err := w.expand(ctx, root); err != nil {
		return nil, err
	}

	logger.Debug("Collected %d documents linked from %s", len(w.docs), rootPath)
	return &domain.Collection{Root: root, Linked: w.docs}, nil
}

// walk is the state of one traversal.
type walk struct {
	*Collector
	root string

	mu      sync.Mutex
	visited map[string]struct{}
	docs    map[string]domain.Document
}

// claim marks path visited. It returns false if another branch got there
// first.
func (w *walk) claim(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.visited[path]; ok {
		return false
	}
	w.visited[path] = struct{}{}
	return true
}

func (w *walk) seen(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.visited[path]
	return ok
}

func (w *walk) store(doc domain.Document) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.docs[doc.Path] = doc
}

// expand visits the forward links and backlinks of doc concurrently and
// returns once every child has settled. It fails only on cancellation or
// an unavailable cache.
func (w *walk) expand(ctx context.Context, doc domain.Document) error {
	if doc.Meta.IsBacklink || doc.Extension() != "md" {
		return nil
	}

	forward := w.forwardLinks(doc)
	backlinks := w.backlinks(doc, forward)
	if len(forward) == 0 && len(backlinks) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, path := range forward {
		path := path
		g.Go(func() error {
			return w.visit(gctx, path, doc.Meta.Depth+1, false)
		})
	}
	for _, path := range backlinks {
		path := path
		g.Go(func() error {
			return w.visit(gctx, path, doc.Meta.Depth, true)
		})
	}
	return g.Wait()
}

// forwardLinks resolves the wiki links in doc to supported document paths.
func (w *walk) forwardLinks(doc domain.Document) []string {
	var paths []string
	seen := make(map[string]bool)
	for _, link := range markdown.ExtractWikiLinks(doc.Content) {
		path, ok := w.links.ResolveLink(link, doc.Path)
		if !ok || seen[path] || !w.extensions[domain.Extension(path)] {
			continue
		}
		seen[path] = true
		paths = append(paths, path)
	}
	return paths
}

// backlinks returns the documents linking to doc that were not yet visited
// and are not among its forward links.
func (w *walk) backlinks(doc domain.Document, forward []string) []string {
	var paths []string
	for path := range w.links.Backlinks(doc.Path) {
		if path == w.root || path == doc.Path || slices.Contains(forward, path) || w.seen(path) {
			continue
		}
		paths = append(paths, path)
	}
	return paths
}

// visit loads path and expands it. Read failures are logged and swallowed;
// an unavailable cache aborts the walk.
func (w *walk) visit(ctx context.Context, path string, depth int, isBacklink bool) error {
	if depth > w.maxDepth || path == w.root {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if !w.claim(path) {
		return nil
	}

	doc, err := w.load(ctx, path, depth, isBacklink)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if errors.Is(err, domain.ErrCacheUnavailable) {
			return fmt.Errorf("load %s: %w", path, err)
		}
		logger.Warn("collector: skipping %s: %v", path, err)
		return nil
	}

	w.store(doc)
	return w.expand(ctx, doc)
}

// load reads one document. PDFs go through the extractor and the content
// cache; supported text formats are read directly.
func (c *Collector) load(ctx context.Context, path string, depth int, isBacklink bool) (domain.Document, error) {
	ext := domain.Extension(path)
	if !c.extensions[ext] {
		return domain.Document{}, fmt.Errorf("%w: %q", domain.ErrUnsupportedType, ext)
	}

	if err := c.reads.Acquire(ctx, 1); err != nil {
		return domain.Document{}, err
	}
	defer c.reads.Release(1)

	stat, err := c.files.Stat(ctx, path)
	if err != nil {
		return domain.Document{}, fmt.Errorf("stat: %w", err)
	}

	var content string
	if ext == "pdf" {
		content, err = c.extractPDF(ctx, path, stat)
	} else {
		content, err = c.files.ReadText(ctx, path)
	}
	if err != nil {
		return domain.Document{}, err
	}

	return domain.Document{
		Path:    path,
		Content: content,
		Meta: domain.DocumentMeta{
			Basename:   domain.Basename(path),
			Stat:       stat,
			Depth:      depth,
			IsBacklink: isBacklink,
		},
	}, nil
}

// extractPDF returns the text of a PDF, reusing a cached extraction while
// the file's mtime is unchanged.
func (c *Collector) extractPDF(ctx context.Context, path string, stat domain.FileStat) (string, error) {
	if c.extractor == nil {
		return "", fmt.Errorf("%w: no PDF extractor configured", domain.ErrUnsupportedType)
	}
	mtime := stat.ModTime.UnixMilli()

	if c.cache != nil {
		entry, err := c.cache.GetContent(ctx, path)
		switch {
		case err == nil && entry.IsFresh(mtime):
			return entry.Content, nil
		case err != nil && !errors.Is(err, domain.ErrNotFound):
			return "", fmt.Errorf("content cache: %w", err)
		}
	}

	data, err := c.files.ReadBinary(ctx, path)
	if err != nil {
		return "", fmt.Errorf("read: %w", err)
	}
	content, err := c.extractor.ExtractText(ctx, data)
	if err != nil {
		return "", fmt.Errorf("extract: %w", err)
	}

	if c.cache != nil {
		err := c.cache.PutContent(ctx, path, domain.ContentCacheEntry{MTime: mtime, Content: content})
		if errors.Is(err, domain.ErrCacheUnavailable) {
			return "", fmt.Errorf("content cache: %w", err)
		}
		if err != nil {
			logger.Warn("collector: caching %s: %v", path, err)
		}
	}
	return content, nil
}
