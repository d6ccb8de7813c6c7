package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDocument_Fields(t *testing.T) {
	now := time.Now()
	doc := Document{
		Path:    "notes/Project Plan.md",
		Content: "# Plan",
		Meta: DocumentMeta{
			Basename:   "Project Plan",
			Stat:       FileStat{ModTime: now, CreateTime: now},
			Depth:      2,
			IsBacklink: true,
		},
	}

	assert.Equal(t, "notes/Project Plan.md", doc.Path)
	assert.Equal(t, "md", doc.Extension())
	assert.Equal(t, 2, doc.Meta.Depth)
	assert.True(t, doc.Meta.IsBacklink)
	assert.Equal(t, now, doc.Meta.Stat.ModTime)
}

func TestExtension(t *testing.T) {
	tests := []struct {
		path     string
		expected string
	}{
		{"a.md", "md"},
		{"dir/B.PDF", "pdf"},
		{"noext", ""},
		{"dir.v2/file.tar.gz", "gz"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.expected, Extension(tt.path))
		})
	}
}

func TestBasename(t *testing.T) {
	assert.Equal(t, "Project Plan", Basename("notes/Project Plan.md"))
	assert.Equal(t, "paper", Basename("paper.pdf"))
	assert.Equal(t, "noext", Basename("a/b/noext"))
}

func TestCacheEntries_IsFresh(t *testing.T) {
	content := ContentCacheEntry{MTime: 100, Content: "text"}
	assert.True(t, content.IsFresh(100))
	assert.False(t, content.IsFresh(101))

	emb := EmbeddingCacheEntry{MTime: 5, Model: "m1", Chunks: []EmbeddedChunk{{Content: "c", Embedding: []float64{1}}}}
	assert.True(t, emb.IsFresh(5))
	assert.False(t, emb.IsFresh(4))
	assert.True(t, emb.IsFreshFor(5, "m1"))
	assert.False(t, emb.IsFreshFor(5, "m2"))
	assert.False(t, emb.IsFreshFor(4, "m1"))
}

func TestCacheStore_IsValid(t *testing.T) {
	assert.True(t, CacheStoreContent.IsValid())
	assert.True(t, CacheStoreEmbeddings.IsValid())
	assert.False(t, CacheStore("all").IsValid())
}

func TestCollection_Documents(t *testing.T) {
	c := &Collection{
		Root: Document{Path: "root.md"},
		Linked: map[string]Document{
			"z.md":      {Path: "z.md"},
			"a/b.md":    {Path: "a/b.md"},
			"paper.pdf": {Path: "paper.pdf"},
		},
	}

	var paths []string
	for _, d := range c.Documents() {
		paths = append(paths, d.Path)
	}
	assert.Equal(t, []string{"root.md", "a/b.md", "paper.pdf", "z.md"}, paths)
}
