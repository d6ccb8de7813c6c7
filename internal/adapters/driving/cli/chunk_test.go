package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkCmd_Use(t *testing.T) {
	assert.Equal(t, "chunk <file>", chunkCmd.Use)
}

func TestChunkCmd_PrintsChunks(t *testing.T) {
	setupTestServices(t)
	path := filepath.Join(t.TempDir(), "note.md")
	content := "---\ntags: [x]\n---\n# First\nAlpha text.\n# Second\nBeta text.\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	out, err := executeCmd(t, "chunk", path)

	require.NoError(t, err)
	assert.Contains(t, out, "--- chunk 1 (")
	assert.Contains(t, out, "--- chunk 2 (")
	assert.Contains(t, out, "# First\nAlpha text.")
	assert.Contains(t, out, "# Second\nBeta text.")
	assert.NotContains(t, out, "tags:")
	assert.Contains(t, out, "2 chunk(s)")
}

func TestChunkCmd_EmptyFile(t *testing.T) {
	setupTestServices(t)
	path := filepath.Join(t.TempDir(), "empty.md")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	out, err := executeCmd(t, "chunk", path)

	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(out, "0 chunk(s)\n"))
}

func TestChunkCmd_MissingFile(t *testing.T) {
	setupTestServices(t)

	_, err := executeCmd(t, "chunk", filepath.Join(t.TempDir(), "missing.md"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "read file")
}
