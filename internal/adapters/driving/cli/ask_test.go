package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

func TestAskCmd_Use(t *testing.T) {
	assert.Equal(t, "ask <note> <question>", askCmd.Use)
}

func TestAskCmd_RequiresTwoArgs(t *testing.T) {
	setupTestServices(t)

	_, err := executeCmd(t, "ask", "note.md")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 2 arg(s)")
}

func TestAskCmd_HasFlags(t *testing.T) {
	action := askCmd.Flags().Lookup("action")
	require.NotNil(t, action)
	assert.Equal(t, "a", action.Shorthand)
	assert.NotNil(t, askCmd.Flags().Lookup("image"))
}

func TestAskCmd_PrintsAnswer(t *testing.T) {
	ts := setupTestServices(t)
	ts.rag.answer = "Apples are great."
	ts.rag.updates = []string{"Apples", "Apples are great."}

	out, err := executeCmd(t, "ask", "notes/root.md", "what about apples?", "--action", "Be brief.")

	require.NoError(t, err)
	// Output is not a terminal, so only the final answer is printed.
	assert.Equal(t, "Apples are great.\n", out)
	assert.Equal(t, "notes/root.md", ts.rag.lastAsk.RootPath)
	assert.Equal(t, "what about apples?", ts.rag.lastAsk.Prompt)
	assert.Equal(t, "Be brief.", ts.rag.lastAsk.Action)
	assert.Empty(t, ts.rag.lastAsk.Images)
}

func TestAskCmd_ForwardsImages(t *testing.T) {
	ts := setupTestServices(t)
	img := filepath.Join(t.TempDir(), "pic.png")
	require.NoError(t, os.WriteFile(img, []byte("png"), 0o644))

	_, err := executeCmd(t, "ask", "root.md", "describe", "--image", img)

	require.NoError(t, err)
	assert.Equal(t, []string{"cG5n"}, ts.rag.lastAsk.Images)
}

func TestAskCmd_MissingImage(t *testing.T) {
	setupTestServices(t)

	_, err := loadImages([]string{filepath.Join(t.TempDir(), "missing.png")})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "read image")
}

func TestAskCmd_Error(t *testing.T) {
	ts := setupTestServices(t)
	ts.rag.askErr = domain.ErrLLMUnavailable

	_, err := executeCmd(t, "ask", "root.md", "question")

	require.ErrorIs(t, err, domain.ErrLLMUnavailable)
	assert.Contains(t, err.Error(), "ask failed")
}

func TestAskCmd_CancelledIsSilent(t *testing.T) {
	ts := setupTestServices(t)
	ts.rag.askErr = context.Canceled

	out, err := executeCmd(t, "ask", "root.md", "question")

	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestStreamPrinter(t *testing.T) {
	tests := []struct {
		name    string
		updates []string
		final   string
		want    string
	}{
		{
			name:    "appends cumulative updates",
			updates: []string{"Hel", "Hello", "Hello world"},
			final:   "Hello world",
			want:    "Hello world\n",
		},
		{
			name:    "final text completes the stream",
			updates: []string{"Hel"},
			final:   "Hello",
			want:    "Hello\n",
		},
		{
			name:    "replaced text starts a new block",
			updates: []string{"Hel"},
			final:   "Bye",
			want:    "Hel\n\nBye\n",
		},
		{
			name:  "no updates prints final",
			final: "Done",
			want:  "Done\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := new(bytes.Buffer)
			p := &streamPrinter{w: buf}
			for _, u := range tt.updates {
				p.update(u)
			}
			p.finish(tt.final)

			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, isTerminal(new(bytes.Buffer)))
}

func TestProgressFor(t *testing.T) {
	assert.Nil(t, progressFor(askCmd, false))

	buf := new(bytes.Buffer)
	askCmd.SetErr(buf)
	defer askCmd.SetErr(nil)

	progress := progressFor(askCmd, true)
	require.NotNil(t, progress)
	progress.OnTotal(2)
	progress.OnStep(1)
	progress.OnStep(2)

	assert.Contains(t, buf.String(), "Embedding 1/2")
	assert.Contains(t, buf.String(), "Embedding 2/2")
}
