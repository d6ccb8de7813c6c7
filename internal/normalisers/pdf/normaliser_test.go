package pdf

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// mockRunner is a test double for CommandRunner.
type mockRunner struct {
	output []byte
	err    error

	name string
	args []string
	file []byte
}

func (m *mockRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	m.name = name
	m.args = args
	// The input file is the second to last argument.
	if len(args) >= 2 {
		m.file, _ = os.ReadFile(args[len(args)-2])
	}
	return m.output, m.err
}

var fakePDF = []byte("%PDF-1.4 fake pdf content")

func TestNew(t *testing.T) {
	extractor := New()
	require.NotNil(t, extractor)
	assert.IsType(t, execRunner{}, extractor.runner)
}

func TestNewWithRunner(t *testing.T) {
	runner := &mockRunner{output: []byte("test output")}
	extractor := NewWithRunner(runner)
	require.NotNil(t, extractor)
	assert.Equal(t, runner, extractor.runner)
}

func TestInterfaceCompliance(t *testing.T) {
	var _ driven.TextExtractor = (*Extractor)(nil)
}

func TestExtractText_WithMockRunner(t *testing.T) {
	runner := &mockRunner{
		output: []byte("PDF Title   \n\fThis is the content of the PDF.\n\n"),
	}
	extractor := NewWithRunner(runner)

	text, err := extractor.ExtractText(context.Background(), fakePDF)
	require.NoError(t, err)
	assert.Equal(t, "PDF Title\n\nThis is the content of the PDF.", text)

	assert.Equal(t, "pdftotext", runner.name)
	assert.Equal(t, "-", runner.args[len(runner.args)-1])
	assert.Equal(t, fakePDF, runner.file)
}

func TestExtractText_TempFileRemoved(t *testing.T) {
	runner := &mockRunner{output: []byte("text")}
	extractor := NewWithRunner(runner)

	_, err := extractor.ExtractText(context.Background(), fakePDF)
	require.NoError(t, err)

	_, statErr := os.Stat(runner.args[len(runner.args)-2])
	assert.True(t, os.IsNotExist(statErr))
}

func TestExtractText_InvalidInput(t *testing.T) {
	extractor := NewWithRunner(&mockRunner{})

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"not a pdf", []byte("hello world")},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := extractor.ExtractText(context.Background(), tc.data)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestExtractText_RunnerError(t *testing.T) {
	runner := &mockRunner{err: errors.New("pdftotext crashed")}
	extractor := NewWithRunner(runner)

	text, err := extractor.ExtractText(context.Background(), fakePDF)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "pdftotext failed")
	assert.Empty(t, text)
}

func TestExtractText_ToolMissing(t *testing.T) {
	runner := &mockRunner{err: ErrPDFToolNotFound}
	extractor := NewWithRunner(runner)

	_, err := extractor.ExtractText(context.Background(), fakePDF)
	assert.ErrorIs(t, err, ErrPDFToolNotFound)
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "a\n\nb", cleanText("  \na  \n\fb\t\n"))
}

func TestInstallInstructions(t *testing.T) {
	instructions := InstallInstructions()
	assert.Contains(t, instructions, "pdftotext")
	assert.Contains(t, instructions, "brew install poppler")
	assert.Contains(t, instructions, "apt install poppler-utils")
}

func TestErrPDFToolNotFound(t *testing.T) {
	assert.Error(t, ErrPDFToolNotFound)
	assert.Contains(t, ErrPDFToolNotFound.Error(), "pdftotext")
}

// Integration test - only runs if pdftotext is available.
func TestExtractText_Integration(t *testing.T) {
	if err := CheckAvailable(); err != nil {
		t.Skip("pdftotext not available, skipping integration test")
	}

	_, err := New().ExtractText(context.Background(), fakePDF)
	assert.Error(t, err, "truncated PDF should fail extraction")
}
