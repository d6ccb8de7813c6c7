package cli

import (
	"errors"
	"fmt"
	"os"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/normalisers/pdf"
)

var chunkCmd = &cobra.Command{
	Use:   "chunk <file>",
	Short: "Show how a file is split into chunks",
	Long: `Runs a markdown or PDF file through the chunking pipeline and prints
every chunk with its size.`,
	Args: cobra.ExactArgs(1),
	RunE: runChunk,
}

func init() {
	rootCmd.AddCommand(chunkCmd)
}

func runChunk(cmd *cobra.Command, args []string) error {
	if err := ensurePipeline(); err != nil {
		return err
	}
	if chunkPipeline == nil {
		return errors.New("chunk pipeline not configured")
	}

	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	content := string(data)
	if domain.Extension(path) == "pdf" {
		content, err = pdf.New().ExtractText(cmd.Context(), data)
		if err != nil {
			return fmt.Errorf("extract pdf: %w", err)
		}
	}

	doc := &domain.Document{Path: path, Content: content}
	chunks, err := chunkPipeline.Process(cmd.Context(), doc)
	if err != nil {
		return fmt.Errorf("chunk failed: %w", err)
	}

	for _, c := range chunks {
		cmd.Printf("--- chunk %d (%d chars) ---\n", c.Position+1, utf8.RuneCountInString(c.Content))
		cmd.Println(c.Content)
	}
	cmd.Printf("\n%d chunk(s)\n", len(chunks))
	return nil
}
