package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

var (
	collectQuery string
	collectWatch bool
)

var collectCmd = &cobra.Command{
	Use:   "collect <note>",
	Short: "List the notes reachable from a document",
	Long: `Walks forward links up to the configured depth and pulls in one hop
of backlinks for every forward-reached note.

With --query the formatted retrieval context is printed instead.
With --watch the walk is repeated whenever the vault changes.`,
	Args: cobra.ExactArgs(1),
	RunE: runCollect,
}

func init() {
	collectCmd.Flags().StringVarP(&collectQuery, "query", "q", "", "print the retrieval context for this query")
	collectCmd.Flags().BoolVarP(&collectWatch, "watch", "w", false, "repeat when the vault changes")
	rootCmd.AddCommand(collectCmd)
}

func runCollect(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if err := ensureRAG(ctx, false); err != nil {
		return err
	}
	if ragService == nil {
		return errors.New("rag service not configured")
	}

	root, err := notePath(args[0])
	if err != nil {
		return err
	}

	if err := printCollect(ctx, cmd, root); err != nil {
		return err
	}
	if !collectWatch {
		return nil
	}
	if noteVault == nil {
		return errors.New("watch requires a vault")
	}

	events, err := noteVault.Watch(ctx)
	if err != nil {
		return fmt.Errorf("watch vault: %w", err)
	}
	cmd.Println("Watching for changes (Ctrl+C to stop)...")
	for ev := range events {
		cmd.Printf("\n%s %s\n", ev.Op, ev.Path)
		if err := printCollect(ctx, cmd, root); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			cmd.PrintErrf("collect failed: %v\n", err)
		}
	}
	return nil
}

func printCollect(ctx context.Context, cmd *cobra.Command, root string) error {
	if collectQuery != "" {
		text, err := ragService.Context(ctx, root, collectQuery, nil)
		if err != nil {
			return fmt.Errorf("retrieval failed: %w", err)
		}
		if text == "" {
			cmd.Println("No context retrieved.")
			return nil
		}
		cmd.Println(text)
		return nil
	}

	collection, err := ragService.Collect(ctx, root)
	if err != nil {
		return fmt.Errorf("collect failed: %w", err)
	}
	printCollection(cmd, collection)
	return nil
}

func printCollection(cmd *cobra.Command, collection *domain.Collection) {
	docs := collection.Documents()
	cmd.Printf("Root: %s\n\n", collection.Root.Path)
	cmd.Printf("%-6s %-9s %s\n", "DEPTH", "VIA", "PATH")
	for _, doc := range docs[1:] {
		via := "link"
		if doc.Meta.IsBacklink {
			via = "backlink"
		}
		cmd.Printf("%-6d %-9s %s\n", doc.Meta.Depth, via, doc.Path)
	}
	cmd.Printf("\n%d linked document(s)\n", len(docs)-1)
}
