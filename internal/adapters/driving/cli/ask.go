package cli

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
)

var (
	askAction string
	askImages []string
)

var askCmd = &cobra.Command{
	Use:   "ask <note> <question>",
	Short: "Ask a question using the notes linked to a document",
	Long: `Collects the notes around <note>, retrieves the passages most relevant
to <question> and streams the model's answer.

When the embedding provider is unreachable the question is answered
without note context.`,
	Args: cobra.ExactArgs(2),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askAction, "action", "a", "", "system prompt overriding the default")
	askCmd.Flags().StringSliceVar(&askImages, "image", nil, "image file forwarded to multimodal models (repeatable)")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if err := ensureRAG(ctx, true); err != nil {
		return err
	}
	if ragService == nil {
		return errors.New("rag service not configured")
	}

	root, err := notePath(args[0])
	if err != nil {
		return err
	}
	images, err := loadImages(askImages)
	if err != nil {
		return err
	}

	req := driving.AskRequest{
		RootPath: root,
		Prompt:   args[1],
		Action:   askAction,
		Images:   images,
	}

	out := cmd.OutOrStdout()
	interactive := isTerminal(out)

	var onUpdate func(string)
	var printer *streamPrinter
	if interactive {
		printer = &streamPrinter{w: out}
		onUpdate = printer.update
	}

	answer, err := ragService.Ask(ctx, req, progressFor(cmd, interactive), onUpdate)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			if printer != nil {
				printer.finish(printer.text)
			}
			return nil
		}
		return fmt.Errorf("ask failed: %w", err)
	}

	if printer != nil {
		printer.finish(answer)
		return nil
	}
	cmd.Println(answer)
	return nil
}

// streamPrinter renders cumulative answer updates as appended text.
type streamPrinter struct {
	w    io.Writer
	text string
}

func (p *streamPrinter) update(partial string) {
	if !strings.HasPrefix(partial, p.text) {
		// The fallback transport replaced the streamed text.
		fmt.Fprint(p.w, "\n\n")
		p.text = ""
	}
	fmt.Fprint(p.w, partial[len(p.text):])
	p.text = partial
}

func (p *streamPrinter) finish(final string) {
	if final != p.text {
		p.update(final)
	}
	fmt.Fprintln(p.w)
}

// progressFor reports embedding progress on stderr for interactive runs.
func progressFor(cmd *cobra.Command, interactive bool) *driving.Progress {
	if !interactive {
		return nil
	}
	errOut := cmd.ErrOrStderr()
	total := 0
	return &driving.Progress{
		OnTotal: func(n int) { total = n },
		OnStep: func(done int) {
			fmt.Fprintf(errOut, "\rEmbedding %d/%d", done, total)
			if done >= total {
				fmt.Fprint(errOut, "\r\033[K")
			}
		},
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func loadImages(paths []string) ([]string, error) {
	images := make([]string, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read image: %w", err)
		}
		images = append(images, base64.StdEncoding.EncodeToString(data))
	}
	return images, nil
}
