// Package embedding holds the batching shared by the embedding adapters.
//
// Texts are packed into groups whose estimated token count fits the
// provider's per-call budget. Groups are embedded one at a time so a single
// call never exceeds what the model can take.
package embedding

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// CharsPerToken approximates tokenisation when sizing groups.
const CharsPerToken = 4

// EstimateTokens approximates the token count of text.
func EstimateTokens(text string) int {
	return utf8.RuneCountInString(text) / CharsPerToken
}

// Groups packs texts, in order, into groups whose estimated token total does
// not exceed budget. A text larger than the budget gets a group of its own.
// A budget of 0 or less puts everything in one group.
func Groups(texts []string, budget int) [][]string {
	if len(texts) == 0 {
		return nil
	}
	if budget <= 0 {
		return [][]string{texts}
	}

	var groups [][]string
	var current []string
	used := 0
	for _, text := range texts {
		tokens := EstimateTokens(text)
		if len(current) > 0 && used+tokens > budget {
			groups = append(groups, current)
			current, used = nil, 0
		}
		current = append(current, text)
		used += tokens
	}
	return append(groups, current)
}

// EmbedFunc embeds one group and returns one vector per text.
type EmbedFunc func(ctx context.Context, group []string) ([][]float64, error)

// Run embeds groups sequentially, reporting progress after each group.
// Cancellation between groups returns the embeddings computed so far with
// ctx.Err(). A response with the wrong number of vectors is an
// ErrInvalidResponse.
func Run(ctx context.Context, groups [][]string, embed EmbedFunc, onProgress driven.ProgressFunc) ([][]float64, error) {
	total := 0
	for _, g := range groups {
		total += len(g)
	}

	out := make([][]float64, 0, total)
	for _, group := range groups {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		vectors, err := embed(ctx, group)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return out, ctxErr
			}
			return nil, err
		}
		if len(vectors) != len(group) {
			return nil, fmt.Errorf("%w: got %d embeddings for %d inputs",
				domain.ErrInvalidResponse, len(vectors), len(group))
		}

		out = append(out, vectors...)
		if onProgress != nil {
			onProgress(len(out), total)
		}
	}
	return out, nil
}
