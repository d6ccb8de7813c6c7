package driven

import "context"

// TextExtractor turns binary documents (PDF) into plain text.
type TextExtractor interface {
	// ExtractText returns the text of data. Malformed input is an error.
	ExtractText(ctx context.Context, data []byte) (string, error)
}
