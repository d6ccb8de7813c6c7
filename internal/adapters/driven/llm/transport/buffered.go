package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// Buffered reads the complete response body before returning.
type Buffered struct {
	client  *http.Client
	limiter *RateLimiter
}

// NewBuffered creates a buffered transport. A nil client gets one with
// DefaultTimeout.
func NewBuffered(client *http.Client, limiter *RateLimiter) *Buffered {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &Buffered{client: client, limiter: limiter}
}

// Name returns "buffered".
func (b *Buffered) Name() string { return "buffered" }

// Do sends the request and returns a stream with the whole body as its
// only piece.
func (b *Buffered) Do(ctx context.Context, req Request) (Stream, error) {
	resp, err := send(ctx, b.client, b.limiter, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return &bufferStream{data: data}, nil
}

// ReadAll drains a stream into one byte slice.
func ReadAll(s Stream) ([]byte, error) {
	var out []byte
	for {
		piece, err := s.Next()
		out = append(out, piece...)
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
	}
}

type bufferStream struct {
	data []byte
	read bool
}

func (s *bufferStream) Next() ([]byte, error) {
	if s.read {
		return nil, io.EOF
	}
	s.read = true
	if len(s.data) == 0 {
		return nil, io.EOF
	}
	return s.data, nil
}

func (s *bufferStream) Close() error { return nil }
