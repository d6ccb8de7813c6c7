package transport

import (
	"context"
	"io"
	"net/http"
)

// chunkSize is the read buffer for one Next call.
const chunkSize = 4096

// Chunked hands the response body to the caller as it arrives.
type Chunked struct {
	client  *http.Client
	limiter *RateLimiter
}

// NewChunked creates a chunked transport. The client should not set a
// Timeout, which would cut long streams short; a nil client gets a default.
func NewChunked(client *http.Client, limiter *RateLimiter) *Chunked {
	if client == nil {
		client = &http.Client{}
	}
	return &Chunked{client: client, limiter: limiter}
}

// Name returns "chunked".
func (c *Chunked) Name() string { return "chunked" }

// Do sends the request and returns a stream over the live response body.
func (c *Chunked) Do(ctx context.Context, req Request) (Stream, error) {
	resp, err := send(ctx, c.client, c.limiter, req)
	if err != nil {
		return nil, err
	}
	return &bodyStream{body: resp.Body, buf: make([]byte, chunkSize)}, nil
}

type bodyStream struct {
	body io.ReadCloser
	buf  []byte
	err  error
}

// Next returns the bytes of one read. A read error that arrives together
// with data is held back until the following call.
func (s *bodyStream) Next() ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	for {
		n, err := s.body.Read(s.buf)
		if err != nil {
			s.err = err
		}
		if n > 0 {
			out := make([]byte, n)
			copy(out, s.buf[:n])
			return out, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

func (s *bodyStream) Close() error {
	return s.body.Close()
}
