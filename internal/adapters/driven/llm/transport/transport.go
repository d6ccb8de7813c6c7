// Package transport sends provider HTTP requests through one of two
// strategies: a chunked transport that hands the response body over piece by
// piece as it arrives, and a buffered transport that reads the whole body
// before returning. Both expose the same pull-based Stream so callers parse
// responses the same way regardless of strategy.
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// DefaultTimeout bounds buffered requests. Chunked requests rely on the
// caller's context since a stream may legitimately run for minutes.
const DefaultTimeout = 120 * time.Second

// Request describes one provider call.
type Request struct {
	// Method defaults to POST.
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Stream yields a response body in pieces. Next returns io.EOF after the
// last piece; pieces returned earlier remain valid.
type Stream interface {
	Next() ([]byte, error)
	Close() error
}

// Transport issues a request and returns its body as a Stream.
type Transport interface {
	// Do sends req. A non-2xx status is returned as *StatusError.
	Do(ctx context.Context, req Request) (Stream, error)

	// Name identifies the strategy in logs.
	Name() string
}

// StatusError reports a non-2xx provider response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("provider returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("provider returned status %d: %s", e.StatusCode, e.Body)
}

// Options selects and configures a transport.
type Options struct {
	// Streaming selects the chunked transport; otherwise buffered.
	Streaming bool

	// Client is the HTTP client to use. A default client is created when nil.
	Client *http.Client

	// Limiter throttles requests when set.
	Limiter *RateLimiter
}

// New returns the transport selected by opts.
func New(opts Options) Transport {
	if opts.Streaming {
		return NewChunked(opts.Client, opts.Limiter)
	}
	return NewBuffered(opts.Client, opts.Limiter)
}

// maxErrorBody caps how much of an error response is kept.
const maxErrorBody = 4096

// send performs the HTTP round trip shared by both strategies.
func send(ctx context.Context, client *http.Client, limiter *RateLimiter, r Request) (*http.Response, error) {
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	method := r.Method
	if method == "" {
		method = http.MethodPost
	}

	var body io.Reader = http.NoBody
	if r.Body != nil {
		body = bytes.NewReader(r.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.URL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for key, values := range r.Header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if r.Body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if resp.StatusCode == http.StatusTooManyRequests && limiter != nil {
			retryAfter, _ := strconv.Atoi(resp.Header.Get("Retry-After"))
			limiter.RecordRateLimitError(retryAfter)
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(data))}
	}

	return resp, nil
}
