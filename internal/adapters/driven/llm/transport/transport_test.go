package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStream replays fixed pieces and then a final error.
type fakeStream struct {
	pieces []string
	err    error
}

func (f *fakeStream) Next() ([]byte, error) {
	if len(f.pieces) == 0 {
		if f.err != nil {
			return nil, f.err
		}
		return nil, io.EOF
	}
	p := f.pieces[0]
	f.pieces = f.pieces[1:]
	return []byte(p), nil
}

func (f *fakeStream) Close() error { return nil }

func readLines(t *testing.T, r *LineReader) ([]string, error) {
	t.Helper()
	var lines []string
	for {
		line, err := r.Next()
		if err != nil {
			return lines, err
		}
		lines = append(lines, line)
	}
}

func TestNew_SelectsStrategy(t *testing.T) {
	assert.Equal(t, "chunked", New(Options{Streaming: true}).Name())
	assert.Equal(t, "buffered", New(Options{Streaming: false}).Name())
}

func TestLineReader_SplitAcrossPieces(t *testing.T) {
	stream := &fakeStream{pieces: []string{`{"a"`, ":1}\n{\"b\":2}\r\n", "", "tail"}}

	lines, err := readLines(t, NewLineReader(stream))

	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, []string{`{"a":1}`, `{"b":2}`, "tail"}, lines)
}

func TestLineReader_EmptyLines(t *testing.T) {
	stream := &fakeStream{pieces: []string{"a\n\nb\n"}}

	lines, err := readLines(t, NewLineReader(stream))

	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, []string{"a", "", "b"}, lines)
}

func TestLineReader_ErrorDiscardsPartialLine(t *testing.T) {
	boom := errors.New("connection reset")
	stream := &fakeStream{pieces: []string{"complete\npart"}, err: boom}

	lines, err := readLines(t, NewLineReader(stream))

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"complete"}, lines)
}

func TestChunked_StreamsLines(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "yes", r.Header.Get("X-Test"))

		flusher := w.(http.Flusher)
		_, _ = io.WriteString(w, "{\"n\":1}\n")
		flusher.Flush()
		<-release
		_, _ = io.WriteString(w, "{\"n\":2}\n")
	}))
	defer server.Close()

	tr := NewChunked(server.Client(), nil)
	stream, err := tr.Do(context.Background(), Request{
		URL:    server.URL,
		Header: http.Header{"X-Test": []string{"yes"}},
		Body:   []byte(`{}`),
	})
	require.NoError(t, err)
	defer stream.Close()

	lines := NewLineReader(stream)

	// The first line arrives before the server finishes the response.
	first, err := lines.Next()
	require.NoError(t, err)
	assert.Equal(t, `{"n":1}`, first)

	close(release)
	second, err := lines.Next()
	require.NoError(t, err)
	assert.Equal(t, `{"n":2}`, second)

	_, err = lines.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestBuffered_ReturnsWholeBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		_, _ = io.WriteString(w, `{"response":"hello"}`)
	}))
	defer server.Close()

	tr := NewBuffered(server.Client(), nil)
	stream, err := tr.Do(context.Background(), Request{Method: http.MethodGet, URL: server.URL})
	require.NoError(t, err)

	piece, err := stream.Next()
	require.NoError(t, err)
	assert.Equal(t, `{"response":"hello"}`, string(piece))

	_, err = stream.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadAll(t *testing.T) {
	data, err := ReadAll(&fakeStream{pieces: []string{"ab", "cd"}})
	require.NoError(t, err)
	assert.Equal(t, "abcd", string(data))

	boom := errors.New("boom")
	data, err = ReadAll(&fakeStream{pieces: []string{"ab"}, err: boom})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "ab", string(data))
}

func TestDo_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	for _, tr := range []Transport{NewChunked(server.Client(), nil), NewBuffered(server.Client(), nil)} {
		t.Run(tr.Name(), func(t *testing.T) {
			_, err := tr.Do(context.Background(), Request{URL: server.URL, Body: []byte(`{}`)})

			var statusErr *StatusError
			require.ErrorAs(t, err, &statusErr)
			assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
			assert.Equal(t, "model not found", statusErr.Body)
			assert.Contains(t, err.Error(), "404")
		})
	}
}

func TestDo_TooManyRequestsStartsBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	limiter := NewRateLimiter(0, 1)
	tr := NewBuffered(server.Client(), limiter)

	_, err := tr.Do(context.Background(), Request{URL: server.URL})
	require.Error(t, err)
	assert.False(t, limiter.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = tr.Do(ctx, Request{URL: server.URL})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDo_CancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "ok")
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewChunked(server.Client(), nil).Do(ctx, Request{URL: server.URL})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStatusError_Message(t *testing.T) {
	assert.Equal(t, "provider returned status 502", (&StatusError{StatusCode: 502}).Error())
}
