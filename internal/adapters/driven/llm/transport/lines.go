package transport

import (
	"bytes"
	"io"
)

// LineReader splits a Stream into lines. A line split across two pieces is
// held until its newline arrives; the last line is returned even without a
// trailing newline.
type LineReader struct {
	stream Stream
	buf    []byte
	err    error
}

// NewLineReader wraps s.
func NewLineReader(s Stream) *LineReader {
	return &LineReader{stream: s}
}

// Next returns the next line without its line ending. It returns io.EOF
// when the stream is exhausted, or the stream's error; a partial line is
// discarded when the stream fails.
func (r *LineReader) Next() (string, error) {
	for {
		if i := bytes.IndexByte(r.buf, '\n'); i >= 0 {
			line := r.buf[:i]
			r.buf = r.buf[i+1:]
			return string(bytes.TrimSuffix(line, []byte("\r"))), nil
		}

		if r.err != nil {
			if r.err == io.EOF && len(r.buf) > 0 {
				line := r.buf
				r.buf = nil
				return string(bytes.TrimSuffix(line, []byte("\r"))), nil
			}
			r.buf = nil
			return "", r.err
		}

		piece, err := r.stream.Next()
		r.buf = append(r.buf, piece...)
		if err != nil {
			r.err = err
		}
	}
}
