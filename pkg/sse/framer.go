package sse

import (
	"bytes"
	"io"
)

const (
	defaultChunkSize    = 32 * 1024
	defaultMaxLineBytes = 1024 * 1024
)

// LineReader turns a chunked byte stream into complete text lines.
//
// ┌──────────────────┐
// │ source io.Reader │  arbitrary, non-aligned chunks
// └──────────────────┘
// │
// ▼
// ┌──────────────────┐   ┌─────────────────┐
// │ LineReader.Next()│──▶│ tee (optional)  │  raw bytes, verbatim
// └──────────────────┘   └─────────────────┘
// │
// ▼
// complete lines, in arrival order
//
// Bytes after the last newline are held as carry-over until a later chunk
// completes the line. Splitting happens only on the '\n' byte, so multi-byte
// UTF-8 sequences broken across chunks are reassembled intact. The carry-over
// is never emitted on its own: when the source ends (cleanly or not) an
// unterminated final fragment is dropped.
type LineReader struct {
	src   io.Reader
	tee   io.Writer
	chunk []byte

	carry   []byte
	pending [][]byte
	maxLine int
	err     error
}

// LineReaderOption configures a LineReader.
type LineReaderOption func(*LineReader)

// WithTee mirrors every raw byte read from the source to w.
func WithTee(w io.Writer) LineReaderOption {
	return func(r *LineReader) {
		r.tee = w
	}
}

// WithMaxLineBytes bounds the size of a single line. Zero or negative values
// keep the default of 1 MiB.
func WithMaxLineBytes(n int) LineReaderOption {
	return func(r *LineReader) {
		if n > 0 {
			r.maxLine = n
		}
	}
}

// WithChunkSize sets the size of the buffer used for each read from the source.
func WithChunkSize(n int) LineReaderOption {
	return func(r *LineReader) {
		if n > 0 {
			r.chunk = make([]byte, n)
		}
	}
}

// NewLineReader returns a LineReader reading from src.
func NewLineReader(src io.Reader, opts ...LineReaderOption) *LineReader {
	r := &LineReader{
		src:     src,
		maxLine: defaultMaxLineBytes,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.chunk == nil {
		r.chunk = make([]byte, defaultChunkSize)
	}
	return r
}

// Next returns the next complete line without its terminating "\n" (a
// trailing "\r" is stripped as well). It blocks until a full line is
// available.
//
// Once the source is exhausted Next returns the source error, io.EOF for a
// clean end, and keeps returning it on subsequent calls.
func (r *LineReader) Next() (string, error) {
	for {
		if len(r.pending) > 0 {
			line := r.pending[0]
			r.pending[0] = nil
			r.pending = r.pending[1:]
			return string(bytes.TrimSuffix(line, []byte("\r"))), nil
		}

		if r.err != nil {
			r.carry = nil
			return "", r.err
		}

		n, err := r.src.Read(r.chunk)
		if n > 0 {
			if r.tee != nil {
				if _, werr := r.tee.Write(r.chunk[:n]); werr != nil {
					r.err = werr
					continue
				}
			}
			r.feed(r.chunk[:n])
		}
		if err != nil && r.err == nil {
			r.err = err
		}
	}
}

// feed appends a chunk to the carry-over and moves every completed line onto
// the pending queue.
func (r *LineReader) feed(chunk []byte) {
	for len(chunk) > 0 {
		i := bytes.IndexByte(chunk, '\n')
		if i < 0 {
			r.carry = append(r.carry, chunk...)
			if len(r.carry) > r.maxLine {
				r.carry = nil
				r.err = ErrLineTooLong
			}
			return
		}

		if len(r.carry)+i > r.maxLine {
			r.carry = nil
			r.err = ErrLineTooLong
			return
		}

		line := make([]byte, 0, len(r.carry)+i)
		line = append(line, r.carry...)
		line = append(line, chunk[:i]...)
		r.carry = r.carry[:0]
		r.pending = append(r.pending, line)

		chunk = chunk[i+1:]
	}
}
