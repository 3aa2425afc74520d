package sse_test

import (
	"bytes"
	"errors"
	"io"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/agentstream/pkg/sse"
)

// chunkReader hands out one pre-split chunk per Read call, then err.
type chunkReader struct {
	chunks [][]byte
	err    error
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if len(c.chunks) == 0 {
		if c.err != nil {
			return 0, c.err
		}
		return 0, io.EOF
	}
	n := copy(p, c.chunks[0])
	if n < len(c.chunks[0]) {
		c.chunks[0] = c.chunks[0][n:]
	} else {
		c.chunks = c.chunks[1:]
	}
	return n, nil
}

func splitEvery(b []byte, size int) [][]byte {
	var out [][]byte
	for len(b) > 0 {
		n := min(size, len(b))
		out = append(out, b[:n])
		b = b[n:]
	}
	return out
}

func readAll(r *sse.LineReader) ([]string, error) {
	var lines []string
	for {
		line, err := r.Next()
		if err != nil {
			return lines, err
		}
		lines = append(lines, line)
	}
}

var _ = Describe("LineReader", func() {
	stream := []byte("data: {\"type\":\"token\",\"data\":{\"content\":\"héllo ✓\"}}\n" +
		"\n" +
		"data: {\"type\":\"token\",\"data\":{\"text\":\"wörld\"}}\n" +
		": keep-alive\n" +
		"data: [DONE]\n")

	It("emits every line of an unsplit stream in order", func() {
		lines, err := readAll(sse.NewLineReader(bytes.NewReader(stream)))
		Expect(err).To(MatchError(io.EOF))
		Expect(lines).To(Equal([]string{
			"data: {\"type\":\"token\",\"data\":{\"content\":\"héllo ✓\"}}",
			"",
			"data: {\"type\":\"token\",\"data\":{\"text\":\"wörld\"}}",
			": keep-alive",
			"data: [DONE]",
		}))
	})

	It("produces identical lines for every chunk size", func() {
		want, err := readAll(sse.NewLineReader(bytes.NewReader(stream)))
		Expect(err).To(MatchError(io.EOF))

		for size := 1; size <= len(stream); size++ {
			src := &chunkReader{chunks: splitEvery(stream, size)}
			got, err := readAll(sse.NewLineReader(src))
			Expect(err).To(MatchError(io.EOF), "chunk size %d", size)
			Expect(got).To(Equal(want), "chunk size %d", size)
		}
	})

	It("keeps lines intact when the read buffer is smaller than a line", func() {
		src := &chunkReader{chunks: [][]byte{stream}}
		got, err := readAll(sse.NewLineReader(src, sse.WithChunkSize(3)))
		Expect(err).To(MatchError(io.EOF))
		Expect(got).To(HaveLen(5))
		Expect(got[0]).To(ContainSubstring("héllo ✓"))
	})

	It("strips a trailing carriage return", func() {
		lines, err := readAll(sse.NewLineReader(strings.NewReader("data: a\r\ndata: b\r\n")))
		Expect(err).To(MatchError(io.EOF))
		Expect(lines).To(Equal([]string{"data: a", "data: b"}))
	})

	It("discards an unterminated final fragment at a clean end", func() {
		lines, err := readAll(sse.NewLineReader(strings.NewReader("data: one\ndata: partial")))
		Expect(err).To(MatchError(io.EOF))
		Expect(lines).To(Equal([]string{"data: one"}))
	})

	It("discards the carry-over and surfaces the error when the source fails", func() {
		boom := errors.New("connection reset")
		src := &chunkReader{
			chunks: [][]byte{[]byte("data: one\ndata: pa"), []byte("rt")},
			err:    boom,
		}
		r := sse.NewLineReader(src)

		line, err := r.Next()
		Expect(err).NotTo(HaveOccurred())
		Expect(line).To(Equal("data: one"))

		_, err = r.Next()
		Expect(err).To(MatchError(boom))

		_, err = r.Next()
		Expect(err).To(MatchError(boom))
	})

	It("returns io.EOF on empty input", func() {
		_, err := sse.NewLineReader(strings.NewReader("")).Next()
		Expect(err).To(MatchError(io.EOF))
	})

	It("fails with ErrLineTooLong when a line exceeds the limit", func() {
		r := sse.NewLineReader(strings.NewReader(strings.Repeat("x", 64)+"\n"), sse.WithMaxLineBytes(16))
		_, err := r.Next()
		Expect(err).To(MatchError(sse.ErrLineTooLong))
	})

	It("fails with ErrLineTooLong when the carry-over grows past the limit", func() {
		src := &chunkReader{chunks: splitEvery([]byte(strings.Repeat("x", 64)), 8)}
		r := sse.NewLineReader(src, sse.WithMaxLineBytes(16))
		_, err := r.Next()
		Expect(err).To(MatchError(sse.ErrLineTooLong))
	})

	It("tees raw bytes verbatim", func() {
		var dst bytes.Buffer
		src := &chunkReader{chunks: splitEvery(stream, 7)}
		_, err := readAll(sse.NewLineReader(src, sse.WithTee(&dst)))
		Expect(err).To(MatchError(io.EOF))
		Expect(dst.Bytes()).To(Equal(stream))
	})
})
