package sse

import (
	"io"
	"strings"
)

// Decoder reads messages from a byte stream by running every framed line
// through ParseLine. Blank lines and lines ignored by ParseLine are skipped.
type Decoder struct {
	lines *LineReader
}

// NewDecoder returns a Decoder reading from src. The options configure the
// underlying LineReader.
func NewDecoder(src io.Reader, opts ...LineReaderOption) *Decoder {
	return &Decoder{lines: NewLineReader(src, opts...)}
}

// Next returns the next message. Errors from the source (including io.EOF)
// and parse failures are returned as-is; a Decoder is not usable after an
// error.
func (d *Decoder) Next() (Message, error) {
	for {
		line, err := d.lines.Next()
		if err != nil {
			return Message{}, err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		msg, ok, err := ParseLine(line)
		if err != nil {
			return Message{}, err
		}
		if ok {
			return msg, nil
		}
	}
}
