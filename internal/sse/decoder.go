// Package sse decodes the line-oriented server-sent-event streams returned by LLM vendors.
package sse

import (
	"bufio"
	"io"
	"strings"
)

const (
	dataPrefix = "data: "

	// Done is the sentinel payload OpenAI-compatible vendors send as the last event.
	Done = "[DONE]"
)

// Decoder yields the payload of each `data: ` line in arrival order.
// Lines may arrive split across arbitrary read boundaries; a line is only
// surfaced once its terminating newline (or the end of the stream) is seen.
type Decoder struct {
	r *bufio.Reader
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Next returns the next data payload. Comment, event and blank lines are skipped.
// It returns io.EOF once the underlying reader is exhausted; any other read
// error is returned unchanged.
func (d *Decoder) Next() (string, error) {
	for {
		line, err := d.r.ReadString('\n')
		if err != nil && err != io.EOF {
			return "", err
		}

		line = strings.TrimRight(line, "\r\n")
		if strings.HasPrefix(line, dataPrefix) {
			return strings.TrimPrefix(line, dataPrefix), nil
		}

		if err == io.EOF {
			return "", io.EOF
		}
	}
}

// Drain consumes the rest of the stream without decoding it.
func (d *Decoder) Drain() error {
	_, err := io.Copy(io.Discard, d.r)
	return err
}
