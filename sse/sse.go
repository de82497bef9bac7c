// Package sse decodes a server-sent event byte stream into frames.
//
// The decoder keeps a carry-over buffer across reads because frames do not
// align with network chunks. Text is produced only from complete lines, so a
// multi-byte character split between two reads decodes the same as one
// delivered whole. A partial frame still buffered at end of stream is
// discarded.
package sse

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

const (
	defaultReadSize     = 4096
	defaultMaxFrameSize = 1 << 20
)

// ErrFrameTooLarge is returned when a frame exceeds the configured maximum.
var ErrFrameTooLarge = errors.New("sse: frame too large")

var bom = []byte("\xef\xbb\xbf")

// Frame is one blank-line-delimited unit of the stream. Comment lines are
// dropped. Data holds the value of each data field in order; a frame may
// have none.
type Frame struct {
	Event string
	ID    string
	Data  []string
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithMaxFrameSize limits the bytes buffered for a single frame.
func WithMaxFrameSize(n int) Option {
	return func(d *Decoder) { d.maxFrame = n }
}

// WithReadSize sets the size of each read from the underlying reader.
func WithReadSize(n int) Option {
	return func(d *Decoder) { d.readSize = n }
}

// Decoder reads frames from an io.Reader.
type Decoder struct {
	r        io.Reader
	buf      []byte // unconsumed bytes, may end mid-line or mid-rune
	readSize int
	maxFrame int

	frame     Frame
	hasFields bool
	frameSize int

	started bool // BOM check done
	pendCR  bool // last consumed byte was a lone '\r'
	err     error
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader, opts ...Option) *Decoder {
	d := &Decoder{
		r:        r,
		readSize: defaultReadSize,
		maxFrame: defaultMaxFrameSize,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Next returns the next frame that carries at least one field. It returns
// io.EOF when the stream ends cleanly and any other error from the reader
// as is.
func (d *Decoder) Next() (Frame, error) {
	if d.err != nil {
		return Frame{}, d.err
	}
	for {
		for {
			line, ok := d.nextLine()
			if !ok {
				break
			}
			if f, done := d.processLine(line); done {
				return f, nil
			}
		}
		if d.frameSize+len(d.buf) > d.maxFrame {
			d.err = fmt.Errorf("%w (limit %d bytes)", ErrFrameTooLarge, d.maxFrame)
			return Frame{}, d.err
		}
		if err := d.fill(); err != nil {
			d.err = err
			return Frame{}, err
		}
	}
}

// fill reads one chunk into buf.
func (d *Decoder) fill() error {
	chunk := make([]byte, d.readSize)
	for {
		n, err := d.r.Read(chunk)
		if n > 0 {
			d.buf = append(d.buf, chunk[:n]...)
			if !d.started {
				if len(d.buf) < len(bom) && bytes.HasPrefix(bom, d.buf) && err == nil {
					continue
				}
				d.buf = bytes.TrimPrefix(d.buf, bom)
				d.started = true
			}
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// nextLine consumes one complete line from buf. Terminators are "\n",
// "\r\n" and a lone "\r".
func (d *Decoder) nextLine() (string, bool) {
	if d.pendCR && len(d.buf) > 0 {
		if d.buf[0] == '\n' {
			d.buf = d.buf[1:]
		}
		d.pendCR = false
	}
	i := bytes.IndexAny(d.buf, "\r\n")
	if i < 0 {
		return "", false
	}
	raw := d.buf[:i]
	if d.buf[i] == '\r' {
		if i+1 < len(d.buf) {
			if d.buf[i+1] == '\n' {
				i++
			}
		} else {
			d.pendCR = true
		}
	}
	line := decodeText(raw)
	d.buf = d.buf[i+1:]
	return line, true
}

// processLine applies one line to the frame under construction. It returns
// the frame when line terminates it.
func (d *Decoder) processLine(line string) (Frame, bool) {
	if line == "" {
		if !d.hasFields {
			d.resetFrame()
			return Frame{}, false
		}
		f := d.frame
		d.resetFrame()
		return f, true
	}
	d.frameSize += len(line) + 1
	if strings.HasPrefix(line, ":") {
		return Frame{}, false
	}
	field, value, _ := strings.Cut(line, ":")
	value = strings.TrimPrefix(value, " ")
	switch field {
	case "data":
		d.frame.Data = append(d.frame.Data, value)
	case "event":
		d.frame.Event = value
	case "id":
		d.frame.ID = value
	default:
		// retry and unknown fields are ignored.
		return Frame{}, false
	}
	d.hasFields = true
	return Frame{}, false
}

func (d *Decoder) resetFrame() {
	d.frame = Frame{}
	d.hasFields = false
	d.frameSize = 0
}

func decodeText(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	return strings.ToValidUTF8(string(b), "�")
}
