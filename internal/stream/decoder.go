package stream

import (
	"bytes"
	"context"
	"io"
	"strings"
)

const readChunkSize = 4096

// Frame is one delimited frame from the wire: an event name plus the joined
// data lines. Frames with no event line carry the default name "message".
type Frame struct {
	Name string
	Data string
}

// Decoder splits an append-only byte stream into frames. It is not seekable;
// restarting means opening a new stream. A frame boundary may fall anywhere
// across two reads, so partial input is buffered until a full delimiter
// (blank line) has been seen.
type Decoder struct {
	r     io.Reader
	buf   []byte
	chunk []byte
	err   error
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: r, chunk: make([]byte, readChunkSize)}
}

// Next returns the next complete frame, blocking on the underlying reader as
// needed. It returns io.EOF once the stream ends and all buffered frames have
// been drained. The context is checked at every chunk-read suspension point;
// cancellation stops reading but does not roll back frames already delivered.
func (d *Decoder) Next(ctx context.Context) (Frame, error) {
	for {
		if frame, ok := d.takeFrame(); ok {
			return frame, nil
		}
		if d.err != nil {
			if d.err == io.EOF && len(bytes.TrimSpace(d.buf)) > 0 {
				// Trailing frame without a closing delimiter.
				raw := d.buf
				d.buf = nil
				return parseFrame(raw), nil
			}
			return Frame{}, d.err
		}
		if err := ctx.Err(); err != nil {
			return Frame{}, err
		}
		n, err := d.r.Read(d.chunk)
		if n > 0 {
			d.buf = append(d.buf, d.chunk[:n]...)
		}
		if err != nil {
			d.err = err
		}
	}
}

func (d *Decoder) takeFrame() (Frame, bool) {
	for {
		idx, skip := frameBoundary(d.buf)
		if idx < 0 {
			return Frame{}, false
		}
		raw := d.buf[:idx]
		rest := make([]byte, len(d.buf)-idx-skip)
		copy(rest, d.buf[idx+skip:])
		frame := parseFrame(raw)
		d.buf = rest
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}
		return frame, true
	}
}

// frameBoundary locates the first blank-line delimiter, tolerating \r\n line
// endings. It returns the end of the frame body and the delimiter length.
func frameBoundary(buf []byte) (int, int) {
	for i := 0; i < len(buf); i++ {
		if buf[i] != '\n' {
			continue
		}
		j := i + 1
		if j < len(buf) && buf[j] == '\r' {
			j++
		}
		if j < len(buf) && buf[j] == '\n' {
			return i, j - i + 1
		}
	}
	return -1, 0
}

func parseFrame(raw []byte) Frame {
	f := Frame{Name: "message"}
	var data []string
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSuffix(line, "\r")
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, ":"):
			// comment / keepalive
			continue
		case strings.HasPrefix(line, "event:"):
			if name := strings.TrimSpace(strings.TrimPrefix(line, "event:")); name != "" {
				f.Name = name
			}
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		case strings.HasPrefix(line, "id:"):
			// resumption ids are not used; the stream restarts from scratch
			continue
		}
	}
	f.Data = strings.Join(data, "\n")
	return f
}
