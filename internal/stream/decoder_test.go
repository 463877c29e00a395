package stream

import (
	"context"
	"io"
	"strings"
	"testing"
)

// chunkReader returns the input in fixed-size reads so frame boundaries land
// mid-line.
type chunkReader struct {
	data []byte
	size int
	pos  int
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := r.size
	if n > len(p) {
		n = len(p)
	}
	if r.pos+n > len(r.data) {
		n = len(r.data) - r.pos
	}
	copy(p, r.data[r.pos:r.pos+n])
	r.pos += n
	return n, nil
}

func drain(t *testing.T, d *Decoder) []Frame {
	t.Helper()
	var frames []Frame
	for {
		f, err := d.Next(context.Background())
		if err == io.EOF {
			return frames
		}
		if err != nil {
			t.Fatalf("unexpected decode error: %v", err)
		}
		frames = append(frames, f)
	}
}

const sampleStream = "event: status\ndata: {\"stage\":\"generating_sql\"}\n\n" +
	"event: sql\ndata: {\"sql\":\"SELECT 1\"}\n\n" +
	"event: done\ndata: {\"ok\":true}\n\n"

func TestDecoderFrames(t *testing.T) {
	d := NewDecoder(strings.NewReader(sampleStream))
	frames := drain(t, d)

	if len(frames) != 3 {
		t.Fatalf("expected 3 frames, got %d: %#v", len(frames), frames)
	}
	if frames[0].Name != "status" || frames[0].Data != `{"stage":"generating_sql"}` {
		t.Fatalf("unexpected first frame: %#v", frames[0])
	}
	if frames[2].Name != "done" {
		t.Fatalf("unexpected last frame: %#v", frames[2])
	}
}

func TestDecoderSplitBoundaries(t *testing.T) {
	want := drain(t, NewDecoder(strings.NewReader(sampleStream)))

	for size := 1; size <= len(sampleStream); size++ {
		d := NewDecoder(&chunkReader{data: []byte(sampleStream), size: size})
		got := drain(t, d)
		if len(got) != len(want) {
			t.Fatalf("chunk size %d: expected %d frames, got %d", size, len(want), len(got))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("chunk size %d frame %d: want %#v, got %#v", size, i, want[i], got[i])
			}
		}
	}
}

func TestDecoderDefaultEventName(t *testing.T) {
	d := NewDecoder(strings.NewReader("data: {\"user_message_id\":7}\n\n"))
	frames := drain(t, d)
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	if frames[0].Name != "message" {
		t.Fatalf("expected default name message, got %q", frames[0].Name)
	}
}

func TestDecoderMultipleDataLines(t *testing.T) {
	d := NewDecoder(strings.NewReader("event: analysis\ndata: line one\ndata: line two\n\n"))
	frames := drain(t, d)
	if len(frames) != 1 || frames[0].Data != "line one\nline two" {
		t.Fatalf("unexpected frames: %#v", frames)
	}
}

func TestDecoderCRLFAndComments(t *testing.T) {
	raw := ": keepalive\r\nevent: status\r\ndata: {\"stage\":\"executing\"}\r\n\r\nevent: done\ndata: {}\n\n"
	frames := drain(t, NewDecoder(strings.NewReader(raw)))
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d: %#v", len(frames), frames)
	}
	if frames[0].Name != "status" || frames[0].Data != `{"stage":"executing"}` {
		t.Fatalf("unexpected frame: %#v", frames[0])
	}
}

func TestDecoderTrailingFrameWithoutDelimiter(t *testing.T) {
	d := NewDecoder(strings.NewReader("event: done\ndata: {\"ok\":false}"))
	frames := drain(t, d)
	if len(frames) != 1 || frames[0].Name != "done" {
		t.Fatalf("unexpected frames: %#v", frames)
	}
}

func TestDecoderSkipsEmptyFrames(t *testing.T) {
	d := NewDecoder(strings.NewReader("\n\n\nevent: done\ndata: {}\n\n\n\n"))
	frames := drain(t, d)
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d: %#v", len(frames), frames)
	}
}

func TestDecoderContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := NewDecoder(strings.NewReader("event: status\n"))
	if _, err := d.Next(ctx); err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
