package flowise

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/tidwall/gjson"
)

const (
	framePrefix  = "data:"
	doneSentinel = "[DONE]"

	eventToken = "token"
	eventEnd   = "end"

	streamReadBufferSize = 4096
	// maxFrameBytes caps a single stream line, like maxDocumentBytes caps a
	// buffered body.
	maxFrameBytes = maxDocumentBytes
)

// IsEventStream reports whether a Content-Type header announces SSE.
func IsEventStream(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.Contains(strings.ToLower(contentType), "text/event-stream")
	}
	return mediaType == "text/event-stream"
}

// StreamDecoder accumulates the answer of an event-stream prediction one
// complete line at a time.
type StreamDecoder struct {
	answer    strings.Builder
	onPartial func(string)
	frames    int
	done      bool
}

// NewStreamDecoder returns a decoder that calls onPartial with the whole
// accumulated answer every time it grows. onPartial may be nil.
func NewStreamDecoder(onPartial func(string)) *StreamDecoder {
	return &StreamDecoder{onPartial: onPartial}
}

// Line consumes one line without its terminator. It returns false once the
// [DONE] sentinel has been seen; later lines are ignored.
func (d *StreamDecoder) Line(line string) bool {
	if d.done {
		return false
	}

	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, framePrefix) {
		return true
	}
	payload := strings.TrimSpace(trimmed[len(framePrefix):])
	if payload == "" {
		return true
	}
	d.frames++
	if payload == doneSentinel {
		d.done = true
		return false
	}

	if !gjson.Valid(payload) {
		d.append(payload)
		return true
	}

	frame := gjson.Parse(payload)
	data := frame.Get("data")
	if data.Type != gjson.String {
		return true
	}
	switch frame.Get("event").String() {
	case eventToken:
		d.append(data.Str)
	case eventEnd:
		// Some servers only send the full text in the final event.
		if d.answer.Len() == 0 && data.Str != doneSentinel {
			d.answer.WriteString(data.Str)
		}
	}
	return true
}

// Answer returns the text accumulated so far.
func (d *StreamDecoder) Answer() string {
	return d.answer.String()
}

// Frames returns how many data frames were seen.
func (d *StreamDecoder) Frames() int {
	return d.frames
}

// Done reports whether the [DONE] sentinel terminated the stream.
func (d *StreamDecoder) Done() bool {
	return d.done
}

func (d *StreamDecoder) append(text string) {
	if text == "" {
		return
	}
	d.answer.WriteString(text)
	if d.onPartial != nil {
		d.onPartial(d.answer.String())
	}
}

// DecodeStream reads r until EOF or [DONE] and returns the accumulated
// answer. Lines split across reads are reassembled; a trailing fragment
// without a line terminator is discarded. A line longer than maxFrameBytes
// fails with ErrFrameTooLarge. Other read errors are returned as-is.
func DecodeStream(r io.Reader, dec *StreamDecoder) (string, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, streamReadBufferSize), maxFrameBytes)
	sc.Split(scanTerminatedLines)
	for sc.Scan() {
		if !dec.Line(sc.Text()) {
			break
		}
	}
	if err := sc.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return dec.Answer(), fmt.Errorf("%w: longer than %d bytes", ErrFrameTooLarge, maxFrameBytes)
		}
		return dec.Answer(), err
	}

	if dec.Answer() == "" {
		return "", ErrEmptyResponse
	}
	return dec.Answer(), nil
}

// scanTerminatedLines is bufio.ScanLines without the final unterminated
// line.
func scanTerminatedLines(data []byte, _ bool) (int, []byte, error) {
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		return i + 1, data[:i], nil
	}
	return 0, nil, nil
}
