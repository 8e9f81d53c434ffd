// Package sse splits a server-push byte stream into line frames.
//
// The wire format is line oriented: lines starting with ":" are comments
// (the server sends ": connected" once the subscription is live and
// ": heartbeat" to keep idle connections open), lines starting with
// "data: " carry a JSON payload, blank lines separate records. Any other
// line is ignored so that the server can add fields without breaking older
// clients.
package sse

import (
	"bytes"
	"errors"
	"strings"
	"unicode/utf8"
)

const DefaultMaxBuffer = 1 << 20

var ErrBufferOverflow = errors.New("sse: unterminated line exceeds buffer limit")

type FrameKind int

const (
	FrameComment FrameKind = iota + 1
	FrameData
)

func (k FrameKind) String() string {
	switch k {
	case FrameComment:
		return "comment"
	case FrameData:
		return "data"
	default:
		return "unknown"
	}
}

// Frame is one classified line. For comments Data holds everything after the
// leading colon, including the conventional space.
type Frame struct {
	Kind FrameKind
	Data string
}

const (
	connectedComment = " connected"
	heartbeatComment = " heartbeat"
	dataPrefix       = "data: "
)

func (f Frame) IsConnected() bool {
	return f.Kind == FrameComment && f.Data == connectedComment
}

func (f Frame) IsHeartbeat() bool {
	return f.Kind == FrameComment && f.Data == heartbeatComment
}

// Parser accumulates bytes across reads and yields frames for every complete
// line. It is not safe for concurrent use.
type Parser struct {
	buf       []byte
	maxBuffer int
}

func NewParser(maxBuffer int) *Parser {
	if maxBuffer <= 0 {
		maxBuffer = DefaultMaxBuffer
	}
	return &Parser{maxBuffer: maxBuffer}
}

// Feed appends p and returns the frames of every newly completed line. An
// unterminated tail stays buffered until a later call completes it; since a
// newline byte never occurs inside a UTF-8 multi-byte sequence, a character
// split across reads is always held back whole.
func (p *Parser) Feed(chunk []byte) ([]Frame, error) {
	p.buf = append(p.buf, chunk...)

	var frames []Frame
	consumed := 0
	for {
		idx := bytes.IndexByte(p.buf[consumed:], '\n')
		if idx < 0 {
			break
		}
		line := p.buf[consumed : consumed+idx]
		consumed += idx + 1

		if frame, ok := classify(line); ok {
			frames = append(frames, frame)
		}
	}

	if consumed > 0 {
		rest := copy(p.buf, p.buf[consumed:])
		p.buf = p.buf[:rest]
	}

	if len(p.buf) > p.maxBuffer {
		p.Reset()
		return frames, ErrBufferOverflow
	}

	return frames, nil
}

// Buffered reports how many bytes are waiting for a line terminator.
func (p *Parser) Buffered() int {
	return len(p.buf)
}

func (p *Parser) Reset() {
	p.buf = nil
}

func classify(raw []byte) (Frame, bool) {
	raw = bytes.TrimSuffix(raw, []byte{'\r'})
	if len(raw) == 0 {
		return Frame{}, false
	}

	var line string
	if utf8.Valid(raw) {
		line = string(raw)
	} else {
		line = strings.ToValidUTF8(string(raw), string(utf8.RuneError))
	}

	switch {
	case strings.HasPrefix(line, ":"):
		return Frame{Kind: FrameComment, Data: line[1:]}, true
	case strings.HasPrefix(line, dataPrefix):
		return Frame{Kind: FrameData, Data: line[len(dataPrefix):]}, true
	default:
		return Frame{}, false
	}
}
