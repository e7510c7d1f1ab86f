package rpc

import "bytes"

// frameBuffer reassembles newline-delimited frames from arbitrary byte
// chunks. A read may deliver part of a frame, several frames, or a split
// that lands inside a multi-byte UTF-8 sequence; none of that is visible
// to callers. Partial data persists across Append calls.
type frameBuffer struct {
	buf []byte
}

// Append adds a raw chunk to the buffer.
func (b *frameBuffer) Append(chunk []byte) {
	b.buf = append(b.buf, chunk...)
}

// Next extracts the next complete frame, without its trailing newline.
// It returns false when no complete frame is buffered. The returned
// slice is only valid until the next Append.
func (b *frameBuffer) Next() ([]byte, bool) {
	i := bytes.IndexByte(b.buf, '\n')
	if i < 0 {
		return nil, false
	}
	frame := b.buf[:i]
	b.buf = b.buf[i+1:]
	if j := bytes.LastIndexByte(frame, '\r'); j == len(frame)-1 && j >= 0 {
		frame = frame[:j]
	}
	return frame, true
}

// Len reports the number of buffered, not-yet-framed bytes.
func (b *frameBuffer) Len() int {
	return len(b.buf)
}
