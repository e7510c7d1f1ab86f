package rpc

import (
	"bytes"
	"testing"
)

func TestFrameBufferSingleFrame(t *testing.T) {
	var fb frameBuffer
	fb.Append([]byte("{\"method\":\"ping\"}\n"))

	frame, ok := fb.Next()
	if !ok {
		t.Fatal("no frame extracted")
	}
	if string(frame) != `{"method":"ping"}` {
		t.Errorf("frame = %q", frame)
	}
	if _, ok := fb.Next(); ok {
		t.Error("unexpected second frame")
	}
	if fb.Len() != 0 {
		t.Errorf("residual bytes = %d, want 0", fb.Len())
	}
}

func TestFrameBufferReassembly(t *testing.T) {
	// Two complete frames; the second contains multi-byte UTF-8. Split
	// into three chunks with boundaries falling mid-frame and inside a
	// multi-byte sequence.
	frame1 := []byte(`{"method":"update","params":{"n":1}}`)
	frame2 := []byte(`{"method":"alert","params":{"msg":"héllo 世界"}}`)
	stream := append(append(append([]byte{}, frame1...), '\n'), append(frame2, '\n')...)

	// Boundary inside "世" (3-byte sequence): find its first byte and
	// split one byte past it.
	seqStart := bytes.Index(stream, []byte("世"))
	if seqStart < 0 {
		t.Fatal("setup: rune not found")
	}
	cuts := []int{len(frame1) - 5, seqStart + 1}

	chunks := [][]byte{
		stream[:cuts[0]],
		stream[cuts[0]:cuts[1]],
		stream[cuts[1]:],
	}

	var fb frameBuffer
	var got [][]byte

	for _, chunk := range chunks {
		fb.Append(chunk)
		for {
			frame, ok := fb.Next()
			if !ok {
				break
			}
			got = append(got, append([]byte(nil), frame...))
		}
	}

	if len(got) != 2 {
		t.Fatalf("frames = %d, want 2", len(got))
	}
	if !bytes.Equal(got[0], frame1) {
		t.Errorf("frame1 = %q, want %q", got[0], frame1)
	}
	if !bytes.Equal(got[1], frame2) {
		t.Errorf("frame2 = %q, want %q", got[1], frame2)
	}
	if fb.Len() != 0 {
		t.Errorf("residual bytes = %d, want 0", fb.Len())
	}
}

func TestFrameBufferByteAtATime(t *testing.T) {
	frames := [][]byte{
		[]byte(`{"id":1,"result":{}}`),
		[]byte(`{"method":"update"}`),
		[]byte(`{"id":2,"error":{"code":3,"message":"bad"}}`),
	}
	var stream []byte
	for _, f := range frames {
		stream = append(stream, f...)
		stream = append(stream, '\n')
	}

	var fb frameBuffer
	var got [][]byte
	for _, b := range stream {
		fb.Append([]byte{b})
		if frame, ok := fb.Next(); ok {
			got = append(got, append([]byte(nil), frame...))
		}
	}

	if len(got) != len(frames) {
		t.Fatalf("frames = %d, want %d", len(got), len(frames))
	}
	for i := range frames {
		if !bytes.Equal(got[i], frames[i]) {
			t.Errorf("frame[%d] = %q, want %q", i, got[i], frames[i])
		}
	}
}

func TestFrameBufferMultipleFramesOneChunk(t *testing.T) {
	var fb frameBuffer
	fb.Append([]byte("{\"a\":1}\n{\"b\":2}\n{\"c\":3}\npartial"))

	var got []string
	for {
		frame, ok := fb.Next()
		if !ok {
			break
		}
		got = append(got, string(frame))
	}

	want := []string{`{"a":1}`, `{"b":2}`, `{"c":3}`}
	if len(got) != len(want) {
		t.Fatalf("frames = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("frame[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if fb.Len() != len("partial") {
		t.Errorf("residual = %d, want %d", fb.Len(), len("partial"))
	}

	// The partial frame completes on a later append.
	fb.Append([]byte(" done\n"))
	frame, ok := fb.Next()
	if !ok || string(frame) != "partial done" {
		t.Errorf("completed frame = %q ok=%v", frame, ok)
	}
}

func TestFrameBufferCRLF(t *testing.T) {
	var fb frameBuffer
	fb.Append([]byte("{\"a\":1}\r\n"))

	frame, ok := fb.Next()
	if !ok || string(frame) != `{"a":1}` {
		t.Errorf("frame = %q ok=%v", frame, ok)
	}
}
