package sdk

import (
	"fmt"
	"unsafe"
)

// Buffer is a gomobile-safe byte container.
//
// Exported SDK methods must not return string/[]byte to gomobile callers:
// pointer-bearing Go values can crash at runtime when the generated bridge
// packs arguments with mismatched alignment. Hosts read results by calling
// Len and then CopyTo with memory they own.
type Buffer struct {
	b []byte
}

func newBufferFromBytes(b []byte) *Buffer {
	// Copy so later mutation on the Go side can't race the host's reads.
	out := make([]byte, len(b))
	copy(out, b)
	return &Buffer{b: out}
}

func newBufferFromString(s string) *Buffer {
	return &Buffer{b: []byte(s)}
}

// Len returns the number of bytes held in this buffer.
func (buf *Buffer) Len() int {
	if buf == nil {
		return 0
	}
	return len(buf.b)
}

// CopyTo copies up to dstLen bytes into the memory pointed to by dstPtr.
//
// dstPtr must point to writable memory of at least dstLen bytes (e.g.
// allocated on the host side via malloc / Data.withUnsafeMutableBytes).
//
// Returns the number of bytes written.
func (buf *Buffer) CopyTo(dstPtr int64, dstLen int) (int, error) {
	if buf == nil {
		return 0, fmt.Errorf("buffer is nil")
	}
	if dstLen < 0 {
		return 0, fmt.Errorf("dstLen must be >= 0")
	}
	if dstLen == 0 || len(buf.b) == 0 {
		return 0, nil
	}
	if dstPtr == 0 {
		return 0, fmt.Errorf("dstPtr is null")
	}
	n := len(buf.b)
	if n > dstLen {
		n = dstLen
	}
	dst := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(dstPtr))), n)
	copy(dst, buf.b[:n])
	return n, nil
}
