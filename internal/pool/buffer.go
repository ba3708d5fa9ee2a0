// Package pool provides pooled fixed-size buffers for frame
// decompression. Every LZ4 frame in a DBD stream expands into at most
// 64 KiB, so the frame reader borrows one full-size buffer for its
// lifetime and returns it on Close.
package pool

import "sync"

// FrameBufferSize is the maximum decompressed size of one LZ4 frame.
const FrameBufferSize = 64 * 1024

var frameBufferPool = sync.Pool{
	New: func() any {
		buf := make([]byte, FrameBufferSize)
		return &buf
	},
}

// GetFrameBuffer borrows a FrameBufferSize byte slice from the pool.
func GetFrameBuffer() *[]byte {
	buf, _ := frameBufferPool.Get().(*[]byte)
	return buf
}

// PutFrameBuffer returns a buffer obtained from GetFrameBuffer. Buffers
// of any other size are dropped.
func PutFrameBuffer(buf *[]byte) {
	if buf == nil || cap(*buf) != FrameBufferSize {
		return
	}
	*buf = (*buf)[:FrameBufferSize]
	frameBufferPool.Put(buf)
}
