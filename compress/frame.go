package compress

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/gliderops/dinkum/errs"
	"github.com/gliderops/dinkum/internal/pool"
)

// FrameReader expands a framed-LZ4 stream into a contiguous byte stream.
//
// Each frame is a 2-byte big-endian length n followed by n bytes of LZ4
// block-compressed data expanding into at most 64 KiB. A partial length
// prefix at the end of the underlying stream is a clean end of stream; a
// frame payload shorter than its declared length is a truncation error.
//
// FrameReader is not safe for concurrent use.
type FrameReader struct {
	r     io.Reader
	codec LZ4Codec

	buf    *[]byte // pooled 64 KiB decompression buffer
	frame  []byte  // decompressed bytes of the current frame
	pos    int     // read position within frame
	src    []byte  // scratch for compressed frame payloads
	prefix [2]byte
	err    error // sticky terminal error (io.EOF once drained)
}

// NewFrameReader creates a FrameReader over r. Call Close when done to
// return the frame buffer to its pool.
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{
		r:     r,
		codec: NewLZ4Codec(),
		buf:   pool.GetFrameBuffer(),
	}
}

// Read implements io.Reader over the decompressed stream.
func (fr *FrameReader) Read(p []byte) (int, error) {
	total := 0
	for total < len(p) {
		if fr.pos == len(fr.frame) {
			if err := fr.fill(); err != nil {
				if total > 0 && err == io.EOF {
					return total, nil
				}

				return total, err
			}
		}
		n := copy(p[total:], fr.frame[fr.pos:])
		fr.pos += n
		total += n
	}

	return total, nil
}

// fill reads and decompresses the next frame.
func (fr *FrameReader) fill() error {
	if fr.err != nil {
		return fr.err
	}

	if _, err := io.ReadFull(fr.r, fr.prefix[:]); err != nil {
		// Either a clean end of the underlying stream or a lone prefix
		// byte; both end the logical stream.
		fr.err = io.EOF
		return fr.err
	}

	frameLen := int(binary.BigEndian.Uint16(fr.prefix[:]))
	if cap(fr.src) < frameLen {
		fr.src = make([]byte, frameLen)
	}
	fr.src = fr.src[:frameLen]

	if _, err := io.ReadFull(fr.r, fr.src); err != nil {
		fr.err = fmt.Errorf("%w: declared %d bytes", errs.ErrTruncatedFrame, frameLen)
		return fr.err
	}

	n, err := fr.codec.Decompress(fr.src, *fr.buf)
	if err != nil {
		fr.err = err
		return fr.err
	}

	fr.frame = (*fr.buf)[:n]
	fr.pos = 0

	return nil
}

// Close releases the frame buffer. The underlying reader is not closed.
func (fr *FrameReader) Close() error {
	pool.PutFrameBuffer(fr.buf)
	fr.buf = nil
	fr.frame = nil

	return nil
}

// FrameWriter produces the framed-LZ4 stream read by FrameReader.
//
// Input bytes are accumulated into frames of at most 64 KiB of
// decompressed data and flushed as they fill. Close flushes the final
// partial frame.
type FrameWriter struct {
	w     io.Writer
	codec LZ4Codec
	buf   *[]byte
	n     int
}

// NewFrameWriter creates a FrameWriter over w.
func NewFrameWriter(w io.Writer) *FrameWriter {
	return &FrameWriter{
		w:     w,
		codec: NewLZ4Codec(),
		buf:   pool.GetFrameBuffer(),
	}
}

// Write implements io.Writer.
func (fw *FrameWriter) Write(p []byte) (int, error) {
	total := 0
	for total < len(p) {
		n := copy((*fw.buf)[fw.n:], p[total:])
		fw.n += n
		total += n
		if fw.n == pool.FrameBufferSize {
			if err := fw.flush(); err != nil {
				return total, err
			}
		}
	}

	return total, nil
}

// flush emits the buffered bytes as one or more frames.
func (fw *FrameWriter) flush() error {
	if fw.n == 0 {
		return nil
	}
	if err := fw.writeFrame((*fw.buf)[:fw.n]); err != nil {
		return err
	}
	fw.n = 0

	return nil
}

// writeFrame emits data as a frame, splitting when the compressed
// payload would not fit the 16-bit length prefix.
func (fw *FrameWriter) writeFrame(data []byte) error {
	enc, err := fw.codec.Compress(data)
	if err != nil {
		return err
	}
	if len(enc) > 0xFFFF {
		half := len(data) / 2
		if err := fw.writeFrame(data[:half]); err != nil {
			return err
		}

		return fw.writeFrame(data[half:])
	}

	var prefix [2]byte
	binary.BigEndian.PutUint16(prefix[:], uint16(len(enc)))
	if _, err := fw.w.Write(prefix[:]); err != nil {
		return err
	}
	if _, err := fw.w.Write(enc); err != nil {
		return err
	}

	return nil
}

// Close flushes the final frame and releases the frame buffer. The
// underlying writer is not closed.
func (fw *FrameWriter) Close() error {
	err := fw.flush()
	pool.PutFrameBuffer(fw.buf)
	fw.buf = nil

	return err
}
