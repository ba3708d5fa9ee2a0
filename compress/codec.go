// Package compress implements the LZ4 layer of the DBD format.
//
// Compressed DBD files (*.?cd) and compressed sensor caches (*.ccc) are
// a sequence of frames: a 2-byte big-endian length followed by that many
// bytes of LZ4 block-compressed data. Each frame expands into at most
// 64 KiB. FrameReader presents the expanded frames as one contiguous
// byte stream; FrameWriter produces the same framing.
package compress

// Compressor compresses one block of data.
//
// The returned slice is newly allocated and owned by the caller; the
// input slice is not modified.
type Compressor interface {
	Compress(data []byte) ([]byte, error)
}

// Decompressor expands one block of previously compressed data into dst.
//
// dst must be large enough for the expanded block; implementations
// return the number of bytes written.
type Decompressor interface {
	Decompress(data, dst []byte) (int, error)
}

// Codec combines both directions of a block compression algorithm.
type Codec interface {
	Compressor
	Decompressor
}
