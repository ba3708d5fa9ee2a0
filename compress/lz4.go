package compress

import (
	"errors"
	"fmt"
	"sync"

	"github.com/pierrec/lz4/v4"

	"github.com/gliderops/dinkum/errs"
)

// lz4CompressorPool pools lz4.Compressor instances for reuse. The
// lz4.Compressor maintains internal match state that benefits from reuse.
var lz4CompressorPool = sync.Pool{
	New: func() any {
		return &lz4.Compressor{}
	},
}

// LZ4Codec is the block codec used by the DBD frame layer.
type LZ4Codec struct{}

var _ Codec = LZ4Codec{}

// NewLZ4Codec creates a new LZ4 block codec.
func NewLZ4Codec() LZ4Codec {
	return LZ4Codec{}
}

// Compress compresses data into a single LZ4 block.
//
// Incompressible input is emitted as a literals-only block so that the
// output is always a decodable LZ4 block; the frame format has no
// stored-raw escape.
func (c LZ4Codec) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	dst := make([]byte, lz4.CompressBlockBound(len(data)))

	lc, _ := lz4CompressorPool.Get().(*lz4.Compressor)
	defer lz4CompressorPool.Put(lc)

	n, err := lc.CompressBlock(data, dst)
	if err != nil {
		return nil, fmt.Errorf("lz4 block compress: %w", err)
	}
	if n == 0 {
		// CompressBlock signals incompressible input with n == 0.
		return literalBlock(data), nil
	}

	return dst[:n], nil
}

// Decompress expands one LZ4 block into dst and returns the number of
// bytes written. Blocks larger than dst fail with errs.ErrFrameTooLarge.
func (c LZ4Codec) Decompress(data, dst []byte) (int, error) {
	if len(data) == 0 {
		return 0, nil
	}

	n, err := lz4.UncompressBlock(data, dst)
	if err != nil {
		if errors.Is(err, lz4.ErrInvalidSourceShortBuffer) {
			return 0, fmt.Errorf("%w: block expands past %d bytes", errs.ErrFrameTooLarge, len(dst))
		}

		return 0, fmt.Errorf("%w: %w", errs.ErrFrameDecode, err)
	}

	return n, nil
}

// literalBlock encodes data as an LZ4 block containing only literals:
// a token with the literal length (15 escaping into 255-valued extension
// bytes) followed by the data itself.
func literalBlock(data []byte) []byte {
	out := make([]byte, 0, len(data)+len(data)/255+2)

	n := len(data)
	if n < 15 {
		out = append(out, byte(n)<<4)
	} else {
		out = append(out, 0xF0)
		for rest := n - 15; ; rest -= 255 {
			if rest < 255 {
				out = append(out, byte(rest))
				break
			}
			out = append(out, 255)
		}
	}

	return append(out, data...)
}
