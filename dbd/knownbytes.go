package dbd

import (
	"fmt"
	"io"
	"math"

	"github.com/gliderops/dinkum/endian"
	"github.com/gliderops/dinkum/errs"
	"github.com/gliderops/dinkum/format"
)

// KnownBytes holds the byte order resolved from a file's 16-byte probe
// block and decodes every subsequent numeric value in that file.
//
// Not safe for concurrent use; one instance belongs to one file parse.
type KnownBytes struct {
	engine  endian.EndianEngine
	scratch [8]byte
}

// ReadKnownBytes consumes the 16-byte known-bytes block: 's', 'a',
// int16 0x1234, float32 123.456, float64 123456789.12345. The int16
// picks the byte order; the floats must then validate within 1 ULP.
func ReadKnownBytes(r io.Reader) (*KnownBytes, error) {
	var block [format.KnownBytesLen]byte
	if _, err := io.ReadFull(r, block[:]); err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrInvalidKnownBytes, err)
	}

	if block[0] != format.KnownTagSensor || block[1] != format.KnownTagAlign {
		return nil, fmt.Errorf("%w: bad tag bytes %#x %#x", errs.ErrInvalidKnownBytes, block[0], block[1])
	}

	engine, ok := endian.Resolve([2]byte(block[2:4]))
	if !ok {
		return nil, fmt.Errorf("%w: probe word is not 0x1234 in either byte order", errs.ErrInvalidKnownBytes)
	}

	f32 := math.Float32frombits(engine.Uint32(block[4:8]))
	if !withinULP32(f32, format.KnownFloat32) {
		return nil, fmt.Errorf("%w: float32 probe decoded to %v", errs.ErrInvalidKnownBytes, f32)
	}

	f64 := math.Float64frombits(engine.Uint64(block[8:16]))
	if !withinULP64(f64, format.KnownFloat64) {
		return nil, fmt.Errorf("%w: float64 probe decoded to %v", errs.ErrInvalidKnownBytes, f64)
	}

	return &KnownBytes{engine: engine}, nil
}

// Engine returns the resolved byte order.
func (kb *KnownBytes) Engine() endian.EndianEngine { return kb.engine }

// SameByteOrder reports whether the stream matches the host byte order.
func (kb *KnownBytes) SameByteOrder() bool { return endian.IsNative(kb.engine) }

// Read8 reads a 1-byte integer value.
func (kb *KnownBytes) Read8(r io.Reader) (int8, error) {
	buf := kb.scratch[:1]
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, err
	}

	return int8(buf[0]), nil
}

// Read16 reads a 2-byte integer value in stream byte order.
func (kb *KnownBytes) Read16(r io.Reader) (int16, error) {
	buf := kb.scratch[:2]
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, err
	}

	return int16(kb.engine.Uint16(buf)), nil
}

// Read32 reads a 4-byte float value in stream byte order. Infinite
// values are normalized to NaN.
func (kb *KnownBytes) Read32(r io.Reader) (float32, error) {
	buf := kb.scratch[:4]
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, err
	}

	v := math.Float32frombits(kb.engine.Uint32(buf))
	if math.IsInf(float64(v), 0) {
		v = format.FillFloat32()
	}

	return v, nil
}

// Read64 reads an 8-byte float value in stream byte order. Infinite
// values are normalized to NaN.
func (kb *KnownBytes) Read64(r io.Reader) (float64, error) {
	buf := kb.scratch[:8]
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, err
	}

	v := math.Float64frombits(kb.engine.Uint64(buf))
	if math.IsInf(v, 0) {
		v = format.FillFloat64()
	}

	return v, nil
}

func withinULP32(got, want float32) bool {
	a, b := int32(math.Float32bits(got)), int32(math.Float32bits(want))
	d := a - b
	if d < 0 {
		d = -d
	}

	return d <= 1
}

func withinULP64(got, want float64) bool {
	a, b := int64(math.Float64bits(got)), int64(math.Float64bits(want))
	d := a - b
	if d < 0 {
		d = -d
	}

	return d <= 1
}
