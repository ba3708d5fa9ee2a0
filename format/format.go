// Package format defines the on-disk constants of the Dinkum Binary Data
// (DBD) container: record tags, the known-bytes probe values, per-kind
// fill sentinels, and the file-extension rule that separates raw from
// LZ4-framed files.
package format

import (
	"math"
	"path/filepath"
	"strings"
)

// SensorKind identifies the value type of a sensor column. The kind is
// fully determined by the sensor's byte width: 1 and 2 byte sensors are
// signed integers, 4 and 8 byte sensors are IEEE-754 floats.
type SensorKind uint8

const (
	KindInt8    SensorKind = 1 // 1-byte signed integer
	KindInt16   SensorKind = 2 // 2-byte signed integer
	KindFloat32 SensorKind = 3 // 4-byte float
	KindFloat64 SensorKind = 4 // 8-byte float
)

func (k SensorKind) String() string {
	switch k {
	case KindInt8:
		return "int8"
	case KindInt16:
		return "int16"
	case KindFloat32:
		return "float32"
	case KindFloat64:
		return "float64"
	default:
		return "unknown"
	}
}

// KindForSize maps a sensor byte width to its value kind. Widths other
// than 1, 2, 4 and 8 have no kind and return false.
func KindForSize(size int) (SensorKind, bool) {
	switch size {
	case 1:
		return KindInt8, true
	case 2:
		return KindInt16, true
	case 4:
		return KindFloat32, true
	case 8:
		return KindFloat64, true
	default:
		return 0, false
	}
}

// Size returns the byte width of values of this kind.
func (k SensorKind) Size() int {
	switch k {
	case KindInt8:
		return 1
	case KindInt16:
		return 2
	case KindFloat32:
		return 4
	case KindFloat64:
		return 8
	default:
		return 0
	}
}

// Record tags in the data section.
const (
	TagData byte = 'd' // start of a data record
	TagEnd  byte = 'X' // end of the data section
)

// Known-bytes probe block. The 16-byte block opens the data section:
// 's', 'a', int16 0x1234, float32 123.456, float64 123456789.12345.
const (
	KnownBytesLen  = 16
	KnownTagSensor = byte('s')
	KnownTagAlign  = byte('a')
	KnownInt16     = int16(0x1234)
	KnownFloat32   = float32(123.456)
	KnownFloat64   = float64(123456789.12345)
)

// Fill sentinels written for absent values. These are bit-exact and
// user-observable; downstream consumers compare against them.
const (
	FillInt8  = int8(-127)
	FillInt16 = int16(-32768)
)

// FillFloat32 returns the float32 fill sentinel (quiet NaN).
func FillFloat32() float32 { return float32(math.NaN()) }

// FillFloat64 returns the float64 fill sentinel (quiet NaN).
func FillFloat64() float64 { return math.NaN() }

// IsCompressedPath reports whether the path names an LZ4-framed file.
// Compressed variants put 'c' in the middle of a three-letter extension:
// .dcd, .ecd, .scd, .tcd, .mcd, .ncd and the .ccc sensor cache.
func IsCompressedPath(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return len(ext) == 4 && ext[2] == 'c'
}
