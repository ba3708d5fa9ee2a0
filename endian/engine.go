// Package endian provides byte order utilities for decoding DBD data
// sections.
//
// DBD files are written in the byte order of the glider that produced
// them, so the reader cannot fix an order up front. Instead the
// known-bytes probe resolves an EndianEngine per file, and every numeric
// read in that file goes through the resolved engine.
package endian

import (
	"encoding/binary"
	"unsafe"

	"github.com/gliderops/dinkum/format"
)

// EndianEngine is the byte order interface used for all numeric decoding.
// It is satisfied by binary.LittleEndian and binary.BigEndian.
type EndianEngine interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

// Native uses a fixed integer value to determine the host's byte order.
func Native() EndianEngine {
	// 0x0100 is 256. A little-endian host stores the LSB (0x00) first,
	// a big-endian host the MSB (0x01).
	var i uint16 = 0x0100

	b := (*[2]byte)(unsafe.Pointer(&i))
	if b[0] == 0x01 {
		return binary.BigEndian
	}

	return binary.LittleEndian
}

// IsNative reports whether the engine matches the host byte order.
func IsNative(engine EndianEngine) bool {
	return engine == Native()
}

// Resolve picks the stream byte order from the two probe bytes holding
// the known int16 0x1234. It returns false when neither order decodes to
// the probe constant, which means the block is not a known-bytes block.
func Resolve(probe [2]byte) (EndianEngine, bool) {
	if int16(binary.LittleEndian.Uint16(probe[:])) == format.KnownInt16 {
		return binary.LittleEndian, true
	}
	if int16(binary.BigEndian.Uint16(probe[:])) == format.KnownInt16 {
		return binary.BigEndian, true
	}

	return nil, false
}
