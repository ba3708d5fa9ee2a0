// Package hash provides xxHash64 identifiers for roster deduplication.
package hash

import "github.com/cespare/xxhash/v2"

// Bytes computes the xxHash64 of the given byte slice.
func Bytes(data []byte) uint64 {
	return xxhash.Sum64(data)
}
