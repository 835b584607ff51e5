package lockfree

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// Hasher is the §6.1 hash_function module parameter: any total function
// from a machine-word key to a machine-word hash. It need not avoid
// collisions across distinct keys; it only needs to be a function.
type Hasher func(key uint64) uint64

// defaultHasher hashes the little-endian encoding of the key with xxhash,
// used whenever the caller does not supply WithHasher.
func defaultHasher(key uint64) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], key)
	return xxhash.Sum64(buf[:])
}
