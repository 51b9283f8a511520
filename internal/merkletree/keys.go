package merkletree

import "encoding/binary"

// Columns used by the tree's KvStore (SPEC_FULL.md §4.A, §6).
const (
	ColLeaves     = 0
	ColTempLeaves = 1
	ColNamedIndex = 2
	ColNextIndex  = 3
)

const nextIndexName = "next_index"
const cleanIndexName = "clean_index"

// nodeCoord is a (height, index) pair, used both as an in-memory map key
// and to build the on-disk node key.
type nodeCoord struct {
	H uint32
	I uint64
}

// nodeKey returns the 12-byte `height BE u32 || index BE u64` key
// (SPEC_FULL.md §4.C).
func nodeKey(h uint32, i uint64) []byte {
	buf := make([]byte, 12)
	binary.BigEndian.PutUint32(buf[0:4], h)
	binary.BigEndian.PutUint64(buf[4:12], i)
	return buf
}

func parseNodeKey(key []byte) nodeCoord {
	return nodeCoord{
		H: binary.BigEndian.Uint32(key[0:4]),
		I: binary.BigEndian.Uint64(key[4:12]),
	}
}

func encodeU64(v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return b[:]
}

func decodeU64(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}
