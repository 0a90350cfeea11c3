// Package xfsname implements the XFS 32-bit rolling name hash used as the
// index key for both directory and attribute leaf/node structures. Grounded
// bit-for-bit on the canonical xfs_da_hashname rotation schedule,
// cross-checked against the hashname() call sites in
// original_source/src/libxfuse/attr_bptree.rs and dir3_leaf.rs.
package xfsname

import "math/bits"

// Hash computes the XFS directory/attribute name hash over name's raw
// bytes. It is pure and must agree bit-for-bit with the on-disk index.
func Hash(name []byte) uint32 {
	var hash uint32
	n := len(name)
	for i, b := range name {
		rot := uint((n - 1 - i) * 7 % 32)
		hash ^= bits.RotateLeft32(uint32(b), int(rot))
	}
	return hash
}
