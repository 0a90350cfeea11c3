// Package xfsformat decodes the fixed, big-endian on-disk records shared by
// every higher-level XFS component: the superblock and the packed BMBT
// extent record. Every multi-byte integer on an XFS disk is big-endian.
//
// Grounded on filesystem/ext4/inode.go's inodeFromBytes (byte-offset-literal
// decoding style) and original_source/src/libxfuse/dinode_core.rs /
// dir3.rs for the exact XFS field layouts. encoding/binary is used directly
// rather than a reflection/struct-tag decoder: XFS's packed bit-fields (the
// BMBT record splits a single 128-bit word into 1/54/52/21-bit fields that
// don't start on byte boundaries) have no equivalent in any decoder the
// example pack uses, and every comparable teacher decoder for this class of
// record is hand-written byte slicing too.
package xfsformat

import (
	"encoding/binary"
	"fmt"

	"github.com/diskfs/xfsro/xfs/xfserr"
)

// need asserts that b has at least n bytes, returning a DecodeFailure
// otherwise. Uuid128 and the block-header decoders call it first; the
// superblock and extent-record decoders check their own lengths.
func need(b []byte, n int, what string) error {
	if len(b) < n {
		return xfserr.Wrap(xfserr.DecodeFailure, fmt.Sprintf("%s: short read, need %d got %d", what, n, len(b)), nil)
	}
	return nil
}

func be16(b []byte) uint16 { return binary.BigEndian.Uint16(b) }
func be32(b []byte) uint32 { return binary.BigEndian.Uint32(b) }
func be64(b []byte) uint64 { return binary.BigEndian.Uint64(b) }

// Be16, Be32, Be64 are the exported forms used by sibling packages (e.g.
// xfsfork's btree block decoding) that need the same big-endian primitive
// reads without duplicating encoding/binary call sites throughout the tree.
func Be16(b []byte) uint16 { return be16(b) }
func Be32(b []byte) uint32 { return be32(b) }
func Be64(b []byte) uint64 { return be64(b) }

// Uuid128 decodes a 16-byte big-endian UUID field as found in superblocks
// and directory/attribute block headers.
func Uuid128(b []byte) (out [16]byte, err error) {
	if err = need(b, 16, "uuid"); err != nil {
		return out, err
	}
	copy(out[:], b[:16])
	return out, nil
}
