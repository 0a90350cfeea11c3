// Package xfsdir implements the five on-disk directory shapes XFS uses,
// chosen by size: shortform, block, leaf, node, and btree. Grounded
// bit-for-bit on original_source/src/libxfuse/dir3.rs and dir3_leaf.rs for
// block/leaf layouts and the Dir3::{lookup,next} trait shape, generalized
// from filesystem/ext4/ext4.go's readDirectory/ReadDir traversal pattern.
//
// The readdir cookie packs an 8-bit data-block index and a 56-bit in-block
// byte offset (data_block_index<<56 | byte_offset_in_block), wider than the
// original Rust driver's split, to tolerate directories whose per-block
// byte offsets exceed that driver's narrower field.
package xfsdir

import (
	"io"

	"github.com/diskfs/xfsro/xfs/xfserr"
	"github.com/diskfs/xfsro/xfs/xfsformat"
	"github.com/diskfs/xfsro/xfs/xfsname"
)

// Entry is one resolved directory entry.
type Entry struct {
	Ino      uint64
	Name     string
	FileType uint8
}

// View is the read-only contract every directory shape implements.
type View interface {
	Lookup(r io.ReaderAt, sb *xfsformat.Superblock, name string) (Entry, error)
	// Readdir returns the entry at cookie and the cookie of the entry that
	// follows it. Returns xfserr.NotFound once the stream is exhausted.
	Readdir(r io.ReaderAt, sb *xfsformat.Superblock, cookie uint64) (Entry, uint64, error)
}

const (
	freeTag            uint16 = 0xFFFF
	dataBlockIndexShift        = 56
	byteOffsetMask     uint64 = (1 << dataBlockIndexShift) - 1
)

// MakeCookie packs a data-block index and an in-block byte offset into the
// stable 64-bit readdir cookie.
func MakeCookie(dataBlockIndex uint32, byteOffset uint64) uint64 {
	return uint64(dataBlockIndex)<<dataBlockIndexShift | (byteOffset & byteOffsetMask)
}

// SplitCookie is the inverse of MakeCookie.
func SplitCookie(cookie uint64) (dataBlockIndex uint32, byteOffset uint64) {
	return uint32(cookie >> dataBlockIndexShift), cookie & byteOffsetMask
}

func align8(x int) int { return (x + 7) / 8 * 8 }

// dataRecord is one decoded directory data entry plus its on-disk extent.
type dataRecord struct {
	entry  Entry
	offset int // byte offset of the record's start within its data block
	recLen int // total record length including padding
	isFree bool
}

// scanDataRecord decodes one record (entry or free tag) starting at b[0],
// whose start is at absolute block offset `offset`. Grounded bit-for-bit on
// original_source/src/libxfuse/dir3.rs's Dir2DataEntry::from /
// Dir2DataUnused::from.
func scanDataRecord(b []byte, offset int) (dataRecord, error) {
	if err := needLen(b, 2); err != nil {
		return dataRecord{}, err
	}
	if xfsformat.Be16(b[0:2]) == freeTag {
		if err := needLen(b, 4); err != nil {
			return dataRecord{}, err
		}
		length := int(xfsformat.Be16(b[2:4]))
		if length < 4 {
			return dataRecord{}, xfserr.New(xfserr.DecodeFailure, "degenerate free directory entry")
		}
		return dataRecord{offset: offset, recLen: length, isFree: true}, nil
	}

	if err := needLen(b, 9); err != nil {
		return dataRecord{}, err
	}
	ino := xfsformat.Be64(b[0:8])
	namelen := int(b[8])
	nameEnd := 9 + namelen
	if err := needLen(b, nameEnd+1); err != nil {
		return dataRecord{}, err
	}
	name := string(b[9:nameEnd])
	ftype := b[nameEnd]
	pos := nameEnd + 1
	pad := align8(pos+2) - (pos + 2)
	tagPos := pos + pad
	if err := needLen(b, tagPos+2); err != nil {
		return dataRecord{}, err
	}
	recLen := tagPos + 2

	return dataRecord{
		entry:  Entry{Ino: ino, Name: name, FileType: ftype},
		offset: offset,
		recLen: recLen,
	}, nil
}

func needLen(b []byte, n int) error {
	if len(b) < n {
		return xfserr.New(xfserr.DecodeFailure, "truncated directory record")
	}
	return nil
}

// scanDataBlock decodes every record in block[dataStart:dataEnd], skipping
// free tags, and returns them in on-disk order.
func scanDataBlock(block []byte, dataStart, dataEnd int) ([]dataRecord, error) {
	var recs []dataRecord
	pos := dataStart
	for pos < dataEnd {
		rec, err := scanDataRecord(block[pos:dataEnd], pos)
		if err != nil {
			return nil, err
		}
		if !rec.isFree {
			recs = append(recs, rec)
		}
		pos += rec.recLen
	}
	return recs, nil
}

// findInBlock locates the first record at or after byteOffset.
func findInBlock(recs []dataRecord, byteOffset uint64) int {
	for i, rec := range recs {
		if uint64(rec.offset) >= byteOffset {
			return i
		}
	}
	return len(recs)
}

// hashOf is the shared name-hash entry point used by every indexed shape.
func hashOf(name string) uint32 {
	return xfsname.Hash([]byte(name))
}
