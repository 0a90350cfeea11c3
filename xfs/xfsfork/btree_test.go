package xfsfork

import (
	"testing"

	"github.com/diskfs/xfsro/xfs/xfsformat"
)

// buildBmdrRoot lays out a bmdr root (level:u16, numrecs:u16) followed by
// numrecs (startoff_key:u64, fsblock_ptr:u64) pairs.
func buildBmdrRoot(keysAndPtrs ...[2]uint64) []byte {
	buf := make([]byte, 4)
	be16(buf[0:2], 0) // level field unused by ParseExtentBtreeRoot
	be16(buf[2:4], uint16(len(keysAndPtrs)))
	for _, kp := range keysAndPtrs {
		b := make([]byte, 16)
		be64(b[0:8], kp[0])
		be64(b[8:16], kp[1])
		buf = append(buf, b...)
	}
	return buf
}

// buildBtreeLeafBlock lays out a long-form btree leaf block: the 72-byte
// header (magic, level=0, numrecs) followed by numrecs packed BMBT extent
// records.
func buildBtreeLeafBlock(t *testing.T, extents [][3]uint64) []byte {
	t.Helper()
	buf := make([]byte, btreeBlockHeaderLen)
	be32(buf[0:4], xfsformat.MagicBmbtBlock)
	be16(buf[4:6], 0) // level
	be16(buf[6:8], uint16(len(extents)))
	for _, e := range extents {
		buf = append(buf, encodeExtentRecord(t, e[0], e[1], e[2], false)...)
	}
	return buf
}

func be16(b []byte, v uint16) { b[0] = byte(v >> 8); b[1] = byte(v) }
func be32(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}
func be64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[7-i] = byte(v >> (8 * uint(i)))
	}
}

type fakeDisk struct {
	blockSize uint32
	blocks    map[uint64][]byte
}

func (d *fakeDisk) ReadAt(p []byte, off int64) (int, error) {
	block := uint64(off) / uint64(d.blockSize)
	content, ok := d.blocks[block]
	if !ok {
		return len(p), nil
	}
	copy(p, content)
	return len(p), nil
}

func TestBtreeResolverLookupSingleLeaf(t *testing.T) {
	leaf := buildBtreeLeafBlock(t, [][3]uint64{{0, 500, 4}, {10, 900, 2}})
	disk := &fakeDisk{blockSize: 4096, blocks: map[uint64][]byte{3: leaf}}
	sb := &xfsformat.Superblock{Blocksize: 4096, AGBlkLog: 32}

	root := buildBmdrRoot([2]uint64{0, 3})
	br, err := ParseExtentBtreeRoot(root, sb, disk)
	if err != nil {
		t.Fatalf("ParseExtentBtreeRoot: %v", err)
	}

	res, err := br.Lookup(1)
	if err != nil {
		t.Fatalf("Lookup(1): %v", err)
	}
	if !res.Present || res.FSBlock != 501 || res.RunLength != 3 {
		t.Errorf("Lookup(1) = %+v", res)
	}

	hole, err := br.Lookup(5)
	if err != nil {
		t.Fatalf("Lookup(5): %v", err)
	}
	if hole.Present {
		t.Errorf("Lookup(5) should be a hole, got %+v", hole)
	}
}

func TestBtreeResolverLookupTwoLevel(t *testing.T) {
	leafA := buildBtreeLeafBlock(t, [][3]uint64{{0, 1000, 4}})
	leafB := buildBtreeLeafBlock(t, [][3]uint64{{20, 2000, 4}})
	disk := &fakeDisk{blockSize: 4096, blocks: map[uint64][]byte{5: leafA, 6: leafB}}
	sb := &xfsformat.Superblock{Blocksize: 4096, AGBlkLog: 32}

	// internal block at fsblock 1 with two child pointers keyed 0 and 20.
	internal := make([]byte, btreeBlockHeaderLen)
	be32(internal[0:4], xfsformat.MagicBmbtBlock)
	be16(internal[4:6], 1) // level 1
	be16(internal[6:8], 2) // numrecs
	body := make([]byte, 32)
	be64(body[0:8], 0)
	be64(body[8:16], 20)
	be64(body[16:24], 5)
	be64(body[24:32], 6)
	internal = append(internal, body...)
	disk.blocks[1] = internal

	root := buildBmdrRoot([2]uint64{0, 1})
	br, err := ParseExtentBtreeRoot(root, sb, disk)
	if err != nil {
		t.Fatalf("ParseExtentBtreeRoot: %v", err)
	}

	res, err := br.Lookup(21)
	if err != nil {
		t.Fatalf("Lookup(21): %v", err)
	}
	if !res.Present || res.FSBlock != 2001 {
		t.Errorf("Lookup(21) = %+v, want present at fsblock 2001", res)
	}

	res2, err := br.Lookup(1)
	if err != nil {
		t.Fatalf("Lookup(1): %v", err)
	}
	if !res2.Present || res2.FSBlock != 1001 {
		t.Errorf("Lookup(1) = %+v, want present at fsblock 1001", res2)
	}
}

func TestParseExtentBtreeRootRejectsTruncated(t *testing.T) {
	if _, err := ParseExtentBtreeRoot([]byte{0, 0}, &xfsformat.Superblock{}, nil); err == nil {
		t.Fatal("expected error for truncated bmdr root, got nil")
	}
}

func TestBtreeResolverLookupEmptyRoot(t *testing.T) {
	br, err := ParseExtentBtreeRoot(buildBmdrRoot(), &xfsformat.Superblock{Blocksize: 4096, AGBlkLog: 32}, nil)
	if err != nil {
		t.Fatalf("ParseExtentBtreeRoot: %v", err)
	}
	res, err := br.Lookup(0)
	if err != nil {
		t.Fatalf("Lookup(0): %v", err)
	}
	if res.Present {
		t.Errorf("Lookup(0) on empty root should be a hole, got %+v", res)
	}
}
