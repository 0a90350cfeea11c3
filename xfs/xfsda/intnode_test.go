package xfsda

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/diskfs/xfsro/xfs/xfserr"
	"github.com/diskfs/xfsro/xfs/xfsformat"
)

// buildIntnodeBlock lays out one da-node block: a 48-byte common header
// (only Magic populated; CRC/Blkno/LSN/UUID/Owner are irrelevant to
// Decode) followed by (count, level) and count (hashval, before) entries.
func buildIntnodeBlock(magic uint32, level uint16, entries []Entry) []byte {
	buf := make([]byte, xfsformat.BlockHeaderLen+entryHeaderLen+len(entries)*entryLen)
	binary.BigEndian.PutUint32(buf[0:4], magic)
	rest := buf[xfsformat.BlockHeaderLen:]
	binary.BigEndian.PutUint16(rest[0:2], uint16(len(entries)))
	binary.BigEndian.PutUint16(rest[2:4], level)
	off := entryHeaderLen
	for _, e := range entries {
		binary.BigEndian.PutUint32(rest[off:off+4], e.Hashval)
		binary.BigEndian.PutUint32(rest[off+4:off+8], e.Before)
		off += entryLen
	}
	return buf
}

func TestDecodeRoundTrip(t *testing.T) {
	want := []Entry{{Hashval: 10, Before: 1}, {Hashval: 50, Before: 2}, {Hashval: 100, Before: 3}}
	buf := buildIntnodeBlock(xfsformat.MagicDirNode, 1, want)

	n, err := Decode(buf, xfsformat.MagicDirNode)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if n.Level != 1 {
		t.Errorf("Level = %d, want 1", n.Level)
	}
	if len(n.Entries) != len(want) {
		t.Fatalf("len(Entries) = %d, want %d", len(n.Entries), len(want))
	}
	for i, e := range want {
		if n.Entries[i] != e {
			t.Errorf("Entries[%d] = %+v, want %+v", i, n.Entries[i], e)
		}
	}
}

func TestDecodeRejectsWrongMagic(t *testing.T) {
	buf := buildIntnodeBlock(xfsformat.MagicAttrNode, 1, []Entry{{Hashval: 1, Before: 1}})
	if _, err := Decode(buf, xfsformat.MagicDirNode); err == nil {
		t.Fatal("expected error for mismatched magic, got nil")
	}
}

func TestDecodeRejectsTruncatedEntry(t *testing.T) {
	buf := buildIntnodeBlock(xfsformat.MagicDirNode, 1, []Entry{{Hashval: 1, Before: 1}})
	truncated := buf[:len(buf)-4]
	if _, err := Decode(truncated, xfsformat.MagicDirNode); err == nil {
		t.Fatal("expected error for truncated entry, got nil")
	}
}

// blockStore is an in-memory io.ReaderAt keyed by filesystem block number,
// paired with a MapBlock that treats dblock as an identity mapping onto
// fsblock, matching sb's FsbToOffset (AGBlkLog large enough that every
// fsblock maps straight through to block*blockSize).
type blockStore struct {
	blockSize uint32
	blocks    map[uint32][]byte
}

func (s *blockStore) readerAt() bytes.Reader {
	maxBlock := uint32(0)
	for b := range s.blocks {
		if b > maxBlock {
			maxBlock = b
		}
	}
	img := make([]byte, (int(maxBlock)+1)*int(s.blockSize))
	for b, content := range s.blocks {
		copy(img[int(b)*int(s.blockSize):], content)
	}
	return *bytes.NewReader(img)
}

func TestFirstBlockDescendsToLeftmostLeaf(t *testing.T) {
	blockSize := uint32(128)
	leafDBlock := uint32(7)

	child := buildIntnodeBlock(xfsformat.MagicDirNode, 1, []Entry{{Hashval: 5, Before: leafDBlock}})
	root := &Intnode{Level: 2, Entries: []Entry{{Hashval: 99, Before: 1}}}

	store := &blockStore{blockSize: blockSize, blocks: map[uint32][]byte{1: child}}
	r := store.readerAt()
	sb := &xfsformat.Superblock{Blocksize: blockSize, AGBlkLog: 32}

	mapBlock := func(dblock uint32) (uint64, error) { return uint64(dblock), nil }

	got, err := root.FirstBlock(&r, sb, blockSize, mapBlock, xfsformat.MagicDirNode)
	if err != nil {
		t.Fatalf("FirstBlock: %v", err)
	}
	if got != leafDBlock {
		t.Errorf("FirstBlock = %d, want %d", got, leafDBlock)
	}
}

func TestFirstBlockAtLeafLevelReturnsFirstEntryDirectly(t *testing.T) {
	n := &Intnode{Level: 1, Entries: []Entry{{Hashval: 10, Before: 42}}}
	got, err := n.FirstBlock(nil, nil, 0, nil, xfsformat.MagicDirNode)
	if err != nil {
		t.Fatalf("FirstBlock: %v", err)
	}
	if got != 42 {
		t.Errorf("FirstBlock = %d, want 42", got)
	}
}

func TestFirstBlockRejectsEmptyNode(t *testing.T) {
	n := &Intnode{Level: 1}
	if _, err := n.FirstBlock(nil, nil, 0, nil, xfsformat.MagicDirNode); err == nil {
		t.Fatal("expected error for empty intnode, got nil")
	}
}

func TestLookupFindsSmallestKeyAtOrAboveHash(t *testing.T) {
	n := &Intnode{Level: 1, Entries: []Entry{
		{Hashval: 10, Before: 1},
		{Hashval: 50, Before: 2},
		{Hashval: 100, Before: 3},
	}}

	cases := []struct {
		hash uint32
		want uint32
	}{
		{5, 1},
		{10, 1},
		{11, 2},
		{100, 3},
	}
	for _, c := range cases {
		got, err := n.Lookup(nil, nil, 0, c.hash, nil, xfsformat.MagicDirNode)
		if err != nil {
			t.Fatalf("Lookup(%d): %v", c.hash, err)
		}
		if got != c.want {
			t.Errorf("Lookup(%d) = %d, want %d", c.hash, got, c.want)
		}
	}
}

func TestLookupRejectsHashBeyondRange(t *testing.T) {
	n := &Intnode{Level: 1, Entries: []Entry{{Hashval: 10, Before: 1}}}
	_, err := n.Lookup(nil, nil, 0, 11, nil, xfsformat.MagicDirNode)
	if err == nil {
		t.Fatal("expected error for hash beyond range, got nil")
	}
	if !errors.Is(err, xfserr.NotFound) {
		t.Errorf("expected xfserr.NotFound, got %v", err)
	}
}
