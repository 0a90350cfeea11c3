// Package xfsda implements the hash-indexed intermediate-node engine shared
// by the directory and attribute cores: XfsDa3Intnode. Grounded on
// original_source/src/libxfuse/attr_bptree.rs's use of
// XfsDa3Intnode::{from, first_block, lookup} with an injected map_block
// closure, parameterized by a mapping closure rather than by inheritance so
// the same engine serves both forks.
package xfsda

import (
	"io"
	"sort"

	"github.com/diskfs/xfsro/xfs/xfserr"
	"github.com/diskfs/xfsro/xfs/xfsformat"
)

// entryHeaderLen is the (count, level) pair following the common block
// header, before the (hashval, before) entry array begins.
const entryHeaderLen = 4

// entryLen is the size of one (hashval:u32, before:u32) child entry.
const entryLen = 8

// Entry is one child pointer: Hashval is the maximum name hash present in
// the subtree rooted at the child block Before (a directory- or
// attribute-block number, not yet translated to a filesystem block).
type Entry struct {
	Hashval uint32
	Before  uint32
}

// Intnode is a decoded intermediate node. Level 0 never appears here — a
// level-0 child referenced by an Entry is a leaf block, decoded by the
// caller (xfsdir/xfsattr), not by this package.
type Intnode struct {
	Level   uint16
	Entries []Entry
}

// Decode parses one da-node block: the common 48-byte header (magic
// checked against expectedMagic — directory nodes and attribute nodes use
// distinct magic numbers, so the caller supplies which one applies here), a
// (count, level) pair, then count (hashval, before) entries.
func Decode(b []byte, expectedMagic uint32) (*Intnode, error) {
	if len(b) < xfsformat.BlockHeaderLen+entryHeaderLen {
		return nil, xfserr.New(xfserr.DecodeFailure, "truncated da intnode header")
	}
	hdr, err := xfsformat.DecodeBlockHeader(b)
	if err != nil {
		return nil, err
	}
	if err := xfsformat.CheckMagic32("da intnode", hdr.Magic, expectedMagic); err != nil {
		return nil, err
	}
	rest := b[xfsformat.BlockHeaderLen:]
	count := xfsformat.Be16(rest[0:2])
	level := xfsformat.Be16(rest[2:4])

	entries := make([]Entry, 0, count)
	off := entryHeaderLen
	for i := uint16(0); i < count; i++ {
		if off+entryLen > len(rest) {
			return nil, xfserr.New(xfserr.DecodeFailure, "truncated da intnode entry")
		}
		entries = append(entries, Entry{
			Hashval: xfsformat.Be32(rest[off : off+4]),
			Before:  xfsformat.Be32(rest[off+4 : off+8]),
		})
		off += entryLen
	}
	return &Intnode{Level: level, Entries: entries}, nil
}

// MapBlock translates a directory- or attribute-block number into a
// filesystem-block number, the seam that lets this engine serve both
// directories (lookup over the data fork) and attributes (over the
// attribute fork).
type MapBlock func(dblock uint32) (fsblock uint64, err error)

func (n *Intnode) readChild(r io.ReaderAt, sb *xfsformat.Superblock, blockSize uint32, dblock uint32, mapBlock MapBlock, expectedMagic uint32) (*Intnode, error) {
	fsblock, err := mapBlock(dblock)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, blockSize)
	if _, err := r.ReadAt(buf, int64(sb.FsbToOffset(fsblock))); err != nil && err != io.EOF {
		return nil, xfserr.Wrap(xfserr.IoFailure, "reading da intnode block", err)
	}
	return Decode(buf, expectedMagic)
}

// FirstBlock returns the leftmost leaf directory/attribute-block number:
// descend along child[0] until the leaf level. expectedMagic is the node
// magic to verify against each internal block visited along the way
// (MagicDirNode for directories, MagicAttrNode for attributes).
func (n *Intnode) FirstBlock(r io.ReaderAt, sb *xfsformat.Superblock, blockSize uint32, mapBlock MapBlock, expectedMagic uint32) (uint32, error) {
	if len(n.Entries) == 0 {
		return 0, xfserr.New(xfserr.DecodeFailure, "empty da intnode")
	}
	dblock := n.Entries[0].Before
	if n.Level <= 1 {
		return dblock, nil
	}
	child, err := n.readChild(r, sb, blockSize, dblock, mapBlock, expectedMagic)
	if err != nil {
		return 0, err
	}
	return child.FirstBlock(r, sb, blockSize, mapBlock, expectedMagic)
}

// Lookup finds the leaf directory/attribute-block number whose subtree may
// contain hash: at each level, binary-search children for the smallest key
// >= hash; NOENT if none.
func (n *Intnode) Lookup(r io.ReaderAt, sb *xfsformat.Superblock, blockSize uint32, hash uint32, mapBlock MapBlock, expectedMagic uint32) (uint32, error) {
	idx := sort.Search(len(n.Entries), func(i int) bool {
		return n.Entries[i].Hashval >= hash
	})
	if idx == len(n.Entries) {
		return 0, xfserr.Wrap(xfserr.NotFound, "hash exceeds da intnode range", nil)
	}

	dblock := n.Entries[idx].Before
	if n.Level <= 1 {
		return dblock, nil
	}
	child, err := n.readChild(r, sb, blockSize, dblock, mapBlock, expectedMagic)
	if err != nil {
		return 0, err
	}
	return child.Lookup(r, sb, blockSize, hash, mapBlock, expectedMagic)
}
