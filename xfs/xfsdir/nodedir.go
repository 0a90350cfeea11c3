package xfsdir

import (
	"io"

	"github.com/diskfs/xfsro/xfs/xfserr"
	"github.com/diskfs/xfsro/xfs/xfsda"
	"github.com/diskfs/xfsro/xfs/xfsfork"
	"github.com/diskfs/xfsro/xfs/xfsformat"
)

// endCookie is an out-of-band readdir cookie that never matches a real
// directory entry's own cookie value, used to mark "stream exhausted"
// without colliding with cookie 0's "start of stream" meaning.
const endCookie = ^uint64(0)

// addrPair is one leaf-chain entry's resolved (data block, in-block offset).
type addrPair struct {
	dataIdx uint64
	offset  uint64
	cookie  uint64
}

// NodeDir is the indexed directory shape used once a directory outgrows a
// single leaf block: a root da-intnode block (always at directory-block 0)
// whose descent narrows on a queried hash down to one leaf block, and a
// chain of leaf blocks linked by sibling pointers in ascending-hash order.
// Both the root and every leaf, like the data blocks they index, are
// addressed through the same directory-block-number space and resolved to
// filesystem blocks by resolver.
//
// BtreeDir shares this exact structure; the only difference between the two
// shapes is whether resolver is backed by an extent list or an extent
// B+ tree, which xfsfork.Resolver already abstracts over. ParseBtreeDir
// below is the distinct constructor the inode-format dispatch calls for
// that shape; both return *NodeDir.
type NodeDir struct {
	resolver     xfsfork.Resolver
	dirBlockSize uint32
	root         *xfsda.Intnode

	leafCache map[uint32]*chainedLeafIndex
	order     []addrPair
}

// BtreeDir is a NodeDir whose data fork happens to be mapped through an
// extent B+ tree rather than a flat extent list.
type BtreeDir = NodeDir

func newIndexedDir(r io.ReaderAt, sb *xfsformat.Superblock, resolver xfsfork.Resolver) (*NodeDir, error) {
	nd := &NodeDir{
		resolver:     resolver,
		dirBlockSize: sb.DirBlockSize(),
		leafCache:    map[uint32]*chainedLeafIndex{},
	}
	rootBlock, err := nd.readDirBlock(r, sb, 0)
	if err != nil {
		return nil, err
	}
	root, err := xfsda.Decode(rootBlock, xfsformat.MagicDirNode)
	if err != nil {
		return nil, err
	}
	nd.root = root
	return nd, nil
}

// ParseNodeDir decodes a node-form directory whose data fork is an extent list.
func ParseNodeDir(r io.ReaderAt, sb *xfsformat.Superblock, resolver *xfsfork.ListResolver) (*NodeDir, error) {
	return newIndexedDir(r, sb, resolver)
}

// ParseBtreeDir decodes a btree-form directory whose data fork is an extent
// B+ tree.
func ParseBtreeDir(r io.ReaderAt, sb *xfsformat.Superblock, resolver *xfsfork.BtreeResolver) (*BtreeDir, error) {
	return newIndexedDir(r, sb, resolver)
}

func (nd *NodeDir) readDirBlock(r io.ReaderAt, sb *xfsformat.Superblock, dblock uint32) ([]byte, error) {
	res, err := nd.resolver.Lookup(uint64(dblock))
	if err != nil {
		return nil, err
	}
	if !res.Present {
		return nil, xfserr.New(xfserr.DecodeFailure, "unmapped directory block")
	}
	block := make([]byte, nd.dirBlockSize)
	if _, err := r.ReadAt(block, int64(sb.FsbToOffset(res.FSBlock))); err != nil && err != io.EOF {
		return nil, xfserr.Wrap(xfserr.IoFailure, "reading directory index block", err)
	}
	return block, nil
}

func (nd *NodeDir) mapDblock(r io.ReaderAt, sb *xfsformat.Superblock) xfsda.MapBlock {
	return func(dblock uint32) (uint64, error) {
		res, err := nd.resolver.Lookup(uint64(dblock))
		if err != nil {
			return 0, err
		}
		if !res.Present {
			return 0, xfserr.New(xfserr.DecodeFailure, "unmapped directory block")
		}
		return res.FSBlock, nil
	}
}

func (nd *NodeDir) getLeaf(r io.ReaderAt, sb *xfsformat.Superblock, dblock uint32) (*chainedLeafIndex, error) {
	if leaf, ok := nd.leafCache[dblock]; ok {
		return leaf, nil
	}
	block, err := nd.readDirBlock(r, sb, dblock)
	if err != nil {
		return nil, err
	}
	leaf, err := parseChainedLeafIndex(block)
	if err != nil {
		return nil, err
	}
	nd.leafCache[dblock] = leaf
	return leaf, nil
}

func (nd *NodeDir) readEntryAt(r io.ReaderAt, sb *xfsformat.Superblock, dataIdx, offset uint64) (Entry, error) {
	res, err := nd.resolver.Lookup(dataIdx)
	if err != nil {
		return Entry{}, err
	}
	if !res.Present {
		return Entry{}, xfserr.New(xfserr.DecodeFailure, "unmapped directory data block")
	}
	block := make([]byte, nd.dirBlockSize)
	if _, err := r.ReadAt(block, int64(sb.FsbToOffset(res.FSBlock))); err != nil && err != io.EOF {
		return Entry{}, xfserr.Wrap(xfserr.IoFailure, "reading directory data block", err)
	}
	if hdr, err := xfsformat.DecodeBlockHeader(block); err == nil {
		if err := xfsformat.CheckMagic32("directory data block", hdr.Magic, xfsformat.MagicDirData); err != nil {
			return Entry{}, err
		}
	}
	if offset >= uint64(len(block)) {
		return Entry{}, xfserr.New(xfserr.DecodeFailure, "directory entry address out of range")
	}
	rec, err := scanDataRecord(block[offset:], int(offset))
	if err != nil {
		return Entry{}, err
	}
	return rec.entry, nil
}

func (nd *NodeDir) Lookup(r io.ReaderAt, sb *xfsformat.Superblock, name string) (Entry, error) {
	hash := hashOf(name)
	mapDblock := nd.mapDblock(r, sb)
	dblock, err := nd.root.Lookup(r, sb, nd.dirBlockSize, hash, mapDblock, xfsformat.MagicDirNode)
	if err != nil {
		return Entry{}, err
	}
	leaf, err := nd.getLeaf(r, sb, dblock)
	if err != nil {
		return Entry{}, err
	}
	start, end := leaf.lookupHash(hash)
	for i := start; i < end; i++ {
		addr8 := uint64(leaf.Ents[i].Address) * 8
		dataIdx, offset := addr8/uint64(nd.dirBlockSize), addr8%uint64(nd.dirBlockSize)
		entry, err := nd.readEntryAt(r, sb, dataIdx, offset)
		if err != nil {
			continue
		}
		if entry.Name == name {
			return entry, nil
		}
	}
	return Entry{}, xfserr.Wrap(xfserr.NotFound, "node dir lookup: "+name, nil)
}

// ensureOrder flattens the leaf chain into visitation order, once, by
// following sibling forward pointers from the first (leftmost) leaf block
// until reaching one with no successor.
func (nd *NodeDir) ensureOrder(r io.ReaderAt, sb *xfsformat.Superblock) error {
	if nd.order != nil {
		return nil
	}
	mapDblock := nd.mapDblock(r, sb)
	dblock, err := nd.root.FirstBlock(r, sb, nd.dirBlockSize, mapDblock, xfsformat.MagicDirNode)
	if err != nil {
		return err
	}
	var order []addrPair
	for {
		leaf, err := nd.getLeaf(r, sb, dblock)
		if err != nil {
			return err
		}
		for _, ent := range leaf.Ents {
			addr8 := uint64(ent.Address) * 8
			dataIdx, offset := addr8/uint64(nd.dirBlockSize), addr8%uint64(nd.dirBlockSize)
			order = append(order, addrPair{dataIdx: dataIdx, offset: offset, cookie: MakeCookie(uint32(dataIdx), offset)})
		}
		if leaf.Forw == 0 {
			break
		}
		dblock = leaf.Forw
	}
	nd.order = order
	return nil
}

func (nd *NodeDir) Readdir(r io.ReaderAt, sb *xfsformat.Superblock, cookie uint64) (Entry, uint64, error) {
	if err := nd.ensureOrder(r, sb); err != nil {
		return Entry{}, 0, err
	}
	if cookie == endCookie {
		return Entry{}, 0, xfserr.Wrap(xfserr.NotFound, "node dir readdir exhausted", nil)
	}
	pos := 0
	if cookie != 0 {
		found := false
		for i, a := range nd.order {
			if a.cookie == cookie {
				pos, found = i, true
				break
			}
		}
		if !found {
			return Entry{}, 0, xfserr.Wrap(xfserr.NotFound, "invalid node dir readdir cookie", nil)
		}
	}
	if pos >= len(nd.order) {
		return Entry{}, 0, xfserr.Wrap(xfserr.NotFound, "node dir readdir exhausted", nil)
	}
	cur := nd.order[pos]
	entry, err := nd.readEntryAt(r, sb, cur.dataIdx, cur.offset)
	if err != nil {
		return Entry{}, 0, err
	}
	next := endCookie
	if pos+1 < len(nd.order) {
		next = nd.order[pos+1].cookie
	}
	return entry, next, nil
}
