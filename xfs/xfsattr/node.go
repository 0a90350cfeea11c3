package xfsattr

import (
	"errors"
	"io"

	"github.com/diskfs/xfsro/xfs/xfserr"
	"github.com/diskfs/xfsro/xfs/xfsda"
	"github.com/diskfs/xfsro/xfs/xfsfork"
	"github.com/diskfs/xfsro/xfs/xfsformat"
)

// AttrNode is the indexed attribute shape: a root da-intnode block (at
// attribute-block number 0) descending to leaf blocks chained by sibling
// forward pointers, with a leaf cache keyed by attribute-block number.
// Mirrors xfsdir.NodeDir's structure exactly, but attribute lookups use the
// sibling-leaf-walk collision idiom (attr_bptree.rs's get_size/get: when a
// hash search runs off the end of one leaf's entries, follow hdr.info.forw
// to the next leaf rather than widening a range within one leaf, since only
// one leaf is held in memory at a time) instead of xfsdir's single-leaf
// entry-array counter.
type AttrNode struct {
	resolver  xfsfork.Resolver
	blockSize uint32
	root      *xfsda.Intnode

	leafCache map[uint32]*attrLeafBlock
}

// AttrBtree is an AttrNode whose attribute fork happens to be mapped
// through an extent B+ tree rather than a flat extent list.
type AttrBtree = AttrNode

func newIndexedAttr(r io.ReaderAt, sb *xfsformat.Superblock, resolver xfsfork.Resolver) (*AttrNode, error) {
	an := &AttrNode{
		resolver:  resolver,
		blockSize: sb.DirBlockSize(),
		leafCache: map[uint32]*attrLeafBlock{},
	}
	rootBlock, err := an.readBlock(r, sb, 0)
	if err != nil {
		return nil, err
	}
	root, err := xfsda.Decode(rootBlock, xfsformat.MagicAttrNode)
	if err != nil {
		return nil, err
	}
	an.root = root
	return an, nil
}

// ParseAttrNode decodes a node-form attribute fork backed by an extent list.
func ParseAttrNode(r io.ReaderAt, sb *xfsformat.Superblock, resolver *xfsfork.ListResolver) (*AttrNode, error) {
	return newIndexedAttr(r, sb, resolver)
}

// ParseAttrBtree decodes a btree-form attribute fork backed by an extent
// B+ tree.
func ParseAttrBtree(r io.ReaderAt, sb *xfsformat.Superblock, resolver *xfsfork.BtreeResolver) (*AttrBtree, error) {
	return newIndexedAttr(r, sb, resolver)
}

func (an *AttrNode) readBlock(r io.ReaderAt, sb *xfsformat.Superblock, dblock uint32) ([]byte, error) {
	res, err := an.resolver.Lookup(uint64(dblock))
	if err != nil {
		return nil, err
	}
	if !res.Present {
		return nil, xfserr.New(xfserr.DecodeFailure, "unmapped attribute block")
	}
	block := make([]byte, an.blockSize)
	if _, err := r.ReadAt(block, int64(sb.FsbToOffset(res.FSBlock))); err != nil && err != io.EOF {
		return nil, xfserr.Wrap(xfserr.IoFailure, "reading attribute index block", err)
	}
	return block, nil
}

func (an *AttrNode) mapDblock() xfsda.MapBlock {
	return func(dblock uint32) (uint64, error) {
		res, err := an.resolver.Lookup(uint64(dblock))
		if err != nil {
			return 0, err
		}
		if !res.Present {
			return 0, xfserr.New(xfserr.DecodeFailure, "unmapped attribute block")
		}
		return res.FSBlock, nil
	}
}

func (an *AttrNode) getLeaf(r io.ReaderAt, sb *xfsformat.Superblock, dblock uint32) (*attrLeafBlock, error) {
	if leaf, ok := an.leafCache[dblock]; ok {
		return leaf, nil
	}
	block, err := an.readBlock(r, sb, dblock)
	if err != nil {
		return nil, err
	}
	leaf, err := decodeAttrLeafBlock(block)
	if err != nil {
		return nil, err
	}
	an.leafCache[dblock] = leaf
	return leaf, nil
}

func (an *AttrNode) firstLeafBlock(r io.ReaderAt, sb *xfsformat.Superblock) (uint32, error) {
	return an.root.FirstBlock(r, sb, an.blockSize, an.mapDblock(), xfsformat.MagicAttrNode)
}

func (an *AttrNode) List(r io.ReaderAt, sb *xfsformat.Superblock) ([]Entry, error) {
	dblock, err := an.firstLeafBlock(r, sb)
	if err != nil {
		return nil, err
	}
	var entries []Entry
	for {
		leaf, err := an.getLeaf(r, sb, dblock)
		if err != nil {
			return nil, err
		}
		for _, ent := range leaf.Ents {
			name, local, value, ref, err := decodeEntry(leaf, ent)
			if err != nil {
				return nil, err
			}
			if !local {
				value, err = readRemoteValue(r, sb, an.resolver, an.blockSize, ref)
				if err != nil {
					return nil, err
				}
			}
			entries = append(entries, Entry{Namespace: namespaceOf(ent.Flags), Name: name, Value: value})
		}
		if leaf.Forw == 0 {
			break
		}
		dblock = leaf.Forw
	}
	return entries, nil
}

// GetTotalSize visits every leaf once, starting at the first block and
// chaining forward via each leaf's sibling pointer, summing (namelen+1)
// without resolving any remote value bytes.
func (an *AttrNode) GetTotalSize(r io.ReaderAt, sb *xfsformat.Superblock) (uint64, error) {
	dblock, err := an.firstLeafBlock(r, sb)
	if err != nil {
		return 0, err
	}
	var total uint64
	for {
		leaf, err := an.getLeaf(r, sb, dblock)
		if err != nil {
			return 0, err
		}
		for _, ent := range leaf.Ents {
			name, _, _, _, err := decodeEntry(leaf, ent)
			if err != nil {
				return 0, err
			}
			total += uint64(len(name)) + 1
		}
		if leaf.Forw == 0 {
			break
		}
		dblock = leaf.Forw
	}
	return total, nil
}

func (an *AttrNode) Get(r io.ReaderAt, sb *xfsformat.Superblock, namespace Namespace, name string) ([]byte, error) {
	hash := hashFor(name)
	dblock, err := an.root.Lookup(r, sb, an.blockSize, hash, an.mapDblock(), xfsformat.MagicAttrNode)
	if err != nil {
		if errors.Is(err, xfserr.NotFound) {
			return nil, xfserr.Wrap(xfserr.NoAttr, "attr node get: "+name, nil)
		}
		return nil, err
	}

	for {
		leaf, err := an.getLeaf(r, sb, dblock)
		if err != nil {
			return nil, err
		}
		start, end := leaf.lookupHash(hash)
		for i := start; i < end; i++ {
			entName, local, value, ref, err := decodeEntry(leaf, leaf.Ents[i])
			if err != nil {
				return nil, err
			}
			if !local {
				value, err = readRemoteValue(r, sb, an.resolver, an.blockSize, ref)
				if err != nil {
					return nil, err
				}
			}
			if namespaceOf(leaf.Ents[i].Flags) == namespace && entName == name {
				return value, nil
			}
		}
		// The queried hash may continue into the next leaf: only follow the
		// sibling pointer when this leaf's last entry still carries it.
		if end == len(leaf.Ents) && end > 0 && leaf.Ents[end-1].Hashval == hash && leaf.Forw != 0 {
			dblock = leaf.Forw
			continue
		}
		return nil, xfserr.Wrap(xfserr.NoAttr, "attr node get: "+name, nil)
	}
}
