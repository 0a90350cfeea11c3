package xfsattr

import (
	"io"

	"github.com/diskfs/xfsro/xfs/xfserr"
	"github.com/diskfs/xfsro/xfs/xfsfork"
	"github.com/diskfs/xfsro/xfs/xfsformat"
)

// AttrLeaf is the single-leaf-block attribute shape: one block holding the
// (hashval, nameidx, flags) index plus the name/value bytes it points into,
// and any extra attribute-fork blocks holding remote (out-of-line) values.
type AttrLeaf struct {
	resolver  xfsfork.Resolver
	blockSize uint32
	leaf      *attrLeafBlock
}

// ParseAttrLeaf resolves the attribute fork's first block and decodes it.
func ParseAttrLeaf(r io.ReaderAt, sb *xfsformat.Superblock, resolver xfsfork.Resolver) (*AttrLeaf, error) {
	res, err := resolver.Lookup(0)
	if err != nil {
		return nil, err
	}
	if !res.Present {
		return nil, xfserr.New(xfserr.DecodeFailure, "attribute leaf has no block")
	}
	blockSize := sb.DirBlockSize()
	block := make([]byte, blockSize)
	if _, err := r.ReadAt(block, int64(sb.FsbToOffset(res.FSBlock))); err != nil && err != io.EOF {
		return nil, xfserr.Wrap(xfserr.IoFailure, "reading attribute leaf block", err)
	}
	leaf, err := decodeAttrLeafBlock(block)
	if err != nil {
		return nil, err
	}
	return &AttrLeaf{resolver: resolver, blockSize: blockSize, leaf: leaf}, nil
}

func (al *AttrLeaf) resolveEntry(r io.ReaderAt, sb *xfsformat.Superblock, ent attrLeafEntry) (Entry, error) {
	name, local, value, ref, err := decodeEntry(al.leaf, ent)
	if err != nil {
		return Entry{}, err
	}
	if !local {
		value, err = readRemoteValue(r, sb, al.resolver, al.blockSize, ref)
		if err != nil {
			return Entry{}, err
		}
	}
	return Entry{Namespace: namespaceOf(ent.Flags), Name: name, Value: value}, nil
}

func (al *AttrLeaf) List(r io.ReaderAt, sb *xfsformat.Superblock) ([]Entry, error) {
	entries := make([]Entry, 0, len(al.leaf.Ents))
	for _, ent := range al.leaf.Ents {
		e, err := al.resolveEntry(r, sb, ent)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (al *AttrLeaf) GetTotalSize(r io.ReaderAt, sb *xfsformat.Superblock) (uint64, error) {
	entries, err := al.List(r, sb)
	if err != nil {
		return 0, err
	}
	return totalSizeFromEntries(entries), nil
}

func (al *AttrLeaf) Get(r io.ReaderAt, sb *xfsformat.Superblock, namespace Namespace, name string) ([]byte, error) {
	hash := hashFor(name)
	start, end := al.leaf.lookupHash(hash)
	for i := start; i < end; i++ {
		e, err := al.resolveEntry(r, sb, al.leaf.Ents[i])
		if err != nil {
			return nil, err
		}
		if e.Namespace == namespace && e.Name == name {
			return e.Value, nil
		}
	}
	return nil, xfserr.Wrap(xfserr.NoAttr, "attr leaf get: "+name, nil)
}
