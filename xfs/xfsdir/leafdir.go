package xfsdir

import (
	"io"

	"github.com/diskfs/xfsro/xfs/xfserr"
	"github.com/diskfs/xfsro/xfs/xfsfork"
	"github.com/diskfs/xfsro/xfs/xfsformat"
)

// LeafDir is the multi-data-block shape: several plain data blocks (each
// laid out exactly like BlockDir's single block, minus the trailing index)
// followed by one dedicated leaf block carrying the (hashval,address) index
// plus the per-data-block best-free summary. The leaf is always the last
// extent in the directory's data fork — there is nothing else it could be,
// since every other logical block holds raw entries.
type LeafDir struct {
	dataBlockCount uint64
	resolver       xfsfork.Resolver
	dirBlockSize   uint32
	leaf           *leafIndex

	blockCache map[uint64][]dataRecord
}

// ParseLeafDir locates the trailing leaf block via the resolver's highest
// logical block, decodes its index, and defers decoding individual data
// blocks until they're actually needed.
func ParseLeafDir(r io.ReaderAt, sb *xfsformat.Superblock, resolver xfsfork.Resolver) (*LeafDir, error) {
	lister, ok := resolver.(*xfsfork.ListResolver)
	if !ok {
		return nil, xfserr.New(xfserr.NotSupported, "leaf directory requires an extent list data fork")
	}
	extents := lister.Extents()
	if len(extents) == 0 {
		return nil, xfserr.New(xfserr.DecodeFailure, "leaf directory has no extents")
	}
	last := extents[len(extents)-1]

	leafBlock := make([]byte, sb.DirBlockSize())
	if _, err := r.ReadAt(leafBlock, int64(sb.FsbToOffset(last.StartBlock))); err != nil && err != io.EOF {
		return nil, xfserr.Wrap(xfserr.IoFailure, "reading directory leaf block", err)
	}
	leaf, err := parseLeafIndex(leafBlock)
	if err != nil {
		return nil, err
	}

	return &LeafDir{
		dataBlockCount: last.StartOff,
		resolver:       resolver,
		dirBlockSize:   sb.DirBlockSize(),
		leaf:           leaf,
		blockCache:     map[uint64][]dataRecord{},
	}, nil
}

func (ld *LeafDir) Lookup(r io.ReaderAt, sb *xfsformat.Superblock, name string) (Entry, error) {
	hash := hashOf(name)
	start, end := ld.leaf.lookupHash(hash)
	for i := start; i < end; i++ {
		addr8 := uint64(ld.leaf.Ents[i].Address) * 8
		dataIdx, offset := addr8/uint64(ld.dirBlockSize), addr8%uint64(ld.dirBlockSize)
		recs, err := ld.loadDataBlock(r, sb, dataIdx)
		if err != nil {
			continue
		}
		for _, rec := range recs {
			if uint64(rec.offset) == offset {
				if rec.entry.Name == name {
					return rec.entry, nil
				}
				break
			}
		}
	}
	return Entry{}, xfserr.Wrap(xfserr.NotFound, "leaf dir lookup: "+name, nil)
}

func (ld *LeafDir) loadDataBlock(r io.ReaderAt, sb *xfsformat.Superblock, dataIdx uint64) ([]dataRecord, error) {
	if recs, ok := ld.blockCache[dataIdx]; ok {
		return recs, nil
	}
	if dataIdx >= ld.dataBlockCount {
		return nil, xfserr.Wrap(xfserr.NotFound, "directory data block out of range", nil)
	}
	res, err := ld.resolver.Lookup(dataIdx)
	if err != nil {
		return nil, err
	}
	if !res.Present {
		return nil, xfserr.New(xfserr.DecodeFailure, "unmapped directory data block")
	}
	block := make([]byte, ld.dirBlockSize)
	if _, err := r.ReadAt(block, int64(sb.FsbToOffset(res.FSBlock))); err != nil && err != io.EOF {
		return nil, xfserr.Wrap(xfserr.IoFailure, "reading directory data block", err)
	}
	hdr, err := xfsformat.DecodeBlockHeader(block)
	if err != nil {
		return nil, err
	}
	if err := xfsformat.CheckMagic32("directory data block", hdr.Magic, xfsformat.MagicDirData); err != nil {
		return nil, err
	}
	recs, err := scanDataBlock(block, dataHdrLen, len(block))
	if err != nil {
		return nil, err
	}
	ld.blockCache[dataIdx] = recs
	return recs, nil
}

func (ld *LeafDir) Readdir(r io.ReaderAt, sb *xfsformat.Superblock, cookie uint64) (Entry, uint64, error) {
	dataIdx, byteOffset := SplitCookie(cookie)
	idx := uint64(dataIdx)
	off := byteOffset
	for idx < ld.dataBlockCount {
		recs, err := ld.loadDataBlock(r, sb, idx)
		if err != nil {
			return Entry{}, 0, err
		}
		pos := findInBlock(recs, off)
		if pos < len(recs) {
			rec := recs[pos]
			var next uint64
			if pos+1 < len(recs) {
				next = MakeCookie(uint32(idx), uint64(recs[pos+1].offset))
			} else {
				next = MakeCookie(uint32(idx+1), 0)
			}
			return rec.entry, next, nil
		}
		idx++
		off = 0
	}
	return Entry{}, 0, xfserr.Wrap(xfserr.NotFound, "leaf dir readdir exhausted", nil)
}
