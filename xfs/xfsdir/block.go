package xfsdir

import (
	"io"

	"github.com/diskfs/xfsro/xfs/xfserr"
	"github.com/diskfs/xfsro/xfs/xfsfork"
	"github.com/diskfs/xfsro/xfs/xfsformat"
)

// dataHdrLen is Dir3DataHdr: a 48-byte common block header, a best_free[3]
// array of {offset:u16,length:u16} (12 bytes), and 4 bytes of padding.
const dataHdrLen = xfsformat.BlockHeaderLen + 12 + 4

// blockTailLen is the block-form tail: count:u32, stale:u32 — no separate
// Dir3LeafHdr (forward/backward sibling pointers make no sense when the
// whole directory is one block) and no per-block bests array (there is
// only the one data block).
const blockTailLen = 8

// BlockDir is the single-directory-block shape (di_format == Extents with
// exactly one data-fork extent, magic XDD3/XDB3): one data block holding
// entries, interleaved free tags, and a trailing index of (hashval,address)
// entries plus a {count, stale} tail.
type BlockDir struct {
	recs []dataRecord
	ents []leafEntry
}

// ParseBlockDir reads the directory's single resolved block and decodes it.
func ParseBlockDir(r io.ReaderAt, sb *xfsformat.Superblock, resolver xfsfork.Resolver) (*BlockDir, error) {
	res, err := resolver.Lookup(0)
	if err != nil {
		return nil, err
	}
	if !res.Present {
		return nil, xfserr.New(xfserr.DecodeFailure, "block directory has no data block")
	}

	block := make([]byte, sb.DirBlockSize())
	if _, err := r.ReadAt(block, int64(sb.FsbToOffset(res.FSBlock))); err != nil && err != io.EOF {
		return nil, xfserr.Wrap(xfserr.IoFailure, "reading block directory", err)
	}

	hdr, err := xfsformat.DecodeBlockHeader(block)
	if err != nil {
		return nil, err
	}
	if err := xfsformat.CheckMagic32("block directory", hdr.Magic, xfsformat.MagicDirBlockA, xfsformat.MagicDirBlockB); err != nil {
		return nil, err
	}

	if err := needLen(block, dataHdrLen+blockTailLen); err != nil {
		return nil, err
	}
	tailStart := len(block) - blockTailLen
	count := int(xfsformat.Be32(block[tailStart : tailStart+4]))

	entsStart := tailStart - count*leafEntryLen
	if entsStart < dataHdrLen {
		return nil, xfserr.New(xfserr.DecodeFailure, "block directory index overlaps data")
	}

	bd := &BlockDir{}
	for i := 0; i < count; i++ {
		off := entsStart + i*leafEntryLen
		bd.ents = append(bd.ents, leafEntry{
			Hashval: xfsformat.Be32(block[off : off+4]),
			Address: xfsformat.Be32(block[off+4 : off+8]),
		})
	}

	recs, err := scanDataBlock(block, dataHdrLen, entsStart)
	if err != nil {
		return nil, err
	}
	bd.recs = recs
	return bd, nil
}

func (bd *BlockDir) lookupHash(hash uint32) (start, end int) {
	lo, hi := 0, len(bd.ents)
	for lo < hi {
		mid := (lo + hi) / 2
		if bd.ents[mid].Hashval < hash {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	start = lo
	for end = start; end < len(bd.ents) && bd.ents[end].Hashval == hash; end++ {
	}
	return start, end
}

func (bd *BlockDir) recordAt(byteOffset uint64) (dataRecord, bool) {
	for _, rec := range bd.recs {
		if uint64(rec.offset) == byteOffset {
			return rec, true
		}
	}
	return dataRecord{}, false
}

func (bd *BlockDir) Lookup(_ io.ReaderAt, _ *xfsformat.Superblock, name string) (Entry, error) {
	hash := hashOf(name)
	start, end := bd.lookupHash(hash)
	for i := start; i < end; i++ {
		rec, ok := bd.recordAt(uint64(bd.ents[i].Address) * 8)
		if !ok {
			continue
		}
		if rec.entry.Name == name {
			return rec.entry, nil
		}
	}
	return Entry{}, xfserr.Wrap(xfserr.NotFound, "block dir lookup: "+name, nil)
}

func (bd *BlockDir) Readdir(_ io.ReaderAt, _ *xfsformat.Superblock, cookie uint64) (Entry, uint64, error) {
	_, byteOffset := SplitCookie(cookie)
	idx := findInBlock(bd.recs, byteOffset)
	if idx >= len(bd.recs) {
		return Entry{}, 0, xfserr.Wrap(xfserr.NotFound, "block dir readdir exhausted", nil)
	}
	rec := bd.recs[idx]
	var next uint64
	if idx+1 < len(bd.recs) {
		next = MakeCookie(0, uint64(bd.recs[idx+1].offset))
	} else {
		next = MakeCookie(0, uint64(bd.recs[idx].offset+bd.recs[idx].recLen))
	}
	return rec.entry, next, nil
}
