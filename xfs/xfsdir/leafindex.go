package xfsdir

import (
	"github.com/diskfs/xfsro/xfs/xfserr"
	"github.com/diskfs/xfsro/xfs/xfsformat"
)

// leafHdrLen is the Dir3LeafHdr size: a 56-byte sibling block-info header
// plus count:u16, stale:u16, pad:u32.
const leafHdrLen = xfsformat.SiblingBlockHeaderLen + 8

// leafEntryLen is one (hashval:u32, address:u32) index entry.
const leafEntryLen = 8

// leafTailLen is the trailing Dir2LeafTail{bestcount:u32}.
const leafTailLen = 4

// leafEntry is a directory leaf index entry. Address, scaled by 8, is the
// byte offset into the data area.
type leafEntry struct {
	Hashval uint32
	Address uint32
}

// leafIndex is the decoded form of a LeafDir's dedicated leaf block:
// Dir3LeafHdr, its (hashval,address) entries, the per-data-block best-free
// array, and the trailing bestcount. Grounded bit-for-bit on
// original_source/src/libxfuse/dir3.rs's Dir2LeafDisk::from.
type leafIndex struct {
	Forw    uint32
	Back    uint32
	Ents    []leafEntry
	Bests   []uint16
}

// parseLeafIndex decodes LeafDir's dedicated leaf block.
func parseLeafIndex(block []byte) (*leafIndex, error) {
	sib, err := xfsformat.DecodeSiblingBlockHeader(block)
	if err != nil {
		return nil, err
	}
	if err := xfsformat.CheckMagic32("directory leaf block", sib.Magic, xfsformat.MagicDirLeaf1); err != nil {
		return nil, err
	}
	if err := needLen(block, leafHdrLen); err != nil {
		return nil, err
	}
	count := int(xfsformat.Be16(block[xfsformat.SiblingBlockHeaderLen : xfsformat.SiblingBlockHeaderLen+2]))

	li := &leafIndex{Forw: sib.Forw, Back: sib.Back}
	pos := leafHdrLen
	for i := 0; i < count; i++ {
		if err := needLen(block[pos:], leafEntryLen); err != nil {
			return nil, err
		}
		li.Ents = append(li.Ents, leafEntry{
			Hashval: xfsformat.Be32(block[pos : pos+4]),
			Address: xfsformat.Be32(block[pos+4 : pos+8]),
		})
		pos += leafEntryLen
	}

	if len(block) < leafTailLen {
		return nil, xfserr.New(xfserr.DecodeFailure, "truncated leaf tail")
	}
	tailStart := len(block) - leafTailLen
	bestcount := int(xfsformat.Be32(block[tailStart : tailStart+4]))

	bestsStart := tailStart - bestcount*2
	if bestsStart < pos {
		return nil, xfserr.New(xfserr.DecodeFailure, "leaf bests array overlaps entries")
	}
	for i := 0; i < bestcount; i++ {
		off := bestsStart + i*2
		li.Bests = append(li.Bests, xfsformat.Be16(block[off:off+2]))
	}

	return li, nil
}

// lookupHash implements the directory name-collision idiom: binary-search
// for the first entry with the queried hash, then linearly advance across
// equal-hash entries until the name matches or the hash changes.
func (li *leafIndex) lookupHash(hash uint32) (start, end int) {
	lo, hi := 0, len(li.Ents)
	for lo < hi {
		mid := (lo + hi) / 2
		if li.Ents[mid].Hashval < hash {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	start = lo
	end = start
	for end < len(li.Ents) && li.Ents[end].Hashval == hash {
		end++
	}
	return start, end
}
