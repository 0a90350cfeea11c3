package xfsdir

import "github.com/diskfs/xfsro/xfs/xfsformat"

// chainedLeafHdrLen is the node-form leaf block header: the 56-byte
// sibling block-info header plus count:u16, stale:u16, pad:u32 — the same
// Dir3LeafHdr shape as the single-block leaf form, but node/btree-form
// leaves carry no trailing bests/tail since the per-data-block best-free
// summary lives in separate "free" index blocks this driver does not need
// to decode (it never searches for free space to write).
const chainedLeafHdrLen = xfsformat.SiblingBlockHeaderLen + 8

// chainedLeafIndex is one leaf block in a NodeDir/BtreeDir's hash-ordered
// leaf chain.
type chainedLeafIndex struct {
	Forw uint32
	Ents []leafEntry
}

func parseChainedLeafIndex(block []byte) (*chainedLeafIndex, error) {
	sib, err := xfsformat.DecodeSiblingBlockHeader(block)
	if err != nil {
		return nil, err
	}
	if err := xfsformat.CheckMagic32("chained directory leaf block", sib.Magic, xfsformat.MagicDirLeafN); err != nil {
		return nil, err
	}
	if err := needLen(block, chainedLeafHdrLen); err != nil {
		return nil, err
	}
	count := int(xfsformat.Be16(block[xfsformat.SiblingBlockHeaderLen : xfsformat.SiblingBlockHeaderLen+2]))

	ci := &chainedLeafIndex{Forw: sib.Forw}
	pos := chainedLeafHdrLen
	for i := 0; i < count; i++ {
		if err := needLen(block[pos:], leafEntryLen); err != nil {
			return nil, err
		}
		ci.Ents = append(ci.Ents, leafEntry{
			Hashval: xfsformat.Be32(block[pos : pos+4]),
			Address: xfsformat.Be32(block[pos+4 : pos+8]),
		})
		pos += leafEntryLen
	}
	return ci, nil
}

func (ci *chainedLeafIndex) lookupHash(hash uint32) (start, end int) {
	lo, hi := 0, len(ci.Ents)
	for lo < hi {
		mid := (lo + hi) / 2
		if ci.Ents[mid].Hashval < hash {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	start = lo
	for end = start; end < len(ci.Ents) && ci.Ents[end].Hashval == hash; end++ {
	}
	return start, end
}
