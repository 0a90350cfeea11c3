package xfsattr

import (
	"github.com/diskfs/xfsro/xfs/xfserr"
	"github.com/diskfs/xfsro/xfs/xfsformat"
)

// attrLeafHdrLen covers the 56-byte sibling block-info header plus
// count:u16 and a 2-byte pad. The real on-disk header also carries
// usedbytes/firstused/holes/freemap fields for free-space bookkeeping,
// which this read-only driver never needs and does not decode.
const attrLeafHdrLen = xfsformat.SiblingBlockHeaderLen + 4

// attrEntryLen is one (hashval:u32, nameidx:u16, flags:u8, pad:u8) index
// entry.
const attrEntryLen = 8

type attrLeafEntry struct {
	Hashval uint32
	Nameidx uint16
	Flags   uint8
}

// attrLeafBlock is the decoded form of one attribute leaf block: its
// sibling header (for leaf-chain traversal) and its (hashval, nameidx,
// flags) index. The name/value bytes at each entry's nameidx are decoded
// lazily by the caller, since whether an entry is local or remote changes
// what follows.
type attrLeafBlock struct {
	Forw uint32
	Ents []attrLeafEntry
	raw  []byte
}

func decodeAttrLeafBlock(block []byte) (*attrLeafBlock, error) {
	sib, err := xfsformat.DecodeSiblingBlockHeader(block)
	if err != nil {
		return nil, err
	}
	if err := xfsformat.CheckMagic32("attribute leaf block", sib.Magic, xfsformat.MagicAttrLeaf); err != nil {
		return nil, err
	}
	if err := needLen(block, attrLeafHdrLen); err != nil {
		return nil, err
	}
	count := int(xfsformat.Be16(block[xfsformat.SiblingBlockHeaderLen : xfsformat.SiblingBlockHeaderLen+2]))

	lb := &attrLeafBlock{Forw: sib.Forw, raw: block}
	pos := attrLeafHdrLen
	for i := 0; i < count; i++ {
		if err := needLen(block[pos:], attrEntryLen); err != nil {
			return nil, err
		}
		lb.Ents = append(lb.Ents, attrLeafEntry{
			Hashval: xfsformat.Be32(block[pos : pos+4]),
			Nameidx: xfsformat.Be16(block[pos+4 : pos+6]),
			Flags:   block[pos+6],
		})
		pos += attrEntryLen
	}
	return lb, nil
}

func (lb *attrLeafBlock) lookupHash(hash uint32) (start, end int) {
	lo, hi := 0, len(lb.Ents)
	for lo < hi {
		mid := (lo + hi) / 2
		if lb.Ents[mid].Hashval < hash {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	start = lo
	for end = start; end < len(lb.Ents) && lb.Ents[end].Hashval == hash; end++ {
	}
	return start, end
}

// resolveLocal decodes a local-form entry's name and value starting at its
// nameidx: {namelen:u8, valuelen:u16, name[namelen], value[valuelen]}.
func (lb *attrLeafBlock) resolveLocal(ent attrLeafEntry) (string, []byte, error) {
	pos := int(ent.Nameidx)
	if err := needLen(lb.raw[pos:], 3); err != nil {
		return "", nil, err
	}
	namelen := int(lb.raw[pos])
	valuelen := int(xfsformat.Be16(lb.raw[pos+1 : pos+3]))
	nameStart := pos + 3
	nameEnd := nameStart + namelen
	valueEnd := nameEnd + valuelen
	if err := needLen(lb.raw, valueEnd); err != nil {
		return "", nil, err
	}
	name := string(lb.raw[nameStart:nameEnd])
	value := append([]byte(nil), lb.raw[nameEnd:valueEnd]...)
	return name, value, nil
}

// remoteRef is a non-local entry's {valueblk, valuelen}: the value lives in
// subsequent attribute-fork blocks at directory-block number valueblk.
type remoteRef struct {
	name     string
	valueblk uint32
	valuelen uint32
}

// resolveRemote decodes a remote-form entry's header and name:
// {valueblk:u32, valuelen:u32, namelen:u8, name[namelen]}.
func (lb *attrLeafBlock) resolveRemote(ent attrLeafEntry) (remoteRef, error) {
	pos := int(ent.Nameidx)
	if err := needLen(lb.raw[pos:], 9); err != nil {
		return remoteRef{}, err
	}
	valueblk := xfsformat.Be32(lb.raw[pos : pos+4])
	valuelen := xfsformat.Be32(lb.raw[pos+4 : pos+8])
	namelen := int(lb.raw[pos+8])
	nameStart := pos + 9
	nameEnd := nameStart + namelen
	if err := needLen(lb.raw, nameEnd); err != nil {
		return remoteRef{}, err
	}
	return remoteRef{name: string(lb.raw[nameStart:nameEnd]), valueblk: valueblk, valuelen: valuelen}, nil
}

func decodeEntry(lb *attrLeafBlock, ent attrLeafEntry) (string, bool, []byte, remoteRef, error) {
	if ent.Flags&attrIncomplete != 0 {
		return "", false, nil, remoteRef{}, xfserr.New(xfserr.DecodeFailure, "incomplete attribute entry")
	}
	if ent.Flags&attrLocal != 0 {
		name, value, err := lb.resolveLocal(ent)
		return name, true, value, remoteRef{}, err
	}
	ref, err := lb.resolveRemote(ent)
	return ref.name, false, nil, ref, err
}
