package xfsformat

import "github.com/google/uuid"

// SiblingBlockHeaderLen is the size of the da3-style block info header
// carried by leaf, free, and intermediate-node blocks: unlike the plain
// 48-byte BlockHeader used by data blocks, this header additionally carries
// forward/backward sibling block-number pointers used to chain leaves for
// full-index scans (the attribute-size/listxattr walk, and the attribute
// collision idiom's sibling-leaf walk).
const SiblingBlockHeaderLen = 56

// SiblingBlockHeader is the common header for da3 leaf/free/node blocks:
// forw(4) back(4) magic(4) crc(4) blkno(8) lsn(8) uuid(16) owner(8). The
// magic field is four bytes wide, matching the mnemonic magic strings
// (e.g. "3DL1", "XAND") rather than the two-byte legacy v4 magics.
type SiblingBlockHeader struct {
	Forw  uint32
	Back  uint32
	Magic uint32
	CRC   uint32
	Blkno uint64
	LSN   uint64
	UUID  uuid.UUID
	Owner uint64
}

// DecodeSiblingBlockHeader decodes the 56-byte da3 block-info header.
func DecodeSiblingBlockHeader(b []byte) (SiblingBlockHeader, error) {
	var h SiblingBlockHeader
	if err := need(b, SiblingBlockHeaderLen, "sibling block header"); err != nil {
		return h, err
	}
	h.Forw = be32(b[0:4])
	h.Back = be32(b[4:8])
	h.Magic = be32(b[8:12])
	h.CRC = be32(b[12:16])
	h.Blkno = be64(b[16:24])
	h.LSN = be64(b[24:32])
	raw, err := Uuid128(b[32:48])
	if err != nil {
		return h, err
	}
	h.UUID = uuid.UUID(raw)
	h.Owner = be64(b[48:56])
	return h, nil
}
