package xfsformat

import "github.com/google/uuid"

// BlockHeaderLen is the size of the common 48-byte header carried by every
// directory/attribute data, leaf, free, and da-node block.
const BlockHeaderLen = 48

// BlockHeader is the common header shared by every directory/attribute
// block shape. Grounded bit-for-bit on
// original_source/src/libxfuse/dir3.rs's Dir3BlkHdr.
type BlockHeader struct {
	Magic uint32
	CRC   uint32
	Blkno uint64
	LSN   uint64
	UUID  uuid.UUID
	Owner uint64
}

// DecodeBlockHeader decodes the 48-byte common header from b.
func DecodeBlockHeader(b []byte) (BlockHeader, error) {
	var h BlockHeader
	if err := need(b, BlockHeaderLen, "block header"); err != nil {
		return h, err
	}
	h.Magic = be32(b[0:4])
	h.CRC = be32(b[4:8])
	h.Blkno = be64(b[8:16])
	h.LSN = be64(b[16:24])
	raw, err := Uuid128(b[24:40])
	if err != nil {
		return h, err
	}
	h.UUID = uuid.UUID(raw)
	h.Owner = be64(b[40:48])
	return h, nil
}
