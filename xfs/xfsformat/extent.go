package xfsformat

import "github.com/diskfs/xfsro/xfs/xfserr"

// ExtentRecordLen is the packed on-disk size of one BMBT extent record.
const ExtentRecordLen = 16

// ExtentRecord is the decoded form of a 128-bit BMBT extent record: 1-bit
// state, 54-bit file offset, 52-bit start block, 21-bit block count
// on-disk packing. DecodeExtentRecord rejects BlockCount == 0; the caller
// (xfsfork) checks that extents within a fork are sorted by StartOff and
// non-overlapping.
type ExtentRecord struct {
	Unwritten  bool
	StartOff   uint64
	StartBlock uint64
	BlockCount uint64
}

// DecodeExtentRecord unpacks one 16-byte big-endian BMBT record. The layout,
// read as a single 128-bit big-endian integer from high bit to low bit, is:
//
//	bit 127:    state (0 = normal, 1 = unwritten)
//	bits 126-73: startoff (54 bits)
//	bits 72-21:  startblock (52 bits)
//	bits 20-0:   blockcount (21 bits)
func DecodeExtentRecord(b []byte) (ExtentRecord, error) {
	var rec ExtentRecord
	if len(b) < ExtentRecordLen {
		return rec, xfserr.New(xfserr.DecodeFailure, "truncated BMBT extent record")
	}

	hi := be64(b[0:8])
	lo := be64(b[8:16])

	rec.Unwritten = hi>>63 != 0
	// startoff: bits 126..73 of the 128-bit word = bits 62..9 of hi;
	// no bit of lo is involved.
	rec.StartOff = ((hi >> 9) & 0x3FFFFFFFFFFFFF)
	// startblock: low 9 bits of hi form the high 9 bits of a 52-bit value;
	// the remaining 43 bits come from the top of lo.
	rec.StartBlock = ((hi & 0x1FF) << 43) | (lo >> 21)
	rec.BlockCount = lo & 0x1FFFFF

	if rec.BlockCount == 0 {
		return rec, xfserr.New(xfserr.DecodeFailure, "zero-length BMBT extent")
	}
	return rec, nil
}
