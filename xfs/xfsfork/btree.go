package xfsfork

import (
	"io"
	"sort"

	"github.com/diskfs/xfsro/xfs/xfserr"
	"github.com/diskfs/xfsro/xfs/xfsformat"
)

// btreeBlockHeaderLen is the on-disk size of the long-form btree block
// header shared by internal and leaf blocks: magic(4) level(2) numrecs(2)
// leftsib(8) rightsib(8) blkno(8) lsn(8) uuid(16) owner(8) crc(4) pad(4).
const btreeBlockHeaderLen = 72

type btreeBlockHeader struct {
	magic    uint32
	level    uint16
	numrecs  uint16
	leftsib  uint64
	rightsib uint64
}

func decodeBtreeBlockHeader(b []byte) (btreeBlockHeader, error) {
	var h btreeBlockHeader
	if len(b) < btreeBlockHeaderLen {
		return h, xfserr.New(xfserr.DecodeFailure, "truncated bmbt block header")
	}
	h.magic = xfsformat.Be32(b[0:4])
	if err := xfsformat.CheckMagic32("bmbt block", h.magic, xfsformat.MagicBmbtBlock); err != nil {
		return h, err
	}
	h.level = xfsformat.Be16(b[4:6])
	h.numrecs = xfsformat.Be16(b[6:8])
	h.leftsib = xfsformat.Be64(b[8:16])
	h.rightsib = xfsformat.Be64(b[16:24])
	return h, nil
}

// BtreeResolver implements extent-B+-tree resolution. The
// inode's literal area holds the btree root: a (level, numrecs) header
// followed by numrecs (startoff_key, fsblock_ptr) pairs. Lookup descends by
// choosing the rightmost key <= target at each internal level; leaves hold
// packed BMBT records and expose the same contract as ListResolver.
type BtreeResolver struct {
	sb       *xfsformat.Superblock
	r        io.ReaderAt
	rootKeys []uint64
	rootPtrs []uint64
}

// ParseExtentBtreeRoot decodes a data-fork or attribute-fork literal area in
// XFS_DINODE_FMT_BTREE form.
func ParseExtentBtreeRoot(b []byte, sb *xfsformat.Superblock, r io.ReaderAt) (*BtreeResolver, error) {
	if len(b) < 4 {
		return nil, xfserr.New(xfserr.DecodeFailure, "truncated bmdr root")
	}
	numrecs := xfsformat.Be16(b[2:4])
	br := &BtreeResolver{sb: sb, r: r}

	off := 4
	for i := uint16(0); i < numrecs; i++ {
		if off+16 > len(b) {
			return nil, xfserr.New(xfserr.DecodeFailure, "truncated bmdr root key/pointer pair")
		}
		br.rootKeys = append(br.rootKeys, xfsformat.Be64(b[off:off+8]))
		br.rootPtrs = append(br.rootPtrs, xfsformat.Be64(b[off+8:off+16]))
		off += 16
	}
	return br, nil
}

// rightmostIndex returns the greatest i with keys[i] <= target, or 0 if no
// key is <= target (XFS always descends via the leftmost pointer in that
// case since the leftmost subtree covers everything below its key).
func rightmostIndex(keys []uint64, target uint64) int {
	i := sort.Search(len(keys), func(i int) bool { return keys[i] > target }) - 1
	if i < 0 {
		return 0
	}
	return i
}

func (br *BtreeResolver) readBlock(fsblock uint64) ([]byte, error) {
	buf := make([]byte, br.sb.Blocksize)
	off := br.sb.FsbToOffset(fsblock)
	if _, err := br.r.ReadAt(buf, int64(off)); err != nil && err != io.EOF {
		return nil, xfserr.Wrap(xfserr.IoFailure, "reading bmbt block", err)
	}
	return buf, nil
}

// Lookup descends the tree from the root to the leaf covering target.
func (br *BtreeResolver) Lookup(target uint64) (Resolution, error) {
	if len(br.rootPtrs) == 0 {
		return Resolution{Present: false, RunLength: 1}, nil
	}

	ptr := br.rootPtrs[rightmostIndex(br.rootKeys, target)]

	for {
		buf, err := br.readBlock(ptr)
		if err != nil {
			return Resolution{}, err
		}
		h, err := decodeBtreeBlockHeader(buf)
		if err != nil {
			return Resolution{}, err
		}
		body := buf[btreeBlockHeaderLen:]

		if h.level == 0 {
			extents := make([]xfsformat.ExtentRecord, 0, h.numrecs)
			for i := uint16(0); i < h.numrecs; i++ {
				rec, err := xfsformat.DecodeExtentRecord(body[int(i)*xfsformat.ExtentRecordLen:])
				if err != nil {
					return Resolution{}, err
				}
				extents = append(extents, rec)
			}
			return lookupExtentSlice(extents, target)
		}

		keys := make([]uint64, h.numrecs)
		ptrs := make([]uint64, h.numrecs)
		for i := uint16(0); i < h.numrecs; i++ {
			keys[i] = xfsformat.Be64(body[int(i)*8:])
		}
		ptrBase := int(h.numrecs) * 8
		for i := uint16(0); i < h.numrecs; i++ {
			ptrs[i] = xfsformat.Be64(body[ptrBase+int(i)*8:])
		}
		ptr = ptrs[rightmostIndex(keys, target)]
	}
}
