// Package xfsfork resolves a logical file-block number to a physical
// filesystem-block run, for both of the two on-disk fork representations:
// a flat sorted extent list, and an extent B+ tree. Both expose the same
// (fsblock, run-length) contract, modeled as the Resolver interface —
// directly analogous to the extentBlockFinder interface in
// filesystem/ext4/extent.go, which unifies ext4's own leaf/internal
// extent-tree nodes behind one lookup contract.
package xfsfork

import (
	"math"
	"sort"

	"github.com/diskfs/xfsro/xfs/xfserr"
	"github.com/diskfs/xfsro/xfs/xfsformat"
)

// Resolution is the outcome of resolving one logical block. If Present is
// false, the logical block range [target, target+RunLength) is a hole and
// must read as zeros.
type Resolution struct {
	Present    bool
	FSBlock    uint64
	RunLength  uint64
}

// Resolver maps a logical file-block offset to a Resolution. ListResolver
// and BtreeResolver are the two implementations; callers (xfsfile,
// xfsdir, xfsattr) take this interface, except that xfsdir.ParseLeafDir and
// xfsdir.ParseNodeDir need a *ListResolver and xfsdir.ParseBtreeDir a
// *BtreeResolver.
type Resolver interface {
	Lookup(logicalBlock uint64) (Resolution, error)
}

// ListResolver implements extent-list resolution: a partition-point search
// over a sorted, non-overlapping extent array.
type ListResolver struct {
	extents []xfsformat.ExtentRecord
}

// ParseExtentList decodes a data-fork or attribute-fork literal area in
// XFS_DINODE_FMT_EXTENTS form: a flat array of 16-byte BMBT records.
func ParseExtentList(b []byte) (*ListResolver, error) {
	if len(b)%xfsformat.ExtentRecordLen != 0 {
		return nil, xfserr.New(xfserr.DecodeFailure, "extent list not a multiple of record size")
	}
	n := len(b) / xfsformat.ExtentRecordLen
	extents := make([]xfsformat.ExtentRecord, 0, n)
	var prevEnd uint64
	for i := 0; i < n; i++ {
		rec, err := xfsformat.DecodeExtentRecord(b[i*xfsformat.ExtentRecordLen:])
		if err != nil {
			return nil, err
		}
		if i > 0 && rec.StartOff < prevEnd {
			return nil, xfserr.New(xfserr.DecodeFailure, "extent list not sorted/non-overlapping")
		}
		prevEnd = rec.StartOff + rec.BlockCount
		extents = append(extents, rec)
	}
	return &ListResolver{extents: extents}, nil
}

// Extents returns the decoded extent records in on-disk order, used by
// tests asserting the extent list stays sorted and non-overlapping.
func (r *ListResolver) Extents() []xfsformat.ExtentRecord { return r.extents }

// Lookup finds the extent, if any, covering the logical block target.
func (r *ListResolver) Lookup(target uint64) (Resolution, error) {
	return lookupExtentSlice(r.extents, target)
}

// lookupExtentSlice is shared by ListResolver and BtreeResolver's leaf
// blocks, since both hold a sorted slice of BMBT records at the point of
// lookup.
func lookupExtentSlice(extents []xfsformat.ExtentRecord, target uint64) (Resolution, error) {
	// partition-point: greatest i with extents[i].StartOff <= target.
	i := sort.Search(len(extents), func(i int) bool {
		return extents[i].StartOff > target
	}) - 1

	if i < 0 {
		return Resolution{Present: false, RunLength: 1}, nil
	}

	e := extents[i]
	if target < e.StartOff+e.BlockCount {
		delta := target - e.StartOff
		return Resolution{
			Present:   true,
			FSBlock:   e.StartBlock + delta,
			RunLength: e.BlockCount - delta,
		}, nil
	}

	if i+1 < len(extents) {
		return Resolution{Present: false, RunLength: extents[i+1].StartOff - target}, nil
	}
	return Resolution{Present: false, RunLength: math.MaxUint64}, nil
}
