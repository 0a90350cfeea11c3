package xfsattr

import (
	"io"

	"github.com/diskfs/xfsro/xfs/xfserr"
	"github.com/diskfs/xfsro/xfs/xfsfork"
	"github.com/diskfs/xfsro/xfs/xfsformat"
)

// readRemoteValue reassembles a remote attribute value: valuelen bytes
// spread across consecutive attribute-fork blocks starting at ref.valueblk,
// each block prefixed with a plain block header (magic/CRC/owner, no
// sibling pointers — remote value blocks don't chain to each other, they're
// simply consecutive) that this driver skips over without verifying.
func readRemoteValue(r io.ReaderAt, sb *xfsformat.Superblock, resolver xfsfork.Resolver, blockSize uint32, ref remoteRef) ([]byte, error) {
	payloadPerBlock := int(blockSize) - xfsformat.BlockHeaderLen
	if payloadPerBlock <= 0 {
		return nil, xfserr.New(xfserr.DecodeFailure, "degenerate remote attribute block size")
	}

	value := make([]byte, 0, ref.valuelen)
	remaining := int(ref.valuelen)
	dblock := uint64(ref.valueblk)
	for remaining > 0 {
		res, err := resolver.Lookup(dblock)
		if err != nil {
			return nil, err
		}
		if !res.Present {
			return nil, xfserr.New(xfserr.DecodeFailure, "unmapped remote attribute value block")
		}
		block := make([]byte, blockSize)
		if _, err := r.ReadAt(block, int64(sb.FsbToOffset(res.FSBlock))); err != nil && err != io.EOF {
			return nil, xfserr.Wrap(xfserr.IoFailure, "reading remote attribute value block", err)
		}
		if _, err := xfsformat.DecodeBlockHeader(block); err != nil {
			return nil, err
		}
		n := payloadPerBlock
		if n > remaining {
			n = remaining
		}
		value = append(value, block[xfsformat.BlockHeaderLen:xfsformat.BlockHeaderLen+n]...)
		remaining -= n
		dblock++
	}
	return value, nil
}
