// Package xfsfile implements the regular-file data-read core: composing a
// requested byte range out of the data fork's extents, zero-filling holes.
// Grounded bit-for-bit on original_source/src/libxfuse/file.rs's default
// read() method (block-aligned offset assertion, run-length accumulation,
// whole-block-rounded disk read truncated back to the logical length,
// zero-fill on hole), generalized onto filesystem/ext4/file.go's
// io.ReaderAt-based Read style.
package xfsfile

import (
	"io"

	"github.com/diskfs/xfsro/xfs/xfserr"
	"github.com/diskfs/xfsro/xfs/xfsfork"
	"github.com/diskfs/xfsro/xfs/xfsformat"
)

// File composes reads over a regular file's data fork.
type File struct {
	r         io.ReaderAt
	sb        *xfsformat.Superblock
	resolver  xfsfork.Resolver
	size      int64
	blockSize uint32
	blockLog  uint8
}

// New builds a File over the given data-fork resolver. size is the inode's
// di_size.
func New(r io.ReaderAt, sb *xfsformat.Superblock, resolver xfsfork.Resolver, size int64) *File {
	return &File{r: r, sb: sb, resolver: resolver, size: size, blockSize: sb.Blocksize, blockLog: sb.BlockLog}
}

// Size returns the file's logical size.
func (f *File) Size() int64 { return f.size }

// ReadAt requires off to be block-aligned and fills p with up to len(p)
// bytes, clamped to the file's size, returning the number of bytes
// actually placed in p. Holes read as zero without touching the reader.
func (f *File) ReadAt(p []byte, off int64) (int, error) {
	offset := off
	if offset%int64(f.blockSize) != 0 {
		return 0, xfserr.New(xfserr.Invalid, "file read offset not block-aligned")
	}
	if offset >= f.size {
		return 0, nil
	}

	remaining := int64(len(p))
	if remaining > f.size-offset {
		remaining = f.size - offset
	}

	logicalBlock := uint64(offset) >> f.blockLog
	blockOffset := uint64(offset) & (uint64(f.blockSize) - 1)

	written := 0
	for remaining > 0 {
		res, err := f.resolver.Lookup(logicalBlock)
		if err != nil {
			return written, err
		}

		runBytes := res.RunLength << f.blockLog
		z := runBytes - blockOffset
		if uint64(remaining) < z {
			z = uint64(remaining)
		}

		dst := p[written : written+int(z)]
		if res.Present {
			zRoundUp := z
			if rem := zRoundUp % uint64(f.blockSize); rem != 0 {
				zRoundUp += uint64(f.blockSize) - rem
			}
			buf := make([]byte, zRoundUp)
			off := int64(f.sb.FsbToOffset(res.FSBlock)) + int64(blockOffset)
			if _, err := f.r.ReadAt(buf, off); err != nil && err != io.EOF {
				return written, xfserr.Wrap(xfserr.IoFailure, "reading file data block", err)
			}
			copy(dst, buf[:z])
		} else {
			for i := range dst {
				dst[i] = 0
			}
		}

		logicalBlock += res.RunLength
		written += int(z)
		remaining -= int64(z)
		blockOffset = 0
	}

	return written, nil
}
