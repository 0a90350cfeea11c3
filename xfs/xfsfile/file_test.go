package xfsfile

import (
	"bytes"
	"errors"
	"testing"

	"github.com/diskfs/xfsro/xfs/xfserr"
	"github.com/diskfs/xfsro/xfs/xfsfork"
	"github.com/diskfs/xfsro/xfs/xfsformat"
)

// fixedResolver maps every logical block in [0, runLength) to a single
// contiguous run starting at fsBlock; anything beyond that is a hole.
type fixedResolver struct {
	fsBlock   uint64
	runLength uint64
}

func (r fixedResolver) Lookup(target uint64) (xfsfork.Resolution, error) {
	if target < r.runLength {
		return xfsfork.Resolution{Present: true, FSBlock: r.fsBlock + target, RunLength: r.runLength - target}, nil
	}
	return xfsfork.Resolution{Present: false, RunLength: 1}, nil
}

var _ xfsfork.Resolver = fixedResolver{}

func backingImage(blockSize int, blocks map[uint64][]byte) []byte {
	var maxBlock uint64
	for b := range blocks {
		if b > maxBlock {
			maxBlock = b
		}
	}
	img := make([]byte, int(maxBlock+1)*blockSize)
	for b, content := range blocks {
		copy(img[int(b)*blockSize:], content)
	}
	return img
}

func TestFileReadAtWithinSingleBlock(t *testing.T) {
	sb := &xfsformat.Superblock{Blocksize: 512, BlockLog: 9, AGBlkLog: 32}
	block0 := bytes.Repeat([]byte{0xAB}, 512)
	img := backingImage(512, map[uint64][]byte{0: block0})

	f := New(bytes.NewReader(img), sb, fixedResolver{fsBlock: 0, runLength: 10}, 512)
	buf := make([]byte, 512)
	n, err := f.ReadAt(buf, 0)
	if err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if n != 512 {
		t.Fatalf("n = %d, want 512", n)
	}
	if !bytes.Equal(buf, block0) {
		t.Error("read content did not match backing block")
	}
}

func TestFileReadAtClampsToSize(t *testing.T) {
	sb := &xfsformat.Superblock{Blocksize: 512, BlockLog: 9, AGBlkLog: 32}
	img := backingImage(512, map[uint64][]byte{0: bytes.Repeat([]byte{1}, 512)})

	f := New(bytes.NewReader(img), sb, fixedResolver{fsBlock: 0, runLength: 10}, 100)
	buf := make([]byte, 512)
	n, err := f.ReadAt(buf, 0)
	if err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if n != 100 {
		t.Errorf("n = %d, want 100 (clamped to file size)", n)
	}
}

func TestFileReadAtPastEOFReturnsZero(t *testing.T) {
	sb := &xfsformat.Superblock{Blocksize: 512, BlockLog: 9, AGBlkLog: 32}
	f := New(bytes.NewReader(make([]byte, 1024)), sb, fixedResolver{fsBlock: 0, runLength: 2}, 512)
	n, err := f.ReadAt(make([]byte, 512), 512)
	if err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if n != 0 {
		t.Errorf("n = %d, want 0 past EOF", n)
	}
}

func TestFileReadAtRejectsUnalignedOffset(t *testing.T) {
	sb := &xfsformat.Superblock{Blocksize: 512, BlockLog: 9, AGBlkLog: 32}
	f := New(bytes.NewReader(make([]byte, 1024)), sb, fixedResolver{fsBlock: 0, runLength: 2}, 1024)
	_, err := f.ReadAt(make([]byte, 10), 7)
	if err == nil {
		t.Fatal("expected error for unaligned offset, got nil")
	}
	if !errors.Is(err, xfserr.Invalid) {
		t.Errorf("expected xfserr.Invalid, got %v", err)
	}
}

func TestFileReadAtZeroFillsHole(t *testing.T) {
	sb := &xfsformat.Superblock{Blocksize: 512, BlockLog: 9, AGBlkLog: 32}
	holeResolver := fixedResolverAt(2)

	f := New(bytes.NewReader(make([]byte, 4096)), sb, holeResolver, 1024)
	buf := bytes.Repeat([]byte{0xFF}, 512)
	n, err := f.ReadAt(buf, 0)
	if err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if n != 512 {
		t.Fatalf("n = %d, want 512", n)
	}
	for i, b := range buf {
		if b != 0 {
			t.Fatalf("byte %d = %#x, want 0 (hole must zero-fill)", i, b)
			break
		}
	}
}

// fixedResolverAt reports every logical block as a hole, regardless of
// target, to exercise the hole-fill path in isolation.
type fixedResolverAt uint64

func (fixedResolverAt) Lookup(uint64) (xfsfork.Resolution, error) {
	return xfsfork.Resolution{Present: false, RunLength: 100}, nil
}

