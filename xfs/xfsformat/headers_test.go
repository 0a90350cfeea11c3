package xfsformat

import (
	"encoding/binary"
	"testing"
)

func TestDecodeBlockHeader(t *testing.T) {
	buf := make([]byte, BlockHeaderLen)
	binary.BigEndian.PutUint32(buf[0:4], 0x58443344) // "XD3D"
	binary.BigEndian.PutUint32(buf[4:8], 0xAAAAAAAA) // crc
	binary.BigEndian.PutUint64(buf[8:16], 7)          // blkno
	binary.BigEndian.PutUint64(buf[16:24], 99)        // lsn
	binary.BigEndian.PutUint64(buf[40:48], 55)        // owner

	h, err := DecodeBlockHeader(buf)
	if err != nil {
		t.Fatalf("DecodeBlockHeader: %v", err)
	}
	if h.Magic != 0x58443344 {
		t.Errorf("Magic = %#x, want 0x58443344", h.Magic)
	}
	if h.Blkno != 7 {
		t.Errorf("Blkno = %d, want 7", h.Blkno)
	}
	if h.LSN != 99 {
		t.Errorf("LSN = %d, want 99", h.LSN)
	}
	if h.Owner != 55 {
		t.Errorf("Owner = %d, want 55", h.Owner)
	}
}

func TestDecodeBlockHeaderRejectsShortBuffer(t *testing.T) {
	if _, err := DecodeBlockHeader(make([]byte, BlockHeaderLen-1)); err == nil {
		t.Fatal("expected error for short buffer, got nil")
	}
}

func TestDecodeSiblingBlockHeader(t *testing.T) {
	buf := make([]byte, SiblingBlockHeaderLen)
	binary.BigEndian.PutUint32(buf[0:4], 10)         // forw
	binary.BigEndian.PutUint32(buf[4:8], 20)         // back
	binary.BigEndian.PutUint32(buf[8:12], 0x33444c31) // "3DL1"
	binary.BigEndian.PutUint64(buf[48:56], 77)       // owner

	h, err := DecodeSiblingBlockHeader(buf)
	if err != nil {
		t.Fatalf("DecodeSiblingBlockHeader: %v", err)
	}
	if h.Forw != 10 || h.Back != 20 {
		t.Errorf("Forw/Back = %d/%d, want 10/20", h.Forw, h.Back)
	}
	if h.Magic != 0x33444c31 {
		t.Errorf("Magic = %#x, want 0x33444c31", h.Magic)
	}
	if h.Owner != 77 {
		t.Errorf("Owner = %d, want 77", h.Owner)
	}
}

func TestDecodeSiblingBlockHeaderRejectsShortBuffer(t *testing.T) {
	if _, err := DecodeSiblingBlockHeader(make([]byte, SiblingBlockHeaderLen-1)); err == nil {
		t.Fatal("expected error for short buffer, got nil")
	}
}
