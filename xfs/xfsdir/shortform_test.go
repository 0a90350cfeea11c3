package xfsdir

import (
	"encoding/binary"
	"testing"
)

// buildShortformDir encodes a shortform directory literal area:
// header{count:u8, parent:u64} + count * {namelen:u8, ftype:u8, name, ino:u64}.
func buildShortformDir(parent uint64, entries []struct {
	name   string
	ftype  uint8
	ino    uint64
}) []byte {
	buf := []byte{byte(len(entries))}
	parentBuf := make([]byte, 8)
	binary.BigEndian.PutUint64(parentBuf, parent)
	buf = append(buf, parentBuf...)
	for _, e := range entries {
		buf = append(buf, byte(len(e.name)), e.ftype)
		buf = append(buf, []byte(e.name)...)
		inoBuf := make([]byte, 8)
		binary.BigEndian.PutUint64(inoBuf, e.ino)
		buf = append(buf, inoBuf...)
	}
	return buf
}

func TestParseShortformDirSynthesizesDotEntries(t *testing.T) {
	raw := buildShortformDir(99, []struct {
		name  string
		ftype uint8
		ino   uint64
	}{
		{"foo.txt", 1, 200},
		{"bar", 2, 300},
	})

	sf, err := ParseShortformDir(raw, 42)
	if err != nil {
		t.Fatalf("ParseShortformDir: %v", err)
	}
	if len(sf.Entries) != 4 {
		t.Fatalf("len(Entries) = %d, want 4 (., .., foo.txt, bar)", len(sf.Entries))
	}
	if sf.Entries[0].Name != "." || sf.Entries[0].Ino != 42 {
		t.Errorf("Entries[0] = %+v, want self entry", sf.Entries[0])
	}
	if sf.Entries[1].Name != ".." || sf.Entries[1].Ino != 99 {
		t.Errorf("Entries[1] = %+v, want parent entry", sf.Entries[1])
	}
	if sf.Entries[2].Name != "foo.txt" || sf.Entries[2].Ino != 200 {
		t.Errorf("Entries[2] = %+v", sf.Entries[2])
	}
	if sf.Entries[3].Name != "bar" || sf.Entries[3].Ino != 300 {
		t.Errorf("Entries[3] = %+v", sf.Entries[3])
	}
}

func TestShortformDirLookup(t *testing.T) {
	raw := buildShortformDir(99, []struct {
		name  string
		ftype uint8
		ino   uint64
	}{
		{"child", 1, 500},
	})
	sf, err := ParseShortformDir(raw, 42)
	if err != nil {
		t.Fatalf("ParseShortformDir: %v", err)
	}

	ent, err := sf.Lookup(nil, nil, "child")
	if err != nil {
		t.Fatalf("Lookup(child): %v", err)
	}
	if ent.Ino != 500 {
		t.Errorf("Lookup(child).Ino = %d, want 500", ent.Ino)
	}

	if _, err := sf.Lookup(nil, nil, "missing"); err == nil {
		t.Error("Lookup(missing) should fail, got nil error")
	}

	if _, err := sf.Lookup(nil, nil, "."); err != nil {
		t.Errorf("Lookup(\".\") should resolve to the synthesized entry, got %v", err)
	}
}

func TestShortformDirReaddirWalksEveryEntry(t *testing.T) {
	raw := buildShortformDir(99, []struct {
		name  string
		ftype uint8
		ino   uint64
	}{
		{"a", 1, 10},
		{"b", 1, 11},
	})
	sf, err := ParseShortformDir(raw, 42)
	if err != nil {
		t.Fatalf("ParseShortformDir: %v", err)
	}

	var names []string
	cookie := uint64(0)
	for {
		ent, next, err := sf.Readdir(nil, nil, cookie)
		if err != nil {
			break
		}
		names = append(names, ent.Name)
		cookie = next
	}
	want := []string{".", "..", "a", "b"}
	if len(names) != len(want) {
		t.Fatalf("names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestParseShortformDirRejectsTruncated(t *testing.T) {
	if _, err := ParseShortformDir([]byte{1, 2, 3}, 1); err == nil {
		t.Fatal("expected error for truncated shortform header, got nil")
	}
}
