package xfsattr

import "testing"

// buildShortformAttr encodes a shortform attribute fork: header{totsize:u16,
// count:u8, pad:u8} + count * {namelen:u8, valuelen:u8, flags:u8, name, value}.
func buildShortformAttr(entries []struct {
	name  string
	value string
	flags uint8
}) []byte {
	buf := []byte{0, 0, byte(len(entries)), 0}
	for _, e := range entries {
		buf = append(buf, byte(len(e.name)), byte(len(e.value)), e.flags)
		buf = append(buf, []byte(e.name)...)
		buf = append(buf, []byte(e.value)...)
	}
	return buf
}

func TestParseShortformAttrRoundTrip(t *testing.T) {
	raw := buildShortformAttr([]struct {
		name  string
		value string
		flags uint8
	}{
		{"comment", "hello", 0},
		{"selinux", "unconfined_u", attrSecure},
		{"overlay", "y", attrRoot},
	})

	sf, err := ParseShortformAttr(raw)
	if err != nil {
		t.Fatalf("ParseShortformAttr: %v", err)
	}
	if len(sf.Entries) != 3 {
		t.Fatalf("len(Entries) = %d, want 3", len(sf.Entries))
	}
	if sf.Entries[0].Namespace != NamespaceUser || string(sf.Entries[0].Value) != "hello" {
		t.Errorf("Entries[0] = %+v", sf.Entries[0])
	}
	if sf.Entries[1].Namespace != NamespaceSecure || string(sf.Entries[1].Value) != "unconfined_u" {
		t.Errorf("Entries[1] = %+v", sf.Entries[1])
	}
	if sf.Entries[2].Namespace != NamespaceRoot || string(sf.Entries[2].Value) != "y" {
		t.Errorf("Entries[2] = %+v", sf.Entries[2])
	}
}

func TestShortformAttrGet(t *testing.T) {
	raw := buildShortformAttr([]struct {
		name  string
		value string
		flags uint8
	}{
		{"comment", "hello world", 0},
	})
	sf, err := ParseShortformAttr(raw)
	if err != nil {
		t.Fatalf("ParseShortformAttr: %v", err)
	}

	val, err := sf.Get(nil, nil, NamespaceUser, "comment")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(val) != "hello world" {
		t.Errorf("Get value = %q, want %q", val, "hello world")
	}

	if _, err := sf.Get(nil, nil, NamespaceRoot, "comment"); err == nil {
		t.Error("Get with wrong namespace should fail, got nil")
	}
	if _, err := sf.Get(nil, nil, NamespaceUser, "missing"); err == nil {
		t.Error("Get for missing name should fail, got nil")
	}
}

func TestShortformAttrGetTotalSize(t *testing.T) {
	raw := buildShortformAttr([]struct {
		name  string
		value string
		flags uint8
	}{
		{"a", "1", 0},
		{"bb", "22", 0},
	})
	sf, err := ParseShortformAttr(raw)
	if err != nil {
		t.Fatalf("ParseShortformAttr: %v", err)
	}
	got, err := sf.GetTotalSize(nil, nil)
	if err != nil {
		t.Fatalf("GetTotalSize: %v", err)
	}
	want := uint64(len("a") + 1 + len("bb") + 1)
	if got != want {
		t.Errorf("GetTotalSize = %d, want %d", got, want)
	}
}

func TestParseShortformAttrRejectsTruncated(t *testing.T) {
	if _, err := ParseShortformAttr([]byte{0, 0}); err == nil {
		t.Fatal("expected error for truncated header, got nil")
	}
}
