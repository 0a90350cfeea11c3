package xfsattr

import (
	"io"

	"github.com/diskfs/xfsro/xfs/xfserr"
	"github.com/diskfs/xfsro/xfs/xfsformat"
)

// ShortformAttr is the inline attribute shape used when every (name,value)
// pair fits in the inode's attribute-fork literal area (di_aformat ==
// Local): a 4-byte header {totsize:u16, count:u8, pad:u8} followed by count
// records of {namelen:u8, valuelen:u8, flags:u8, name[namelen],
// value[valuelen]}.
type ShortformAttr struct {
	Entries []Entry
}

// ParseShortformAttr decodes a shortform attribute fork's literal area.
func ParseShortformAttr(b []byte) (*ShortformAttr, error) {
	if err := needLen(b, 4); err != nil {
		return nil, err
	}
	count := int(b[2])

	sf := &ShortformAttr{}
	pos := 4
	for i := 0; i < count; i++ {
		if err := needLen(b[pos:], 3); err != nil {
			return nil, err
		}
		namelen := int(b[pos])
		valuelen := int(b[pos+1])
		flags := b[pos+2]
		nameStart := pos + 3
		nameEnd := nameStart + namelen
		valueEnd := nameEnd + valuelen
		if err := needLen(b, valueEnd); err != nil {
			return nil, err
		}
		sf.Entries = append(sf.Entries, Entry{
			Namespace: namespaceOf(flags),
			Name:      string(b[nameStart:nameEnd]),
			Value:     append([]byte(nil), b[nameEnd:valueEnd]...),
		})
		pos = valueEnd
	}
	return sf, nil
}

func (sf *ShortformAttr) List(_ io.ReaderAt, _ *xfsformat.Superblock) ([]Entry, error) {
	return sf.Entries, nil
}

func (sf *ShortformAttr) GetTotalSize(_ io.ReaderAt, _ *xfsformat.Superblock) (uint64, error) {
	return totalSizeFromEntries(sf.Entries), nil
}

func (sf *ShortformAttr) Get(_ io.ReaderAt, _ *xfsformat.Superblock, namespace Namespace, name string) ([]byte, error) {
	for _, e := range sf.Entries {
		if e.Namespace == namespace && e.Name == name {
			return e.Value, nil
		}
	}
	return nil, xfserr.Wrap(xfserr.NoAttr, "shortform attr get: "+name, nil)
}
