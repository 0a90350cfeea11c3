package xfsdir

import (
	"io"

	"github.com/diskfs/xfsro/xfs/xfserr"
	"github.com/diskfs/xfsro/xfs/xfsformat"
)

// dirFtype is the on-disk ftype byte XFS uses for directory entries
// (XFS_DIR3_FT_DIR), used to synthesize "." and "..".
const dirFtype uint8 = 2

// ShortformDir is the inline, unindexed directory shape used when the
// whole entry list fits in the inode's data-fork literal area
// (di_format == Local). Entries: header{count:u8, parent:u64} followed by
// count records of {namelen:u8, ftype:u8, name[namelen], ino:u64}. "." and
// ".." are never stored on disk; they are represented explicitly here as
// the first two synthesized entries (self, then Parent).
//
// Cookie scheme: since there are no on-disk data blocks to index by, the
// data-block index half of the cookie is always 0 and the byte-offset half
// is simply the 1-based entry index into the synthesized-plus-stored
// sequence, keeping the same MakeCookie/SplitCookie contract the other four
// shapes use.
type ShortformDir struct {
	Parent  uint64
	Entries []Entry
}

// ParseShortformDir decodes a shortform directory's literal area. selfIno
// is the directory's own inode number, used for the synthesized "." entry.
func ParseShortformDir(b []byte, selfIno uint64) (*ShortformDir, error) {
	if err := needLen(b, 9); err != nil {
		return nil, err
	}
	count := int(b[0])
	parent := xfsformat.Be64(b[1:9])

	sf := &ShortformDir{
		Parent: parent,
		Entries: []Entry{
			{Ino: selfIno, Name: ".", FileType: dirFtype},
			{Ino: parent, Name: "..", FileType: dirFtype},
		},
	}
	pos := 9
	for i := 0; i < count; i++ {
		if err := needLen(b[pos:], 2); err != nil {
			return nil, err
		}
		namelen := int(b[pos])
		ftype := b[pos+1]
		nameStart := pos + 2
		nameEnd := nameStart + namelen
		if err := needLen(b, nameEnd+8); err != nil {
			return nil, err
		}
		name := string(b[nameStart:nameEnd])
		ino := xfsformat.Be64(b[nameEnd : nameEnd+8])
		sf.Entries = append(sf.Entries, Entry{Ino: ino, Name: name, FileType: ftype})
		pos = nameEnd + 8
	}
	return sf, nil
}

func (sf *ShortformDir) Lookup(_ io.ReaderAt, _ *xfsformat.Superblock, name string) (Entry, error) {
	for _, e := range sf.Entries {
		if e.Name == name {
			return e, nil
		}
	}
	return Entry{}, xfserr.Wrap(xfserr.NotFound, "shortform lookup: "+name, nil)
}

func (sf *ShortformDir) Readdir(_ io.ReaderAt, _ *xfsformat.Superblock, cookie uint64) (Entry, uint64, error) {
	_, idx := SplitCookie(cookie)
	if int(idx) >= len(sf.Entries) {
		return Entry{}, 0, xfserr.Wrap(xfserr.NotFound, "shortform readdir exhausted", nil)
	}
	return sf.Entries[idx], MakeCookie(0, idx+1), nil
}
