package fuseadapter

import (
	"os"
	"testing"
	"time"

	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"
	"golang.org/x/sys/unix"

	"github.com/diskfs/xfsro/xfs/xfsattr"
	"github.com/diskfs/xfsro/xfs/xfserr"
	"github.com/diskfs/xfsro/xfs/xfsinode"
	"github.com/diskfs/xfsro/xfsimage"
)

func TestInoTranslation(t *testing.T) {
	fs := &FS{rootIno: 128}

	if got := fs.toXfsIno(fuseops.RootInodeID); got != 128 {
		t.Errorf("toXfsIno(RootInodeID) = %d, want 128", got)
	}
	if got := fs.toXfsIno(fuseops.InodeID(500)); got != 500 {
		t.Errorf("toXfsIno(500) = %d, want 500 (pass-through)", got)
	}

	if got := fs.toFuseIno(128); got != fuseops.RootInodeID {
		t.Errorf("toFuseIno(128) = %d, want RootInodeID", got)
	}
	if got := fs.toFuseIno(500); got != fuseops.InodeID(500) {
		t.Errorf("toFuseIno(500) = %d, want 500 (pass-through)", got)
	}
}

func TestDirentType(t *testing.T) {
	cases := []struct {
		ftype uint8
		want  fuseutil.DirentType
	}{
		{1, fuseutil.DT_File},
		{2, fuseutil.DT_Directory},
		{3, fuseutil.DT_Char},
		{4, fuseutil.DT_Block},
		{5, fuseutil.DT_FIFO},
		{6, fuseutil.DT_Socket},
		{7, fuseutil.DT_Link},
		{0, fuseutil.DT_Unknown},
		{99, fuseutil.DT_Unknown},
	}
	for _, c := range cases {
		if got := direntType(c.ftype); got != c.want {
			t.Errorf("direntType(%d) = %v, want %v", c.ftype, got, c.want)
		}
	}
}

func TestAttrToFuseModeBits(t *testing.T) {
	now := time.Unix(1000, 0)
	cases := []struct {
		typ  xfsinode.FileType
		want os.FileMode
	}{
		{xfsinode.TypeDirectory, os.ModeDir},
		{xfsinode.TypeSymlink, os.ModeSymlink},
		{xfsinode.TypeCharDevice, os.ModeCharDevice},
		{xfsinode.TypeBlockDevice, os.ModeDevice},
		{xfsinode.TypeFIFO, os.ModeNamedPipe},
		{xfsinode.TypeSocket, os.ModeSocket},
		{xfsinode.TypeRegular, 0},
	}
	for _, c := range cases {
		a := xfsimage.FileAttr{Mode: 0644, Type: c.typ, Size: 10, Nlink: 1, Mtime: now}
		got := attrToFuse(a)
		if got.Mode&c.want != c.want {
			t.Errorf("attrToFuse(type=%v).Mode = %v, missing bit %v", c.typ, got.Mode, c.want)
		}
		if got.Mode&0777 != 0644 {
			t.Errorf("attrToFuse(type=%v).Mode perm bits = %o, want 0644", c.typ, got.Mode&0777)
		}
		if got.Size != 10 {
			t.Errorf("attrToFuse.Size = %d, want 10", got.Size)
		}
	}
}

func TestMapErr(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"nil", nil, nil},
		{"not found", xfserr.Wrap(xfserr.NotFound, "x", nil), unix.ENOENT},
		{"no attr", xfserr.Wrap(xfserr.NoAttr, "x", nil), unix.ENODATA},
		{"not supported", xfserr.Wrap(xfserr.NotSupported, "x", nil), unix.ENOTSUP},
		{"invalid", xfserr.Wrap(xfserr.Invalid, "x", nil), unix.EINVAL},
		{"io failure", xfserr.Wrap(xfserr.IoFailure, "x", nil), unix.EIO},
		{"decode failure falls to default", xfserr.Wrap(xfserr.DecodeFailure, "x", nil), unix.EIO},
	}
	for _, c := range cases {
		if got := mapErr(c.err); got != c.want {
			t.Errorf("mapErr(%s) = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestSplitXattrName(t *testing.T) {
	cases := []struct {
		full    string
		wantNS  xfsattr.Namespace
		wantRaw string
		wantErr bool
	}{
		{"user.comment", xfsattr.NamespaceUser, "comment", false},
		{"trusted.overlay", xfsattr.NamespaceRoot, "overlay", false},
		{"security.selinux", xfsattr.NamespaceSecure, "selinux", false},
		{"bogus.name", 0, "", true},
		{"nodot", 0, "", true},
	}
	for _, c := range cases {
		ns, name, err := splitXattrName(c.full)
		if c.wantErr {
			if err == nil {
				t.Errorf("splitXattrName(%q) expected error, got nil", c.full)
			}
			continue
		}
		if err != nil {
			t.Errorf("splitXattrName(%q): %v", c.full, err)
			continue
		}
		if ns != c.wantNS || name != c.wantRaw {
			t.Errorf("splitXattrName(%q) = (%v, %q), want (%v, %q)", c.full, ns, name, c.wantNS, c.wantRaw)
		}
	}
}

func TestPrefixedName(t *testing.T) {
	cases := []struct {
		e    xfsattr.Entry
		want string
	}{
		{xfsattr.Entry{Namespace: xfsattr.NamespaceUser, Name: "comment"}, "user.comment"},
		{xfsattr.Entry{Namespace: xfsattr.NamespaceRoot, Name: "overlay"}, "trusted.overlay"},
		{xfsattr.Entry{Namespace: xfsattr.NamespaceSecure, Name: "selinux"}, "security.selinux"},
	}
	for _, c := range cases {
		if got := prefixedName(c.e); got != c.want {
			t.Errorf("prefixedName(%+v) = %q, want %q", c.e, got, c.want)
		}
	}
}

func TestChildEntryUsesFuseInoTranslation(t *testing.T) {
	fs := &FS{rootIno: 128}
	entry := fs.childEntry(xfsimage.FileAttr{Ino: 128, Generation: 3, Mode: 0755, Type: xfsinode.TypeDirectory})
	if entry.Child != fuseops.RootInodeID {
		t.Errorf("childEntry for root ino = %v, want RootInodeID", entry.Child)
	}
	if entry.Generation != 3 {
		t.Errorf("Generation = %d, want 3", entry.Generation)
	}
}
