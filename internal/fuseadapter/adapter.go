// Package fuseadapter wires xfsimage.FileSystem into jacobsa/fuse's
// fuseutil.FileSystem upcall contract: the "FUSE-style upcall dispatcher"
// spec.md names as an out-of-scope design concern, concretely implemented
// here because the CLI in cmd/xfs-fuse has to mount something. Grounded on
// the fuse.FileSystem/fuseops op-struct shape surveyed from the example
// pack's vendored jacobsa/fuse snapshots, adapted to this driver's
// read-only surface.
package fuseadapter

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"
	"golang.org/x/sys/unix"

	"github.com/diskfs/xfsro/xfs/xfsattr"
	"github.com/diskfs/xfsro/xfs/xfserr"
	"github.com/diskfs/xfsro/xfs/xfsinode"
	"github.com/diskfs/xfsro/xfsimage"
)

// FS adapts one mounted xfsimage.FileSystem. It embeds
// NotImplementedFileSystem so every mutating op the kernel might still
// send against a read-only mount (Mkdir, CreateFile, Write, Rename, ...)
// answers ENOSYS without this driver modeling any of them.
type FS struct {
	fuseutil.NotImplementedFileSystem

	img     *xfsimage.FileSystem
	rootIno uint64
}

// New wraps img. jacobsa/fuse always addresses the mount root as
// fuseops.RootInodeID (1); img's own root inode number is whatever
// sb_rootino decodes to, so every inode ID crossing the boundary is
// translated through toFuseIno/toXfsIno below.
func New(img *xfsimage.FileSystem) *FS {
	return &FS{img: img, rootIno: img.RootIno()}
}

func (fs *FS) toXfsIno(id fuseops.InodeID) uint64 {
	if id == fuseops.RootInodeID {
		return fs.rootIno
	}
	return uint64(id)
}

func (fs *FS) toFuseIno(ino uint64) fuseops.InodeID {
	if ino == fs.rootIno {
		return fuseops.RootInodeID
	}
	return fuseops.InodeID(ino)
}

// direntType maps XFS's on-disk directory-entry ftype byte
// (XFS_DIR3_FT_*, dinode_core.rs / dir3.rs) to jacobsa/fuse's DirentType.
func direntType(ftype uint8) fuseutil.DirentType {
	switch ftype {
	case 1:
		return fuseutil.DT_File
	case 2:
		return fuseutil.DT_Directory
	case 3:
		return fuseutil.DT_Char
	case 4:
		return fuseutil.DT_Block
	case 5:
		return fuseutil.DT_FIFO
	case 6:
		return fuseutil.DT_Socket
	case 7:
		return fuseutil.DT_Link
	default:
		return fuseutil.DT_Unknown
	}
}

func attrToFuse(a xfsimage.FileAttr) fuseops.InodeAttributes {
	mode := os.FileMode(a.Mode & 0777)
	switch a.Type {
	case xfsinode.TypeDirectory:
		mode |= os.ModeDir
	case xfsinode.TypeSymlink:
		mode |= os.ModeSymlink
	case xfsinode.TypeCharDevice:
		mode |= os.ModeCharDevice
	case xfsinode.TypeBlockDevice:
		mode |= os.ModeDevice
	case xfsinode.TypeFIFO:
		mode |= os.ModeNamedPipe
	case xfsinode.TypeSocket:
		mode |= os.ModeSocket
	}
	return fuseops.InodeAttributes{
		Size:   uint64(a.Size),
		Nlink:  a.Nlink,
		Mode:   mode,
		Atime:  a.Atime,
		Mtime:  a.Mtime,
		Ctime:  a.Ctime,
		Crtime: a.Crtime,
		Uid:    a.UID,
		Gid:    a.GID,
	}
}

func (fs *FS) childEntry(a xfsimage.FileAttr) fuseops.ChildInodeEntry {
	return fuseops.ChildInodeEntry{
		Child:      fs.toFuseIno(a.Ino),
		Generation: fuseops.GenerationNumber(a.Generation),
		Attributes: attrToFuse(a),
	}
}

// mapErr translates a core xfserr sentinel to the syscall.Errno jacobsa/fuse
// returns to the kernel, per spec.md §7's error-kind table.
func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, xfserr.NotFound):
		return unix.ENOENT
	case errors.Is(err, xfserr.NoAttr):
		// Linux has no distinct ENOATTR errno; it's the same value as
		// ENODATA, which x/sys/unix does define portably.
		return unix.ENODATA
	case errors.Is(err, xfserr.NotSupported):
		return unix.ENOTSUP
	case errors.Is(err, xfserr.Invalid):
		return unix.EINVAL
	case errors.Is(err, xfserr.IoFailure):
		return unix.EIO
	default:
		return unix.EIO
	}
}

// xattrNamespacePrefixes mirrors Linux's conventional xattr name prefixes,
// letting listxattr/getxattr present XFS's three namespaces the way every
// other Linux filesystem does.
var xattrNamespacePrefixes = map[string]xfsattr.Namespace{
	"user":     xfsattr.NamespaceUser,
	"trusted":  xfsattr.NamespaceRoot,
	"security": xfsattr.NamespaceSecure,
}

func splitXattrName(full string) (xfsattr.Namespace, string, error) {
	prefix, name, ok := strings.Cut(full, ".")
	if !ok {
		return 0, "", unix.ENOTSUP
	}
	ns, ok := xattrNamespacePrefixes[prefix]
	if !ok {
		return 0, "", unix.ENOTSUP
	}
	return ns, name, nil
}

func prefixedName(e xfsattr.Entry) string {
	return e.Namespace.String() + "." + e.Name
}

func (fs *FS) ForgetInode(_ context.Context, _ *fuseops.ForgetInodeOp) error {
	return nil
}

func (fs *FS) LookUpInode(_ context.Context, op *fuseops.LookUpInodeOp) error {
	attr, err := fs.img.Lookup(fs.toXfsIno(op.Parent), op.Name)
	if err != nil {
		return mapErr(err)
	}
	op.Entry = fs.childEntry(attr)
	return nil
}

func (fs *FS) GetInodeAttributes(_ context.Context, op *fuseops.GetInodeAttributesOp) error {
	attr, err := fs.img.Stat(fs.toXfsIno(op.Inode))
	if err != nil {
		return mapErr(err)
	}
	op.Attributes = attrToFuse(attr)
	return nil
}

func (fs *FS) OpenDir(_ context.Context, op *fuseops.OpenDirOp) error {
	attr, err := fs.img.Stat(fs.toXfsIno(op.Inode))
	if err != nil {
		return mapErr(err)
	}
	if attr.Type != xfsinode.TypeDirectory {
		return unix.ENOTDIR
	}
	return nil
}

func (fs *FS) ReadDir(_ context.Context, op *fuseops.ReadDirOp) error {
	cookie := uint64(op.Offset)
	written := 0
	for {
		entry, next, err := fs.img.Readdir(fs.toXfsIno(op.Inode), cookie)
		if err != nil {
			if errors.Is(err, xfserr.NotFound) {
				break
			}
			return mapErr(err)
		}
		n := fuseutil.WriteDirent(op.Dst[written:], fuseutil.Dirent{
			Offset: fuseops.DirOffset(next),
			Inode:  fs.toFuseIno(entry.Ino),
			Name:   entry.Name,
			Type:   direntType(entry.FileType),
		})
		if n == 0 {
			break
		}
		written += n
		cookie = next
	}
	op.BytesRead = written
	return nil
}

func (fs *FS) OpenFile(_ context.Context, op *fuseops.OpenFileOp) error {
	attr, err := fs.img.Stat(fs.toXfsIno(op.Inode))
	if err != nil {
		return mapErr(err)
	}
	if attr.Type == xfsinode.TypeDirectory {
		return unix.EISDIR
	}
	return nil
}

func (fs *FS) ReadFile(_ context.Context, op *fuseops.ReadFileOp) error {
	n, err := fs.img.ReadFile(fs.toXfsIno(op.Inode), op.Dst, op.Offset)
	if err != nil {
		return mapErr(err)
	}
	op.BytesRead = n
	return nil
}

func (fs *FS) ReadSymlink(_ context.Context, op *fuseops.ReadSymlinkOp) error {
	target, err := fs.img.Readlink(fs.toXfsIno(op.Inode))
	if err != nil {
		return mapErr(err)
	}
	op.Target = target
	return nil
}

func (fs *FS) GetXattr(_ context.Context, op *fuseops.GetXattrOp) error {
	ns, name, err := splitXattrName(op.Name)
	if err != nil {
		return err
	}
	value, err := fs.img.GetXattr(fs.toXfsIno(op.Inode), ns, name)
	if err != nil {
		return mapErr(err)
	}
	if len(op.Dst) == 0 {
		op.BytesRead = len(value)
		return nil
	}
	if len(value) > len(op.Dst) {
		return unix.ERANGE
	}
	op.BytesRead = copy(op.Dst, value)
	return nil
}

func (fs *FS) ListXattr(_ context.Context, op *fuseops.ListXattrOp) error {
	entries, err := fs.img.ListXattr(fs.toXfsIno(op.Inode))
	if err != nil {
		return mapErr(err)
	}
	var buf []byte
	for _, e := range entries {
		buf = append(buf, prefixedName(e)...)
		buf = append(buf, 0)
	}
	if len(op.Dst) == 0 {
		op.BytesRead = len(buf)
		return nil
	}
	if len(buf) > len(op.Dst) {
		return unix.ERANGE
	}
	op.BytesRead = copy(op.Dst, buf)
	return nil
}

func (fs *FS) Destroy() {}
