// Package xfsimage is the mount-oriented façade over the xfs/* decoder
// packages: it owns the backing reader and superblock, dispatches each
// inode's data/attribute fork to the right directory/attribute/file view,
// and exposes the stat/lookup/readdir/readlink/read/xattr surface a FUSE
// adapter (or any other embedder) drives. Modeled on
// filesystem/ext4/ext4.go's FileSystem/Read constructor pair, generalized
// from a read-write mount to a read-only one.
package xfsimage

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/diskfs/xfsro/backend"
	"github.com/diskfs/xfsro/xfs/xfsattr"
	"github.com/diskfs/xfsro/xfs/xfsdir"
	"github.com/diskfs/xfsro/xfs/xfserr"
	"github.com/diskfs/xfsro/xfs/xfsfile"
	"github.com/diskfs/xfsro/xfs/xfsfork"
	"github.com/diskfs/xfsro/xfs/xfsformat"
	"github.com/diskfs/xfsro/xfs/xfsinode"
)

var log = logrus.WithField("component", "xfsimage")

// FileSystem is a mounted, read-only view of one XFS v5 image. Every
// exported method serializes on mu: the decoder packages below cache
// decoded blocks on the shape value itself (e.g. xfsdir.NodeDir's leaf
// cache), and those caches are not safe for concurrent use.
type FileSystem struct {
	mu sync.Mutex
	r  io.ReaderAt
	sb *xfsformat.Superblock
}

// Read opens an XFS image backed by b, starting at byte offset start and
// spanning size bytes (size <= 0 means "to the end of b"), and decodes its
// superblock. Mirrors filesystem/ext4/ext4.go's Read(backend.Storage, size,
// start, sectorsize) constructor; XFS has no separate sectorsize parameter
// since sb_sectsize is carried in the superblock itself.
func Read(b backend.Storage, size, start int64) (*FileSystem, error) {
	fsBackend := io.ReaderAt(b)
	if start != 0 || size > 0 {
		fsBackend = backend.Sub(b, start, size)
	}

	sb, err := xfsformat.Load(fsBackend)
	if err != nil {
		return nil, fmt.Errorf("could not interpret xfs superblock: %w", err)
	}

	log.WithFields(logrus.Fields{"blocksize": sb.Blocksize, "agcount": sb.AGCount}).Debug("decoded xfs superblock")

	return &FileSystem{r: fsBackend, sb: sb}, nil
}

// Type identifies the filesystem kind, mirroring filesystem.FileSystem's
// same-named method on the teacher's read-write implementations.
func (fs *FileSystem) Type() string { return "xfs" }

// Label returns the volume label (sb_fname), trimmed of NUL padding.
func (fs *FileSystem) Label() string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.sb.Label
}

// RootIno is the inode number of the filesystem root directory.
func (fs *FileSystem) RootIno() uint64 {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.sb.RootIno
}

// FileAttr is the stat-shaped view of one inode: mode, size, nblocks,
// timestamps, nlink, uid, gid, and the generated filetype, per
// xfsinode's component doc.
type FileAttr struct {
	Ino        uint64
	Mode       uint16
	Type       xfsinode.FileType
	Nlink      uint32
	UID        uint32
	GID        uint32
	Size       int64
	Nblocks    uint64
	Atime      time.Time
	Mtime      time.Time
	Ctime      time.Time
	Crtime     time.Time
	Generation uint32
}

func attrFromCore(core *xfsinode.Core) FileAttr {
	return FileAttr{
		Ino:        core.Ino,
		Mode:       core.Mode,
		Type:       core.FileType(),
		Nlink:      core.Nlink,
		UID:        core.UID,
		GID:        core.GID,
		Size:       core.Size,
		Nblocks:    core.Nblocks,
		Atime:      core.Atime.Time(),
		Mtime:      core.Mtime.Time(),
		Ctime:      core.Ctime.Time(),
		Crtime:     core.Crtime.Time(),
		Generation: core.Gen,
	}
}

// loadCore reads and decodes one inode. Callers must hold fs.mu.
func (fs *FileSystem) loadCore(ino uint64) (*xfsinode.Core, error) {
	return xfsinode.Load(fs.r, fs.sb, ino)
}

// Stat resolves ino to its FileAttr.
func (fs *FileSystem) Stat(ino uint64) (FileAttr, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	core, err := fs.loadCore(ino)
	if err != nil {
		return FileAttr{}, err
	}
	return attrFromCore(core), nil
}

// Lookup resolves name within the directory parentIno, returning the
// child's attributes and its di_gen (used by callers as a NFS-style
// generation counter).
func (fs *FileSystem) Lookup(parentIno uint64, name string) (FileAttr, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	parent, err := fs.loadCore(parentIno)
	if err != nil {
		return FileAttr{}, err
	}
	if parent.FileType() != xfsinode.TypeDirectory {
		return FileAttr{}, xfserr.Wrap(xfserr.NotSupported, "lookup on non-directory inode", nil)
	}
	dv, err := fs.dirView(parent)
	if err != nil {
		return FileAttr{}, err
	}
	ent, err := dv.Lookup(fs.r, fs.sb, name)
	if err != nil {
		return FileAttr{}, err
	}
	child, err := fs.loadCore(ent.Ino)
	if err != nil {
		return FileAttr{}, err
	}
	return attrFromCore(child), nil
}

// Readdir returns the directory entry at cookie and the cookie of the
// entry that follows it; cookie 0 means "start of stream". Returns
// xfserr.NotFound once the stream is exhausted.
func (fs *FileSystem) Readdir(ino uint64, cookie uint64) (xfsdir.Entry, uint64, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	core, err := fs.loadCore(ino)
	if err != nil {
		return xfsdir.Entry{}, 0, err
	}
	if core.FileType() != xfsinode.TypeDirectory {
		return xfsdir.Entry{}, 0, xfserr.Wrap(xfserr.NotSupported, "readdir on non-directory inode", nil)
	}
	dv, err := fs.dirView(core)
	if err != nil {
		return xfsdir.Entry{}, 0, err
	}
	return dv.Readdir(fs.r, fs.sb, cookie)
}

// Readlink returns a symlink's target.
func (fs *FileSystem) Readlink(ino uint64) (string, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	core, err := fs.loadCore(ino)
	if err != nil {
		return "", err
	}
	if core.FileType() != xfsinode.TypeSymlink {
		return "", xfserr.Wrap(xfserr.Invalid, "readlink on non-symlink inode", nil)
	}
	return fs.readSymlinkTarget(core)
}

// readSymlinkTarget implements the inline-vs-extent dispatch: short
// targets live directly in the data fork's literal area (di_format ==
// Local); long targets are read through the data fork's extents like a
// regular file, matching ext4's openFileViaInode symlink handling.
func (fs *FileSystem) readSymlinkTarget(core *xfsinode.Core) (string, error) {
	if core.Size < 0 {
		return "", xfserr.New(xfserr.DecodeFailure, "negative symlink size")
	}
	if core.Format == xfsinode.FormatLocal {
		area := core.DataForkArea()
		if int64(len(area)) < core.Size {
			return "", xfserr.New(xfserr.DecodeFailure, "symlink target shorter than di_size")
		}
		return string(area[:core.Size]), nil
	}

	resolver, err := fs.forkResolver(core.Format, core.DataForkArea())
	if err != nil {
		return "", err
	}
	file := xfsfile.New(fs.r, fs.sb, resolver, core.Size)
	buf := make([]byte, core.Size)
	if _, err := file.ReadAt(buf, 0); err != nil {
		return "", err
	}
	return string(buf), nil
}

// ReadFile fills p with up to len(p) bytes of ino's regular-file content
// starting at byte offset off, clamped to the file's size. Unlike
// xfsfile.File.ReadAt, off need not be block-aligned.
func (fs *FileSystem) ReadFile(ino uint64, p []byte, off int64) (int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	core, err := fs.loadCore(ino)
	if err != nil {
		return 0, err
	}
	if core.FileType() != xfsinode.TypeRegular {
		return 0, xfserr.Wrap(xfserr.NotSupported, "read on non-regular inode", nil)
	}
	if off < 0 {
		return 0, xfserr.New(xfserr.Invalid, "negative read offset")
	}
	if off >= core.Size {
		return 0, nil
	}

	resolver, err := fs.forkResolver(core.Format, core.DataForkArea())
	if err != nil {
		return 0, err
	}
	file := xfsfile.New(fs.r, fs.sb, resolver, core.Size)
	return readUnaligned(file, fs.sb.Blocksize, p, off)
}

// readUnaligned rounds off down to a block boundary, reads whole blocks
// through f (which requires block-aligned offsets), and copies the
// requested sub-range back out.
func readUnaligned(f *xfsfile.File, blockSize uint32, p []byte, off int64) (int, error) {
	bs := int64(blockSize)
	aligned := off - off%bs
	headSkip := off - aligned

	spanned := headSkip + int64(len(p))
	readLen := spanned
	if rem := readLen % bs; rem != 0 {
		readLen += bs - rem
	}

	buf := make([]byte, readLen)
	n, err := f.ReadAt(buf, aligned)
	if err != nil {
		return 0, err
	}

	avail := int64(n) - headSkip
	if avail <= 0 {
		return 0, nil
	}
	if avail > int64(len(p)) {
		avail = int64(len(p))
	}
	copy(p, buf[headSkip:headSkip+avail])
	return int(avail), nil
}

// ListXattr returns every extended attribute on ino.
func (fs *FileSystem) ListXattr(ino uint64) ([]xfsattr.Entry, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	core, err := fs.loadCore(ino)
	if err != nil {
		return nil, err
	}
	av, err := fs.attrView(core)
	if err != nil {
		return nil, err
	}
	if av == nil {
		return nil, nil
	}
	return av.List(fs.r, fs.sb)
}

// GetXattr resolves one namespaced attribute's value.
func (fs *FileSystem) GetXattr(ino uint64, namespace xfsattr.Namespace, name string) ([]byte, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	core, err := fs.loadCore(ino)
	if err != nil {
		return nil, err
	}
	av, err := fs.attrView(core)
	if err != nil {
		return nil, err
	}
	if av == nil {
		return nil, xfserr.Wrap(xfserr.NoAttr, "getxattr: "+name, nil)
	}
	return av.Get(fs.r, fs.sb, namespace, name)
}

// GetXattrSize is the listxattr-style buffer size get_total_size reports:
// the sum of (len(name)+1) across every attribute.
func (fs *FileSystem) GetXattrSize(ino uint64) (uint64, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	core, err := fs.loadCore(ino)
	if err != nil {
		return 0, err
	}
	av, err := fs.attrView(core)
	if err != nil {
		return 0, err
	}
	if av == nil {
		return 0, nil
	}
	return av.GetTotalSize(fs.r, fs.sb)
}

// forkResolver builds the (logical block) -> (fsblock, run-length)
// resolver for a fork already known to be in Extents or Btree form.
func (fs *FileSystem) forkResolver(format xfsinode.Format, area []byte) (xfsfork.Resolver, error) {
	switch format {
	case xfsinode.FormatExtents:
		return xfsfork.ParseExtentList(area)
	case xfsinode.FormatBtree:
		return xfsfork.ParseExtentBtreeRoot(area, fs.sb, fs.r)
	default:
		return nil, xfserr.New(xfserr.NotSupported, "fork format not extent-list or btree")
	}
}
