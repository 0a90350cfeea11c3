package xfsimage

import (
	"io"

	"github.com/diskfs/xfsro/xfs/xfsattr"
	"github.com/diskfs/xfsro/xfs/xfsdir"
	"github.com/diskfs/xfsro/xfs/xfserr"
	"github.com/diskfs/xfsro/xfs/xfsfork"
	"github.com/diskfs/xfsro/xfs/xfsformat"
	"github.com/diskfs/xfsro/xfs/xfsinode"
)

// dirView picks and constructs the directory shape a directory inode's
// di_format (plus, for the extent-list case, block-0 magic inspection)
// selects, per spec.md's "the inode constructs the variant from di_format
// plus data-fork content inspection".
func (fs *FileSystem) dirView(core *xfsinode.Core) (xfsdir.View, error) {
	if core.FileType() != xfsinode.TypeDirectory {
		return nil, xfserr.Wrap(xfserr.NotSupported, "not a directory inode", nil)
	}

	switch core.Format {
	case xfsinode.FormatLocal:
		return xfsdir.ParseShortformDir(core.DataForkArea(), core.Ino)

	case xfsinode.FormatBtree:
		resolver, err := xfsfork.ParseExtentBtreeRoot(core.DataForkArea(), fs.sb, fs.r)
		if err != nil {
			return nil, err
		}
		return xfsdir.ParseBtreeDir(fs.r, fs.sb, resolver)

	case xfsinode.FormatExtents:
		resolver, err := xfsfork.ParseExtentList(core.DataForkArea())
		if err != nil {
			return nil, err
		}
		magic, err := fs.peekBlockMagic(resolver, fs.sb.DirBlockSize())
		if err != nil {
			return nil, err
		}
		switch magic {
		case xfsformat.MagicDirBlockA, xfsformat.MagicDirBlockB:
			return xfsdir.ParseBlockDir(fs.r, fs.sb, resolver)
		case xfsformat.MagicDirNode:
			return xfsdir.ParseNodeDir(fs.r, fs.sb, resolver)
		case xfsformat.MagicDirData:
			return xfsdir.ParseLeafDir(fs.r, fs.sb, resolver)
		default:
			return nil, xfserr.New(xfserr.DecodeFailure, "unrecognized directory block-0 magic")
		}

	default:
		return nil, xfserr.Wrap(xfserr.NotSupported, "unsupported directory fork format", nil)
	}
}

// attrView picks and constructs the attribute shape a di_aformat (plus,
// for the extent-list case, block-0 magic inspection) selects. Returns a
// nil View with no error when the inode carries no attribute fork at all.
func (fs *FileSystem) attrView(core *xfsinode.Core) (xfsattr.View, error) {
	if !core.HasAttrFork() {
		return nil, nil
	}

	switch core.AFormat {
	case xfsinode.FormatLocal:
		return xfsattr.ParseShortformAttr(core.AttrForkArea())

	case xfsinode.FormatBtree:
		resolver, err := xfsfork.ParseExtentBtreeRoot(core.AttrForkArea(), fs.sb, fs.r)
		if err != nil {
			return nil, err
		}
		return xfsattr.ParseAttrBtree(fs.r, fs.sb, resolver)

	case xfsinode.FormatExtents:
		resolver, err := xfsfork.ParseExtentList(core.AttrForkArea())
		if err != nil {
			return nil, err
		}
		magic, err := fs.peekBlockMagic(resolver, fs.sb.DirBlockSize())
		if err != nil {
			return nil, err
		}
		switch magic {
		case xfsformat.MagicAttrLeaf:
			return xfsattr.ParseAttrLeaf(fs.r, fs.sb, resolver)
		case xfsformat.MagicAttrNode:
			return xfsattr.ParseAttrNode(fs.r, fs.sb, resolver)
		default:
			return nil, xfserr.New(xfserr.DecodeFailure, "unrecognized attribute block-0 magic")
		}

	default:
		return nil, xfserr.Wrap(xfserr.NotSupported, "unsupported attribute fork format", nil)
	}
}

// peekBlockMagic resolves logical block 0 through resolver and reads just
// enough of it to decode the common block header's magic field, without
// committing to which shape the rest of the block holds.
func (fs *FileSystem) peekBlockMagic(resolver xfsfork.Resolver, blockSize uint32) (uint32, error) {
	res, err := resolver.Lookup(0)
	if err != nil {
		return 0, err
	}
	if !res.Present {
		return 0, xfserr.New(xfserr.DecodeFailure, "block 0 is a hole")
	}
	buf := make([]byte, xfsformat.BlockHeaderLen)
	off := int64(fs.sb.FsbToOffset(res.FSBlock))
	if _, err := fs.r.ReadAt(buf, off); err != nil && err != io.EOF {
		return 0, xfserr.Wrap(xfserr.IoFailure, "reading block 0 header", err)
	}
	hdr, err := xfsformat.DecodeBlockHeader(buf)
	if err != nil {
		return 0, err
	}
	return hdr.Magic, nil
}
