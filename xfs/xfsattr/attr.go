// Package xfsattr implements the four on-disk extended-attribute shapes
// XFS uses, chosen by size: shortform, leaf, node, and btree. Grounded
// bit-for-bit on original_source/src/libxfuse/attr_bptree.rs and
// attr_node.rs, including their sibling-leaf-walk (hdr.info.forw) handling
// of hash collisions that straddle a leaf boundary — unlike directories,
// which resolve collisions against a single already-loaded leaf's entry
// array, attribute shapes only ever hold one leaf in memory at a time and
// so must walk forward on disk when a search runs off the end of a leaf.
package xfsattr

import (
	"io"

	"github.com/diskfs/xfsro/xfs/xfserr"
	"github.com/diskfs/xfsro/xfs/xfsformat"
	"github.com/diskfs/xfsro/xfs/xfsname"
)

// Namespace identifies which of the three XFS attribute namespaces an
// entry belongs to.
type Namespace uint8

const (
	NamespaceUser Namespace = iota
	NamespaceRoot
	NamespaceSecure
)

func (n Namespace) String() string {
	switch n {
	case NamespaceRoot:
		return "trusted"
	case NamespaceSecure:
		return "security"
	default:
		return "user"
	}
}

// Entry is one resolved extended attribute: its namespace-qualified name
// and value.
type Entry struct {
	Namespace Namespace
	Name      string
	Value     []byte
}

// View is the read-only contract every attribute shape implements.
type View interface {
	List(r io.ReaderAt, sb *xfsformat.Superblock) ([]Entry, error)
	Get(r io.ReaderAt, sb *xfsformat.Superblock, namespace Namespace, name string) ([]byte, error)
	// GetTotalSize is the sum of (len(name)+1) across every entry — one byte
	// per name plus a NUL terminator, matching a listxattr-style buffer size.
	GetTotalSize(r io.ReaderAt, sb *xfsformat.Superblock) (uint64, error)
}

// totalSizeFromEntries sums (len(name)+1) across entries, the shared
// get_total_size definition every shape computes once it has its entries.
func totalSizeFromEntries(entries []Entry) uint64 {
	var total uint64
	for _, e := range entries {
		total += uint64(len(e.Name)) + 1
	}
	return total
}

const (
	attrLocal      uint8 = 0x01
	attrRoot       uint8 = 0x02
	attrSecure     uint8 = 0x04
	attrIncomplete uint8 = 0x80
)

func namespaceOf(flags uint8) Namespace {
	switch {
	case flags&attrRoot != 0:
		return NamespaceRoot
	case flags&attrSecure != 0:
		return NamespaceSecure
	default:
		return NamespaceUser
	}
}

// hashFor hashes the bare attribute name; namespace is carried separately
// by the entry's flag bits, not folded into the on-disk name or its hash.
func hashFor(name string) uint32 {
	return xfsname.Hash([]byte(name))
}

func needLen(b []byte, n int) error {
	if len(b) < n {
		return xfserr.New(xfserr.DecodeFailure, "truncated attribute record")
	}
	return nil
}
