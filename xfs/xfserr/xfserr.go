// Package xfserr defines the error kinds the XFS decoder distinguishes.
//
// These are sentinel errors in the style of filesystem.ErrNotSupported:
// callers attach context to a sentinel with Wrap or New and recover the
// kind with errors.Is.
package xfserr

import "errors"

var (
	// NotFound is returned when a directory lookup misses.
	NotFound = errors.New("xfs: not found")
	// NoAttr is returned when an attribute lookup misses.
	NoAttr = errors.New("xfs: attribute not found")
	// NotSupported is returned for inode formats outside the supported
	// cross-product, e.g. operations on device-special inodes beyond stat.
	NotSupported = errors.New("xfs: not supported")
	// Invalid is returned for readlink on a non-symlink or a misaligned read.
	Invalid = errors.New("xfs: invalid argument")
	// DecodeFailure is returned for magic mismatches, truncated records, or
	// impossible field values. Fatal to the affected operation only.
	DecodeFailure = errors.New("xfs: decode failure")
	// IoFailure wraps errors propagated from the backing reader.
	IoFailure = errors.New("xfs: io failure")
)

// Wrap annotates err with msg and marks it as matching kind via errors.Is.
// The cause's message is kept in Error(), but Unwrap yields only kind, so
// errors.Is and errors.As do not reach the cause itself.
func Wrap(kind error, msg string, err error) error {
	if err == nil {
		return &wrapped{kind: kind, msg: msg}
	}
	return &wrapped{kind: kind, msg: msg, cause: err}
}

// New builds a bare sentinel-kind error with a message and no further cause.
func New(kind error, msg string) error {
	return &wrapped{kind: kind, msg: msg}
}

type wrapped struct {
	kind  error
	msg   string
	cause error
}

func (w *wrapped) Error() string {
	if w.cause != nil {
		return "xfs: " + w.msg + ": " + w.cause.Error()
	}
	return "xfs: " + w.msg
}

func (w *wrapped) Unwrap() error {
	return w.kind
}
