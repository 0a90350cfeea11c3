//go:build !linux

package main

import (
	"errors"
	"os"
)

// sizeOfDevice is unimplemented on platforms other than linux; mounting a
// raw block device there isn't supported, only regular image files.
func sizeOfDevice(f *os.File) (int64, error) {
	return 0, errors.New("block devices not supported on this platform")
}
