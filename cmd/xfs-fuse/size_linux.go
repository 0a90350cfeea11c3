package main

import (
	"fmt"
	"io/ioutil"
	"os"
	"path"
	"strconv"
	"strings"
)

// sizeOfDevice reads a block device's size the way the teacher's
// diskfs.go's initDisk does: via the sysfs size attribute (in 512-byte
// sectors), since there's no portable ioctl for it without unsafe pointer
// arithmetic this driver would rather avoid.
func sizeOfDevice(f *os.File) (int64, error) {
	sizePath := fmt.Sprintf("/sys/class/block/%s/size", path.Base(f.Name()))
	raw, err := ioutil.ReadFile(sizePath)
	if err != nil {
		return 0, fmt.Errorf("could not get size of device %s from kernel: %w", f.Name(), err)
	}
	sectors, err := strconv.ParseInt(strings.TrimSuffix(string(raw), "\n"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid sysfs size %q for device %s", raw, f.Name())
	}
	return sectors * 512, nil
}
