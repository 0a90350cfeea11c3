// Command xfs-fuse mounts a read-only XFS v5 image as a FUSE filesystem.
// Modeled on examples/serve-image's flag-parse/open/serve shape, generalized
// from an HTTP file server to a FUSE mount loop.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseutil"
	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"github.com/diskfs/xfsro/backend"
	"github.com/diskfs/xfsro/backend/file"
	"github.com/diskfs/xfsro/internal/fuseadapter"
	"github.com/diskfs/xfsro/xfsimage"
)

func main() {
	var (
		logLevel   string
		volumeName string
		allowOther bool
	)
	flag.StringVar(&logLevel, "log-level", "info", "logging level (panic, fatal, error, warn, info, debug, trace)")
	flag.StringVarP(&volumeName, "volume-name", "o", "", "FUSE volume name; defaults to the image's own label")
	flag.BoolVar(&allowOther, "allow-other", false, "allow other users to access the mount")
	flag.Parse()

	if flag.NArg() != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <image> <mountpoint>\n", os.Args[0])
		os.Exit(2)
	}
	imagePath, mountPoint := flag.Arg(0), flag.Arg(1)

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid --log-level %q: %v\n", logLevel, err)
		os.Exit(2)
	}
	logrus.SetLevel(level)

	if err := run(imagePath, mountPoint, volumeName, allowOther); err != nil {
		logrus.WithError(err).Fatal("xfs-fuse failed")
	}
}

func run(imagePath, mountPoint, volumeName string, allowOther bool) error {
	b, err := file.OpenFromPath(imagePath, true)
	if err != nil {
		return fmt.Errorf("opening %q: %w", imagePath, err)
	}
	defer b.Close()

	size, err := imageSize(b)
	if err != nil {
		return fmt.Errorf("determining size of %q: %w", imagePath, err)
	}

	img, err := xfsimage.Read(b, size, 0)
	if err != nil {
		return fmt.Errorf("decoding %q as xfs: %w", imagePath, err)
	}

	if volumeName == "" {
		volumeName = img.Label()
		if volumeName == "" {
			volumeName = "xfs"
		}
	}

	adapter := fuseadapter.New(img)
	server := fuseutil.NewFileSystemServer(adapter)

	cfg := &fuse.MountConfig{
		FSName:      "xfs",
		VolumeName:  volumeName,
		ReadOnly:    true,
		ErrorLogger: log.New(logrus.StandardLogger().WriterLevel(logrus.ErrorLevel), "", 0),
	}
	if allowOther {
		cfg.Options = map[string]string{"allow_other": ""}
	}

	mfs, err := fuse.Mount(mountPoint, server, cfg)
	if err != nil {
		return fmt.Errorf("mounting %q: %w", mountPoint, err)
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigc
		logrus.Info("unmounting on signal")
		if err := fuse.Unmount(mountPoint); err != nil {
			logrus.WithError(err).Warn("unmount failed")
		}
	}()

	logrus.WithFields(logrus.Fields{"image": imagePath, "mount": mountPoint, "label": volumeName}).Info("mounted xfs image")
	return mfs.Join(context.Background())
}

// imageSize resolves the byte span to pass to xfsimage.Read: a regular
// file's own stat size, or a block device's kernel-reported size via the
// platform-specific sizeOfDevice.
func imageSize(b backend.Storage) (int64, error) {
	info, err := b.Stat()
	if err != nil {
		return 0, err
	}
	if info.Mode().IsRegular() {
		return info.Size(), nil
	}
	if info.Mode()&os.ModeDevice != 0 {
		osFile, err := b.Sys()
		if err != nil {
			return 0, err
		}
		return sizeOfDevice(osFile)
	}
	return 0, fmt.Errorf("%s is neither a regular file nor a block device", info.Name())
}
