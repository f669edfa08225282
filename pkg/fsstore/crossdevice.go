package fsstore

import (
	"errors"
	"os"
	"syscall"
)

// isCrossDevice reports whether err (from os.Rename, wrapped in *os.LinkError)
// failed because the source and destination live on different filesystems.
func isCrossDevice(err *os.LinkError) bool {
	var errno syscall.Errno
	if errors.As(err.Err, &errno) {
		return errno == syscall.EXDEV
	}
	return false
}
