//go:build !windows

package web

import (
	stderrors "errors"
	"fmt"
	"os"
	"syscall"
)

// createSpoolFile creates a new upload spool file. It fails if path exists or is a symlink.
func createSpoolFile(path string) (*os.File, error) {
	fd, err := syscall.Open(path, syscall.O_WRONLY|syscall.O_CREAT|syscall.O_EXCL|syscall.O_NOFOLLOW|syscall.O_CLOEXEC, 0o600)
	if err != nil {
		if stderrors.Is(err, syscall.ELOOP) {
			return nil, fmt.Errorf("spool path %s is a symlink", path)
		}
		return nil, err
	}
	return os.NewFile(uintptr(fd), path), nil
}

// readSpoolFile reads a spool file back without following a symlink in its place.
func readSpoolFile(path string) ([]byte, error) {
	fd, err := syscall.Open(path, syscall.O_RDONLY|syscall.O_NOFOLLOW|syscall.O_CLOEXEC, 0)
	if err != nil {
		if stderrors.Is(err, syscall.ELOOP) {
			return nil, fmt.Errorf("spool path %s is a symlink", path)
		}
		return nil, err
	}
	f := os.NewFile(uintptr(fd), path)
	defer f.Close()
	return readAll(f)
}
