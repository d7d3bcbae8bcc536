//go:build windows

package web

import "os"

// createSpoolFile creates a new upload spool file.
// O_NOFOLLOW is not available on Windows; O_EXCL still refuses an existing path.
func createSpoolFile(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
}

// readSpoolFile reads a spool file back.
func readSpoolFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readAll(f)
}
