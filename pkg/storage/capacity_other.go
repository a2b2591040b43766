//go:build !(linux || darwin || freebsd)

package storage

import "errors"

// FreeSpace is not supported on this platform.
func FreeSpace(dir string) (uint64, error) {
	return 0, errors.New("free space query not supported")
}
