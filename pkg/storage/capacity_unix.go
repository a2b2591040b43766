//go:build linux || darwin || freebsd

package storage

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// FreeSpace returns the bytes available to unprivileged users in dir.
func FreeSpace(dir string) (uint64, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("create storage dir: %w", err)
	}
	var st unix.Statfs_t
	if err := unix.Statfs(dir, &st); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", dir, err)
	}
	return uint64(st.Bavail) * uint64(st.Bsize), nil
}
