//go:build unix

package serialization

import (
	"os"
	"syscall"
)

// mmapFile maps f read-only.
func mmapFile(f *os.File, size int64) ([]byte, error) {
	return syscall.Mmap(
		int(f.Fd()), //nolint:gosec // G115: descriptors fit in int
		0,
		int(size), //nolint:gosec // G115: size comes from Stat
		syscall.PROT_READ,
		syscall.MAP_SHARED,
	)
}

// munmapFile releases a mapping created by mmapFile.
func munmapFile(data []byte) error {
	return syscall.Munmap(data)
}
