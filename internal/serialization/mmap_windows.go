//go:build windows

package serialization

import (
	"fmt"
	"os"
	"syscall"
	"unsafe"
)

// mmapFile maps f read-only via CreateFileMapping + MapViewOfFile.
func mmapFile(f *os.File, size int64) ([]byte, error) {
	handle, err := syscall.CreateFileMapping(
		syscall.Handle(f.Fd()),
		nil,
		syscall.PAGE_READONLY,
		uint32(size>>32), //nolint:gosec // G115: high half of the 64-bit size
		uint32(size),     //nolint:gosec // G115: low half of the 64-bit size
		nil,
	)
	if err != nil {
		return nil, err
	}
	// The view keeps the mapping alive; the handle can go immediately.
	defer func() {
		_ = syscall.CloseHandle(handle)
	}()

	addr, err := syscall.MapViewOfFile(
		handle,
		syscall.FILE_MAP_READ,
		0,
		0,
		uintptr(size), //nolint:gosec // G115: size comes from Stat
	)
	if err != nil {
		return nil, err
	}

	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), size), nil
}

// munmapFile releases a view created by mmapFile.
func munmapFile(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("cannot unmap empty data")
	}
	return syscall.UnmapViewOfFile(uintptr(unsafe.Pointer(&data[0])))
}
