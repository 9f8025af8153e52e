//go:build linux

package hugearray

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// rawMapping tracks the mmap'd region backing an Array so Close can
// munmap it.
type rawMapping struct {
	base []byte
}

func allocate[T any](n int, flags Flags) (rawMapping, []T, error) {
	var zero T
	elemSize := int(unsafe.Sizeof(zero))
	size := elemSize * n
	if size == 0 {
		size = 1
	}

	base, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return rawMapping{}, nil, fmt.Errorf("hugearray: mmap %d bytes: %w", size, err)
	}

	if flags&FlagHuge != 0 {
		// Best effort: not every kernel config permits transparent huge
		// pages for anonymous private mappings; ignore failure.
		_ = unix.Madvise(base, unix.MADV_HUGEPAGE)
	}
	if flags&FlagPrefault != 0 {
		_ = unix.Madvise(base, unix.MADV_WILLNEED)
	}
	if flags&FlagLock != 0 {
		if err := unix.Mlock(base); err != nil {
			// Locking failure (e.g. missing CAP_IPC_LOCK or RLIMIT_MEMLOCK
			// too low) degrades to swappable memory; the array is still
			// correct, just not latency-guaranteed.
			_ = err
		}
	}

	slice := unsafe.Slice((*T)(unsafe.Pointer(&base[0])), n)
	return rawMapping{base: base}, slice, nil
}

func release(m rawMapping) error {
	if m.base == nil {
		return nil
	}
	_ = unix.Munlock(m.base)
	return unix.Munmap(m.base)
}
