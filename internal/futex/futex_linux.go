//go:build linux

package futex

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

func wait(w *Word, expected uint32) {
	addr := (*uint32)(unsafe.Pointer(w))
	_, _, errno := unix.Syscall6(
		unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)),
		uintptr(unix.FUTEX_WAIT),
		uintptr(expected),
		0, 0, 0,
	)
	_ = errno // EAGAIN (value already changed) and EINTR are both fine to ignore: caller re-checks the value.
}

func wake(w *Word, n int) {
	addr := (*uint32)(unsafe.Pointer(w))
	unix.Syscall6(
		unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)),
		uintptr(unix.FUTEX_WAKE),
		uintptr(n),
		0, 0, 0,
	)
}
