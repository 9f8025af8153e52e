// Package futex wraps the Linux futex syscall's WAIT/WAKE operations,
// used by internal/lfqworker and the shared-memory reactor (spec.md
// §4.9, §4.11) to park a consumer thread without busy-waiting once the
// staged spin budget (SPIN_RETRIES_HOT, then SPIN_RETRIES_WARM) is
// exhausted. Grounded on golang.org/x/sys/unix, the same syscall package
// every pack repo touching raw Linux primitives depends on.
package futex

import "sync/atomic"

// Word is the 32-bit value a futex waits/wakes on. Callers pair it with
// a separate `sleeping` flag (read with sequential consistency before
// waking, per spec.md §9's explicit instruction to keep this pattern) to
// avoid lost wakeups: the writer only calls Wake after observing
// sleeping == true.
type Word = atomic.Uint32

// Wait blocks until the value at w no longer equals expected, or until
// woken. On non-Linux platforms (see futex_other.go) this degrades to a
// short sleep loop — correct but not latency-optimal, which is
// acceptable since only Linux is the deployment target spec.md assumes.
func Wait(w *Word, expected uint32) {
	wait(w, expected)
}

// Wake wakes up to n waiters blocked on w.
func Wake(w *Word, n int) {
	wake(w, n)
}
