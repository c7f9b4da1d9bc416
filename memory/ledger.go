package memory

import "github.com/cpodariu/jlrs/errs"

// Ledger tracks borrows of host-owned buffers that foreign array values
// alias. Keys are host buffer addresses. The checked call path takes
// shared borrows on array arguments for the duration of a call; host code
// takes exclusive borrows while mutating a buffer. Only arrays
// participate; other foreign values that might alias host memory are
// deliberately not tracked.
type Ledger struct {
	shared    map[uintptr]int
	exclusive map[uintptr]struct{}
}

// NewLedger returns an empty borrow ledger.
func NewLedger() *Ledger {
	return &Ledger{
		shared:    make(map[uintptr]int),
		exclusive: make(map[uintptr]struct{}),
	}
}

// TryShare records a shared (read) borrow of the buffer at ptr. It fails
// with a BorrowError if the buffer is exclusively borrowed. A zero ptr
// (empty buffer) is never tracked.
func (l *Ledger) TryShare(ptr uintptr) error {
	if ptr == 0 {
		return nil
	}
	if _, ok := l.exclusive[ptr]; ok {
		return errs.BorrowErrorf("borrow error: buffer 0x%x is exclusively borrowed", ptr)
	}
	l.shared[ptr]++
	return nil
}

// Unshare releases one shared borrow of ptr. Releasing a buffer that is
// not shared is a no-op.
func (l *Ledger) Unshare(ptr uintptr) {
	if n, ok := l.shared[ptr]; ok {
		if n <= 1 {
			delete(l.shared, ptr)
		} else {
			l.shared[ptr] = n - 1
		}
	}
}

// TryExclusive records an exclusive (write) borrow of ptr. It fails with a
// BorrowError if the buffer is borrowed in any way.
func (l *Ledger) TryExclusive(ptr uintptr) error {
	if ptr == 0 {
		return nil
	}
	if _, ok := l.exclusive[ptr]; ok {
		return errs.BorrowErrorf("borrow error: buffer 0x%x is already exclusively borrowed", ptr)
	}
	if l.shared[ptr] > 0 {
		return errs.BorrowErrorf("borrow error: buffer 0x%x has shared borrows", ptr)
	}
	l.exclusive[ptr] = struct{}{}
	return nil
}

// ReleaseExclusive drops the exclusive borrow of ptr, if present.
func (l *Ledger) ReleaseExclusive(ptr uintptr) {
	delete(l.exclusive, ptr)
}

// IsExclusive reports whether ptr is exclusively borrowed.
func (l *Ledger) IsExclusive(ptr uintptr) bool {
	_, ok := l.exclusive[ptr]
	return ok
}

// SharedCount returns the number of outstanding shared borrows of ptr.
func (l *Ledger) SharedCount(ptr uintptr) int {
	return l.shared[ptr]
}
