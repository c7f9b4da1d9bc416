package memory

import "fmt"

// Handle is an opaque, copyable reference to one foreign heap value. It
// does not own the value; ownership belongs to the foreign collector. Two
// validity records gate its use:
//
//   - the scope record, closed when the frame (or unrooted era) that
//     produced the handle ends;
//   - the data record, closed when a host-owned buffer the value may
//     alias is released. Nil for values that cannot alias host memory.
//
// A handle's address is never zero: every construction path verifies
// non-nullity first.
type Handle struct {
	addr  uintptr
	scope *span
	data  *span
}

// Addr returns the foreign heap address. It panics if the handle's
// validity window has ended: using such a handle is a safety violation,
// not a recoverable error.
func (h Handle) Addr() uintptr {
	h.assertUsable()
	return h.addr
}

// Usable reports whether the handle's validity window is still open.
func (h Handle) Usable() bool {
	return h.scope != nil && h.scope.open && (h.data == nil || h.data.open)
}

// Eq reports whether two handles denote the same foreign value. Both
// handles must still be usable.
func (h Handle) Eq(other Handle) bool {
	h.assertUsable()
	other.assertUsable()
	return h.addr == other.addr
}

// WithData returns a copy of the handle tied to a host buffer validity
// record. Operations that accept host-borrowed buffers propagate this
// record to their results.
func (h Handle) WithData(ds *DataSpan) Handle {
	h.assertUsable()
	h.data = ds.s
	return h
}

// DataUsable reports whether the handle's aliased host buffer, if any, is
// still valid.
func (h Handle) DataUsable() bool {
	return h.data == nil || h.data.open
}

func (h Handle) assertUsable() {
	if h.scope == nil {
		panic("jlrs: use of zero-value handle")
	}
	if !h.scope.open {
		panic(fmt.Sprintf("jlrs: handle 0x%x used after its scope was released", h.addr))
	}
	if h.data != nil && !h.data.open {
		panic(fmt.Sprintf("jlrs: handle 0x%x used after its host buffer was released", h.addr))
	}
}

// DataSpan is the validity record for a host-owned buffer exposed to the
// foreign runtime. Closing it marks every handle carrying it unusable.
type DataSpan struct {
	s *span
}

// NewDataSpan returns an open host buffer record.
func NewDataSpan() *DataSpan {
	return &DataSpan{s: &span{open: true}}
}

// Close marks the host buffer as released. Idempotent.
func (d *DataSpan) Close() {
	d.s.open = false
}

// Open reports whether the buffer is still valid.
func (d *DataSpan) Open() bool {
	return d.s.open
}
