package value

import (
	"github.com/cpodariu/jlrs/errs"
	"github.com/cpodariu/jlrs/memory"
)

// Array is a foreign array value whose backing storage may be host-owned
// memory. Arrays built over host slices carry a data validity record: the
// handle becomes unusable once the host buffer is released, and the borrow
// ledger tracks read/write access to the buffer.
type Array struct {
	Value
	data uintptr
	span *memory.DataSpan
}

// NewFloat64Array exposes a host float64 slice to the foreign runtime as a
// one-dimensional array without copying. The caller must keep the slice
// alive while the array is usable and must call Release before freeing or
// moving the buffer.
func NewFloat64Array(t memory.Target, data []float64) (Array, error) {
	be := t.Backend()
	t.InvalidateUnrooted()
	addr := be.NewFloat64Array(data, t.Scratch().Dims(len(data)))
	return newHostArray(t, addr)
}

// NewInt64Array is the int64 counterpart of NewFloat64Array.
func NewInt64Array(t memory.Target, data []int64) (Array, error) {
	be := t.Backend()
	t.InvalidateUnrooted()
	addr := be.NewInt64Array(data, t.Scratch().Dims(len(data)))
	return newHostArray(t, addr)
}

func newHostArray(t memory.Target, addr uintptr) (Array, error) {
	be := t.Backend()
	if exc := be.ExceptionOccurred(); exc != 0 {
		return Array{}, errs.RuntimeErrorf(
			"runtime error: array construction raised %s", be.TypeNameOf(exc))
	}
	if addr == 0 {
		return Array{}, errs.RuntimeErrorf("runtime error: array construction failed")
	}
	h, err := t.Root(addr)
	if err != nil {
		return Array{}, err
	}
	span := memory.NewDataSpan()
	return Array{
		Value: Wrap(h.WithData(span)),
		data:  t.Backend().ArrayData(addr),
		span:  span,
	}, nil
}

// AsArray reinterprets a value as an array if its datatype is an array
// type. The result carries no data record: arrays produced by the foreign
// runtime own their storage.
func AsArray(t memory.Target, v Value) (Array, bool) {
	be := t.Backend()
	addr := v.Addr()
	if !be.IsArray(addr) {
		return Array{}, false
	}
	return Array{Value: v, data: be.ArrayData(addr)}, true
}

// DataPtr returns the address of the array's backing storage, the key
// under which borrows are tracked.
func (a Array) DataPtr() uintptr {
	return a.data
}

// Release marks the host buffer behind the array as gone. Every handle
// carrying the array's data record becomes unusable. No-op for arrays that
// own their storage, and idempotent.
func (a Array) Release() {
	if a.span != nil {
		a.span.Close()
	}
}

// TrackShared records a host-side read borrow of the array's buffer. The
// returned release function drops the borrow and must be called exactly
// once.
func (a Array) TrackShared(t memory.Target) (func(), error) {
	ledger := t.Ledger()
	if err := ledger.TryShare(a.data); err != nil {
		return nil, err
	}
	ptr := a.data
	return func() { ledger.Unshare(ptr) }, nil
}

// TrackExclusive records a host-side write borrow of the array's buffer,
// conflicting with every other borrow including the checked call path.
func (a Array) TrackExclusive(t memory.Target) (func(), error) {
	ledger := t.Ledger()
	if err := ledger.TryExclusive(a.data); err != nil {
		return nil, err
	}
	ptr := a.data
	return func() { ledger.ReleaseExclusive(ptr) }, nil
}
