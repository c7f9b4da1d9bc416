package memory

import (
	"github.com/cpodariu/jlrs/errs"
	"github.com/cpodariu/jlrs/sys"
)

// Frame owns a contiguous range of root slots. Frames nest strictly: a
// child must close before its parent, and only the innermost open frame
// may root values, open children, or grow. Closing releases the range on
// every exit path when the Scope entry points are used.
type Frame struct {
	stack    *RootStack
	backend  sys.Backend
	ledger   *Ledger
	scratch  *Scratch
	parent   *Frame
	child    *Frame
	base     int
	used     int
	capacity int
	closed   bool
	scope    *span
}

// NewBaseFrame opens the outermost frame of a runtime binding, reserving
// capacity slots. The runtime layer calls this once per top-level scope.
func NewBaseFrame(backend sys.Backend, stack *RootStack, ledger *Ledger, scratch *Scratch, capacity int) *Frame {
	if capacity <= 0 {
		capacity = DefaultFrameSlots
	}
	if scratch == nil {
		scratch = NewScratch()
	}
	return &Frame{
		stack:    stack,
		backend:  backend,
		ledger:   ledger,
		scratch:  scratch,
		base:     stack.ReserveSlots(capacity),
		capacity: capacity,
		scope:    &span{open: true},
	}
}

// Child opens a nested frame with the given capacity hint. Only the
// innermost open frame can be extended this way.
func (f *Frame) Child(hint int) (*Frame, error) {
	if f.closed {
		return nil, errs.RuntimeErrorf("runtime error: frame is closed")
	}
	if f.child != nil {
		return nil, errs.RuntimeErrorf("runtime error: frame already has an open child")
	}
	if hint <= 0 {
		hint = DefaultFrameSlots
	}
	child := &Frame{
		stack:    f.stack,
		backend:  f.backend,
		ledger:   f.ledger,
		scratch:  f.scratch,
		parent:   f,
		base:     f.stack.ReserveSlots(hint),
		capacity: hint,
		scope:    &span{open: true},
	}
	f.child = child
	return child, nil
}

// Scope runs fn inside a nested frame and releases the frame's slot range
// when fn returns, on every exit path including panics.
func (f *Frame) Scope(hint int, fn func(child *Frame) error) (err error) {
	child, cerr := f.Child(hint)
	if cerr != nil {
		return cerr
	}
	defer func() {
		closeErr := child.Close()
		if err == nil {
			err = closeErr
		}
	}()
	return fn(child)
}

// Root writes addr into the next free slot of the frame's range and
// returns a handle valid until the frame closes. The innermost frame grows
// geometrically when its range is exhausted; growing any other frame would
// relocate ranges under an open child, so it fails with a CapacityError.
func (f *Frame) Root(addr uintptr) (Handle, error) {
	if addr == 0 {
		return Handle{}, errs.RuntimeErrorf("runtime error: cannot root a null address")
	}
	idx, err := f.rootSlot()
	if err != nil {
		return Handle{}, err
	}
	f.stack.SetSlot(idx, addr)
	return Handle{addr: addr, scope: f.scope}, nil
}

func (f *Frame) rootSlot() (int, error) {
	if f.closed {
		return 0, errs.RuntimeErrorf("runtime error: frame is closed")
	}
	if f.used == f.capacity {
		if f.child != nil {
			return 0, errs.CapacityErrorf(
				"capacity error: frame slots exhausted (%d) and a child scope is open", f.capacity)
		}
		grow := f.capacity
		if grow < DefaultFrameSlots {
			grow = DefaultFrameSlots
		}
		f.stack.ReserveSlots(grow)
		f.capacity += grow
	}
	idx := f.base + f.used
	f.used++
	return idx, nil
}

// Output reserves one slot in this frame to receive a value promoted from
// a descendant scope. The slot is consumed by at most one rooting.
func (f *Frame) Output() (*Output, error) {
	idx, err := f.rootSlot()
	if err != nil {
		return nil, err
	}
	return &Output{frame: f, idx: idx}, nil
}

// Close releases the frame's slot range. It fails if a child frame is
// still open: scope close order is strictly the reverse of open order.
func (f *Frame) Close() error {
	if f.closed {
		return errs.RuntimeErrorf("runtime error: frame is already closed")
	}
	if f.child != nil {
		return errs.RuntimeErrorf("runtime error: cannot close a frame while a child scope is open")
	}
	f.scope.open = false
	f.closed = true
	f.stack.ReleaseSlots(f.base)
	if f.parent != nil {
		f.parent.child = nil
	}
	return nil
}

// Target returns the rooting target bound to this frame.
func (f *Frame) Target() Target {
	return Target{kind: targetFrame, frame: f}
}

// Unrooted returns a target that does not root produced values. Handles it
// yields are valid only until the next operation that can trigger a
// foreign collection.
func (f *Frame) Unrooted() Target {
	return Target{kind: targetUnrooted, frame: f}
}

// Backend returns the foreign ABI surface this frame operates against.
func (f *Frame) Backend() sys.Backend {
	return f.backend
}

// Ledger returns the borrow ledger shared by all frames of the binding.
func (f *Frame) Ledger() *Ledger {
	return f.ledger
}

// Scratch returns the binding's dimension staging storage.
func (f *Frame) Scratch() *Scratch {
	return f.scratch
}

// Used returns the number of occupied slots, for diagnostics and tests.
func (f *Frame) Used() int {
	return f.used
}

// Capacity returns the frame's current slot capacity.
func (f *Frame) Capacity() int {
	return f.capacity
}
