package memory

import (
	"github.com/cpodariu/jlrs/errs"
	"github.com/cpodariu/jlrs/sys"
)

type targetKind uint8

const (
	targetFrame targetKind = iota
	targetOutput
	targetUnrooted
)

// Target is the capability threaded through every operation that may
// produce a new foreign reference. It decides whether the produced
// reference is rooted in the current frame, promoted into an ancestor's
// reserved output slot, or left unrooted for immediate short-lived use.
// Unifying the three behind one parameter keeps every producing operation
// down to a single entry point.
type Target struct {
	kind   targetKind
	frame  *Frame
	output *Output
}

// Root places addr according to the target's policy and returns the
// resulting handle. For unrooted targets the handle is tagged with the
// current era and becomes unusable after the next allocating operation.
func (t Target) Root(addr uintptr) (Handle, error) {
	switch t.kind {
	case targetOutput:
		return t.output.root(addr)
	case targetUnrooted:
		if addr == 0 {
			return Handle{}, errs.RuntimeErrorf("runtime error: cannot reference a null address")
		}
		return Handle{addr: addr, scope: t.frame.stack.era}, nil
	default:
		return t.frame.Root(addr)
	}
}

// Backend returns the foreign ABI surface behind this target.
func (t Target) Backend() sys.Backend {
	return t.ownerFrame().backend
}

// Ledger returns the borrow ledger of the binding behind this target.
func (t Target) Ledger() *Ledger {
	return t.ownerFrame().ledger
}

// Scratch returns the binding's dimension staging storage.
func (t Target) Scratch() *Scratch {
	return t.ownerFrame().scratch
}

// InvalidateUnrooted closes the current unrooted era. Producing operations
// call this immediately before any foreign entry point that can allocate.
func (t Target) InvalidateUnrooted() {
	t.ownerFrame().stack.advanceEra()
}

func (t Target) ownerFrame() *Frame {
	if t.kind == targetOutput {
		return t.output.frame
	}
	return t.frame
}
