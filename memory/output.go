package memory

import "github.com/cpodariu/jlrs/errs"

// Output is a slot reserved in an ancestor frame to receive exactly one
// value promoted from a descendant scope. This is how a produced value
// outlives the scope that produced it without staying rooted in it.
type Output struct {
	frame *Frame
	idx   int
	used  bool
}

// Target returns a target that roots into the reserved ancestor slot.
func (o *Output) Target() Target {
	return Target{kind: targetOutput, output: o}
}

func (o *Output) root(addr uintptr) (Handle, error) {
	if o.frame.closed {
		return Handle{}, errs.RuntimeErrorf("runtime error: output's frame is closed")
	}
	if o.used {
		return Handle{}, errs.RuntimeErrorf("runtime error: output slot already consumed")
	}
	if addr == 0 {
		return Handle{}, errs.RuntimeErrorf("runtime error: cannot root a null address")
	}
	o.frame.stack.SetSlot(o.idx, addr)
	o.used = true
	return Handle{addr: addr, scope: o.frame.scope}, nil
}
