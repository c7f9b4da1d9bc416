package value

import (
	"github.com/cpodariu/jlrs/errs"
	"github.com/cpodariu/jlrs/memory"
)

// InlineArgs is the number of call arguments that can be marshaled in the
// bridge's fixed storage array, avoiding heap allocation. Calls with
// higher arity fall back to a heap-backed buffer.
const InlineArgs = 8

// CallResult is the outcome of a foreign call: either an ordinary value or
// the raised exception, both rooted through the call's target. A raise is
// not a host error; callers must inspect the branch explicitly. Assuming
// success on an exception-carrying result surfaces later as a wrong-type
// failure, by construction rather than by unwinding.
type CallResult struct {
	val    Value
	raised bool
}

// IsException reports whether the callee raised.
func (r CallResult) IsException() bool {
	return r.raised
}

// Ok returns the ordinary result, if the callee returned one.
func (r CallResult) Ok() (Value, bool) {
	if r.raised {
		return Value{}, false
	}
	return r.val, true
}

// Exception returns the raised value, if the callee raised.
func (r CallResult) Exception() (Value, bool) {
	if !r.raised {
		return Value{}, false
	}
	return r.val, true
}

// Value returns whichever branch is populated. The exception branch is a
// first-class value; this accessor supports callers that inspect it.
func (r CallResult) Value() Value {
	return r.val
}

// Unwrap converts the exception branch into an ExceptionError for callers
// that propagate raises as Go errors.
func (r CallResult) Unwrap(t memory.Target) (Value, error) {
	if r.raised {
		return Value{}, &ExceptionError{
			Raised:   r.val,
			TypeName: t.Backend().TypeNameOf(r.val.Addr()),
		}
	}
	return r.val, nil
}

type callableKind uint8

const (
	callableValue callableKind = iota
	callableFunction
	callableKeywords
	callableClosure
)

// Callable is the closed set of things the bridge can invoke: a plain
// value, a function, a callable paired with a keyword bundle, or an opaque
// closure. Dispatch happens once, at the bridge boundary.
type Callable struct {
	kind callableKind
	fn   Value
	kw   Value
}

// C treats any value as a callable. Constructors are called this way: the
// datatype itself is the callee.
func C(v Value) Callable {
	return Callable{kind: callableValue, fn: v}
}

// Closure wraps an opaque closure value.
func Closure(v Value) Callable {
	return Callable{kind: callableClosure, fn: v}
}

// WithKeywords pairs the callable with a keyword bundle (a named tuple).
// The bridge routes such calls through the keyword sorter with the bundle
// and the original callable ahead of the positional arguments.
func (c Callable) WithKeywords(kw Value) Callable {
	return Callable{kind: callableKeywords, fn: c.fn, kw: kw}
}

// Function returns the callee value.
func (c Callable) Function() Value {
	return c.fn
}

// Keywords returns the keyword bundle, if this is a keyword callable.
func (c Callable) Keywords() (Value, bool) {
	if c.kind != callableKeywords {
		return Value{}, false
	}
	return c.kw, true
}

// argBuffer marshals call arguments with fixed inline storage and a heap
// fallback past InlineArgs, mirroring the common-arity fast path.
type argBuffer struct {
	storage [InlineArgs]uintptr
	slots   []uintptr
}

func (b *argBuffer) init(n int) {
	if n <= InlineArgs {
		b.slots = b.storage[:0]
	} else {
		b.slots = make([]uintptr, 0, n)
	}
}

func (b *argBuffer) push(addr uintptr) {
	b.slots = append(b.slots, addr)
}

// Call invokes the callable with the given arguments. Fixed-arity entry
// points are used for 0-3 positional arguments on non-keyword callables.
// The pending-exception slot is queried immediately after the foreign
// entry point returns, before any other foreign-visible operation, and the
// outcome is rooted through the target.
func (c Callable) Call(t memory.Target, args ...Value) (CallResult, error) {
	be := t.Backend()

	// Resolve argument addresses before invalidating unrooted handles:
	// the arguments themselves may be unrooted, which is legitimate for
	// values produced since the last allocation.
	fnAddr := c.fn.Addr()
	var buf argBuffer
	if c.kind == callableKeywords {
		kwAddr := c.kw.Addr()
		buf.init(2 + len(args))
		buf.push(kwAddr)
		buf.push(fnAddr)
		for _, a := range args {
			buf.push(a.Addr())
		}
		t.InvalidateUnrooted()
		sorter := be.KwSorter(fnAddr)
		return resultFromCall(t, be.Call(sorter, buf.slots))
	}

	switch len(args) {
	case 0:
		t.InvalidateUnrooted()
		return resultFromCall(t, be.Call0(fnAddr))
	case 1:
		a0 := args[0].Addr()
		t.InvalidateUnrooted()
		return resultFromCall(t, be.Call1(fnAddr, a0))
	case 2:
		a0, a1 := args[0].Addr(), args[1].Addr()
		t.InvalidateUnrooted()
		return resultFromCall(t, be.Call2(fnAddr, a0, a1))
	case 3:
		a0, a1, a2 := args[0].Addr(), args[1].Addr(), args[2].Addr()
		t.InvalidateUnrooted()
		return resultFromCall(t, be.Call3(fnAddr, a0, a1, a2))
	default:
		buf.init(len(args))
		for _, a := range args {
			buf.push(a.Addr())
		}
		t.InvalidateUnrooted()
		return resultFromCall(t, be.Call(fnAddr, buf.slots))
	}
}

// CallTracked is the borrow-checked variant of Call. Every array argument
// whose storage may alias host memory is registered as shared-borrowed for
// the duration of the call. If any such buffer is already exclusively
// borrowed, the whole call fails with a BorrowError and the foreign entry
// point is never invoked. Only arrays participate in the check.
func (c Callable) CallTracked(t memory.Target, args ...Value) (CallResult, error) {
	be := t.Backend()
	ledger := t.Ledger()
	var tracked []uintptr
	release := func() {
		for _, ptr := range tracked {
			ledger.Unshare(ptr)
		}
	}
	for _, a := range args {
		addr := a.Addr()
		if !be.IsArray(addr) {
			continue
		}
		ptr := be.ArrayData(addr)
		if err := ledger.TryShare(ptr); err != nil {
			release()
			return CallResult{}, err
		}
		tracked = append(tracked, ptr)
	}
	defer release()
	return c.Call(t, args...)
}

// resultFromCall checks the pending-exception slot and roots whichever
// branch is live. Rooting the exception goes through the target too:
// reporting it must not leave the only reference to it collectible.
func resultFromCall(t memory.Target, ret uintptr) (CallResult, error) {
	be := t.Backend()
	if exc := be.ExceptionOccurred(); exc != 0 {
		h, err := t.Root(exc)
		if err != nil {
			return CallResult{}, err
		}
		return CallResult{val: Wrap(h), raised: true}, nil
	}
	if ret == 0 {
		return CallResult{}, errs.RuntimeErrorf(
			"runtime error: foreign call returned null with no exception pending")
	}
	h, err := t.Root(ret)
	if err != nil {
		return CallResult{}, err
	}
	return CallResult{val: Wrap(h)}, nil
}
