package value

import (
	"github.com/cpodariu/jlrs/errs"
	"github.com/cpodariu/jlrs/memory"
)

// NFields returns the number of fields of the value's datatype.
func (v Value) NFields(t memory.Target) int {
	addr := v.Addr()
	t.InvalidateUnrooted()
	return t.Backend().NFields(addr)
}

// FieldNames returns the value's field names in declaration order.
func (v Value) FieldNames(t memory.Target) []string {
	addr := v.Addr()
	t.InvalidateUnrooted()
	be := t.Backend()
	n := be.NFields(addr)
	names := make([]string, n)
	for i := 0; i < n; i++ {
		names[i] = be.FieldName(addr, i)
	}
	return names
}

// Field reads a field by name, rooting the result through the target. A
// raise (no such field) is reported as a SymbolError; the raised value
// does not escape. Passing an unrooted target yields a handle valid only
// until the next allocating operation, for immediate inspection without
// consuming a frame slot.
func (v Value) Field(t memory.Target, name string) (Value, error) {
	be := t.Backend()
	addr := v.Addr()
	t.InvalidateUnrooted()
	ret := be.GetField(addr, name)
	if exc := be.ExceptionOccurred(); exc != 0 {
		return Value{}, errs.SymbolErrorf(
			"symbol error: field %s of %s: %s raised", name, be.TypeNameOf(addr), be.TypeNameOf(exc))
	}
	if ret == 0 {
		return Value{}, errs.RuntimeErrorf("runtime error: field access returned null")
	}
	h, err := t.Root(ret)
	if err != nil {
		return Value{}, err
	}
	return Wrap(h), nil
}

// FieldAt reads a field by zero-based position.
func (v Value) FieldAt(t memory.Target, i int) (Value, error) {
	be := t.Backend()
	addr := v.Addr()
	t.InvalidateUnrooted()
	ret := be.GetNthField(addr, i)
	if exc := be.ExceptionOccurred(); exc != 0 {
		return Value{}, errs.SymbolErrorf(
			"symbol error: field %d of %s: %s raised", i, be.TypeNameOf(addr), be.TypeNameOf(exc))
	}
	if ret == 0 {
		return Value{}, errs.RuntimeErrorf("runtime error: field access returned null")
	}
	h, err := t.Root(ret)
	if err != nil {
		return Value{}, err
	}
	return Wrap(h), nil
}

// SetField writes a field by name. A raise (immutable value, no such
// field, type mismatch) is reported as a TypeError.
func (v Value) SetField(t memory.Target, name string, val Value) error {
	be := t.Backend()
	addr, valAddr := v.Addr(), val.Addr()
	t.InvalidateUnrooted()
	be.SetField(addr, name, valAddr)
	if exc := be.ExceptionOccurred(); exc != 0 {
		return errs.TypeErrorf(
			"type error: cannot set field %s of %s: %s raised", name, be.TypeNameOf(addr), be.TypeNameOf(exc))
	}
	return nil
}

// ApplyType instantiates a parametric type constructor. Like a call, a
// raise is a first-class result branch: invalid parameters surface as the
// exception branch, rooted through the target.
func ApplyType(t memory.Target, tc Value, params ...Value) (CallResult, error) {
	be := t.Backend()
	tcAddr := tc.Addr()
	var buf argBuffer
	buf.init(len(params))
	for _, p := range params {
		buf.push(p.Addr())
	}
	t.InvalidateUnrooted()
	return resultFromCall(t, be.ApplyType(tcAddr, buf.slots))
}

// NewNamedTuple builds a named tuple from parallel names and values,
// rooted through the target. Keyword calls take their bundle from here.
func NewNamedTuple(t memory.Target, names []string, values ...Value) (Value, error) {
	if len(names) != len(values) {
		return Value{}, errs.RuntimeErrorf(
			"runtime error: %d names for %d values", len(names), len(values))
	}
	be := t.Backend()
	addrs := make([]uintptr, len(values))
	for i, v := range values {
		addrs[i] = v.Addr()
	}
	t.InvalidateUnrooted()
	ret := be.NewNamedTuple(names, addrs)
	if exc := be.ExceptionOccurred(); exc != 0 {
		return Value{}, errs.RuntimeErrorf(
			"runtime error: named tuple construction raised %s", be.TypeNameOf(exc))
	}
	if ret == 0 {
		return Value{}, errs.RuntimeErrorf("runtime error: named tuple construction failed")
	}
	h, err := t.Root(ret)
	if err != nil {
		return Value{}, err
	}
	return Wrap(h), nil
}
