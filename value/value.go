// Package value provides the wrapper for foreign heap values and the call
// bridge that marshals arguments into the foreign calling convention,
// detects raised exceptions, and reports them as structured results.
package value

import (
	"fmt"

	"github.com/cpodariu/jlrs/memory"
)

// Value wraps a handle to one foreign heap value. Values are copyable and
// carry their handle's validity windows.
type Value struct {
	h memory.Handle
}

// Wrap builds a Value from a handle produced by a target.
func Wrap(h memory.Handle) Value {
	return Value{h: h}
}

// Handle returns the underlying handle.
func (v Value) Handle() memory.Handle {
	return v.h
}

// Addr returns the foreign heap address. Panics if the value's validity
// window has ended.
func (v Value) Addr() uintptr {
	return v.h.Addr()
}

// Usable reports whether the value may still be accessed.
func (v Value) Usable() bool {
	return v.h.Usable()
}

// Eq reports whether two values denote the same foreign object.
func (v Value) Eq(other Value) bool {
	return v.h.Eq(other.h)
}

// TypeName returns the name of the value's concrete foreign datatype.
func (v Value) TypeName(t memory.Target) string {
	return t.Backend().TypeNameOf(v.Addr())
}

// Eval parses and evaluates foreign source text, rooting the result (or
// the raised exception) through the target.
func Eval(t memory.Target, src string) (CallResult, error) {
	be := t.Backend()
	t.InvalidateUnrooted()
	ret := be.EvalString(src)
	return resultFromCall(t, ret)
}

// ExceptionError adapts a raised foreign value to Go's error interface for
// callers that choose to treat the exception branch as a failure. The
// raised value stays rooted through the original target.
type ExceptionError struct {
	Raised   Value
	TypeName string
}

func (e *ExceptionError) Error() string {
	return fmt.Sprintf("julia exception raised: %s", e.TypeName)
}
