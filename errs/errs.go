// Package errs defines the error types reported by the rooting and call
// bridge layers. A raised Julia exception is deliberately not represented
// here: it is the exception branch of a value.CallResult, a first-class
// rooted value the caller must inspect, never a Go error that unwinds.
package errs

import (
	"errors"
	"fmt"
)

// FatalError is an interface for errors that may or may not be fatal.
type FatalError interface {
	Error() string
	IsFatal() bool
}

// CapacityError indicates that a frame's reserved slot range is exhausted
// and cannot grow, or that growing the root stack itself failed. The former
// is recoverable (retry in a larger scope); the latter is fatal, since the
// process can no longer root values safely.
type CapacityError struct {
	Err     error
	isFatal bool
}

func (c *CapacityError) Error() string {
	return c.Err.Error()
}

func (c *CapacityError) Unwrap() error {
	return c.Err
}

func (c *CapacityError) IsFatal() bool {
	return c.isFatal
}

func NewCapacityError(err error) *CapacityError {
	return &CapacityError{Err: err}
}

func CapacityErrorf(format string, args ...any) *CapacityError {
	return NewCapacityError(fmt.Errorf(format, args...))
}

// FatalCapacityErrorf is used when the root stack's own backing storage
// could not be grown. Rooting can never succeed again after this.
func FatalCapacityErrorf(format string, args ...any) *CapacityError {
	return &CapacityError{Err: fmt.Errorf(format, args...), isFatal: true}
}

// BorrowError indicates that a checked call found an array argument whose
// backing storage is host memory already exclusively borrowed. The foreign
// call is never attempted; the conflict is always recoverable.
type BorrowError struct {
	Err error
}

func (b *BorrowError) Error() string {
	return b.Err.Error()
}

func (b *BorrowError) Unwrap() error {
	return b.Err
}

func (b *BorrowError) IsFatal() bool {
	return false
}

func NewBorrowError(err error) *BorrowError {
	return &BorrowError{Err: err}
}

func BorrowErrorf(format string, args ...any) *BorrowError {
	return NewBorrowError(fmt.Errorf(format, args...))
}

// SymbolError indicates that a module, global, or function could not be
// resolved by name in the foreign runtime.
type SymbolError struct {
	Err error
}

func (s *SymbolError) Error() string {
	return s.Err.Error()
}

func (s *SymbolError) Unwrap() error {
	return s.Err
}

func (s *SymbolError) IsFatal() bool {
	return false
}

func NewSymbolError(err error) *SymbolError {
	return &SymbolError{Err: err}
}

func SymbolErrorf(format string, args ...any) *SymbolError {
	return NewSymbolError(fmt.Errorf(format, args...))
}

// RuntimeError indicates misuse of the runtime binding or the scope
// discipline that could be detected at runtime: closing a frame while a
// child is open, reusing a consumed output slot, binding two runtime
// instances at once.
type RuntimeError struct {
	Err error
}

func (r *RuntimeError) Error() string {
	return r.Err.Error()
}

func (r *RuntimeError) Unwrap() error {
	return r.Err
}

func (r *RuntimeError) IsFatal() bool {
	return true
}

func NewRuntimeError(err error) *RuntimeError {
	return &RuntimeError{Err: err}
}

func RuntimeErrorf(format string, args ...any) *RuntimeError {
	return NewRuntimeError(fmt.Errorf(format, args...))
}

// TypeError indicates that a value's foreign datatype did not match the
// layout expected by an unbox conversion.
type TypeError struct {
	Err error
}

func (t *TypeError) Error() string {
	return t.Err.Error()
}

func (t *TypeError) Unwrap() error {
	return t.Err
}

func (t *TypeError) IsFatal() bool {
	return false
}

func NewTypeError(err error) *TypeError {
	return &TypeError{Err: err}
}

func TypeErrorf(format string, args ...any) *TypeError {
	return NewTypeError(fmt.Errorf(format, args...))
}

// IsCapacity reports whether err is or wraps a CapacityError.
func IsCapacity(err error) bool {
	var target *CapacityError
	return errors.As(err, &target)
}

// IsBorrow reports whether err is or wraps a BorrowError.
func IsBorrow(err error) bool {
	var target *BorrowError
	return errors.As(err, &target)
}

// IsSymbol reports whether err is or wraps a SymbolError.
func IsSymbol(err error) bool {
	var target *SymbolError
	return errors.As(err, &target)
}

// IsType reports whether err is or wraps a TypeError.
func IsType(err error) bool {
	var target *TypeError
	return errors.As(err, &target)
}
