// Package sys defines the foreign ABI surface consumed by the rooting and
// call bridge layers: the fixed-arity call entry points, the pending
// exception accessor, symbol resolution, boxing and unboxing entry points,
// and garbage collector control.
//
// Two implementations exist: LibJulia, which binds a libjulia shared
// library at runtime, and systest.Backend, an in-process stub used by the
// test suite.
package sys

// RootScanner walks every currently live root slot. The collector calls it
// during its reachability scan; slots holding zero are never yielded.
type RootScanner func(yield func(addr uintptr) bool)

// Backend is the set of foreign runtime entry points the core depends on.
//
// All addresses are raw foreign heap addresses. A zero return from a call
// entry point is only meaningful together with ExceptionOccurred: any
// foreign call may signal failure by raising instead of returning, and the
// raised object stays installed until the next call clears it.
//
// A Backend is bound to exactly one host thread at a time. Nothing in this
// package enforces that; the runtime binding above it does.
type Backend interface {
	// Init starts the foreign runtime. It must be called exactly once,
	// before any other method.
	Init() error

	// Shutdown runs the foreign runtime's exit hooks. No method may be
	// called afterwards.
	Shutdown() error

	// Version reports the foreign runtime's version string.
	Version() string

	// BindRoots registers the scanner the collector walks as part of its
	// reachability scan. Must be called before the first collection can
	// run, and at most once.
	BindRoots(scan RootScanner) error

	// Fixed-arity call entry points. These avoid building an argument
	// array for the common arities.
	Call0(f uintptr) uintptr
	Call1(f, a0 uintptr) uintptr
	Call2(f, a0, a1 uintptr) uintptr
	Call3(f, a0, a1, a2 uintptr) uintptr

	// Call invokes f with an arbitrary argument array.
	Call(f uintptr, args []uintptr) uintptr

	// KwSorter returns the keyword-sorter entry point for a callable.
	// Keyword calls go through the sorter with the keyword bundle and the
	// original callable inserted ahead of the positional arguments.
	KwSorter(f uintptr) uintptr

	// ExceptionOccurred returns the currently installed raised object, or
	// zero if none is pending. Querying does not clear it; only the next
	// call entry does.
	ExceptionOccurred() uintptr

	// EvalString parses and evaluates foreign source text. May raise.
	EvalString(src string) uintptr

	// Symbol interns a name in the foreign runtime's symbol table.
	Symbol(name string) uintptr

	MainModule() uintptr
	BaseModule() uintptr
	CoreModule() uintptr

	// Global resolves a binding in a module, returning zero if the name
	// is not bound.
	Global(module uintptr, name string) uintptr

	// TypeNameOf returns the name of a value's concrete datatype, used to
	// validate unbox conversions.
	TypeNameOf(v uintptr) string

	// Field access. NFields and FieldName are pure queries; GetField,
	// GetNthField, and SetField may raise (missing field, index out of
	// range, immutable value) and may trigger a collection. GetNthField
	// is zero-based.
	NFields(v uintptr) int
	FieldName(v uintptr, i int) string
	GetField(v uintptr, name string) uintptr
	GetNthField(v uintptr, i int) uintptr
	SetField(v uintptr, name string, val uintptr)

	// ApplyType instantiates a parametric type constructor with the given
	// parameters. May raise.
	ApplyType(tc uintptr, params []uintptr) uintptr

	// NewNamedTuple builds a named tuple from parallel name/value slices.
	// May raise.
	NewNamedTuple(names []string, values []uintptr) uintptr

	// IsArray reports whether v is a foreign array value.
	IsArray(v uintptr) bool

	// ArrayData returns the address of an array's backing storage. For
	// arrays built over host memory this is the host buffer address, which
	// is the key the borrow ledger tracks.
	ArrayData(v uintptr) uintptr

	// Boxing entry points: allocate a foreign value with the given
	// native layout. All of these may trigger a collection.
	BoxBool(v bool) uintptr
	BoxInt8(v int8) uintptr
	BoxInt16(v int16) uintptr
	BoxInt32(v int32) uintptr
	BoxInt64(v int64) uintptr
	BoxUint8(v uint8) uintptr
	BoxUint16(v uint16) uintptr
	BoxUint32(v uint32) uintptr
	BoxUint64(v uint64) uintptr
	BoxFloat32(v float32) uintptr
	BoxFloat64(v float64) uintptr
	BoxString(s string) uintptr

	// Array construction over host-owned buffers. The foreign value
	// aliases the slice's storage; the caller is responsible for keeping
	// the slice alive and for borrow tracking. dims holds the staged
	// extents; only rank 1 is supported by the libjulia binding.
	NewFloat64Array(data []float64, dims []uintptr) uintptr
	NewInt64Array(data []int64, dims []uintptr) uintptr

	// Unboxing entry points. These are unchecked: the caller must have
	// validated the value's datatype first.
	UnboxBool(v uintptr) bool
	UnboxInt8(v uintptr) int8
	UnboxInt16(v uintptr) int16
	UnboxInt32(v uintptr) int32
	UnboxInt64(v uintptr) int64
	UnboxUint8(v uintptr) uint8
	UnboxUint16(v uintptr) uint16
	UnboxUint32(v uintptr) uint32
	UnboxUint64(v uintptr) uint64
	UnboxFloat32(v uintptr) float32
	UnboxFloat64(v uintptr) float64
	UnboxString(v uintptr) string

	// GCCollect forces a collection. Used by diagnostics and tests.
	GCCollect(full bool)
}
