// Package jlrs embeds a foreign garbage-collected runtime in a Go process
// and keeps foreign values safely referenced while host code works with
// them. Values are rooted in scopes on a stack the foreign collector
// scans; handles to rooted values stay valid exactly as long as their
// scope is open, and misuse panics instead of corrupting the heap.
//
// A Runtime owns one root stack and one OS thread. All foreign calls
// happen inside Scope, on the goroutine that started the runtime.
package jlrs

import (
	"runtime"
	"sync/atomic"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/cpodariu/jlrs/errs"
	"github.com/cpodariu/jlrs/memory"
	"github.com/cpodariu/jlrs/sys"
)

// helperSource is evaluated at startup to install the scheduling helper
// used by the task package. The worker spawned there services keyword
// arguments transparently.
const helperSource = `module JlrsGo
asynccall(f, args...; kwargs...) = Base.Threads.@spawn f(args...; kwargs...)
end`

// bound guards against two live runtimes: the foreign runtime can be
// initialized once per process.
var bound atomic.Bool

// Runtime is a started foreign runtime bound to the calling goroutine's
// OS thread. It is not safe for concurrent use.
type Runtime struct {
	backend sys.Backend
	stack   *memory.RootStack
	ledger  *memory.Ledger
	scratch *memory.Scratch
	logger  zerolog.Logger
	inScope bool
	closed  bool
}

// Start initializes the foreign runtime, publishes the root stack to its
// collector, and installs the scheduling helper. The calling goroutine is
// locked to its OS thread for the lifetime of the runtime; every Scope
// must run on that goroutine.
func Start(opts ...Option) (*Runtime, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if !bound.CompareAndSwap(false, true) {
		return nil, errs.RuntimeErrorf("runtime error: a runtime is already bound in this process")
	}
	rt, err := start(o)
	if err != nil {
		bound.Store(false)
		return nil, err
	}
	return rt, nil
}

func start(o options) (*Runtime, error) {
	backend := o.backend
	if backend == nil {
		var err error
		backend, err = sys.OpenLibrary(o.libraryPath, o.logger)
		if err != nil {
			return nil, err
		}
	}

	runtime.LockOSThread()
	rt := &Runtime{
		backend: backend,
		stack:   memory.NewRootStack(o.chunkSlots),
		ledger:  memory.NewLedger(),
		scratch: memory.NewScratch(),
		logger:  o.logger,
	}
	if err := backend.Init(); err != nil {
		runtime.UnlockOSThread()
		return nil, err
	}
	if err := backend.BindRoots(rt.stack.Scan); err != nil {
		rt.shutdown()
		return nil, err
	}
	if err := rt.installHelper(); err != nil {
		rt.shutdown()
		return nil, err
	}
	rt.logger.Info().Str("version", backend.Version()).Msg("runtime started")
	return rt, nil
}

// installHelper evaluates the scheduling helper module. The result is a
// module bound into Main, so it needs no rooting of its own.
func (rt *Runtime) installHelper() error {
	ret := rt.backend.EvalString(helperSource)
	if exc := rt.backend.ExceptionOccurred(); exc != 0 {
		return errs.RuntimeErrorf("runtime error: helper install raised %s",
			rt.backend.TypeNameOf(exc))
	}
	if ret == 0 {
		return errs.RuntimeErrorf("runtime error: helper install returned null")
	}
	return nil
}

// Scope opens a frame with the given slot capacity and runs fn inside it.
// Every handle rooted through the frame becomes unusable when fn returns.
// A capacity of 0 uses the default. Scopes do not nest through Runtime;
// fn opens nested scopes on its frame.
func (rt *Runtime) Scope(capacity int, fn func(fr *memory.Frame) error) error {
	if rt.closed {
		return errs.RuntimeErrorf("runtime error: scope on a closed runtime")
	}
	if rt.inScope {
		return errs.RuntimeErrorf("runtime error: scopes nest through Frame.Scope, not Runtime.Scope")
	}
	rt.inScope = true
	defer func() { rt.inScope = false }()

	fr := memory.NewBaseFrame(rt.backend, rt.stack, rt.ledger, rt.scratch, capacity)
	err := fn(fr)
	if cerr := fr.Close(); cerr != nil {
		err = multierror.Append(err, cerr).ErrorOrNil()
	}
	return err
}

// Backend exposes the underlying backend for diagnostics.
func (rt *Runtime) Backend() sys.Backend {
	return rt.backend
}

// Version reports the foreign runtime's version string.
func (rt *Runtime) Version() string {
	return rt.backend.Version()
}

// Close shuts the foreign runtime down and releases the OS thread. Close
// must be called on the runtime's goroutine, outside any scope.
func (rt *Runtime) Close() error {
	if rt.closed {
		return errs.RuntimeErrorf("runtime error: runtime already closed")
	}
	if rt.inScope {
		return errs.RuntimeErrorf("runtime error: close inside an open scope")
	}
	err := rt.shutdown()
	rt.logger.Info().Msg("runtime stopped")
	return err
}

func (rt *Runtime) shutdown() error {
	rt.closed = true
	err := rt.backend.Shutdown()
	runtime.UnlockOSThread()
	bound.Store(false)
	return err
}
