// Package module resolves foreign modules, globals, and functions by
// name. The core treats everything resolved here as opaque handles; only
// Require goes through the call bridge, since loading a package is itself
// a foreign call that can raise.
package module

import (
	"github.com/cpodariu/jlrs/errs"
	"github.com/cpodariu/jlrs/memory"
	"github.com/cpodariu/jlrs/value"
)

// Module is a value known to be a foreign module.
type Module struct {
	value.Value
	name string
}

// Main returns the Main module rooted through the target.
func Main(t memory.Target) (Module, error) {
	return wellKnown(t, t.Backend().MainModule(), "Main")
}

// Base returns the Base module rooted through the target.
func Base(t memory.Target) (Module, error) {
	return wellKnown(t, t.Backend().BaseModule(), "Base")
}

// Core returns the Core module rooted through the target.
func Core(t memory.Target) (Module, error) {
	return wellKnown(t, t.Backend().CoreModule(), "Core")
}

func wellKnown(t memory.Target, addr uintptr, name string) (Module, error) {
	if addr == 0 {
		return Module{}, errs.SymbolErrorf("symbol error: module %s is not available", name)
	}
	h, err := t.Root(addr)
	if err != nil {
		return Module{}, err
	}
	return Module{Value: value.Wrap(h), name: name}, nil
}

// Name returns the module's name as known at resolution time.
func (m Module) Name() string {
	return m.name
}

// Global resolves a binding in the module, rooting it through the target.
func (m Module) Global(t memory.Target, name string) (value.Value, error) {
	addr := t.Backend().Global(m.Addr(), name)
	if addr == 0 {
		return value.Value{}, errs.SymbolErrorf(
			"symbol error: %s is not defined in module %s", name, m.name)
	}
	h, err := t.Root(addr)
	if err != nil {
		return value.Value{}, err
	}
	return value.Wrap(h), nil
}

// Function resolves a binding and hands it back as a callable function.
// The binding's datatype is not checked; calling a non-callable raises at
// call time, the way any foreign call can.
func (m Module) Function(t memory.Target, name string) (value.Function, error) {
	v, err := m.Global(t, name)
	if err != nil {
		return value.Function{}, err
	}
	return value.AsFunction(v), nil
}

// Submodule resolves a binding and requires it to be a module.
func (m Module) Submodule(t memory.Target, name string) (Module, error) {
	v, err := m.Global(t, name)
	if err != nil {
		return Module{}, err
	}
	if tn := t.Backend().TypeNameOf(v.Addr()); tn != "Module" {
		return Module{}, errs.SymbolErrorf(
			"symbol error: %s in module %s is a %s, not a module", name, m.name, tn)
	}
	return Module{Value: v, name: name}, nil
}

// Require loads a package into the module by name, through the foreign
// require machinery. A raise (package not found, precompilation failure)
// is reported as a SymbolError; the raised value does not escape.
func (m Module) Require(t memory.Target, name string) (Module, error) {
	be := t.Backend()
	base, err := Base(t)
	if err != nil {
		return Module{}, err
	}
	requireFn, err := base.Function(t, "require")
	if err != nil {
		return Module{}, err
	}
	symAddr := be.Symbol(name)
	if symAddr == 0 {
		return Module{}, errs.SymbolErrorf("symbol error: cannot intern %q", name)
	}
	symHandle, err := t.Root(symAddr)
	if err != nil {
		return Module{}, err
	}
	res, err := requireFn.Call(t, m.Value, value.Wrap(symHandle))
	if err != nil {
		return Module{}, err
	}
	if exc, raised := res.Exception(); raised {
		return Module{}, errs.SymbolErrorf(
			"symbol error: require %s raised %s", name, be.TypeNameOf(exc.Addr()))
	}
	loaded, _ := res.Ok()
	if tn := be.TypeNameOf(loaded.Addr()); tn != "Module" {
		return Module{}, errs.SymbolErrorf(
			"symbol error: require %s returned a %s, not a module", name, tn)
	}
	return Module{Value: loaded, name: name}, nil
}
