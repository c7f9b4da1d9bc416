package module

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cpodariu/jlrs/errs"
	"github.com/cpodariu/jlrs/memory"
	"github.com/cpodariu/jlrs/sys/systest"
	"github.com/cpodariu/jlrs/value"
)

func newTestFrame(be *systest.Backend) *memory.Frame {
	return memory.NewBaseFrame(be, memory.NewRootStack(0), memory.NewLedger(), memory.NewScratch(), 16)
}

func valueOf(h memory.Handle) value.Value {
	return value.Wrap(h)
}

func TestWellKnownModules(t *testing.T) {
	be := systest.New()
	fr := newTestFrame(be)
	defer fr.Close()

	for name, resolve := range map[string]func(memory.Target) (Module, error){
		"Main": Main,
		"Base": Base,
		"Core": Core,
	} {
		m, err := resolve(fr.Target())
		require.NoError(t, err)
		require.Equal(t, name, m.Name())
		require.Equal(t, "Module", m.TypeName(fr.Target()))
	}
}

func TestGlobalResolvesBinding(t *testing.T) {
	be := systest.New()
	fr := newTestFrame(be)
	defer fr.Close()

	be.DefineGlobal(be.MainModule(), "answer", be.NewInt64(42))
	main, err := Main(fr.Target())
	require.NoError(t, err)

	v, err := main.Global(fr.Target(), "answer")
	require.NoError(t, err)
	require.Equal(t, int64(42), be.UnboxInt64(v.Addr()))
}

func TestGlobalUnboundName(t *testing.T) {
	be := systest.New()
	fr := newTestFrame(be)
	defer fr.Close()

	main, err := Main(fr.Target())
	require.NoError(t, err)

	_, err = main.Global(fr.Target(), "no_such_binding")
	require.True(t, errs.IsSymbol(err))
}

func TestFunctionResolvesCallable(t *testing.T) {
	be := systest.New()
	fr := newTestFrame(be)
	defer fr.Close()

	be.DefineGlobal(be.MainModule(), "double", be.NewFunction(
		func(b *systest.Backend, args []uintptr) uintptr {
			return b.NewInt64(2 * b.UnboxInt64(args[0]))
		}))
	main, err := Main(fr.Target())
	require.NoError(t, err)
	double, err := main.Function(fr.Target(), "double")
	require.NoError(t, err)

	arg, err := fr.Root(be.NewInt64(21))
	require.NoError(t, err)
	res, err := double.Call(fr.Target(), valueOf(arg))
	require.NoError(t, err)
	v, err := res.Unwrap(fr.Target())
	require.NoError(t, err)
	require.Equal(t, int64(42), be.UnboxInt64(v.Addr()))
}

func TestSubmoduleRequiresModuleType(t *testing.T) {
	be := systest.New()
	fr := newTestFrame(be)
	defer fr.Close()

	main, err := Main(fr.Target())
	require.NoError(t, err)

	helper, err := main.Submodule(fr.Target(), "JlrsGo")
	require.NoError(t, err)
	require.Equal(t, "JlrsGo", helper.Name())

	be.DefineGlobal(be.MainModule(), "notmod", be.NewInt64(1))
	_, err = main.Submodule(fr.Target(), "notmod")
	require.True(t, errs.IsSymbol(err))
}

func TestRequireLoadsAvailablePackage(t *testing.T) {
	be := systest.New()
	fr := newTestFrame(be)
	defer fr.Close()

	be.ProvideModule("LinearAlgebra")
	main, err := Main(fr.Target())
	require.NoError(t, err)

	loaded, err := main.Require(fr.Target(), "LinearAlgebra")
	require.NoError(t, err)
	require.Equal(t, "LinearAlgebra", loaded.Name())
	require.Equal(t, "Module", loaded.TypeName(fr.Target()))
}

func TestRequireMissingPackage(t *testing.T) {
	be := systest.New()
	fr := newTestFrame(be)
	defer fr.Close()

	main, err := Main(fr.Target())
	require.NoError(t, err)

	_, err = main.Require(fr.Target(), "NoSuchPackage")
	require.True(t, errs.IsSymbol(err))
}
