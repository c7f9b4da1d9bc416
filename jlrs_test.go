package jlrs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cpodariu/jlrs/convert"
	"github.com/cpodariu/jlrs/memory"
	"github.com/cpodariu/jlrs/module"
	"github.com/cpodariu/jlrs/sys/systest"
	"github.com/cpodariu/jlrs/value"
)

func TestRuntimeEndToEnd(t *testing.T) {
	be := systest.New()
	be.DefineGlobal(be.BaseModule(), "sqrt", be.NewFunction(
		func(b *systest.Backend, args []uintptr) uintptr {
			x := b.UnboxFloat64(args[0])
			if x < 0 {
				b.Raise(b.NewString("DomainError"))
				return 0
			}
			return b.NewFloat64(2.0)
		}))

	rt, err := Start(WithBackend(be))
	require.NoError(t, err)
	defer rt.Close()
	require.Equal(t, "1.9.0-systest", rt.Version())

	err = rt.Scope(8, func(fr *memory.Frame) error {
		tgt := fr.Target()
		base, err := module.Base(tgt)
		require.NoError(t, err)
		sqrt, err := base.Function(tgt, "sqrt")
		require.NoError(t, err)

		x, err := convert.BoxFloat64(tgt, 4.0)
		require.NoError(t, err)
		res, err := sqrt.Call(tgt, x)
		require.NoError(t, err)
		v, err := res.Unwrap(tgt)
		require.NoError(t, err)
		got, err := convert.UnboxFloat64(tgt, v)
		require.NoError(t, err)
		require.Equal(t, 2.0, got)

		// The same entry point reports a raise as a result branch.
		neg, err := convert.BoxFloat64(tgt, -1.0)
		require.NoError(t, err)
		res, err = sqrt.Call(tgt, neg)
		require.NoError(t, err)
		require.True(t, res.IsException())
		return nil
	})
	require.NoError(t, err)
}

func TestRootedValuesSurviveCollection(t *testing.T) {
	be := systest.New()
	rt, err := Start(WithBackend(be))
	require.NoError(t, err)
	defer rt.Close()

	err = rt.Scope(8, func(fr *memory.Frame) error {
		tgt := fr.Target()
		rooted, err := convert.BoxInt64(tgt, 1)
		require.NoError(t, err)
		loose := be.NewInt64(2)

		// A full collection inside the next call must see the rooted
		// value through the published stack and reclaim the loose one.
		be.CollectOnCall = true
		fnHandle, err := fr.Root(be.NewFunction(
			func(b *systest.Backend, args []uintptr) uintptr {
				return b.NewBool(true)
			}))
		require.NoError(t, err)
		_, err = value.AsFunction(value.Wrap(fnHandle)).Call(tgt)
		require.NoError(t, err)
		be.CollectOnCall = false

		require.GreaterOrEqual(t, be.CollectCount, 1)
		require.True(t, be.Alive(rooted.Addr()))
		require.False(t, be.Alive(loose))
		return nil
	})
	require.NoError(t, err)
}

func TestNestedScopeLifetimes(t *testing.T) {
	be := systest.New()
	be.DefineGlobal(be.MainModule(), "add", be.NewFunction(
		func(b *systest.Backend, args []uintptr) uintptr {
			return b.NewInt64(b.UnboxInt64(args[0]) + b.UnboxInt64(args[1]))
		}))

	rt, err := Start(WithBackend(be))
	require.NoError(t, err)
	defer rt.Close()

	err = rt.Scope(4, func(outer *memory.Frame) error {
		a, err := convert.BoxInt64(outer.Target(), 40)
		require.NoError(t, err)

		var inner value.Value
		err = outer.Scope(2, func(child *memory.Frame) error {
			tgt := child.Target()
			b, err := convert.BoxInt64(tgt, 2)
			require.NoError(t, err)

			main, err := module.Main(tgt)
			require.NoError(t, err)
			add, err := main.Function(tgt, "add")
			require.NoError(t, err)

			res, err := add.Call(tgt, a, b)
			require.NoError(t, err)
			c, err := res.Unwrap(tgt)
			require.NoError(t, err)
			require.Equal(t, int64(42), be.UnboxInt64(c.Addr()))
			inner = c
			return nil
		})
		require.NoError(t, err)

		// The inner scope's results are gone; the outer root is untouched.
		require.False(t, inner.Usable())
		require.True(t, a.Usable())
		require.Equal(t, int64(40), be.UnboxInt64(a.Addr()))
		return nil
	})
	require.NoError(t, err)
}

func TestScopeHandlesDieAtClose(t *testing.T) {
	rt, err := Start(WithBackend(systest.New()))
	require.NoError(t, err)
	defer rt.Close()

	var escaped value.Value
	err = rt.Scope(4, func(fr *memory.Frame) error {
		v, err := convert.BoxInt64(fr.Target(), 7)
		require.NoError(t, err)
		escaped = v
		return nil
	})
	require.NoError(t, err)
	require.False(t, escaped.Usable())
	require.Panics(t, func() { escaped.Addr() })
}

func TestRuntimeScopeDoesNotNest(t *testing.T) {
	rt, err := Start(WithBackend(systest.New()))
	require.NoError(t, err)
	defer rt.Close()

	err = rt.Scope(4, func(fr *memory.Frame) error {
		require.Error(t, rt.Scope(4, func(*memory.Frame) error { return nil }))

		// Nesting goes through the frame.
		return fr.Scope(4, func(child *memory.Frame) error {
			_, err := convert.BoxInt64(child.Target(), 1)
			return err
		})
	})
	require.NoError(t, err)
}

func TestSingleRuntimePerProcess(t *testing.T) {
	rt, err := Start(WithBackend(systest.New()))
	require.NoError(t, err)

	_, err = Start(WithBackend(systest.New()))
	require.Error(t, err)

	require.NoError(t, rt.Close())
	require.Error(t, rt.Close())

	// Binding is available again after a clean shutdown.
	rt2, err := Start(WithBackend(systest.New()))
	require.NoError(t, err)
	require.NoError(t, rt2.Close())
}

func TestCloseInsideScopeFails(t *testing.T) {
	rt, err := Start(WithBackend(systest.New()))
	require.NoError(t, err)
	defer rt.Close()

	err = rt.Scope(4, func(fr *memory.Frame) error {
		require.Error(t, rt.Close())
		return nil
	})
	require.NoError(t, err)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jlrs.toml")
	require.NoError(t, os.WriteFile(path, []byte(
		"library_path = \"/opt/julia/lib/libjulia.so\"\n"+
			"stack_chunk_size = 128\n"+
			"log_level = \"debug\"\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "/opt/julia/lib/libjulia.so", cfg.LibraryPath)
	require.Equal(t, 128, cfg.StackChunkSize)
	require.Equal(t, "debug", cfg.LogLevel)

	opts, err := cfg.Options()
	require.NoError(t, err)
	require.Len(t, opts, 3)
}

func TestLoadConfigBadLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jlrs.toml")
	require.NoError(t, os.WriteFile(path, []byte("log_level = \"loud\"\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	_, err = cfg.Options()
	require.Error(t, err)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
}
