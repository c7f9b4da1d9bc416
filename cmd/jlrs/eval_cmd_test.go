package main

import (
	"bytes"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cpodariu/jlrs"
	"github.com/cpodariu/jlrs/sys/systest"
)

func newEvalBackend() *systest.Backend {
	be := systest.New()
	be.DefineGlobal(be.BaseModule(), "string", be.NewFunction(
		func(b *systest.Backend, args []uintptr) uintptr {
			switch b.Kind(args[0]) {
			case systest.KindString:
				return args[0]
			case systest.KindInt64:
				return b.NewString(strconv.FormatInt(b.UnboxInt64(args[0]), 10))
			default:
				return b.NewString("<value>")
			}
		}))
	return be
}

func TestRunEvalPrintsResult(t *testing.T) {
	be := newEvalBackend()
	be.OnEval("1 + 2", func(b *systest.Backend, args []uintptr) uintptr {
		return b.NewInt64(3)
	})

	var out bytes.Buffer
	err := runEval(&out, "1 + 2", []jlrs.Option{jlrs.WithBackend(be)})
	require.NoError(t, err)
	require.Equal(t, "3\n", out.String())
}

func TestRunEvalExceptionIsAnError(t *testing.T) {
	be := newEvalBackend()
	be.OnEval("error(\"boom\")", func(b *systest.Backend, args []uintptr) uintptr {
		b.Raise(b.NewString("ErrorException: boom"))
		return 0
	})

	var out bytes.Buffer
	err := runEval(&out, "error(\"boom\")", []jlrs.Option{jlrs.WithBackend(be)})
	require.Error(t, err)
	require.Contains(t, err.Error(), "ErrorException: boom")
	require.Empty(t, out.String())

	// The error path must still have closed the runtime: a fresh binding
	// is available immediately afterwards.
	rt, err := jlrs.Start(jlrs.WithBackend(systest.New()))
	require.NoError(t, err)
	require.NoError(t, rt.Close())
}

func TestEvalSource(t *testing.T) {
	src, err := evalSource([]string{"sqrt(4.0)"}, false)
	require.NoError(t, err)
	require.Equal(t, "sqrt(4.0)", src)

	src, err = evalSource([]string{"1", "+", "1"}, false)
	require.NoError(t, err)
	require.Equal(t, "1 + 1", src)

	_, err = evalSource(nil, false)
	require.Error(t, err)
}
