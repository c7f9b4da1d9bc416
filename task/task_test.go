package task

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cpodariu/jlrs/memory"
	"github.com/cpodariu/jlrs/sys/systest"
	"github.com/cpodariu/jlrs/value"
)

func newTestFrame(be *systest.Backend) *memory.Frame {
	return memory.NewBaseFrame(be, memory.NewRootStack(0), memory.NewLedger(), memory.NewScratch(), 32)
}

func rootFunction(t *testing.T, fr *memory.Frame, fn systest.Func) value.Function {
	t.Helper()
	h, err := fr.Root(fr.Backend().(*systest.Backend).NewFunction(fn))
	require.NoError(t, err)
	return value.AsFunction(value.Wrap(h))
}

func TestScheduleAndWait(t *testing.T) {
	be := systest.New()
	fr := newTestFrame(be)
	defer fr.Close()

	fn := rootFunction(t, fr, func(b *systest.Backend, args []uintptr) uintptr {
		return b.NewInt64(b.UnboxInt64(args[0]) + b.UnboxInt64(args[1]))
	})
	a, err := fr.Root(be.NewInt64(40))
	require.NoError(t, err)
	b, err := fr.Root(be.NewInt64(2))
	require.NoError(t, err)

	tk, err := Schedule(fr.Target(), fn.Callable(), value.Wrap(a), value.Wrap(b))
	require.NoError(t, err)
	require.Equal(t, "Task", tk.Value().TypeName(fr.Target()))
	require.NotEqual(t, tk.ID().String(), "")

	done, err := tk.Done(fr.Target())
	require.NoError(t, err)
	require.True(t, done)

	res, err := tk.Wait(context.Background(), fr, time.Millisecond)
	require.NoError(t, err)
	v, err := res.Unwrap(fr.Target())
	require.NoError(t, err)
	require.Equal(t, int64(42), be.UnboxInt64(v.Addr()))
}

func TestWaitSurfacesTaskFailureAsException(t *testing.T) {
	be := systest.New()
	fr := newTestFrame(be)
	defer fr.Close()

	fn := rootFunction(t, fr, func(b *systest.Backend, args []uintptr) uintptr {
		b.Raise(b.NewString("DivideError"))
		return 0
	})

	tk, err := Schedule(fr.Target(), fn.Callable())
	require.NoError(t, err, "a raise inside the callable is captured by the task, not the scheduling call")

	res, err := tk.Wait(context.Background(), fr, time.Millisecond)
	require.NoError(t, err)
	require.True(t, res.IsException())
	exc, ok := res.Exception()
	require.True(t, ok)
	require.Equal(t, "DivideError", be.UnboxString(exc.Addr()))
}

func TestScheduleNonCallableRaises(t *testing.T) {
	be := systest.New()
	fr := newTestFrame(be)
	defer fr.Close()

	h, err := fr.Root(be.NewInt64(1))
	require.NoError(t, err)

	_, err = Schedule(fr.Target(), value.C(value.Wrap(h)))
	require.Error(t, err)
	var excErr *value.ExceptionError
	require.ErrorAs(t, err, &excErr)
}

func TestTaskIDsAreDistinct(t *testing.T) {
	be := systest.New()
	fr := newTestFrame(be)
	defer fr.Close()

	fn := rootFunction(t, fr, func(b *systest.Backend, args []uintptr) uintptr {
		return b.NewBool(true)
	})

	first, err := Schedule(fr.Target(), fn.Callable())
	require.NoError(t, err)
	second, err := Schedule(fr.Target(), fn.Callable())
	require.NoError(t, err)
	require.NotEqual(t, first.ID(), second.ID())
}
