package memory

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cpodariu/jlrs/errs"
	"github.com/cpodariu/jlrs/sys/systest"
)

func newTestFrame(capacity int) (*Frame, *RootStack) {
	stack := NewRootStack(0)
	fr := NewBaseFrame(systest.New(), stack, NewLedger(), NewScratch(), capacity)
	return fr, stack
}

func TestFrameRootPublishesToStack(t *testing.T) {
	fr, stack := newTestFrame(4)
	h, err := fr.Root(0x1000)
	require.NoError(t, err)
	require.True(t, h.Usable())
	require.Equal(t, uintptr(0x1000), h.Addr())
	require.Equal(t, 1, fr.Used())

	var seen []uintptr
	stack.Scan(func(addr uintptr) bool {
		seen = append(seen, addr)
		return true
	})
	require.Equal(t, []uintptr{0x1000}, seen)
}

func TestFrameRootRejectsNull(t *testing.T) {
	fr, _ := newTestFrame(4)
	_, err := fr.Root(0)
	require.Error(t, err)
	require.Zero(t, fr.Used())
}

func TestFrameRootNullDoesNotConsumeSlot(t *testing.T) {
	// With a child open the parent cannot grow, so a slot leaked by a
	// rejected null root would surface as a capacity failure here.
	fr, _ := newTestFrame(1)
	err := fr.Scope(2, func(child *Frame) error {
		_, rerr := fr.Root(0)
		require.Error(t, rerr)
		require.Zero(t, fr.Used())

		_, rerr = fr.Root(0x1000)
		require.NoError(t, rerr)
		return nil
	})
	require.NoError(t, err)
}

func TestFrameCloseInvalidatesHandles(t *testing.T) {
	fr, stack := newTestFrame(4)
	h, err := fr.Root(0x1000)
	require.NoError(t, err)

	require.NoError(t, fr.Close())
	require.False(t, h.Usable())
	require.Panics(t, func() { h.Addr() })
	require.Zero(t, stack.Len())
}

func TestFrameDoubleCloseFails(t *testing.T) {
	fr, _ := newTestFrame(4)
	require.NoError(t, fr.Close())
	require.Error(t, fr.Close())
}

func TestInnermostFrameGrowsOnDemand(t *testing.T) {
	fr, _ := newTestFrame(2)
	for i := 0; i < 5; i++ {
		_, err := fr.Root(uintptr(0x1000 + i*0x10))
		require.NoError(t, err)
	}
	require.Equal(t, 5, fr.Used())
	require.GreaterOrEqual(t, fr.Capacity(), 5)
}

func TestFrameWithOpenChildCannotGrow(t *testing.T) {
	fr, _ := newTestFrame(1)
	_, err := fr.Root(0x1000)
	require.NoError(t, err)

	err = fr.Scope(2, func(child *Frame) error {
		_, rerr := fr.Root(0x2000)
		require.True(t, errs.IsCapacity(rerr))

		// The child is innermost and can still root and grow.
		for i := 0; i < 4; i++ {
			_, cerr := child.Root(uintptr(0x3000 + i*0x10))
			require.NoError(t, cerr)
		}
		return nil
	})
	require.NoError(t, err)

	// With the child closed, the parent can root again.
	_, err = fr.Root(0x2000)
	require.NoError(t, err)
}

func TestScopeReleasesOnEveryExit(t *testing.T) {
	fr, stack := newTestFrame(2)
	before := stack.Len()

	var leaked Handle
	err := fr.Scope(4, func(child *Frame) error {
		h, err := child.Root(0x1000)
		require.NoError(t, err)
		leaked = h
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, before, stack.Len())
	require.False(t, leaked.Usable())
	require.Panics(t, func() { leaked.Addr() })
}

func TestScopesNestStrictly(t *testing.T) {
	fr, _ := newTestFrame(2)
	err := fr.Scope(2, func(child *Frame) error {
		// A second child of the same parent while one is open is an error.
		_, err := fr.Child(2)
		require.Error(t, err)

		// Closing the parent under an open child is an error.
		require.Error(t, fr.Close())
		return nil
	})
	require.NoError(t, err)
}

func TestOutputPromotesAcrossScopeClose(t *testing.T) {
	fr, _ := newTestFrame(4)
	out, err := fr.Output()
	require.NoError(t, err)

	var promoted Handle
	err = fr.Scope(2, func(child *Frame) error {
		h, rerr := out.Target().Root(0x5000)
		require.NoError(t, rerr)
		promoted = h
		return nil
	})
	require.NoError(t, err)

	// The handle survives the child scope; it dies with the parent.
	require.True(t, promoted.Usable())
	require.Equal(t, uintptr(0x5000), promoted.Addr())
	require.NoError(t, fr.Close())
	require.False(t, promoted.Usable())
}

func TestOutputSlotConsumedOnce(t *testing.T) {
	fr, _ := newTestFrame(4)
	out, err := fr.Output()
	require.NoError(t, err)

	_, err = out.Target().Root(0x5000)
	require.NoError(t, err)
	_, err = out.Target().Root(0x6000)
	require.Error(t, err)
}

func TestUnrootedHandlesDieAtEraAdvance(t *testing.T) {
	fr, _ := newTestFrame(4)
	h, err := fr.Unrooted().Root(0x1000)
	require.NoError(t, err)
	require.True(t, h.Usable())

	fr.Target().InvalidateUnrooted()
	require.False(t, h.Usable())
	require.Panics(t, func() { h.Addr() })

	// Handles issued after the advance are usable until the next one.
	h2, err := fr.Unrooted().Root(0x2000)
	require.NoError(t, err)
	require.True(t, h2.Usable())
}

func TestUnrootedHandlesAgreeWithinOneEra(t *testing.T) {
	fr, _ := newTestFrame(4)

	// Two unrooted references to the same address with no allocation in
	// between denote the same value.
	h1, err := fr.Unrooted().Root(0x1000)
	require.NoError(t, err)
	h2, err := fr.Unrooted().Root(0x1000)
	require.NoError(t, err)
	require.True(t, h1.Eq(h2))
	require.True(t, h2.Eq(h1))
}

func TestZeroValueHandlePanics(t *testing.T) {
	var h Handle
	require.False(t, h.Usable())
	require.Panics(t, func() { h.Addr() })
}

func TestHandleWithDataSpan(t *testing.T) {
	fr, _ := newTestFrame(4)
	h, err := fr.Root(0x1000)
	require.NoError(t, err)

	ds := NewDataSpan()
	tied := h.WithData(ds)
	require.True(t, tied.Usable())

	ds.Close()
	require.False(t, tied.Usable())
	require.False(t, tied.DataUsable())
	require.Panics(t, func() { tied.Addr() })

	// The original handle is not tied to the buffer.
	require.True(t, h.Usable())
}
