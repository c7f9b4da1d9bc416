package convert

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

func TestBoxedValuesAreRooted(t *testing.T) {
	be := systest.New()
	fr := newTestFrame(be)
	defer fr.Close()

	v, err := BoxInt64(fr.Target(), 42)
	require.NoError(t, err)
	require.True(t, v.Usable())
	require.Equal(t, 1, fr.Used())
	require.Equal(t, "Int64", v.TypeName(fr.Target()))
}

func TestRoundTrips(t *testing.T) {
	be := systest.New()
	fr := newTestFrame(be)
	defer fr.Close()
	tgt := fr.Target()

	b, err := BoxBool(tgt, true)
	require.NoError(t, err)
	gotB, err := UnboxBool(tgt, b)
	require.NoError(t, err)
	require.True(t, gotB)

	i, err := BoxInt32(tgt, -7)
	require.NoError(t, err)
	gotI, err := UnboxInt32(tgt, i)
	require.NoError(t, err)
	require.Equal(t, int32(-7), gotI)

	u, err := BoxUint16(tgt, 65535)
	require.NoError(t, err)
	gotU, err := UnboxUint16(tgt, u)
	require.NoError(t, err)
	require.Equal(t, uint16(65535), gotU)

	f, err := BoxFloat64(tgt, 3.25)
	require.NoError(t, err)
	gotF, err := UnboxFloat64(tgt, f)
	require.NoError(t, err)
	require.Equal(t, 3.25, gotF)

	s, err := BoxString(tgt, "hello")
	require.NoError(t, err)
	gotS, err := UnboxString(tgt, s)
	require.NoError(t, err)
	require.Equal(t, "hello", gotS)
}

func TestUnboxTypeMismatch(t *testing.T) {
	be := systest.New()
	fr := newTestFrame(be)
	defer fr.Close()
	tgt := fr.Target()

	v, err := BoxFloat64(tgt, 1.0)
	require.NoError(t, err)

	_, err = UnboxInt64(tgt, v)
	require.True(t, errs.IsType(err))

	// Signedness is part of the datatype, not just the width.
	i, err := BoxInt8(tgt, 1)
	require.NoError(t, err)
	_, err = UnboxUint8(tgt, i)
	require.True(t, errs.IsType(err))
}

func TestBoxInvalidatesUnrootedHandles(t *testing.T) {
	be := systest.New()
	fr := newTestFrame(be)
	defer fr.Close()

	h, err := fr.Unrooted().Root(be.NewInt64(5))
	require.NoError(t, err)
	stale := value.Wrap(h)

	_, err = BoxInt64(fr.Target(), 1)
	require.NoError(t, err)
	require.False(t, stale.Usable())
}
