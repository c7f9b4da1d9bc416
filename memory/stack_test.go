package memory

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRootStackReserveZeroInitializes(t *testing.T) {
	s := NewRootStack(4)
	base := s.ReserveSlots(6)
	require.Equal(t, 0, base)
	require.Equal(t, 6, s.Len())
	for i := 0; i < 6; i++ {
		require.Zero(t, s.Slot(i))
	}
}

func TestRootStackGrowsAcrossChunks(t *testing.T) {
	s := NewRootStack(4)
	s.ReserveSlots(3)
	s.SetSlot(2, 0xabc)

	// Crosses the first chunk boundary; existing slots keep their values.
	base := s.ReserveSlots(4)
	require.Equal(t, 3, base)
	require.Equal(t, 7, s.Len())
	require.Equal(t, uintptr(0xabc), s.Slot(2))
	for i := 3; i < 7; i++ {
		require.Zero(t, s.Slot(i))
	}
}

func TestRootStackReleaseZeroesSlots(t *testing.T) {
	s := NewRootStack(4)
	s.ReserveSlots(2)
	base := s.ReserveSlots(2)
	s.SetSlot(base, 0x111)
	s.SetSlot(base+1, 0x222)

	s.ReleaseSlots(base)
	require.Equal(t, 2, s.Len())

	// A fresh reservation over the released range sees zeroes, not the
	// addresses written before the release.
	again := s.ReserveSlots(2)
	require.Equal(t, base, again)
	require.Zero(t, s.Slot(again))
	require.Zero(t, s.Slot(again+1))
}

func TestRootStackScanSkipsEmptySlots(t *testing.T) {
	s := NewRootStack(4)
	s.ReserveSlots(5)
	s.SetSlot(1, 0x10)
	s.SetSlot(3, 0x30)

	var seen []uintptr
	s.Scan(func(addr uintptr) bool {
		seen = append(seen, addr)
		return true
	})
	require.Equal(t, []uintptr{0x10, 0x30}, seen)
}

func TestRootStackScanStopsWhenYieldReturnsFalse(t *testing.T) {
	s := NewRootStack(4)
	s.ReserveSlots(3)
	s.SetSlot(0, 0x1)
	s.SetSlot(1, 0x2)
	s.SetSlot(2, 0x3)

	var seen []uintptr
	s.Scan(func(addr uintptr) bool {
		seen = append(seen, addr)
		return len(seen) < 2
	})
	require.Equal(t, []uintptr{0x1, 0x2}, seen)
}
