// Package memory implements the rooting discipline for foreign heap
// references: a root stack the foreign collector scans, frames that own
// contiguous slot ranges with strict LIFO nesting, and targets that decide
// where a newly produced reference is rooted, if at all.
//
// Everything in this package is confined to the single host thread that
// owns the runtime binding. Handles are freely copyable, but their use is
// gated by validity records checked at access time; Go substitutes these
// runtime checks for a compile-time ownership model.
package memory

const (
	// DefaultChunkSlots is the number of root slots allocated per storage
	// chunk. Chunks are never relocated once allocated, so a slot address
	// published to the collector stays stable across growth.
	DefaultChunkSlots = 64

	// DefaultFrameSlots is the slot capacity reserved for a frame opened
	// without an explicit capacity hint.
	DefaultFrameSlots = 8
)

// span is a shared validity record. Handles carry pointers to spans; a
// span transitions to closed exactly once, after which every handle
// referencing it is permanently unusable.
type span struct {
	open bool
}

// RootStack is the growable stack of slots the foreign collector treats as
// reachability roots. Slots are zero-initialized on reservation so the
// collector never observes garbage in the window between reserving a slot
// and writing a live address into it.
type RootStack struct {
	chunkSize int
	chunks    [][]uintptr
	top       int
	era       *span
}

// NewRootStack returns an empty root stack. chunkSize <= 0 selects
// DefaultChunkSlots.
func NewRootStack(chunkSize int) *RootStack {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSlots
	}
	return &RootStack{
		chunkSize: chunkSize,
		era:       &span{open: true},
	}
}

// ReserveSlots grows the stack by n zero-initialized slots and returns the
// base index of the new range. Growth allocates whole chunks; running out
// of memory here is fatal, since the process can no longer root values.
func (s *RootStack) ReserveSlots(n int) int {
	base := s.top
	need := base + n
	for need > len(s.chunks)*s.chunkSize {
		s.chunks = append(s.chunks, make([]uintptr, s.chunkSize))
	}
	for i := base; i < need; i++ {
		s.SetSlot(i, 0)
	}
	s.top = need
	return base
}

// ReleaseSlots truncates the stack back to base. Callers must release in
// exact reverse order of reservation; Frame enforces that. Released slots
// are zeroed so a later reservation never exposes residual addresses.
func (s *RootStack) ReleaseSlots(base int) {
	for i := base; i < s.top; i++ {
		s.SetSlot(i, 0)
	}
	s.top = base
}

// SetSlot writes addr into slot i.
func (s *RootStack) SetSlot(i int, addr uintptr) {
	s.chunks[i/s.chunkSize][i%s.chunkSize] = addr
}

// Slot reads slot i.
func (s *RootStack) Slot(i int) uintptr {
	return s.chunks[i/s.chunkSize][i%s.chunkSize]
}

// Len returns the current number of reserved slots.
func (s *RootStack) Len() int {
	return s.top
}

// Scan yields every non-zero slot in the reserved range. The foreign
// collector walks this as part of its reachability scan.
func (s *RootStack) Scan(yield func(addr uintptr) bool) {
	for i := 0; i < s.top; i++ {
		if addr := s.Slot(i); addr != 0 {
			if !yield(addr) {
				return
			}
		}
	}
}

// advanceEra invalidates every unrooted handle issued so far. Called
// before any operation that can trigger a foreign collection.
func (s *RootStack) advanceEra() {
	s.era.open = false
	s.era = &span{open: true}
}
