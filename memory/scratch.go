package memory

// Scratch is per-binding staging storage for dimension/shape conversion
// when host buffers are exposed as foreign arrays. It is lazily grown,
// reused across calls, and confined to the binding's thread like
// everything else in this package; it must never be shared.
type Scratch struct {
	dims []uintptr
}

// NewScratch returns an empty scratch.
func NewScratch() *Scratch {
	return &Scratch{}
}

// Dims stages the given extents in the scratch buffer and returns the
// staged slice, valid until the next Dims call.
func (s *Scratch) Dims(extents ...int) []uintptr {
	if cap(s.dims) < len(extents) {
		s.dims = make([]uintptr, len(extents))
	} else {
		s.dims = s.dims[:len(extents)]
	}
	for i, e := range extents {
		s.dims[i] = uintptr(e)
	}
	return s.dims
}
