//go:build !(linux || darwin)

package sys

import (
	"github.com/rs/zerolog"

	"github.com/cpodariu/jlrs/errs"
)

// OpenLibrary is only available on platforms with a dlopen-style loader.
func OpenLibrary(path string, logger zerolog.Logger) (Backend, error) {
	return nil, errs.RuntimeErrorf("runtime error: libjulia loading is not supported on this platform")
}
