package jlrs

import (
	"github.com/rs/zerolog"

	"github.com/cpodariu/jlrs/memory"
	"github.com/cpodariu/jlrs/sys"
)

// DefaultLibraryPath is the shared library opened when no backend and no
// explicit path are configured.
const DefaultLibraryPath = "libjulia.so"

type options struct {
	backend     sys.Backend
	libraryPath string
	chunkSlots  int
	logger      zerolog.Logger
}

func defaultOptions() options {
	return options{
		libraryPath: DefaultLibraryPath,
		chunkSlots:  memory.DefaultChunkSlots,
		logger:      zerolog.Nop(),
	}
}

// Option configures a Runtime before startup.
type Option func(*options)

// WithBackend supplies the foreign-runtime backend directly, bypassing
// library loading. Tests use this to run against a stub backend.
func WithBackend(b sys.Backend) Option {
	return func(o *options) {
		o.backend = b
	}
}

// WithLibraryPath sets the shared library to open. Ignored when a backend
// is supplied directly.
func WithLibraryPath(path string) Option {
	return func(o *options) {
		if path != "" {
			o.libraryPath = path
		}
	}
}

// WithStackChunkSize sets the number of root slots per stack chunk.
func WithStackChunkSize(slots int) Option {
	return func(o *options) {
		if slots > 0 {
			o.chunkSlots = slots
		}
	}
}

// WithLogger sets the runtime's logger. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}
