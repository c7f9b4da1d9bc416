package jlrs

import (
	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"

	"github.com/cpodariu/jlrs/errs"
)

// Config is the TOML-loadable runtime configuration. Zero values defer to
// the built-in defaults.
type Config struct {
	// LibraryPath is the foreign runtime shared library to open.
	LibraryPath string `toml:"library_path"`

	// StackChunkSize is the number of root slots per stack chunk.
	StackChunkSize int `toml:"stack_chunk_size"`

	// LogLevel is a zerolog level name ("debug", "info", ...). Empty
	// disables logging.
	LogLevel string `toml:"log_level"`
}

// LoadConfig reads a TOML configuration file.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, errs.NewRuntimeError(err)
	}
	return &cfg, nil
}

// Options converts the configuration into runtime options.
func (c *Config) Options() ([]Option, error) {
	var opts []Option
	if c.LibraryPath != "" {
		opts = append(opts, WithLibraryPath(c.LibraryPath))
	}
	if c.StackChunkSize > 0 {
		opts = append(opts, WithStackChunkSize(c.StackChunkSize))
	}
	if c.LogLevel != "" {
		level, err := zerolog.ParseLevel(c.LogLevel)
		if err != nil {
			return nil, errs.NewRuntimeError(err)
		}
		logger := zerolog.New(zerolog.NewConsoleWriter()).Level(level).With().Timestamp().Logger()
		opts = append(opts, WithLogger(logger))
	}
	return opts, nil
}
