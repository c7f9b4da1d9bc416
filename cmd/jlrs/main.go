package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cpodariu/jlrs"
)

var (
	configPath string
	libPath    string
	verbose    bool
)

func main() {
	root := &cobra.Command{
		Use:           "jlrs",
		Short:         "Embed a Julia runtime and evaluate code against it",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "TOML configuration file")
	root.PersistentFlags().StringVar(&libPath, "lib", "", "path to the runtime shared library")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newEvalCmd())
	root.AddCommand(newInfoCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error: %s", err))
		os.Exit(1)
	}
}

// runtimeOptions assembles options from the config file and flags. Flags
// win over the file.
func runtimeOptions() ([]jlrs.Option, error) {
	var opts []jlrs.Option
	if configPath != "" {
		cfg, err := jlrs.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		fromCfg, err := cfg.Options()
		if err != nil {
			return nil, err
		}
		opts = append(opts, fromCfg...)
	}
	if libPath != "" {
		opts = append(opts, jlrs.WithLibraryPath(libPath))
	}
	if verbose {
		logger := zerolog.New(zerolog.NewConsoleWriter()).
			Level(zerolog.DebugLevel).With().Timestamp().Logger()
		opts = append(opts, jlrs.WithLogger(logger))
	}
	return opts, nil
}
