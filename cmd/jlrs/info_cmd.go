package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/cpodariu/jlrs"
)

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Print information about the embedded runtime",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := runtimeOptions()
			if err != nil {
				return err
			}
			rt, err := jlrs.Start(opts...)
			if err != nil {
				return err
			}
			defer rt.Close()

			fmt.Printf("%s %s\n", color.GreenString("runtime version:"), rt.Version())
			return nil
		},
	}
}
