package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cpodariu/jlrs"
	"github.com/cpodariu/jlrs/memory"
	"github.com/cpodariu/jlrs/module"
	"github.com/cpodariu/jlrs/value"
)

func newEvalCmd() *cobra.Command {
	var fromStdin bool
	cmd := &cobra.Command{
		Use:   "eval [expression]",
		Short: "Evaluate an expression and print its result",
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := evalSource(args, fromStdin)
			if err != nil {
				return err
			}
			opts, err := runtimeOptions()
			if err != nil {
				return err
			}
			return runEval(cmd.OutOrStdout(), src, opts)
		},
	}
	cmd.Flags().BoolVar(&fromStdin, "stdin", false, "read the expression from stdin")
	return cmd
}

// runEval starts a runtime, evaluates src, and prints the result. A raised
// exception is an error return, so the scope and the runtime still close
// on the way out.
func runEval(out io.Writer, src string, opts []jlrs.Option) error {
	rt, err := jlrs.Start(opts...)
	if err != nil {
		return err
	}
	defer rt.Close()

	return rt.Scope(0, func(fr *memory.Frame) error {
		res, err := value.Eval(fr.Target(), src)
		if err != nil {
			return err
		}
		if exc, raised := res.Exception(); raised {
			text, derr := display(fr, exc)
			if derr != nil {
				return derr
			}
			return fmt.Errorf("exception raised: %s", text)
		}
		text, err := display(fr, res.Value())
		if err != nil {
			return err
		}
		fmt.Fprintln(out, text)
		return nil
	})
}

func evalSource(args []string, fromStdin bool) (string, error) {
	if fromStdin {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	if len(args) == 0 {
		return "", fmt.Errorf("no expression given (pass one, or use --stdin)")
	}
	return strings.Join(args, " "), nil
}

// display renders a value through the runtime's own string conversion, in
// a child scope so the intermediate string does not outlive the print.
func display(fr *memory.Frame, v value.Value) (string, error) {
	var text string
	err := fr.Scope(0, func(child *memory.Frame) error {
		t := child.Target()
		base, err := module.Base(t)
		if err != nil {
			return err
		}
		strFn, err := base.Function(t, "string")
		if err != nil {
			return err
		}
		res, err := strFn.Call(t, v)
		if err != nil {
			return err
		}
		str, err := res.Unwrap(t)
		if err != nil {
			return err
		}
		text = child.Backend().UnboxString(str.Addr())
		return nil
	})
	return text, err
}
