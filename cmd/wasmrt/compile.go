package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"wrun"
)

func newCompileCommand() *cobra.Command {
	var disassemble bool

	cmd := &cobra.Command{
		Use:   "compile MODULE",
		Short: "Parse, resolve and validate a module without instantiating it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return doCompile(cmd, args[0], disassemble)
		},
	}

	cmd.Flags().BoolVar(&disassemble, "disassemble", false, "print each function's emitted bytecode as mnemonic text")

	return cmd
}

func doCompile(cmd *cobra.Command, path string, disassemble bool) error {
	ctx := context.Background()

	src, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	r := wrun.NewRuntime(wrun.NewRuntimeConfig())
	defer r.Close(ctx)

	compiled, err := r.CompileModule(ctx, src)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%d function(s), %d byte(s) of bytecode\n", compiled.FunctionCount(), compiled.BytecodeSize())
	if disassemble {
		fmt.Fprint(out, compiled.Disassemble())
	}
	return nil
}
