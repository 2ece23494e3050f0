// Command wasmrt is the command-line front end for wrun: run, compile, and validate WebAssembly modules
// without embedding anything in a host program.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"wrun/internal/wasmerr"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run builds and executes the root command, returning the process exit code. Separated from main so tests can
// drive it without an os.Exit.
func run(args []string, stdout, stderr *os.File) int {
	root := newRootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	if err != nil {
		root.PrintErrln("wasmrt:", err)
	}
	return exitCode(err)
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "wasmrt",
		Short:         "A standalone WebAssembly runtime and toolchain",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newRunCommand(),
		newCompileCommand(),
		newValidateCommand(),
		newVersionCommand(),
	)
	return root
}

// exitCode maps err to the process exit code taxonomy: 0 on success, the wasmerr.Kind's own code for a
// pipeline error (2 parse, 3 resolve, 4 validate, 5 link, 6 trap), 1 for anything else (bad flags, missing
// file, host/CLI usage errors).
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	if werr, ok := wasmerr.As(err); ok {
		return werr.Kind().ExitCode()
	}
	return 1
}
