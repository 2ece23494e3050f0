package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"wrun/internal/rtlog"
	"wrun/internal/validate"
	"wrun/internal/wasm"
	"wrun/internal/wasmbin"
	"wrun/internal/wasmtext"
)

func newValidateCommand() *cobra.Command {
	var warn bool
	var features []string

	cmd := &cobra.Command{
		Use:   "validate MODULE",
		Short: "Check that a module parses, resolves and type-checks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return doValidate(cmd, args[0], warn, features)
		},
	}

	cmd.Flags().BoolVar(&warn, "warn", false, "report validation failures as warnings on stderr instead of failing")
	cmd.Flags().StringArrayVar(&features, "feature", nil, "NAME=BOOL, toggles one optional proposal, repeatable")

	return cmd
}

func doValidate(cmd *cobra.Command, path string, warn bool, featureFlags []string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	featureSet, err := applyFeatureFlags(wasm.Features20220419, featureFlags)
	if err != nil {
		return err
	}

	m, err := parseModule(src, featureSet)
	if err != nil {
		return err
	}
	m.ID = wasm.NewID(src)

	logger := rtlog.New(cmd.ErrOrStderr(), logrus.WarnLevel)
	mode := validate.ModeStrict
	if warn {
		mode = validate.ModeWarn
	}

	if err := validate.Module(m, featureSet, mode, logger); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), "ok")
	return nil
}

func parseModule(src []byte, features wasm.Features) (*wasm.Module, error) {
	if isBinarySource(src) {
		return wasmbin.Decode(bytes.NewReader(src), features)
	}
	um, err := wasmtext.Parse(string(src))
	if err != nil {
		return nil, err
	}
	return wasmtext.Resolve(um)
}

func isBinarySource(src []byte) bool {
	return len(src) >= 4 && src[0] == 0x00 && src[1] == 'a' && src[2] == 's' && src[3] == 'm'
}
