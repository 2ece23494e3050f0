package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"wrun"
	"wrun/internal/rtlog"
	"wrun/internal/wasm"
)

func newRunCommand() *cobra.Command {
	var invoke string
	var configPath string
	var features []string

	cmd := &cobra.Command{
		Use:   "run MODULE [ARG...]",
		Short: "Instantiate a module and optionally invoke one of its exported functions",
		Long: "Instantiate MODULE. With --invoke NAME, also call the exported function NAME, passing any\n" +
			"trailing ARGs as its parameters (TYPE:VALUE, e.g. i64:42; a bare number defaults to i32) and\n" +
			"printing its results.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return doRun(cmd, args[0], invoke, args[1:], configPath, features)
		},
	}

	cmd.Flags().StringVar(&invoke, "invoke", "", "exported function to call after instantiation")
	cmd.Flags().StringVar(&configPath, "config", "", "path to a runtime configuration file")
	cmd.Flags().StringArrayVar(&features, "feature", nil, "NAME=BOOL, toggles one optional proposal, repeatable")

	return cmd
}

func doRun(cmd *cobra.Command, path string, invoke string, callArgs []string, configPath string, featureFlags []string) error {
	ctx := context.Background()

	runtimeConfig := wrun.NewRuntimeConfig()
	featureSet := wasm.Features20220419
	callStackCeiling := 0
	logLevel := logrus.WarnLevel

	if configPath != "" {
		fc, err := loadFileConfig(configPath)
		if err != nil {
			return err
		}
		featureSet, logLevel, err = applyFileConfig(featureSet, fc)
		if err != nil {
			return err
		}
		callStackCeiling = fc.CallStackCeiling
	}

	featureSet, err := applyFeatureFlags(featureSet, featureFlags)
	if err != nil {
		return err
	}

	runtimeConfig = runtimeConfig.
		WithFeature(^wasm.Features(0), false).
		WithFeature(featureSet, true).
		WithLogger(rtlog.New(cmd.ErrOrStderr(), logLevel))
	if callStackCeiling > 0 {
		runtimeConfig = runtimeConfig.WithCallStackCeiling(callStackCeiling)
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	r := wrun.NewRuntime(runtimeConfig)
	defer r.Close(ctx)

	compiled, err := r.CompileModule(ctx, src)
	if err != nil {
		return err
	}

	mod, err := r.InstantiateModule(ctx, compiled, wrun.NewModuleConfig())
	if err != nil {
		return err
	}
	defer mod.Close(ctx)

	if invoke == "" {
		return nil
	}

	fn := mod.ExportedFunction(invoke)
	if fn == nil {
		return fmt.Errorf("no exported function %q in %s", invoke, path)
	}

	params, err := parseInvokeArgs(callArgs)
	if err != nil {
		return err
	}

	results, err := fn.Call(ctx, params...)
	if err != nil {
		return err
	}

	resultTypes := fn.ResultTypes()
	rendered := make([]string, len(results))
	for i, v := range results {
		rendered[i] = formatResult(resultTypes[i], v)
	}
	fmt.Fprintln(cmd.OutOrStdout(), strings.Join(rendered, " "))
	return nil
}
