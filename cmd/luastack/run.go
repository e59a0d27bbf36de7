package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"zombiezen.com/go/log"

	"stacklua.dev/pkg/internal/vm"
)

func newRunCommand(cfg *config, jsonOutput *bool) *cobra.Command {
	debugTrace := new(bool)
	c := &cobra.Command{
		Use:                   "run FILE",
		Short:                 "compile (or load from cache) and execute a script",
		Args:                  cobra.ExactArgs(1),
		DisableFlagsInUseLine: true,
		SilenceErrors:         true,
		SilenceUsage:          true,
	}
	c.Flags().BoolVar(debugTrace, "trace", false, "log VM fault traces at debug level")
	c.RunE = func(cmd *cobra.Command, args []string) error {
		return runRun(cmd.Context(), cfg, *jsonOutput, *debugTrace, args[0])
	}
	return c
}

func runRun(ctx context.Context, cfg *config, jsonOutput, debugTrace bool, path string) error {
	cache, err := openCache(cfg)
	if err != nil {
		return fmt.Errorf("open cache: %v", err)
	}
	defer func() {
		if err := cache.Close(); err != nil {
			log.Errorf(ctx, "close cache: %v", err)
		}
	}()

	u, err := compileFile(ctx, cache, path)
	if err != nil {
		d := newDiagnostic(path, err)
		if emitErr := d.emit(jsonOutput); emitErr != nil {
			log.Errorf(ctx, "emit diagnostic: %v", emitErr)
		}
		return errors.New("compilation failed")
	}

	machine := vm.New(u.code)
	machine.SetTraceLogger(debugTrace)
	if cfg.InstructionBudget > 0 {
		machine.SetInstructionBudget(cfg.InstructionBudget)
	}
	result, err := machine.Run(u.closure(), nil)
	if err != nil {
		d := newDiagnostic(path, err)
		if emitErr := d.emit(jsonOutput); emitErr != nil {
			log.Errorf(ctx, "emit diagnostic: %v", emitErr)
		}
		return errors.New("run failed")
	}

	fmt.Println(result.GoString())
	return nil
}
