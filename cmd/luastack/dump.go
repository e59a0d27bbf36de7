package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"zombiezen.com/go/log"
)

// newDumpCommand builds the `dump` subcommand: an instruction listing
// in the spirit of the teacher's `luac -l` (cmd/zb/luac.go), adapted
// from a Prototype tree's nested per-function listing to this VM's
// single flat Code stream (nested function bodies are inline, skipped
// over at runtime by a Branch rather than split into a separate
// Prototype).
func newDumpCommand(cfg *config) *cobra.Command {
	full := new(bool)
	c := &cobra.Command{
		Use:                   "dump FILE",
		Short:                 "print a script's compiled bytecode listing",
		Args:                  cobra.ExactArgs(1),
		Hidden:                true,
		DisableFlagsInUseLine: true,
		SilenceErrors:         true,
		SilenceUsage:          true,
	}
	c.Flags().BoolVarP(full, "full", "l", false, "also list the global name table")
	c.RunE = func(cmd *cobra.Command, args []string) error {
		return runDump(cmd.Context(), cfg, args[0], *full)
	}
	return c
}

func runDump(ctx context.Context, cfg *config, path string, full bool) error {
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
		if emitErr := d.emit(false); emitErr != nil {
			log.Errorf(ctx, "emit diagnostic: %v", emitErr)
		}
		return fmt.Errorf("dump failed")
	}

	fmt.Printf("%s (%d units, %d locals)\n", path, len(u.code), u.numLocals)
	for pc, unit := range u.code {
		fmt.Printf("\t%d\t%s\n", pc, unit.String())
	}

	if full {
		fmt.Printf("globals (%d)\n", len(u.globals))
		for i, name := range u.globals {
			fmt.Printf("\t%d\t%s\n", i, name)
		}
	}
	return nil
}
