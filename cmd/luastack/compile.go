package main

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"zombiezen.com/go/log"
)

func newCompileCommand(cfg *config, jsonOutput *bool) *cobra.Command {
	c := &cobra.Command{
		Use:                   "compile FILE [FILE ...]",
		Short:                 "compile one or more scripts, populating the compile cache",
		Args:                  cobra.MinimumNArgs(1),
		DisableFlagsInUseLine: true,
		SilenceErrors:         true,
		SilenceUsage:          true,
	}
	c.RunE = func(cmd *cobra.Command, args []string) error {
		return runCompile(cmd.Context(), cfg, *jsonOutput, args)
	}
	return c
}

// runCompile compiles every named file independently and concurrently:
// each file's scan→parse→compile pipeline has no shared state besides
// the cache database, matching the teacher's errgroup.SetLimit fan-out
// for independent per-item work (internal/frontend/urls.go).
func runCompile(ctx context.Context, cfg *config, jsonOutput bool, paths []string) error {
	cache, err := openCache(cfg)
	if err != nil {
		return fmt.Errorf("open cache: %v", err)
	}
	defer func() {
		if err := cache.Close(); err != nil {
			log.Errorf(ctx, "close cache: %v", err)
		}
	}()

	units := make([]*unit, len(paths))
	diags := make([]*diagnostic, len(paths))

	grp, grpCtx := errgroup.WithContext(ctx)
	grp.SetLimit(4)
	for i, path := range paths {
		grp.Go(func() error {
			u, err := compileFile(grpCtx, cache, path)
			if err != nil {
				diags[i] = newDiagnostic(path, err)
				return nil
			}
			units[i] = u
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return err
	}

	failed := 0
	for i, path := range paths {
		if d := diags[i]; d != nil {
			failed++
			if err := d.emit(jsonOutput); err != nil {
				log.Errorf(ctx, "emit diagnostic: %v", err)
			}
			continue
		}
		u := units[i]
		status := "compiled"
		if u.cached {
			status = "cached"
		}
		fmt.Printf("%s: %s (%s code units, %s locals)\n",
			path, status, humanize.Comma(int64(len(u.code))), humanize.Comma(int64(u.numLocals)))
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed to compile", failed, len(paths))
	}
	return nil
}
