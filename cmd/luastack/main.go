// Command luastack compiles and runs stacklua source files: scan,
// parse, compile to VM bytecode, and execute, with an on-disk compile
// cache keyed by source hash so an unchanged script skips straight to
// execution.
package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"zombiezen.com/go/log"
)

func main() {
	rootCommand := &cobra.Command{
		Use:           "luastack",
		Short:         "stacklua compiler and runner",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cfg := defaultConfig()
	configPath := rootCommand.PersistentFlags().String("config", "luastack.jsonc", "`path` to JSONC config file")
	rootCommand.PersistentFlags().StringVar(&cfg.CacheDB, "cache", cfg.CacheDB, "`path` to compile cache database (empty disables persistence)")
	rootCommand.PersistentFlags().IntVar(&cfg.InstructionBudget, "instruction-budget", cfg.InstructionBudget, "abort a run after executing this many instructions (0 = unlimited)")
	showDebug := rootCommand.PersistentFlags().Bool("debug", false, "show debugging output")
	jsonOutput := rootCommand.PersistentFlags().Bool("json", false, "emit diagnostics as JSON")

	rootCommand.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		initLogging(*showDebug)
		flagCacheDB, flagBudget := cfg.CacheDB, cfg.InstructionBudget
		if err := cfg.mergeFile(*configPath); err != nil {
			return err
		}
		if rootCommand.PersistentFlags().Lookup("cache").Changed {
			cfg.CacheDB = flagCacheDB
		}
		if rootCommand.PersistentFlags().Lookup("instruction-budget").Changed {
			cfg.InstructionBudget = flagBudget
		}
		if err := cfg.validate(); err != nil {
			return err
		}
		cfg.apply()
		return nil
	}

	rootCommand.AddCommand(
		newCompileCommand(cfg, jsonOutput),
		newRunCommand(cfg, jsonOutput),
		newDumpCommand(cfg),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCommand.ExecuteContext(ctx)
	cancel()
	if err != nil {
		initLogging(*showDebug)
		log.Errorf(context.Background(), "%v", err)
		os.Exit(1)
	}
}

var initLogOnce sync.Once

func initLogging(showDebug bool) {
	initLogOnce.Do(func() {
		minLogLevel := log.Info
		if showDebug {
			minLogLevel = log.Debug
		}
		log.SetDefault(&log.LevelFilter{
			Min:    minLogLevel,
			Output: log.New(os.Stderr, "luastack: ", log.StdFlags, nil),
		})
	})
}
