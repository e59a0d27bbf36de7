package main

import (
	"fmt"
	"os"
	"path/filepath"

	jsonv2 "github.com/go-json-experiment/json"
	"github.com/tailscale/hujson"

	"stacklua.dev/pkg/internal/vm"
)

// config holds the non-semantic VM knobs a luastack.jsonc file can
// tune, per SPEC_FULL.md §1.3. Defaults match spec.md's literal
// constants.
type config struct {
	// ChunkSize is the initial capacity the VM's operand and call
	// stacks are allocated with (vm.ChunkSize).
	ChunkSize int `json:"chunkSize"`

	// MaxConstants must equal vm.MaxConst: a frame's constant pool is a
	// fixed-size array ([vm.MaxConst]Value), not a runtime parameter,
	// so this field exists to let a config file assert the build it
	// targets rather than to actually resize anything.
	MaxConstants int `json:"maxConstants"`

	// InstructionBudget caps instructions executed per run, 0 meaning
	// unlimited (vm.VM.SetInstructionBudget) — the external-timeout
	// mechanism spec.md §5 calls for.
	InstructionBudget int `json:"instructionBudget"`

	// CacheDB is the path to the compile cache database. Empty selects
	// an in-memory cache that doesn't outlive the process.
	CacheDB string `json:"cacheDB"`
}

func defaultConfig() *config {
	return &config{
		ChunkSize:    vm.ChunkSize,
		MaxConstants: vm.MaxConst,
		CacheDB:      defaultCacheDB(),
	}
}

func defaultCacheDB() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "luastack", "cache.db")
}

// mergeFile reads a JSONC config file at path, if it exists, merging
// its fields over c. A missing file is not an error, matching the
// teacher's globalConfig.mergeFiles tolerance for an absent, optional
// config path.
func (c *config) mergeFile(path string) error {
	huJSONData, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	jsonData, err := hujson.Standardize(huJSONData)
	if err != nil {
		return fmt.Errorf("read %s: %v", path, err)
	}
	if err := jsonv2.Unmarshal(jsonData, c, jsonv2.RejectUnknownMembers(false)); err != nil {
		return fmt.Errorf("read %s: %v", path, err)
	}
	return nil
}

// validate checks fields that can't simply be defaulted away.
func (c *config) validate() error {
	if c.MaxConstants != vm.MaxConst {
		return fmt.Errorf("maxConstants %d does not match the compiled-in limit %d (frame constant pools are a fixed-size array, not a runtime parameter)", c.MaxConstants, vm.MaxConst)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunkSize must be positive, got %d", c.ChunkSize)
	}
	if c.InstructionBudget < 0 {
		return fmt.Errorf("instructionBudget must not be negative, got %d", c.InstructionBudget)
	}
	return nil
}

// apply pushes the config's VM-wide knobs into package vm's global
// tuning points. Must run before any [vm.New] call.
func (c *config) apply() {
	vm.ChunkSize = c.ChunkSize
}
