package main

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"stacklua.dev/pkg/internal/compiler"
	"stacklua.dev/pkg/internal/parser"
	"stacklua.dev/pkg/internal/vm"

	luacache "stacklua.dev/pkg/cmd/luastack/cache"
)

// unit is one file's compiled output, cache hit or not: enough to
// build a [vm.Closure] and run it against Code.
type unit struct {
	path      string
	source    []byte
	code      vm.Code
	numLocals int
	globals   []string
	cached    bool
}

// closure rebuilds the root closure for u. The root chunk is always a
// zero-parameter vararg closure entered at PC 0 (see
// [stacklua.dev/pkg/internal/compiler.Compile]).
func (u *unit) closure() *vm.Closure {
	return vm.NewClosure(0, u.numLocals, true, 0, nil)
}

// compileFile scans, parses, and compiles path, consulting cache first
// and populating it on a miss. A nil cache disables caching entirely.
func compileFile(ctx context.Context, cache *luacache.Cache, path string) (*unit, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %v", path, err)
	}

	hash := luacache.SourceHash(source)
	if cache != nil {
		if entry, ok, err := cache.Lookup(ctx, hash); err != nil {
			return nil, fmt.Errorf("%s: cache lookup: %v", path, err)
		} else if ok {
			code, err := luacache.DecodeCode(entry.Code)
			if err != nil {
				return nil, fmt.Errorf("%s: decode cached code: %v", path, err)
			}
			globals, err := luacache.DecodeGlobals(entry.Globals)
			if err != nil {
				return nil, fmt.Errorf("%s: decode cached globals: %v", path, err)
			}
			return &unit{path: path, source: source, code: code, numLocals: entry.NumLocals, globals: globals, cached: true}, nil
		}
	}

	chunk, err := parser.Parse(bytes.NewReader(source))
	if err != nil {
		return nil, fmt.Errorf("%s: %v", path, err)
	}
	code, closure, globals, err := compiler.Compile(chunk)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", path, err)
	}
	u := &unit{path: path, source: source, code: code, numLocals: closure.NumLocals, globals: globals}

	if cache != nil {
		encodedCode, err := luacache.EncodeCode(code)
		if err != nil {
			return nil, fmt.Errorf("%s: encode code for cache: %v", path, err)
		}
		encodedGlobals, err := luacache.EncodeGlobals(globals)
		if err != nil {
			return nil, fmt.Errorf("%s: encode globals for cache: %v", path, err)
		}
		entry := luacache.Entry{Code: encodedCode, Globals: encodedGlobals, NumLocals: closure.NumLocals}
		if err := cache.Store(ctx, hash, entry); err != nil {
			return nil, fmt.Errorf("%s: cache store: %v", path, err)
		}
	}
	return u, nil
}

// openCache opens the configured compile cache database. An empty
// cfg.CacheDB selects an in-memory cache scoped to this process
// ([luacache.Open]), which still dedups repeated compiles of the same
// file within one `compile`/`run` invocation but persists nothing.
func openCache(cfg *config) (*luacache.Cache, error) {
	return luacache.Open(cfg.CacheDB)
}
