// Package cache implements an on-disk compiled-code cache for the
// luastack CLI, keyed by a hash of the source text, modeled on luac's
// notion of precompiled chunks: a script that hasn't changed since its
// last `run` skips scanning, parsing, and compiling entirely.
//
// Grounded on the teacher's zombiezen.com/go/sqlite +
// sqlitemigration.Pool usage (internal/frontend/eval.go's cachePool)
// for the storage layer, adapted from an import-dedup cache keyed by
// content address to one keyed by source hash.
package cache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dsnet/compress/bzip2"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitemigration"
	"zombiezen.com/go/sqlite/sqlitex"
	"zombiezen.com/go/xcontext"
)

var schema = sqlitemigration.Schema{
	Migrations: []string{
		`CREATE TABLE compiled (
			source_hash TEXT PRIMARY KEY,
			code BLOB NOT NULL,
			globals BLOB NOT NULL,
			num_locals INTEGER NOT NULL
		);`,
	},
}

// Cache is an open handle to the compile cache database.
type Cache struct {
	pool *sqlitemigration.Pool
}

// Open opens (creating if necessary) the compile cache database at
// path. An empty path opens an in-memory cache, which is useful for
// tests and for a CLI invocation with caching disabled entirely by way
// of never persisting anything beyond the process's lifetime.
func Open(path string) (*Cache, error) {
	if path == "" {
		return &Cache{pool: sqlitemigration.NewPool("luastack-cache", schema, sqlitemigration.Options{
			Flags:    sqlite.OpenReadWrite | sqlite.OpenMemory,
			PoolSize: 1,
		})}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o777); err != nil {
		return nil, fmt.Errorf("luastack cache: %v", err)
	}
	return &Cache{pool: sqlitemigration.NewPool(path, schema, sqlitemigration.Options{
		Flags:    sqlite.OpenCreate | sqlite.OpenReadWrite,
		PoolSize: 1,
	})}, nil
}

// Close releases the cache's database connections.
func (c *Cache) Close() error {
	return c.pool.Close()
}

// SourceHash returns the cache key for the given source text.
func SourceHash(source []byte) string {
	sum := sha256.Sum256(source)
	return hex.EncodeToString(sum[:])
}

// Entry is a cache hit's compressed payload, ready to be decoded back
// into a [stacklua.dev/pkg/internal/vm.Code] and its global name table
// by [Decode].
type Entry struct {
	Code      []byte
	Globals   []byte
	NumLocals int
}

// Lookup returns the cached entry for hash, or ok == false on a miss.
func (c *Cache) Lookup(ctx context.Context, hash string) (entry Entry, ok bool, err error) {
	conn, err := c.pool.Get(ctx)
	if err != nil {
		return Entry{}, false, err
	}
	defer c.pool.Put(conn)

	err = sqlitex.ExecuteTransient(conn,
		`SELECT code, globals, num_locals FROM compiled WHERE source_hash = ?;`,
		&sqlitex.ExecOptions{
			Args: []any{hash},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				code, decErr := decompress(columnBytes(stmt, "code"))
				if decErr != nil {
					return decErr
				}
				globals, decErr := decompress(columnBytes(stmt, "globals"))
				if decErr != nil {
					return decErr
				}
				entry = Entry{
					Code:      code,
					Globals:   globals,
					NumLocals: int(stmt.GetInt64("num_locals")),
				}
				ok = true
				return nil
			},
		})
	if err != nil {
		return Entry{}, false, fmt.Errorf("luastack cache: lookup %s: %v", hash, err)
	}
	return entry, ok, nil
}

// Store saves a compiled chunk under hash, replacing any prior entry.
// The write runs against a context detached from ctx's cancellation
// (via [xcontext.Detach]) so a `run` invocation that gets canceled
// mid-execution still leaves a usable cache entry behind rather than
// an aborted write.
func (c *Cache) Store(ctx context.Context, hash string, entry Entry) error {
	writeCtx := xcontext.Detach(ctx)
	conn, err := c.pool.Get(writeCtx)
	if err != nil {
		return err
	}
	defer c.pool.Put(conn)

	compressedCode, err := compress(entry.Code)
	if err != nil {
		return err
	}
	compressedGlobals, err := compress(entry.Globals)
	if err != nil {
		return err
	}
	err = sqlitex.ExecuteTransient(conn,
		`INSERT INTO compiled (source_hash, code, globals, num_locals) VALUES (?, ?, ?, ?)
		 ON CONFLICT (source_hash) DO UPDATE SET
			code = excluded.code, globals = excluded.globals, num_locals = excluded.num_locals;`,
		&sqlitex.ExecOptions{
			Args: []any{hash, compressedCode, compressedGlobals, int64(entry.NumLocals)},
		})
	if err != nil {
		return fmt.Errorf("luastack cache: store %s: %v", hash, err)
	}
	return nil
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := bzip2.NewWriter(&buf, nil)
	if err != nil {
		return nil, fmt.Errorf("luastack cache: compress: %v", err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, fmt.Errorf("luastack cache: compress: %v", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("luastack cache: compress: %v", err)
	}
	return buf.Bytes(), nil
}

func columnBytes(stmt *sqlite.Stmt, col string) []byte {
	buf := make([]byte, stmt.GetLen(col))
	stmt.GetBytes(col, buf)
	return buf
}

func decompress(compressed []byte) ([]byte, error) {
	zr, err := bzip2.NewReader(bytes.NewReader(compressed), nil)
	if err != nil {
		return nil, fmt.Errorf("luastack cache: decompress: %v", err)
	}
	defer zr.Close()
	data, err := io.ReadAll(zr)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("luastack cache: decompress: %v", err)
	}
	return data, nil
}
