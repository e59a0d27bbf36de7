package main

import (
	"errors"
	"fmt"
	"os"

	jsonv2 "github.com/go-json-experiment/json"
	"github.com/google/uuid"
	"golang.org/x/term"

	"stacklua.dev/pkg/internal/parser"
	"stacklua.dev/pkg/internal/scanner"
	"stacklua.dev/pkg/internal/vm"
)

// diagnostic is a uniform report of a failed scan, parse, compile, or
// run, carrying a correlation ID so multiple diagnostics logged during
// one batch `compile`/`run` invocation can be told apart (the same
// purpose [vm.Trace.ID] serves for a VMError specifically).
type diagnostic struct {
	ID      string `json:"id"`
	Path    string `json:"path"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
	Trace   string `json:"trace,omitempty"`
}

func newDiagnostic(path string, err error) *diagnostic {
	d := &diagnostic{ID: uuid.NewString(), Path: path, Message: err.Error()}
	var perr *parser.Error
	var serr *scanner.Error
	var verr *vm.VMError
	switch {
	case errors.As(err, &perr):
		d.Line, d.Column = perr.Token.Position.Line, perr.Token.Position.Column
	case errors.As(err, &serr):
		d.Line, d.Column = serr.Position.Line, serr.Position.Column
	case errors.As(err, &verr):
		d.Trace = verr.Trace.String()
	}
	return d
}

// emit writes d to stderr, as a single JSON object (for CI consumption,
// per SPEC_FULL.md §2) or as a colorized "path:line:col: message" line
// when stderr is an interactive terminal.
func (d *diagnostic) emit(jsonOutput bool) error {
	if jsonOutput {
		data, err := jsonv2.Marshal(d)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(os.Stderr, string(data))
		return err
	}

	prefix, reset := "", ""
	if isInteractive(os.Stderr) {
		prefix, reset = "\x1b[31m", "\x1b[0m"
	}
	if d.Line > 0 {
		_, err := fmt.Fprintf(os.Stderr, "%s%s:%d:%d: %s%s\n", prefix, d.Path, d.Line, d.Column, d.Message, reset)
		return err
	}
	_, err := fmt.Fprintf(os.Stderr, "%s%s: %s%s\n", prefix, d.Path, d.Message, reset)
	return err
}

// isInteractive reports whether f is a terminal worth colorizing
// output for, the same golang.org/x/term.IsTerminal check the teacher
// uses to decide output formatting (cmd/zb/store.go).
func isInteractive(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
