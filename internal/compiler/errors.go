package compiler

import (
	"fmt"

	"stacklua.dev/pkg/internal/token"
)

// Error reports a static problem the compiler found in an otherwise
// well-parsed AST: an unresolved goto, a duplicate label, break outside
// a loop, a malformed number literal, or a node it does not handle. It
// is distinct from [*vm.VMError],
// which is only ever raised once code is running.
type Error struct {
	Position token.Position
	Message  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v: %s", e.Position, e.Message)
}
