package vm

import (
	"context"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"zombiezen.com/go/log"
)

// newTrace snapshots the VM's current stack pointers, stamping the
// trace with a fresh correlation ID so multiple fatal traces collected
// during a batch `compile`/`run` of many files can be told apart.
func (vm *VM) newTrace() Trace {
	t := Trace{ID: uuid.NewString(), PC: vm.code.PC()}
	if f, err := vm.calls.Top(); err == nil {
		t.FrameBase = f.FrameBase
	}
	t.OperandStackTop = vm.operands.Top()
	t.CallDepth = vm.calls.Depth()
	if vm.traceLogger {
		log.Debugf(context.Background(), "vm trace %s: %s executed %s instructions",
			t.ID, t, humanize.Comma(int64(vm.instructionsExecuted)))
	}
	return t
}

// SetTraceLogger enables per-fault debug logging of VM traces through
// the standard zombiezen.com/go/log sink. By default the VM logs
// nothing; callers needing to correlate a batch run's VMErrors should
// call this once before Run.
func (vm *VM) SetTraceLogger(enabled bool) {
	vm.traceLogger = enabled
}
