// recover.go reports recovered panics.

package rollnotify

import (
	"context"
	"fmt"
	"runtime/debug"
)

// panicError carries a recovered value and the goroutine stack captured at
// recovery time.
type panicError struct {
	value any
	stack string
}

func (e *panicError) Error() string { return formatRecovered(e.value) }

func (e *panicError) StackText() string { return e.stack }

func (e *panicError) ClassName() string { return "panic" }

// HandlePanic reports a recovered value at level critical. stack is the
// output of debug.Stack taken inside the deferred function; when it is empty
// the frames of the HandlePanic call site are used.
func (n *Notifier) HandlePanic(ctx context.Context, recovered any, stack []byte, req Request, cb Callback) error {
	if recovered == nil {
		return nil
	}
	return n.report(ctx, panicReport(recovered, stack, nil, req, callers(1)), cb)
}

// HandlePanicWithPayloadData is HandlePanic with extra item fields, applied
// the same way as in HandleErrorWithPayloadData. A "level" key overrides
// critical.
func (n *Notifier) HandlePanicWithPayloadData(ctx context.Context, recovered any, stack []byte, payload map[string]any, req Request, cb Callback) error {
	if recovered == nil {
		return nil
	}
	return n.report(ctx, panicReport(recovered, stack, payload, req, callers(1)), cb)
}

func panicReport(recovered any, stack []byte, payload map[string]any, req Request, site []uintptr) report {
	return report{
		kind:    kindError,
		op:      "handle panic",
		err:     &panicError{value: recovered, stack: string(stack)},
		level:   LevelCritical,
		req:     req,
		payload: payload,
		stack:   site,
	}
}

// Recover captures a panic, reports it, and returns the recovered value.
// It does not re-panic. It must be called directly by a deferred function:
//
//	func worker(ctx context.Context) {
//	    defer notifier.Recover(ctx)
//	    // code that might panic
//	}
func (n *Notifier) Recover(ctx context.Context) any {
	r := recover()
	if r == nil {
		return nil
	}
	_ = n.HandlePanic(ctx, r, debug.Stack(), nil, nil)
	return r
}

func formatRecovered(recovered any) string {
	if recovered == nil {
		return "<nil>"
	}
	if err, ok := recovered.(error); ok {
		return err.Error()
	}
	return fmt.Sprintf("%v", recovered)
}
