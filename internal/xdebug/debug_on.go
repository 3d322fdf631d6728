//go:build debug

package xdebug

import (
	"fmt"
	"os"

	"github.com/timandy/routine"
)

// Enabled is true when the allocator is built with the "debug" tag. It gates
// the range checks and bitmap/free-list consistency assertions described in
// spec.md §7.
const Enabled = true

// Assert panics if cond is false. Only compiled in when Enabled.
func Assert(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Errorf("allocator: internal assertion failed: "+format, args...))
	}
}

// Log prints a diagnostic line tagged with the calling goroutine's id.
func Log(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "[allocator g%04d] "+format+"\n",
		append([]any{routine.Goid()}, args...)...)
}

// GoID returns the current goroutine's id, used to enforce the
// single-threaded-per-instance contract in debug builds (spec.md §5).
func GoID() int64 {
	return routine.Goid()
}
