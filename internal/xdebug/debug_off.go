//go:build !debug

package xdebug

// Enabled is false in release builds: Assert, Log and GoID become free.
const Enabled = false

// Assert is a no-op in release builds.
func Assert(cond bool, format string, args ...any) {}

// Log is a no-op in release builds.
func Log(format string, args ...any) {}

// GoID always returns 0 in release builds; callers must not rely on it for
// correctness (spec.md §5 forbids depending on thread-local primitives for
// correctness).
func GoID() int64 { return 0 }
