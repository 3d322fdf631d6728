// Package xdebug provides debug-only assertions and diagnostics for the
// allocator. Everything here is a no-op unless the binary is built with the
// "debug" build tag; release builds never pay for it and never depend on it
// for correctness (spec.md §7, §5).
package xdebug
