// Package fib supplies the platform-specific adapters behind the rib
// package's narrow FIB boundary (spec.md §4.6/§6): "the implementation
// is platform-specific and not part of this spec; the contract is
// that each call completes or fails, and the caller retries on
// failure during the next resolution pass."
package fib

import (
	"go.uber.org/zap"

	"github.com/zeburouter/zeburouter/rib"
)

// New returns the FIB adapter appropriate for the running platform:
// netlink-backed on Linux, a recording no-op everywhere else. Callers
// that always want the no-op (tests, non-privileged dry runs) should
// use rib.NoopFIB directly instead.
func New(log *zap.Logger) rib.FIB {
	return newPlatform(log)
}
