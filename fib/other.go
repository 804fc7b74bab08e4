//go:build !linux

package fib

import (
	"go.uber.org/zap"

	"github.com/zeburouter/zeburouter/rib"
)

func newPlatform(log *zap.Logger) rib.FIB {
	if log != nil {
		log.Info("fib: no platform-specific backend on this GOOS, routes are recorded but not installed")
	}
	return &rib.NoopFIB{}
}
