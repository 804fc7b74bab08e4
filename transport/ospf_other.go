//go:build !linux

package transport

import "fmt"

// NewOSPFLink is unavailable outside Linux in this build: raw
// IP-protocol sockets need platform-specific privilege handling this
// implementation only covers for Linux, matching the fib package's
// netlink adapter split.
func NewOSPFLink(ifaceName string) (OSPFLink, error) {
	return nil, fmt.Errorf("transport: raw OSPF sockets are not supported on this platform")
}
