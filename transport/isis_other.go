//go:build !linux

package transport

import "fmt"

// NewISISLink is unavailable outside Linux: AF_PACKET raw sockets are
// a Linux-specific facility, and IS-IS's wire transport is out of
// scope on any other platform.
func NewISISLink(ifaceName string) (ISISLink, error) {
	return nil, fmt.Errorf("transport: raw 802.3 sockets are not supported on this platform")
}
