// Package transport is the raw-socket boundary cmd uses to give
// isis.Interface and ospf.Interface their send/receive byte pipes:
// IS-IS rides directly on 802.3 frames (no IP layer), OSPF rides on IP
// protocol 89. Both need privileges (CAP_NET_RAW) the same way the
// fib package's netlink adapter needs CAP_NET_ADMIN; like fib, the
// platform-specific code lives behind a build tag and a portable
// fallback stub covers every other GOOS.
package transport

import "net"

// ISISLink is a bound 802.3 link carrying IS-IS PDUs to and from one
// interface.
type ISISLink interface {
	// Send transmits payload (an IS-IS PDU starting at the IRPD byte)
	// framed to dst, the destination multicast or unicast MAC.
	Send(payload []byte, dst [6]byte) error
	// Recv blocks for the next inbound frame, returning the PDU body
	// (with the 802.3/LLC header stripped) and the sender's MAC.
	Recv() (payload []byte, src [6]byte, err error)
	Close() error
}

// OSPFLink is a bound raw-IP socket carrying OSPFv2 packets (IP
// protocol 89) to and from one interface.
type OSPFLink interface {
	// Send transmits payload (a full OSPF packet including its 24-byte
	// header) to dst, the destination multicast or unicast address.
	Send(payload []byte, dst net.IP) error
	// Recv blocks for the next inbound packet, returning the OSPF
	// payload (with the IP header stripped) and the sender's address.
	Recv() (payload []byte, src net.IP, err error)
	Close() error
}

// AllL1IS and AllL2IS are the well-known multicast destination MACs
// for Level 1 and Level 2 IS-IS PDUs (ISO 9542/10589).
var (
	AllL1IS = [6]byte{0x01, 0x80, 0xc2, 0x00, 0x00, 0x14}
	AllL2IS = [6]byte{0x01, 0x80, 0xc2, 0x00, 0x00, 0x15}
)

// AllSPFRouters and AllDRouters are OSPF's well-known multicast
// destinations (RFC 2328 §A.1).
var (
	AllSPFRouters = net.IPv4(224, 0, 0, 5)
	AllDRouters   = net.IPv4(224, 0, 0, 6)
)
