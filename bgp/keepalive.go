package bgp

import "time"

// BGP does not use any TCP-based, keep-alive mechanism to determine if
// peers are reachable. Instead, KEEPALIVE messages are exchanged
// between peers often enough not to cause the Hold Timer to expire. A
// reasonable maximum time between KEEPALIVE messages would be one
// third of the Hold Time interval. KEEPALIVE messages MUST NOT be
// sent more frequently than one per second.
const MinKeepaliveInterval = 1 * time.Second

// A KEEPALIVE message consists of only the message header and has a
// length of 19 octets.
type Keepalive struct{}

// ReadKeepalive validates that a KEEPALIVE body is empty.
func ReadKeepalive(body []byte) (*Keepalive, error) {
	if len(body) != 0 {
		return nil, &InvalidLengthError{Container: "KEEPALIVE", Declared: len(body), Have: 0}
	}
	return &Keepalive{}, nil
}

// Bytes serializes a KEEPALIVE message body, always empty.
func (k *Keepalive) Bytes() []byte { return nil }
