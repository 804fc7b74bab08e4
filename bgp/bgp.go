// Package bgp implements the wire codec for BGP-4 (RFC 4271) and its
// multiprotocol extensions: capability negotiation (RFC 5492), AS4
// (RFC 6793), AddPath (RFC 7911), MP-BGP NLRI for IPv6 unicast, VPNv4,
// EVPN and Route Target Constraint, and the community attribute
// families (RFC 1997, RFC 4360, RFC 8092).
//
// The teacher repo (transitorykris/kbgp) keeps the RFC text as block
// comments beside the field or function it describes; this package
// keeps that habit for the attributes and messages the RFC directly
// constrains, and drops it for the multiprotocol additions that have
// no single defining RFC section to quote.
package bgp

import "fmt"

// Version is the BGP protocol version carried in the OPEN message.
// This implementation speaks only version 4.
type Version uint8

const Version4 Version = 4

// ASN is an autonomous system number. The wire encoding is 2 octets
// unless the AS4 capability (RFC 6793) is negotiated with the peer,
// in which case AS_PATH and AGGREGATOR carry 4-octet ASNs and AS_TRANS
// (23456) is substituted in the 2-octet OPEN header for legacy peers.
type ASN uint32

// ASTrans is the well-known AS number legacy (2-octet) speakers use in
// the OPEN message's My Autonomous System field when their real ASN
// does not fit in 16 bits.
const ASTrans ASN = 23456

// Identifier is a BGP Identifier: syntactically a unicast IPv4 host
// address, semantically an opaque 4-octet router identifier.
type Identifier uint32

func (id Identifier) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", id>>24&0xff, id>>16&0xff, id>>8&0xff, id&0xff)
}

// NewIdentifier builds an Identifier from four address octets.
func NewIdentifier(a, b, c, d byte) Identifier {
	return Identifier(uint32(a)<<24 | uint32(b)<<16 | uint32(c)<<8 | uint32(d))
}

// Type identifies the four BGP message types (RFC 4271 §4.1).
type Type byte

const (
	TypeOpen         Type = 1
	TypeUpdate       Type = 2
	TypeNotification Type = 3
	TypeKeepalive    Type = 4
	TypeRouteRefresh Type = 5 // RFC 2918
)

func (t Type) String() string {
	switch t {
	case TypeOpen:
		return "OPEN"
	case TypeUpdate:
		return "UPDATE"
	case TypeNotification:
		return "NOTIFICATION"
	case TypeKeepalive:
		return "KEEPALIVE"
	case TypeRouteRefresh:
		return "ROUTE-REFRESH"
	default:
		return fmt.Sprintf("type(%d)", byte(t))
	}
}

// HeaderLen is the fixed 19-octet BGP message header: a 16-octet
// marker (all ones outside of an authentication scheme this
// implementation does not support), a 2-octet total length, and a
// 1-octet type.
const HeaderLen = 19

// MaxLen is the largest PDU a BGP speaker may send unless the
// Extended Message capability (RFC 8654) has been negotiated.
const MaxLen = 4096

// ExtendedMaxLen is the largest PDU under the Extended Message
// capability.
const ExtendedMaxLen = 65535

// AFI is an Address Family Identifier (RFC 4760 §8 / IANA registry).
type AFI uint16

const (
	AFIIPv4 AFI = 1
	AFIIPv6 AFI = 2
	AFIL2VPN AFI = 25
)

// SAFI is a Subsequent Address Family Identifier.
type SAFI uint8

const (
	SAFIUnicast               SAFI = 1
	SAFIMulticast             SAFI = 2
	SAFIMPLSVPN               SAFI = 128 // VPNv4/VPNv6 unicast
	SAFIEVPN                  SAFI = 70
	SAFIRouteTargetConstraint SAFI = 132
)

// Family pairs an AFI and SAFI, the key multiprotocol NLRI is
// multiplexed on.
type Family struct {
	AFI  AFI
	SAFI SAFI
}

func (f Family) String() string {
	return fmt.Sprintf("%d/%d", f.AFI, f.SAFI)
}

var (
	FamilyIPv4Unicast = Family{AFIIPv4, SAFIUnicast}
	FamilyIPv6Unicast = Family{AFIIPv6, SAFIUnicast}
	FamilyVPNv4       = Family{AFIIPv4, SAFIMPLSVPN}
	FamilyEVPN        = Family{AFIL2VPN, SAFIEVPN}
	FamilyRTC         = Family{AFIIPv4, SAFIRouteTargetConstraint}
)
