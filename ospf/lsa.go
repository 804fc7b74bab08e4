package ospf

import (
	"fmt"

	"github.com/zeburouter/zeburouter/stream"
)

// lsaHeaderLen is the fixed 20-byte LSA header (RFC 2328 §A.4.1):
// age, options, type, link-state-id, advertising-router, sequence,
// checksum, length.
const lsaHeaderLen = 20

// LSType identifies the kind of link-state advertisement.
type LSType byte

const (
	LSTypeRouter         LSType = 1
	LSTypeNetwork        LSType = 2
	LSTypeSummary        LSType = 3
	LSTypeSummaryASBR    LSType = 4
	LSTypeASExternal     LSType = 5
	LSTypeNSSAASExternal LSType = 7
)

func (t LSType) String() string {
	switch t {
	case LSTypeRouter:
		return "Router"
	case LSTypeNetwork:
		return "Network"
	case LSTypeSummary:
		return "Summary"
	case LSTypeSummaryASBR:
		return "SummaryASBR"
	case LSTypeASExternal:
		return "ASExternal"
	case LSTypeNSSAASExternal:
		return "NSSAASExternal"
	default:
		return fmt.Sprintf("ls-type(%d)", byte(t))
	}
}

// LSAHeader is the 20-byte advertisement header common to every LSA,
// used standalone in Database Description and LS Acknowledge packets
// and as the prefix of a full LSA in LS Update.
type LSAHeader struct {
	Age         uint16
	Options     byte
	Type        LSType
	LinkStateID RouterID
	AdvRouter   RouterID
	Sequence    uint32
	Checksum    uint16
	Length      uint16
}

// ID identifies an LSA instance within the LSDB: (type, link-state-id,
// advertising-router) regardless of sequence number.
type LSAID struct {
	Type        LSType
	LinkStateID RouterID
	AdvRouter   RouterID
}

func (h LSAHeader) ID() LSAID {
	return LSAID{Type: h.Type, LinkStateID: h.LinkStateID, AdvRouter: h.AdvRouter}
}

// Newer reports whether h is a strictly newer instance than other by
// sequence number (RFC 2328 §13.1's simplified ordering; wraparound
// via InitialSequenceNumber is not modeled since this implementation
// never runs long enough to exhaust the 31-bit space in a single
// process lifetime before a restart resets state).
func (h LSAHeader) Newer(other LSAHeader) bool {
	return h.Sequence > other.Sequence
}

func readLSAHeader(r *stream.Reader) (LSAHeader, error) {
	age, err := r.Uint16()
	if err != nil {
		return LSAHeader{}, err
	}
	options, err := r.Byte()
	if err != nil {
		return LSAHeader{}, err
	}
	typ, err := r.Byte()
	if err != nil {
		return LSAHeader{}, err
	}
	linkStateID, err := r.Uint32()
	if err != nil {
		return LSAHeader{}, err
	}
	advRouter, err := r.Uint32()
	if err != nil {
		return LSAHeader{}, err
	}
	seq, err := r.Uint32()
	if err != nil {
		return LSAHeader{}, err
	}
	checksum, err := r.Uint16()
	if err != nil {
		return LSAHeader{}, err
	}
	length, err := r.Uint16()
	if err != nil {
		return LSAHeader{}, err
	}
	return LSAHeader{
		Age:         age,
		Options:     options,
		Type:        LSType(typ),
		LinkStateID: RouterID(linkStateID),
		AdvRouter:   RouterID(advRouter),
		Sequence:    seq,
		Checksum:    checksum,
		Length:      length,
	}, nil
}

func writeLSAHeader(w *stream.Writer, h LSAHeader) {
	w.WriteUint16(h.Age)
	w.WriteByte(h.Options)
	w.WriteByte(byte(h.Type))
	w.WriteUint32(uint32(h.LinkStateID))
	w.WriteUint32(uint32(h.AdvRouter))
	w.WriteUint32(h.Sequence)
	w.WriteUint16(h.Checksum)
	w.WriteUint16(h.Length)
}

// LinkType identifies a router-LSA link's kind (RFC 2328 §A.4.2).
type LinkType byte

const (
	LinkPointToPoint LinkType = 1
	LinkTransit      LinkType = 2
	LinkStub         LinkType = 3
	LinkVirtual      LinkType = 4
)

// RouterLink is one entry in a Router LSA's link array.
type RouterLink struct {
	LinkID   RouterID
	LinkData RouterID
	Type     LinkType
	Metric   uint16
}

// RouterLSA is the type-1 LSA: one entry per link the router has on
// this area, with the flags byte's low bits carrying the ABR/ASBR/
// virtual-link-endpoint bits (RFC 2328 §A.4.2); TOS-specific metrics
// beyond TOS 0 are not modeled (Non-goals: this implementation only
// ever emits TOS 0 and drops other TOS entries on parse, matching the
// "TOS routing" de-facto-abandoned status of the RFC).
type RouterLSA struct {
	Bits  byte
	Links []RouterLink
}

func readRouterLSA(body []byte) (RouterLSA, error) {
	r := stream.NewReader(body)
	bits, err := r.Byte()
	if err != nil {
		return RouterLSA{}, err
	}
	if _, err := r.Byte(); err != nil { // reserved
		return RouterLSA{}, err
	}
	numLinks, err := r.Uint16()
	if err != nil {
		return RouterLSA{}, err
	}
	lsa := RouterLSA{Bits: bits}
	for i := 0; i < int(numLinks); i++ {
		linkID, err := r.Uint32()
		if err != nil {
			return RouterLSA{}, err
		}
		linkData, err := r.Uint32()
		if err != nil {
			return RouterLSA{}, err
		}
		typ, err := r.Byte()
		if err != nil {
			return RouterLSA{}, err
		}
		numTOS, err := r.Byte()
		if err != nil {
			return RouterLSA{}, err
		}
		metric, err := r.Uint16()
		if err != nil {
			return RouterLSA{}, err
		}
		if _, err := r.Bytes(int(numTOS) * 4); err != nil { // skip per-TOS entries
			return RouterLSA{}, err
		}
		lsa.Links = append(lsa.Links, RouterLink{
			LinkID:   RouterID(linkID),
			LinkData: RouterID(linkData),
			Type:     LinkType(typ),
			Metric:   metric,
		})
	}
	return lsa, nil
}

func (l RouterLSA) bytes() []byte {
	w := stream.NewWriter()
	w.WriteByte(l.Bits)
	w.WriteByte(0)
	w.WriteUint16(uint16(len(l.Links)))
	for _, link := range l.Links {
		w.WriteUint32(uint32(link.LinkID))
		w.WriteUint32(uint32(link.LinkData))
		w.WriteByte(byte(link.Type))
		w.WriteByte(0)
		w.WriteUint16(link.Metric)
	}
	return w.Bytes()
}

// NetworkLSA is the type-2 LSA originated by a segment's DR: the
// segment's netmask plus the router-id of every attached router.
type NetworkLSA struct {
	Netmask         uint32
	AttachedRouters []RouterID
}

func readNetworkLSA(body []byte) (NetworkLSA, error) {
	r := stream.NewReader(body)
	netmask, err := r.Uint32()
	if err != nil {
		return NetworkLSA{}, err
	}
	lsa := NetworkLSA{Netmask: netmask}
	for r.Len() >= 4 {
		addr, err := r.Uint32()
		if err != nil {
			return NetworkLSA{}, err
		}
		lsa.AttachedRouters = append(lsa.AttachedRouters, RouterID(addr))
	}
	return lsa, nil
}

func (l NetworkLSA) bytes() []byte {
	w := stream.NewWriter()
	w.WriteUint32(l.Netmask)
	for _, r := range l.AttachedRouters {
		w.WriteUint32(uint32(r))
	}
	return w.Bytes()
}

// SummaryLSA is the type-3/4 LSA an ABR originates into another area:
// a netmask (type 3) or unused (type 4) plus a 24-bit metric.
type SummaryLSA struct {
	Netmask uint32
	Metric  uint32
}

func readSummaryLSA(body []byte) (SummaryLSA, error) {
	r := stream.NewReader(body)
	netmask, err := r.Uint32()
	if err != nil {
		return SummaryLSA{}, err
	}
	tosMetric, err := r.Uint32()
	if err != nil {
		return SummaryLSA{}, err
	}
	return SummaryLSA{Netmask: netmask, Metric: tosMetric & 0x00ffffff}, nil
}

func (l SummaryLSA) bytes() []byte {
	w := stream.NewWriter()
	w.WriteUint32(l.Netmask)
	w.WriteUint32(l.Metric & 0x00ffffff)
	return w.Bytes()
}

// ASExternalLSA is the type-5/7 LSA: an externally learned route with
// an optional forwarding address and route tag.
type ASExternalLSA struct {
	Netmask           uint32
	ExternalBit       bool
	Metric            uint32
	ForwardingAddress RouterID
	RouteTag          uint32
}

func readASExternalLSA(body []byte) (ASExternalLSA, error) {
	r := stream.NewReader(body)
	netmask, err := r.Uint32()
	if err != nil {
		return ASExternalLSA{}, err
	}
	extAndMetric, err := r.Uint32()
	if err != nil {
		return ASExternalLSA{}, err
	}
	fwdAddr, err := r.Uint32()
	if err != nil {
		return ASExternalLSA{}, err
	}
	tag, err := r.Uint32()
	if err != nil {
		return ASExternalLSA{}, err
	}
	return ASExternalLSA{
		Netmask:           netmask,
		ExternalBit:       extAndMetric&0x80000000 != 0,
		Metric:            extAndMetric & 0x00ffffff,
		ForwardingAddress: RouterID(fwdAddr),
		RouteTag:          tag,
	}, nil
}

func (l ASExternalLSA) bytes() []byte {
	w := stream.NewWriter()
	w.WriteUint32(l.Netmask)
	ext := l.Metric & 0x00ffffff
	if l.ExternalBit {
		ext |= 0x80000000
	}
	w.WriteUint32(ext)
	w.WriteUint32(uint32(l.ForwardingAddress))
	w.WriteUint32(l.RouteTag)
	return w.Bytes()
}

// UnknownLSA preserves an LSA this implementation does not decode (an
// unrecognized type, or a recognized type whose body failed to parse
// within its declared length) so outer parsing can proceed per
// spec.md's "LS Update's body is a packed sequence of LSAs... if
// inner parsing fails within those bytes, the LSA is preserved as
// Unknown{bytes}" contract.
type UnknownLSA struct {
	Bytes []byte
}

// LSA is one link-state advertisement: its header plus a body that is
// exactly one of the typed structs above, or UnknownLSA.
type LSA struct {
	Header LSAHeader
	Body   interface{}
}

// readLSA parses one LSA whose header declares a total length
// (including the 20-byte header); the body is bounded to exactly that
// length so a failing inner parse cannot desynchronize the outer
// sequence.
func readLSA(r *stream.Reader) (LSA, error) {
	header, err := readLSAHeader(r)
	if err != nil {
		return LSA{}, err
	}
	if int(header.Length) < lsaHeaderLen {
		return LSA{}, &InvalidLengthError{Container: "lsa header", Declared: int(header.Length), Have: lsaHeaderLen}
	}
	bodyLen := int(header.Length) - lsaHeaderLen
	body, err := r.Bytes(bodyLen)
	if err != nil {
		return LSA{}, err
	}
	return LSA{Header: header, Body: decodeLSABody(header.Type, body)}, nil
}

func decodeLSABody(typ LSType, body []byte) interface{} {
	var (
		parsed interface{}
		err    error
	)
	switch typ {
	case LSTypeRouter:
		parsed, err = readRouterLSA(body)
	case LSTypeNetwork:
		parsed, err = readNetworkLSA(body)
	case LSTypeSummary, LSTypeSummaryASBR:
		parsed, err = readSummaryLSA(body)
	case LSTypeASExternal, LSTypeNSSAASExternal:
		parsed, err = readASExternalLSA(body)
	default:
		err = fmt.Errorf("ospf: unknown ls-type %d", byte(typ))
	}
	if err != nil {
		return UnknownLSA{Bytes: body}
	}
	return parsed
}

func lsaBodyBytes(body interface{}) []byte {
	switch v := body.(type) {
	case RouterLSA:
		return v.bytes()
	case NetworkLSA:
		return v.bytes()
	case SummaryLSA:
		return v.bytes()
	case ASExternalLSA:
		return v.bytes()
	case UnknownLSA:
		return v.Bytes
	default:
		return nil
	}
}

// writeLSA serializes lsa, patching its header's Length field to the
// actual emitted size.
func writeLSA(w *stream.Writer, lsa LSA) {
	bodyBytes := lsaBodyBytes(lsa.Body)
	header := lsa.Header
	header.Length = uint16(lsaHeaderLen + len(bodyBytes))
	writeLSAHeader(w, header)
	w.WriteBytes(bodyBytes)
}
