package isis

import (
	"net/netip"

	"github.com/zeburouter/zeburouter/stream"
)

// Hello is an IIH (IS-IS Hello): spec.md §4.4 "A Hello carries:
// circuit type, source SystemID, hold-time, priority, LAN-ID (peer
// SystemID + pseudo-id of the DIS, zero if unknown), and TLVs:
// Protocols Supported, Area Addresses, IPv4 Interface Addresses, IS
// Neighbors, optional padding to interface MTU."
type Hello struct {
	CircuitType Level
	SourceID    SystemID
	HoldTime    uint16
	Priority    byte // high bit reserved, low 7 bits used
	LANID       NeighborID

	NLPIDs           []byte
	AreaAddresses    [][]byte
	IPv4Addrs        []netip.Addr
	Neighbors        []ISNeighbor
	PaddingLen       int
	Unknown          []RawTLV
}

// ReadHello parses a Hello PDU body (the bytes after the common
// header).
func ReadHello(level Level, body []byte) (*Hello, error) {
	r := stream.NewReader(body)
	circuitByte, err := r.Byte()
	if err != nil {
		return nil, err
	}
	sysID, err := r.Bytes(6)
	if err != nil {
		return nil, &InvalidLengthError{Container: "hello source id", Declared: 6, Have: r.Len()}
	}
	hold, err := r.Uint16()
	if err != nil {
		return nil, err
	}
	_, err = r.Uint16() // pdu length, recomputed on write
	if err != nil {
		return nil, err
	}
	priority, err := r.Byte()
	if err != nil {
		return nil, err
	}
	lanID, err := r.Bytes(7)
	if err != nil {
		return nil, &InvalidLengthError{Container: "hello lan id", Declared: 7, Have: r.Len()}
	}

	h := &Hello{
		CircuitType: level,
		HoldTime:    hold,
		Priority:    priority & 0x7f,
	}
	copy(h.SourceID[:], sysID)
	copy(h.LANID.SystemID[:], lanID[:6])
	h.LANID.PseudoID = lanID[6]
	_ = circuitByte

	tlvs, err := ReadTLVs(r.Rest())
	if err != nil {
		return nil, err
	}
	for _, t := range tlvs {
		switch t.Type {
		case TLVProtocolsSupported:
			h.NLPIDs = append([]byte(nil), t.Value...)
		case TLVAreaAddresses:
			areas, err := AreaAddresses(t.Value)
			if err != nil {
				return nil, err
			}
			h.AreaAddresses = areas
		case TLVIPv4InterfaceAddrs:
			addrs, err := IPv4IfAddrs(t.Value)
			if err != nil {
				return nil, err
			}
			h.IPv4Addrs = addrs
		case TLVISNeighbors:
			neighbors, err := ISNeighbors(t.Value)
			if err != nil {
				return nil, err
			}
			h.Neighbors = neighbors
		case TLVPadding:
			h.PaddingLen += len(t.Value) + 2
		default:
			h.Unknown = append(h.Unknown, t)
		}
	}
	return h, nil
}

// Bytes serializes the Hello PDU, including its common header, and
// pads to mtu bytes if mtu > 0 (spec.md §4.4's "optional padding to
// interface MTU").
func (h *Hello) Bytes(mtu int) []byte {
	w := stream.NewWriter()
	typ := PDUL2Hello
	if h.CircuitType == Level1 {
		typ = PDUL1Hello
	}
	WriteHeader(w, typ)

	circuit := byte(h.CircuitType)
	if h.CircuitType != Level1 && h.CircuitType != Level2 {
		circuit = 3
	}
	w.WriteByte(circuit)
	w.WriteBytes(h.SourceID[:])
	w.WriteUint16(h.HoldTime)
	pduLenOff := w.WriteUint16(0)
	w.WriteByte(h.Priority & 0x7f)
	w.WriteBytes(h.LANID.SystemID[:])
	w.WriteByte(h.LANID.PseudoID)

	if len(h.NLPIDs) > 0 {
		WriteTLV(w, TLVProtocolsSupported, h.NLPIDs)
	}
	if len(h.AreaAddresses) > 0 {
		WriteTLV(w, TLVAreaAddresses, WriteAreaAddresses(h.AreaAddresses))
	}
	if len(h.IPv4Addrs) > 0 {
		WriteTLV(w, TLVIPv4InterfaceAddrs, WriteIPv4IfAddrs(h.IPv4Addrs))
	}
	if len(h.Neighbors) > 0 {
		WriteTLV(w, TLVISNeighbors, WriteISNeighbors(h.Neighbors))
	}
	for _, u := range h.Unknown {
		WriteTLV(w, u.Type, u.Value)
	}

	w.PatchUint16(pduLenOff, uint16(w.Len()))

	for mtu > 0 && w.Len() < mtu {
		remaining := mtu - w.Len()
		chunk := remaining - 2
		if chunk < 0 {
			break
		}
		if chunk > 255 {
			chunk = 255
		}
		WriteTLV(w, TLVPadding, make([]byte, chunk))
	}
	return w.Bytes()
}
