package isis

import (
	"net/netip"

	"github.com/zeburouter/zeburouter/stream"
)

// TLVType is an IS-IS TLV's 1-byte type code (ISO 10589 / RFC 1195 /
// RFC 5305).
type TLVType byte

const (
	TLVAreaAddresses    TLVType = 1
	TLVISNeighbors      TLVType = 2
	TLVPadding          TLVType = 8
	TLVLSPEntries       TLVType = 9
	TLVAuthentication   TLVType = 10
	TLVProtocolsSupported TLVType = 129
	TLVIPv4InterfaceAddrs TLVType = 132
)

// RawTLV is a 1-byte type, 1-byte length, `length`-byte value, kept
// for TLVs this package doesn't interpret so re-emission stays
// lossless (spec.md §4.1's Unknown{code,len,value} contract, §8
// property 1).
type RawTLV struct {
	Type  TLVType
	Value []byte
}

// ReadTLVs walks a length-terminated TLV region, consuming each TLV's
// 1-byte type, 1-byte length and `length` value bytes exactly. It
// walks one flat level only: container TLVs are not descended into,
// and any nested sub-TLVs stay inside the returned raw Value.
func ReadTLVs(body []byte) ([]RawTLV, error) {
	r := stream.NewReader(body)
	var tlvs []RawTLV
	for r.Len() > 0 {
		typ, err := r.Byte()
		if err != nil {
			return nil, err
		}
		length, err := r.Byte()
		if err != nil {
			return nil, err
		}
		value, err := r.Bytes(int(length))
		if err != nil {
			return nil, &InvalidLengthError{Container: "TLV", Declared: int(length), Have: r.Len()}
		}
		tlvs = append(tlvs, RawTLV{Type: TLVType(typ), Value: value})
	}
	return tlvs, nil
}

// WriteTLV appends a single TLV to w.
func WriteTLV(w *stream.Writer, typ TLVType, value []byte) {
	w.WriteByte(byte(typ))
	w.WriteByte(byte(len(value)))
	w.WriteBytes(value)
}

// AreaAddresses decodes a TLVAreaAddresses value: a sequence of
// (1-byte length, length-byte area address) entries.
func AreaAddresses(value []byte) ([][]byte, error) {
	r := stream.NewReader(value)
	var areas [][]byte
	for r.Len() > 0 {
		length, err := r.Byte()
		if err != nil {
			return nil, err
		}
		area, err := r.Bytes(int(length))
		if err != nil {
			return nil, &InvalidLengthError{Container: "area address", Declared: int(length), Have: r.Len()}
		}
		areas = append(areas, append([]byte(nil), area...))
	}
	return areas, nil
}

// WriteAreaAddresses encodes AreaAddresses' inverse.
func WriteAreaAddresses(areas [][]byte) []byte {
	w := stream.NewWriter()
	for _, a := range areas {
		w.WriteByte(byte(len(a)))
		w.WriteBytes(a)
	}
	return w.Bytes()
}

// NLPID values carried by TLVProtocolsSupported.
const (
	NLPIDIPv4 byte = 0xCC
	NLPIDIPv6 byte = 0x8E
)

// ISNeighbor is one entry of TLVISNeighbors: a neighbor's 6-byte MAC
// (LAN) or system ID (point-to-point, carried the same way here).
type ISNeighbor [6]byte

func ISNeighbors(value []byte) ([]ISNeighbor, error) {
	if len(value)%6 != 0 {
		return nil, &InvalidLengthError{Container: "IS neighbors", Declared: len(value), Have: len(value)}
	}
	var out []ISNeighbor
	for i := 0; i < len(value); i += 6 {
		var n ISNeighbor
		copy(n[:], value[i:i+6])
		out = append(out, n)
	}
	return out, nil
}

func WriteISNeighbors(neighbors []ISNeighbor) []byte {
	w := stream.NewWriter()
	for _, n := range neighbors {
		w.WriteBytes(n[:])
	}
	return w.Bytes()
}

// IPv4IfAddrs decodes TLVIPv4InterfaceAddrs: a packed sequence of
// 4-byte IPv4 addresses.
func IPv4IfAddrs(value []byte) ([]netip.Addr, error) {
	if len(value)%4 != 0 {
		return nil, &InvalidLengthError{Container: "IPv4 interface addresses", Declared: len(value), Have: len(value)}
	}
	var out []netip.Addr
	for i := 0; i < len(value); i += 4 {
		var b [4]byte
		copy(b[:], value[i:i+4])
		out = append(out, netip.AddrFrom4(b))
	}
	return out, nil
}

func WriteIPv4IfAddrs(addrs []netip.Addr) []byte {
	w := stream.NewWriter()
	for _, a := range addrs {
		b := a.As4()
		w.WriteBytes(b[:])
	}
	return w.Bytes()
}

// LSPEntry is one 16-byte entry of TLVLSPEntries: hold-time, LSP-ID
// (8 bytes: SystemID+pseudo-id+fragment), sequence number, checksum.
type LSPEntry struct {
	HoldTime uint16
	LSPID    LSPID
	Sequence uint32
	Checksum uint16
}

func ReadLSPEntries(value []byte) ([]LSPEntry, error) {
	if len(value)%16 != 0 {
		return nil, &InvalidLengthError{Container: "LSP entries", Declared: len(value), Have: len(value)}
	}
	var out []LSPEntry
	r := stream.NewReader(value)
	for r.Len() > 0 {
		hold, _ := r.Uint16()
		idBytes, _ := r.Bytes(7)
		var e LSPEntry
		e.HoldTime = hold
		copy(e.LSPID.SystemID[:], idBytes[:6])
		e.LSPID.PseudoID = idBytes[6]
		frag, _ := r.Byte()
		e.LSPID.Fragment = frag
		seq, _ := r.Uint32()
		e.Sequence = seq
		chk, _ := r.Uint16()
		e.Checksum = chk
		out = append(out, e)
	}
	return out, nil
}

func WriteLSPEntries(entries []LSPEntry) []byte {
	w := stream.NewWriter()
	for _, e := range entries {
		w.WriteUint16(e.HoldTime)
		w.WriteBytes(e.LSPID.SystemID[:])
		w.WriteByte(e.LSPID.PseudoID)
		w.WriteByte(e.LSPID.Fragment)
		w.WriteUint32(e.Sequence)
		w.WriteUint16(e.Checksum)
	}
	return w.Bytes()
}
