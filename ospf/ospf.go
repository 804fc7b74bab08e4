// Package ospf implements the OSPFv2 engine of spec.md §4.5: the
// 24-byte-header packet codec, per-interface IFSM with DR/BDR
// election, and per-neighbor NFSM including database-description
// master/slave negotiation.
//
// The teacher repo is BGP-only and has no OSPF coverage; this package
// is grounded on original_source/zebra/src/ospf/{ifsm,nfsm}.rs for
// the IFSM/NFSM event tables and original_source/crates/ospf-packet
// (parser.rs, tests/ospfv2.rs) for the wire layout, reusing the
// `stream` package's big-endian cursor idiom the way `bgp` and `isis`
// do for their own codecs.
package ospf

import (
	"encoding/binary"
	"fmt"

	"github.com/zeburouter/zeburouter/stream"
)

// RouterID is an OSPF router identifier: syntactically an IPv4
// address, semantically an opaque 4-octet identifier. Area-IDs,
// link-state IDs and advertising-router fields share this shape.
type RouterID uint32

func (id RouterID) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", id>>24&0xff, id>>16&0xff, id>>8&0xff, id&0xff)
}

// NewRouterID builds a RouterID from four address octets.
func NewRouterID(a, b, c, d byte) RouterID {
	return RouterID(uint32(a)<<24 | uint32(b)<<16 | uint32(c)<<8 | uint32(d))
}

// Version is the OSPF protocol version carried in every header. This
// implementation speaks only OSPFv2.
const Version = 2

// PacketType identifies the five OSPFv2 packet types (RFC 2328 §A.3.1).
type PacketType byte

const (
	PacketHello              PacketType = 1
	PacketDatabaseDescription PacketType = 2
	PacketLSRequest          PacketType = 3
	PacketLSUpdate           PacketType = 4
	PacketLSAck              PacketType = 5
)

func (t PacketType) String() string {
	switch t {
	case PacketHello:
		return "Hello"
	case PacketDatabaseDescription:
		return "DatabaseDescription"
	case PacketLSRequest:
		return "LSRequest"
	case PacketLSUpdate:
		return "LSUpdate"
	case PacketLSAck:
		return "LSAck"
	default:
		return fmt.Sprintf("packet-type(%d)", byte(t))
	}
}

// headerLen is the fixed 24-byte OSPFv2 header: version, type, length,
// router-id, area-id, checksum, au-type, 8 bytes of auth data.
const headerLen = 24

// authOffset and authLen bound the 8-byte authentication field the
// checksum excludes (spec.md §6: "checksum uses the standard IP
// checksum over the packet with the 8-byte authentication field
// excluded").
const authOffset = 16
const authLen = 8

// Header is the fixed OSPFv2 packet header.
type Header struct {
	Type     PacketType
	Length   uint16
	RouterID RouterID
	AreaID   RouterID
	Checksum uint16
	AuType   uint16
	AuthData uint64
}

// InvalidLengthError mirrors bgp.InvalidLengthError and
// isis.InvalidLengthError for the OSPF codec.
type InvalidLengthError struct {
	Container        string
	Declared, Have int
}

func (e *InvalidLengthError) Error() string {
	return fmt.Sprintf("ospf: %s: declared length %d, have %d", e.Container, e.Declared, e.Have)
}

// InvalidChecksumError reports a header whose declared checksum does
// not match the computed one; per spec.md §7 these PDUs are dropped
// silently with a counter increment, not surfaced as a parse failure
// outside the caller that checks for this type.
type InvalidChecksumError struct {
	Expected, Found uint16
}

func (e *InvalidChecksumError) Error() string {
	return fmt.Sprintf("ospf: checksum mismatch: expected %#04x, found %#04x", e.Expected, e.Found)
}

// ReadHeader parses the 24-byte fixed header from buf and returns it
// along with the body bytes bounded by the header's declared length
// (not simply the rest of buf, since OSPF frames arrive over IP and
// may be padded).
func ReadHeader(buf []byte) (Header, []byte, error) {
	if len(buf) < headerLen {
		return Header{}, nil, stream.ErrShortBuffer{Needed: headerLen, Have: len(buf)}
	}
	r := stream.NewReader(buf)
	version, err := r.Byte()
	if err != nil {
		return Header{}, nil, err
	}
	if version != Version {
		return Header{}, nil, fmt.Errorf("ospf: unsupported version %d", version)
	}
	typ, err := r.Byte()
	if err != nil {
		return Header{}, nil, err
	}
	length, err := r.Uint16()
	if err != nil {
		return Header{}, nil, err
	}
	if int(length) < headerLen || int(length) > len(buf) {
		return Header{}, nil, &InvalidLengthError{Container: "ospf header", Declared: int(length), Have: len(buf)}
	}
	routerID, err := r.Uint32()
	if err != nil {
		return Header{}, nil, err
	}
	areaID, err := r.Uint32()
	if err != nil {
		return Header{}, nil, err
	}
	checksum, err := r.Uint16()
	if err != nil {
		return Header{}, nil, err
	}
	auType, err := r.Uint16()
	if err != nil {
		return Header{}, nil, err
	}
	authHi, err := r.Uint32()
	if err != nil {
		return Header{}, nil, err
	}
	authLo, err := r.Uint32()
	if err != nil {
		return Header{}, nil, err
	}
	h := Header{
		Type:     PacketType(typ),
		Length:   length,
		RouterID: RouterID(routerID),
		AreaID:   RouterID(areaID),
		Checksum: checksum,
		AuType:   auType,
		AuthData: uint64(authHi)<<32 | uint64(authLo),
	}
	body := buf[headerLen:length]
	return h, body, nil
}

// VerifyChecksum reports whether frame's declared checksum matches the
// one computed over it with the auth field excluded.
func VerifyChecksum(frame []byte) error {
	if len(frame) < headerLen {
		return stream.ErrShortBuffer{Needed: headerLen, Have: len(frame)}
	}
	declared := binary.BigEndian.Uint16(frame[12:14])
	probe := make([]byte, len(frame))
	copy(probe, frame)
	probe[12], probe[13] = 0, 0
	got := ipChecksum(excludeAuth(probe))
	if got != declared {
		return &InvalidChecksumError{Expected: got, Found: declared}
	}
	return nil
}

// WriteHeader appends the fixed header to w with length and checksum
// fields zeroed, returning their offsets for PatchLengthAndChecksum.
func WriteHeader(w *stream.Writer, typ PacketType, routerID, areaID RouterID) (lengthOffset, checksumOffset int) {
	w.WriteByte(Version)
	w.WriteByte(byte(typ))
	lengthOffset = w.WriteUint16(0)
	w.WriteUint32(uint32(routerID))
	w.WriteUint32(uint32(areaID))
	checksumOffset = w.WriteUint16(0)
	w.WriteUint16(0) // au-type: unauthenticated
	w.WriteUint32(0) // 8 bytes of auth data, first half
	w.WriteUint32(0) // second half
	return lengthOffset, checksumOffset
}

// PatchLengthAndChecksum finalizes a packet written via WriteHeader:
// it patches the length field to the frame's total size and the
// checksum field to the standard IP checksum computed over the frame
// with the 8-byte auth field excluded.
func PatchLengthAndChecksum(w *stream.Writer, lengthOffset, checksumOffset int) {
	w.PatchUint16(lengthOffset, uint16(w.Len()))
	w.PatchUint16(checksumOffset, 0)
	w.PatchUint16(checksumOffset, ipChecksum(excludeAuth(w.Bytes())))
}

// excludeAuth returns frame with the 8-byte authentication field
// (offset 16..24) omitted, for checksum purposes.
func excludeAuth(frame []byte) []byte {
	if len(frame) < authOffset+authLen {
		return frame
	}
	out := make([]byte, 0, len(frame)-authLen)
	out = append(out, frame[:authOffset]...)
	out = append(out, frame[authOffset+authLen:]...)
	return out
}

// ipChecksum computes the standard Internet checksum (RFC 1071) over
// data: one's-complement sum of 16-bit big-endian words, folded to 16
// bits, then complemented.
func ipChecksum(data []byte) uint16 {
	var sum uint32
	n := len(data)
	for i := 0; i+1 < n; i += 2 {
		sum += uint32(binary.BigEndian.Uint16(data[i : i+2]))
	}
	if n%2 == 1 {
		sum += uint32(data[n-1]) << 8
	}
	for sum>>16 != 0 {
		sum = (sum & 0xffff) + (sum >> 16)
	}
	return ^uint16(sum)
}
