package bgp

import (
	"fmt"
	"net/netip"

	"github.com/zeburouter/zeburouter/stream"
)

// PathID is an AddPath path identifier (RFC 7911), prefixed to an
// NLRI entry when AddPath is negotiated for its (AFI,SAFI).
type PathID uint32

// IPPrefix is a plain IPv4 or IPv6 unicast NLRI entry.
type IPPrefix struct {
	Prefix netip.Prefix
	PathID PathID // zero if AddPath is not in use for this family
}

func (p IPPrefix) String() string {
	if p.PathID != 0 {
		return fmt.Sprintf("%s (path %d)", p.Prefix, p.PathID)
	}
	return p.Prefix.String()
}

// RD is a Route Distinguisher (RFC 4364 §4): an 8-octet value whose
// first 2 octets select the type/encoding of the remaining 6.
type RD [8]byte

func (rd RD) String() string {
	typ := uint16(rd[0])<<8 | uint16(rd[1])
	switch typ {
	case 0:
		admin := uint16(rd[2])<<8 | uint16(rd[3])
		assigned := uint32(rd[4])<<24 | uint32(rd[5])<<16 | uint32(rd[6])<<8 | uint32(rd[7])
		return fmt.Sprintf("%d:%d", admin, assigned)
	case 1:
		ip := netip.AddrFrom4([4]byte{rd[2], rd[3], rd[4], rd[5]})
		assigned := uint16(rd[6])<<8 | uint16(rd[7])
		return fmt.Sprintf("%s:%d", ip, assigned)
	case 2:
		admin := uint32(rd[2])<<24 | uint32(rd[3])<<16 | uint32(rd[4])<<8 | uint32(rd[5])
		assigned := uint16(rd[6])<<8 | uint16(rd[7])
		return fmt.Sprintf("%d:%d", admin, assigned)
	default:
		return fmt.Sprintf("rd(%x)", [8]byte(rd))
	}
}

// VPNPrefix is a VPNv4/VPNv6 unicast NLRI entry: an MPLS label stack,
// a route distinguisher, and an IP prefix (RFC 4364 / RFC 3107).
type VPNPrefix struct {
	Labels []uint32 // each a 20-bit MPLS label, bottom-of-stack last
	RD     RD
	Prefix netip.Prefix
	PathID PathID
}

// EVPNRouteType is the 1-octet EVPN route type (RFC 7432 §7).
type EVPNRouteType byte

const (
	EVPNEthernetAutoDiscovery EVPNRouteType = 1
	EVPNMACIPAdvertisement    EVPNRouteType = 2
	EVPNInclusiveMulticast    EVPNRouteType = 3 // IMET
	EVPNEthernetSegment       EVPNRouteType = 4
)

// EVPNRoute is a MAC/IP Advertisement or Inclusive Multicast Ethernet
// Tag route, the two EVPN route types spec.md §4.2 names explicitly.
type EVPNRoute struct {
	Type        EVPNRouteType
	RD          RD
	ESI         [10]byte
	EthernetTag uint32
	MACLen      byte
	MAC         [6]byte
	IPLen       byte // 0, 32, or 128
	IP          netip.Addr
	Label1      uint32
	Label2      uint32 // second label, MAC/IP routes only
}

// readLabelStack reads a run of 3-octet MPLS label entries, stopping
// at the bottom-of-stack bit (RFC 3107 §3) or when maxBytes is
// exhausted.
func readLabelStack(r *stream.Reader, maxBytes int) ([]uint32, int, error) {
	var labels []uint32
	consumed := 0
	for consumed+3 <= maxBytes {
		b, err := r.Bytes(3)
		if err != nil {
			return nil, consumed, err
		}
		consumed += 3
		label := uint32(b[0])<<12 | uint32(b[1])<<4 | uint32(b[2])>>4
		bottomOfStack := b[2]&0x01 != 0
		labels = append(labels, label)
		if bottomOfStack {
			break
		}
		if label == 0x80000 { // withdraw compatibility label (RFC 3107 §3)
			break
		}
	}
	return labels, consumed, nil
}

func writeLabelStack(w *stream.Writer, labels []uint32) {
	for i, label := range labels {
		b := [3]byte{byte(label >> 12), byte(label >> 4), byte(label << 4)}
		if i == len(labels)-1 {
			b[2] |= 0x01
		}
		w.WriteBytes(b[:])
	}
}

// ReadIPUnicastNLRI decodes a run of IPv4 or IPv6 unicast NLRI
// entries (MP_REACH_NLRI/MP_UNREACH_NLRI payload, or the UPDATE
// message's own NLRI field for IPv4 unicast). bits is the address
// family's bit width (32 or 128).
func ReadIPUnicastNLRI(r *stream.Reader, bits int, addPath bool) ([]IPPrefix, error) {
	var out []IPPrefix
	for r.Len() > 0 {
		var pathID PathID
		if addPath {
			v, err := r.Uint32()
			if err != nil {
				return nil, err
			}
			pathID = PathID(v)
		}
		prefixLen, err := r.Byte()
		if err != nil {
			return nil, err
		}
		byteLen := (int(prefixLen) + 7) / 8
		addrBytes, err := r.Bytes(byteLen)
		if err != nil {
			return nil, &InvalidLengthError{Container: "NLRI", Declared: byteLen, Have: r.Len()}
		}
		addr, err := addrFromPrefixBytes(addrBytes, bits)
		if err != nil {
			return nil, err
		}
		pfx, err := addr.Prefix(int(prefixLen))
		if err != nil {
			return nil, err
		}
		out = append(out, IPPrefix{Prefix: pfx, PathID: pathID})
	}
	return out, nil
}

func addrFromPrefixBytes(b []byte, bits int) (netip.Addr, error) {
	full := make([]byte, bits/8)
	copy(full, b)
	if bits == 32 {
		return netip.AddrFrom4([4]byte(full)), nil
	}
	return netip.AddrFrom16([16]byte(full)), nil
}

// WriteIPUnicastNLRI serializes a run of IPv4/IPv6 unicast NLRI
// entries.
func WriteIPUnicastNLRI(w *stream.Writer, prefixes []IPPrefix, addPath bool) {
	for _, p := range prefixes {
		if addPath {
			w.WriteUint32(uint32(p.PathID))
		}
		bits := p.Prefix.Bits()
		w.WriteByte(byte(bits))
		addr := p.Prefix.Addr()
		full := addr.AsSlice()
		byteLen := (bits + 7) / 8
		w.WriteBytes(full[:byteLen])
	}
}

// ReadVPNNLRI decodes a run of VPNv4/VPNv6 unicast NLRI entries.
func ReadVPNNLRI(r *stream.Reader, bits int, addPath bool) ([]VPNPrefix, error) {
	var out []VPNPrefix
	for r.Len() > 0 {
		var pathID PathID
		if addPath {
			v, err := r.Uint32()
			if err != nil {
				return nil, err
			}
			pathID = PathID(v)
		}
		totalBitLen, err := r.Byte()
		if err != nil {
			return nil, err
		}
		totalBytes := (int(totalBitLen) + 7) / 8
		payload, err := r.Bytes(totalBytes)
		if err != nil {
			return nil, &InvalidLengthError{Container: "VPN NLRI", Declared: totalBytes, Have: r.Len()}
		}
		sub := stream.NewReader(payload)
		labels, labelBytes, err := readLabelStack(sub, totalBytes)
		if err != nil {
			return nil, err
		}
		rdBytes, err := sub.Bytes(8)
		if err != nil {
			return nil, err
		}
		var rd RD
		copy(rd[:], rdBytes)
		prefixBitLen := int(totalBitLen) - labelBytes*8 - 8*8
		prefixByteLen := (prefixBitLen + 7) / 8
		addrBytes, err := sub.Bytes(prefixByteLen)
		if err != nil {
			return nil, err
		}
		addr, err := addrFromPrefixBytes(addrBytes, bits)
		if err != nil {
			return nil, err
		}
		pfx, err := addr.Prefix(prefixBitLen)
		if err != nil {
			return nil, err
		}
		out = append(out, VPNPrefix{Labels: labels, RD: rd, Prefix: pfx, PathID: pathID})
	}
	return out, nil
}

// WriteVPNNLRI serializes a run of VPNv4/VPNv6 unicast NLRI entries.
func WriteVPNNLRI(w *stream.Writer, prefixes []VPNPrefix, addPath bool) {
	for _, p := range prefixes {
		if addPath {
			w.WriteUint32(uint32(p.PathID))
		}
		body := stream.NewWriter()
		writeLabelStack(body, p.Labels)
		body.WriteBytes(p.RD[:])
		bits := p.Prefix.Bits()
		byteLen := (bits + 7) / 8
		full := p.Prefix.Addr().AsSlice()
		body.WriteBytes(full[:byteLen])
		totalBits := len(p.Labels)*3*8 + 8*8 + bits
		w.WriteByte(byte(totalBits))
		w.WriteBytes(body.Bytes())
	}
}

// ReadEVPNNLRI decodes a run of EVPN NLRI entries, supporting the two
// route types spec.md §4.2 names (MAC/IP Advertisement, Inclusive
// Multicast Ethernet Tag).
func ReadEVPNNLRI(r *stream.Reader) ([]EVPNRoute, error) {
	var out []EVPNRoute
	for r.Len() > 0 {
		typ, err := r.Byte()
		if err != nil {
			return nil, err
		}
		length, err := r.Byte()
		if err != nil {
			return nil, err
		}
		body, err := r.Sub(int(length))
		if err != nil {
			return nil, &InvalidLengthError{Container: "EVPN NLRI", Declared: int(length), Have: r.Len()}
		}
		route, err := readEVPNRoute(EVPNRouteType(typ), body)
		if err != nil {
			return nil, err
		}
		out = append(out, route)
	}
	return out, nil
}

func readEVPNRoute(typ EVPNRouteType, r *stream.Reader) (EVPNRoute, error) {
	route := EVPNRoute{Type: typ}
	rdBytes, err := r.Bytes(8)
	if err != nil {
		return route, err
	}
	copy(route.RD[:], rdBytes)

	switch typ {
	case EVPNInclusiveMulticast:
		if _, err := r.Bytes(10); err != nil { // ESI, unused for IMET
			return route, err
		}
		tag, err := r.Uint32()
		if err != nil {
			return route, err
		}
		route.EthernetTag = tag
		ipLen, err := r.Byte()
		if err != nil {
			return route, err
		}
		route.IPLen = ipLen
		if ipLen > 0 {
			addrBytes, err := r.Bytes(int(ipLen) / 8)
			if err != nil {
				return route, err
			}
			route.IP, _ = addrFromPrefixBytes(addrBytes, int(ipLen))
		}
	case EVPNMACIPAdvertisement:
		esiBytes, err := r.Bytes(10)
		if err != nil {
			return route, err
		}
		copy(route.ESI[:], esiBytes)
		tag, err := r.Uint32()
		if err != nil {
			return route, err
		}
		route.EthernetTag = tag
		macLen, err := r.Byte()
		if err != nil {
			return route, err
		}
		route.MACLen = macLen
		macBytes, err := r.Bytes(6)
		if err != nil {
			return route, err
		}
		copy(route.MAC[:], macBytes)
		ipLen, err := r.Byte()
		if err != nil {
			return route, err
		}
		route.IPLen = ipLen
		if ipLen > 0 {
			addrBytes, err := r.Bytes(int(ipLen) / 8)
			if err != nil {
				return route, err
			}
			route.IP, _ = addrFromPrefixBytes(addrBytes, int(ipLen))
		}
		label1, err := r.Bytes(3)
		if err != nil {
			return route, err
		}
		route.Label1 = uint32(label1[0])<<12 | uint32(label1[1])<<4 | uint32(label1[2])>>4
		if r.Len() >= 3 {
			label2, err := r.Bytes(3)
			if err != nil {
				return route, err
			}
			route.Label2 = uint32(label2[0])<<12 | uint32(label2[1])<<4 | uint32(label2[2])>>4
		}
	default:
		return route, fmt.Errorf("evpn route type %d: %w", typ, ErrUnsupportedAttribute)
	}
	return route, nil
}

// WriteEVPNNLRI serializes a run of EVPN NLRI entries.
func WriteEVPNNLRI(w *stream.Writer, routes []EVPNRoute) {
	for _, route := range routes {
		body := stream.NewWriter()
		body.WriteBytes(route.RD[:])
		switch route.Type {
		case EVPNInclusiveMulticast:
			body.WriteBytes(make([]byte, 10))
			body.WriteUint32(route.EthernetTag)
			body.WriteByte(route.IPLen)
			if route.IPLen > 0 {
				full := route.IP.AsSlice()
				body.WriteBytes(full[:route.IPLen/8])
			}
		case EVPNMACIPAdvertisement:
			body.WriteBytes(route.ESI[:])
			body.WriteUint32(route.EthernetTag)
			body.WriteByte(route.MACLen)
			body.WriteBytes(route.MAC[:])
			body.WriteByte(route.IPLen)
			if route.IPLen > 0 {
				full := route.IP.AsSlice()
				body.WriteBytes(full[:route.IPLen/8])
			}
			writeEVPNLabel(body, route.Label1)
			if route.Label2 != 0 {
				writeEVPNLabel(body, route.Label2)
			}
		}
		w.WriteByte(byte(route.Type))
		w.WriteByte(byte(body.Len()))
		w.WriteBytes(body.Bytes())
	}
}

func writeEVPNLabel(w *stream.Writer, label uint32) {
	w.WriteBytes([]byte{byte(label >> 12), byte(label >> 4), byte(label << 4)})
}

// RTCRoute is a Route Target Constraint NLRI entry (RFC 4684): an
// origin AS and a Route Target extended community prefix, used to
// filter which VPN routes a peer wants re-advertised.
type RTCRoute struct {
	OriginAS ASN
	Prefix   ExtendedCommunity
	PrefixLen byte // bits of Prefix significant, 0 means the AS-only wildcard
}

// ReadRTCNLRI decodes a run of Route Target Constraint NLRI entries.
func ReadRTCNLRI(r *stream.Reader) ([]RTCRoute, error) {
	var out []RTCRoute
	for r.Len() > 0 {
		bitLen, err := r.Byte()
		if err != nil {
			return nil, err
		}
		if bitLen == 0 {
			out = append(out, RTCRoute{})
			continue
		}
		byteLen := (int(bitLen) + 7) / 8
		b, err := r.Bytes(byteLen)
		if err != nil {
			return nil, &InvalidLengthError{Container: "RTC NLRI", Declared: byteLen, Have: r.Len()}
		}
		full := make([]byte, 12)
		copy(full, b)
		route := RTCRoute{PrefixLen: bitLen}
		route.OriginAS = ASN(uint32(full[0])<<24 | uint32(full[1])<<16 | uint32(full[2])<<8 | uint32(full[3]))
		copy(route.Prefix[:], full[4:12])
		out = append(out, route)
	}
	return out, nil
}

// WriteRTCNLRI serializes a run of Route Target Constraint NLRI
// entries.
func WriteRTCNLRI(w *stream.Writer, routes []RTCRoute) {
	for _, route := range routes {
		if route.PrefixLen == 0 {
			w.WriteByte(0)
			continue
		}
		var full [12]byte
		full[0] = byte(route.OriginAS >> 24)
		full[1] = byte(route.OriginAS >> 16)
		full[2] = byte(route.OriginAS >> 8)
		full[3] = byte(route.OriginAS)
		copy(full[4:], route.Prefix[:])
		byteLen := (int(route.PrefixLen) + 7) / 8
		w.WriteByte(route.PrefixLen)
		w.WriteBytes(full[:byteLen])
	}
}
