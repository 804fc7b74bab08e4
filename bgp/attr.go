package bgp

import (
	"fmt"
	"net/netip"

	"github.com/zeburouter/zeburouter/stream"
)

// AttrType is a BGP path attribute type code (RFC 4271 §5, RFC 4760,
// RFC 4360, RFC 4456, RFC 6793, RFC 7311/draft-aigp, RFC 8092).
type AttrType byte

const (
	AttrOrigin              AttrType = 1
	AttrASPath              AttrType = 2
	AttrNextHop             AttrType = 3
	AttrMultiExitDisc       AttrType = 4
	AttrLocalPref           AttrType = 5
	AttrAtomicAggregate     AttrType = 6
	AttrAggregator          AttrType = 7
	AttrCommunities         AttrType = 8
	AttrOriginatorID        AttrType = 9
	AttrClusterList         AttrType = 10
	AttrMPReachNLRI         AttrType = 14
	AttrMPUnreachNLRI       AttrType = 15
	AttrExtendedCommunities AttrType = 16
	AttrPMSITunnel          AttrType = 22
	AttrAIGP                AttrType = 26
	AttrLargeCommunities    AttrType = 32
)

func (t AttrType) String() string {
	switch t {
	case AttrOrigin:
		return "ORIGIN"
	case AttrASPath:
		return "AS_PATH"
	case AttrNextHop:
		return "NEXT_HOP"
	case AttrMultiExitDisc:
		return "MULTI_EXIT_DISC"
	case AttrLocalPref:
		return "LOCAL_PREF"
	case AttrAtomicAggregate:
		return "ATOMIC_AGGREGATE"
	case AttrAggregator:
		return "AGGREGATOR"
	case AttrCommunities:
		return "COMMUNITIES"
	case AttrOriginatorID:
		return "ORIGINATOR_ID"
	case AttrClusterList:
		return "CLUSTER_LIST"
	case AttrMPReachNLRI:
		return "MP_REACH_NLRI"
	case AttrMPUnreachNLRI:
		return "MP_UNREACH_NLRI"
	case AttrExtendedCommunities:
		return "EXTENDED_COMMUNITIES"
	case AttrPMSITunnel:
		return "PMSI_TUNNEL"
	case AttrAIGP:
		return "AIGP"
	case AttrLargeCommunities:
		return "LARGE_COMMUNITIES"
	default:
		return fmt.Sprintf("attr(%d)", byte(t))
	}
}

// Flags is a path attribute's 1-octet flags field: the top 4 bits
// (Optional, Transitive, Partial, Extended Length) of RFC 4271's
// Attribute Type field.
type Flags byte

const (
	flagOptional       Flags = 0x80
	flagTransitive     Flags = 0x40
	flagPartial        Flags = 0x20
	flagExtendedLength Flags = 0x10
)

func (f Flags) Optional() bool       { return f&flagOptional != 0 }
func (f Flags) Transitive() bool     { return f&flagTransitive != 0 }
func (f Flags) Partial() bool        { return f&flagPartial != 0 }
func (f Flags) ExtendedLength() bool { return f&flagExtendedLength != 0 }

func (f Flags) setPartial() Flags { return f | flagPartial }

// wellKnownFlags returns the canonical flag byte for a well-known
// mandatory attribute: neither optional nor extended-length by
// default.
func wellKnownFlags() Flags { return flagTransitive }

func optionalTransitiveFlags() Flags { return flagOptional | flagTransitive }

func optionalNonTransitiveFlags() Flags { return flagOptional }

// Origin is the well-known mandatory ORIGIN attribute value.
type Origin byte

const (
	OriginIGP        Origin = 0
	OriginEGP        Origin = 1
	OriginIncomplete Origin = 2
)

// ASPathSegmentType distinguishes AS_SEQUENCE from AS_SET (RFC 4271
// §4.3).
type ASPathSegmentType byte

const (
	ASSet      ASPathSegmentType = 1
	ASSequence ASPathSegmentType = 2
)

// ASPathSegment is one segment of the AS_PATH attribute.
type ASPathSegment struct {
	Type ASPathSegmentType
	ASNs []ASN
}

// Aggregator is the AGGREGATOR attribute value: the ASN and BGP
// Identifier of the speaker that formed the aggregate route.
type Aggregator struct {
	ASN        ASN
	Identifier Identifier
}

// MPReach is the decoded MP_REACH_NLRI attribute (RFC 4760): a
// (AFI,SAFI), a family-specific next hop, and the family's NLRI,
// exactly one of the typed slices below populated per Family.
type MPReach struct {
	Family  Family
	NextHop []byte

	IPv4Unicast []IPPrefix
	IPv6Unicast []IPPrefix
	VPN         []VPNPrefix
	EVPN        []EVPNRoute
	RTC         []RTCRoute
}

// MPUnreach is the decoded MP_UNREACH_NLRI attribute.
type MPUnreach struct {
	Family      Family
	IPv4Unicast []IPPrefix
	IPv6Unicast []IPPrefix
	VPN         []VPNPrefix
	EVPN        []EVPNRoute
	RTC         []RTCRoute
}

// PathAttributes is the parsed set of path attributes carried by a
// single UPDATE message. Unknown optional transitive attributes are
// retained raw in Unknown with the Partial bit set, per RFC 4271 §9
// ("the attribute is retained for propagation to other BGP
// speakers"); unknown optional non-transitive attributes are quietly
// dropped during decode, matching the same section.
type PathAttributes struct {
	Origin              *Origin
	ASPath              []ASPathSegment
	NextHop             netip.Addr
	MultiExitDisc       *uint32
	LocalPref           *uint32
	AtomicAggregate     bool
	Aggregator          *Aggregator
	Communities         []Community
	OriginatorID        *Identifier
	ClusterList         []uint32
	MPReach             *MPReach
	MPUnreach           *MPUnreach
	ExtendedCommunities []ExtendedCommunity
	LargeCommunities    []LargeCommunity
	AIGP                *uint64
	PMSITunnel          []byte
	Unknown             []RawAttribute
}

// RawAttribute is an attribute this implementation does not interpret
// but must be able to round-trip.
type RawAttribute struct {
	Flags Flags
	Type  AttrType
	Value []byte
}

// ReadPathAttributes implements spec.md §4.2's attribute parse
// contract: read flags byte, type code, length (1 or 2 bytes per the
// extended-length flag), then parse the payload of exactly `length`
// bytes using a selector keyed on (type, asFour). MP_REACH_NLRI and
// MP_UNREACH_NLRI dispatch on (AFI, SAFI) and optionally consume
// AddPath identifiers per addPath.
func ReadPathAttributes(body []byte, asFour bool, addPath map[Family]bool) (*PathAttributes, error) {
	r := stream.NewReader(body)
	pa := &PathAttributes{}
	for r.Len() > 0 {
		flagByte, err := r.Byte()
		if err != nil {
			return nil, err
		}
		typByte, err := r.Byte()
		if err != nil {
			return nil, err
		}
		flags := Flags(flagByte)
		typ := AttrType(typByte)

		var length int
		if flags.ExtendedLength() {
			l, err := r.Uint16()
			if err != nil {
				return nil, err
			}
			length = int(l)
		} else {
			l, err := r.Byte()
			if err != nil {
				return nil, err
			}
			length = int(l)
		}
		value, err := r.Bytes(length)
		if err != nil {
			return nil, &AttributeParseError{AttrType: typ, Source: &InvalidLengthError{Container: typ.String(), Declared: length, Have: r.Len()}}
		}

		if err := pa.decodeOne(flags, typ, value, asFour, addPath); err != nil {
			return nil, &AttributeParseError{AttrType: typ, Source: err}
		}
	}
	return pa, nil
}

func (pa *PathAttributes) decodeOne(flags Flags, typ AttrType, value []byte, asFour bool, addPath map[Family]bool) error {
	sr := stream.NewReader(value)
	switch typ {
	case AttrOrigin:
		b, err := sr.Byte()
		if err != nil {
			return err
		}
		o := Origin(b)
		pa.Origin = &o
	case AttrASPath:
		segs, err := readASPath(sr, asFour)
		if err != nil {
			return err
		}
		pa.ASPath = segs
	case AttrNextHop:
		b, err := sr.Bytes(4)
		if err != nil {
			return err
		}
		pa.NextHop = netip.AddrFrom4([4]byte(b))
	case AttrMultiExitDisc:
		v, err := sr.Uint32()
		if err != nil {
			return err
		}
		pa.MultiExitDisc = &v
	case AttrLocalPref:
		v, err := sr.Uint32()
		if err != nil {
			return err
		}
		pa.LocalPref = &v
	case AttrAtomicAggregate:
		pa.AtomicAggregate = true
	case AttrAggregator:
		agg, err := readAggregator(sr, asFour)
		if err != nil {
			return err
		}
		pa.Aggregator = agg
	case AttrCommunities:
		cs, err := ReadCommunities(value)
		if err != nil {
			return err
		}
		pa.Communities = cs
	case AttrOriginatorID:
		v, err := sr.Uint32()
		if err != nil {
			return err
		}
		id := Identifier(v)
		pa.OriginatorID = &id
	case AttrClusterList:
		for sr.Len() >= 4 {
			v, err := sr.Uint32()
			if err != nil {
				return err
			}
			pa.ClusterList = append(pa.ClusterList, v)
		}
	case AttrMPReachNLRI:
		reach, err := readMPReach(sr, addPath)
		if err != nil {
			return err
		}
		pa.MPReach = reach
	case AttrMPUnreachNLRI:
		unreach, err := readMPUnreach(sr, addPath)
		if err != nil {
			return err
		}
		pa.MPUnreach = unreach
	case AttrExtendedCommunities:
		ecs, err := ReadExtendedCommunities(value)
		if err != nil {
			return err
		}
		pa.ExtendedCommunities = ecs
	case AttrLargeCommunities:
		lcs, err := ReadLargeCommunities(value)
		if err != nil {
			return err
		}
		pa.LargeCommunities = lcs
	case AttrAIGP:
		// AIGP TLV: 1-octet type (1), 2-octet length, 8-octet metric.
		if _, err := sr.Byte(); err != nil {
			return err
		}
		if _, err := sr.Uint16(); err != nil {
			return err
		}
		hi, err := sr.Uint32()
		if err != nil {
			return err
		}
		lo, err := sr.Uint32()
		if err != nil {
			return err
		}
		v := uint64(hi)<<32 | uint64(lo)
		pa.AIGP = &v
	case AttrPMSITunnel:
		pa.PMSITunnel = append([]byte(nil), value...)
	default:
		if flags.Optional() && !flags.Transitive() {
			// Quietly ignored per RFC 4271 §9.
			return nil
		}
		pa.Unknown = append(pa.Unknown, RawAttribute{Flags: flags.setPartial(), Type: typ, Value: append([]byte(nil), value...)})
	}
	return nil
}

func readASPath(r *stream.Reader, asFour bool) ([]ASPathSegment, error) {
	var segs []ASPathSegment
	for r.Len() > 0 {
		segType, err := r.Byte()
		if err != nil {
			return nil, err
		}
		count, err := r.Byte()
		if err != nil {
			return nil, err
		}
		seg := ASPathSegment{Type: ASPathSegmentType(segType)}
		for i := 0; i < int(count); i++ {
			var asn uint32
			if asFour {
				v, err := r.Uint32()
				if err != nil {
					return nil, err
				}
				asn = v
			} else {
				v, err := r.Uint16()
				if err != nil {
					return nil, err
				}
				asn = uint32(v)
			}
			seg.ASNs = append(seg.ASNs, ASN(asn))
		}
		segs = append(segs, seg)
	}
	return segs, nil
}

func writeASPath(w *stream.Writer, segs []ASPathSegment, asFour bool) {
	for _, seg := range segs {
		w.WriteByte(byte(seg.Type))
		w.WriteByte(byte(len(seg.ASNs)))
		for _, asn := range seg.ASNs {
			if asFour {
				w.WriteUint32(uint32(asn))
			} else {
				w.WriteUint16(uint16(asn))
			}
		}
	}
}

func readAggregator(r *stream.Reader, asFour bool) (*Aggregator, error) {
	var asn uint32
	if asFour {
		v, err := r.Uint32()
		if err != nil {
			return nil, err
		}
		asn = v
	} else {
		v, err := r.Uint16()
		if err != nil {
			return nil, err
		}
		asn = uint32(v)
	}
	id, err := r.Uint32()
	if err != nil {
		return nil, err
	}
	return &Aggregator{ASN: ASN(asn), Identifier: Identifier(id)}, nil
}

func writeAggregator(w *stream.Writer, agg *Aggregator, asFour bool) {
	if asFour {
		w.WriteUint32(uint32(agg.ASN))
	} else {
		w.WriteUint16(uint16(agg.ASN))
	}
	w.WriteUint32(uint32(agg.Identifier))
}

func readMPReach(r *stream.Reader, addPath map[Family]bool) (*MPReach, error) {
	afi, err := r.Uint16()
	if err != nil {
		return nil, err
	}
	safi, err := r.Byte()
	if err != nil {
		return nil, err
	}
	family := Family{AFI(afi), SAFI(safi)}
	nhLen, err := r.Byte()
	if err != nil {
		return nil, err
	}
	nextHop, err := r.Bytes(int(nhLen))
	if err != nil {
		return nil, err
	}
	if _, err := r.Byte(); err != nil { // reserved
		return nil, err
	}
	reach := &MPReach{Family: family, NextHop: append([]byte(nil), nextHop...)}
	ap := addPath[family]
	switch family {
	case FamilyIPv4Unicast:
		p, err := ReadIPUnicastNLRI(r, 32, ap)
		if err != nil {
			return nil, err
		}
		reach.IPv4Unicast = p
	case FamilyIPv6Unicast:
		p, err := ReadIPUnicastNLRI(r, 128, ap)
		if err != nil {
			return nil, err
		}
		reach.IPv6Unicast = p
	case FamilyVPNv4:
		p, err := ReadVPNNLRI(r, 32, ap)
		if err != nil {
			return nil, err
		}
		reach.VPN = p
	case FamilyEVPN:
		p, err := ReadEVPNNLRI(r)
		if err != nil {
			return nil, err
		}
		reach.EVPN = p
	case FamilyRTC:
		p, err := ReadRTCNLRI(r)
		if err != nil {
			return nil, err
		}
		reach.RTC = p
	default:
		return nil, ErrUnsupportedAttribute
	}
	return reach, nil
}

func writeMPReach(reach *MPReach, addPath map[Family]bool) []byte {
	w := stream.NewWriter()
	w.WriteUint16(uint16(reach.Family.AFI))
	w.WriteByte(byte(reach.Family.SAFI))
	w.WriteByte(byte(len(reach.NextHop)))
	w.WriteBytes(reach.NextHop)
	w.WriteByte(0) // reserved
	ap := addPath[reach.Family]
	switch reach.Family {
	case FamilyIPv4Unicast:
		WriteIPUnicastNLRI(w, reach.IPv4Unicast, ap)
	case FamilyIPv6Unicast:
		WriteIPUnicastNLRI(w, reach.IPv6Unicast, ap)
	case FamilyVPNv4:
		WriteVPNNLRI(w, reach.VPN, ap)
	case FamilyEVPN:
		WriteEVPNNLRI(w, reach.EVPN)
	case FamilyRTC:
		WriteRTCNLRI(w, reach.RTC)
	}
	return w.Bytes()
}

func readMPUnreach(r *stream.Reader, addPath map[Family]bool) (*MPUnreach, error) {
	afi, err := r.Uint16()
	if err != nil {
		return nil, err
	}
	safi, err := r.Byte()
	if err != nil {
		return nil, err
	}
	family := Family{AFI(afi), SAFI(safi)}
	unreach := &MPUnreach{Family: family}
	ap := addPath[family]
	switch family {
	case FamilyIPv4Unicast:
		p, err := ReadIPUnicastNLRI(r, 32, ap)
		if err != nil {
			return nil, err
		}
		unreach.IPv4Unicast = p
	case FamilyIPv6Unicast:
		p, err := ReadIPUnicastNLRI(r, 128, ap)
		if err != nil {
			return nil, err
		}
		unreach.IPv6Unicast = p
	case FamilyVPNv4:
		p, err := ReadVPNNLRI(r, 32, ap)
		if err != nil {
			return nil, err
		}
		unreach.VPN = p
	case FamilyEVPN:
		p, err := ReadEVPNNLRI(r)
		if err != nil {
			return nil, err
		}
		unreach.EVPN = p
	case FamilyRTC:
		p, err := ReadRTCNLRI(r)
		if err != nil {
			return nil, err
		}
		unreach.RTC = p
	default:
		return nil, ErrUnsupportedAttribute
	}
	return unreach, nil
}

func writeMPUnreach(unreach *MPUnreach, addPath map[Family]bool) []byte {
	w := stream.NewWriter()
	w.WriteUint16(uint16(unreach.Family.AFI))
	w.WriteByte(byte(unreach.Family.SAFI))
	ap := addPath[unreach.Family]
	switch unreach.Family {
	case FamilyIPv4Unicast:
		WriteIPUnicastNLRI(w, unreach.IPv4Unicast, ap)
	case FamilyIPv6Unicast:
		WriteIPUnicastNLRI(w, unreach.IPv6Unicast, ap)
	case FamilyVPNv4:
		WriteVPNNLRI(w, unreach.VPN, ap)
	case FamilyEVPN:
		WriteEVPNNLRI(w, unreach.EVPN)
	case FamilyRTC:
		WriteRTCNLRI(w, unreach.RTC)
	}
	return w.Bytes()
}

// writeAttr emits one attribute's flags/type/length/value, choosing a
// 1- or 2-byte length field from whether value exceeds 255 octets.
func writeAttr(w *stream.Writer, flags Flags, typ AttrType, value []byte) {
	if len(value) > 255 {
		flags |= flagExtendedLength
	} else {
		flags &^= flagExtendedLength
	}
	w.WriteByte(byte(flags))
	w.WriteByte(byte(typ))
	if flags.ExtendedLength() {
		w.WriteUint16(uint16(len(value)))
	} else {
		w.WriteByte(byte(len(value)))
	}
	w.WriteBytes(value)
}

// Bytes serializes the attribute set. addPath indicates, per family,
// whether MP_REACH_NLRI/MP_UNREACH_NLRI NLRI entries carry a path
// identifier.
func (pa *PathAttributes) Bytes(asFour bool, addPath map[Family]bool) []byte {
	w := stream.NewWriter()
	if pa.Origin != nil {
		writeAttr(w, wellKnownFlags(), AttrOrigin, []byte{byte(*pa.Origin)})
	}
	if pa.ASPath != nil {
		body := stream.NewWriter()
		writeASPath(body, pa.ASPath, asFour)
		writeAttr(w, wellKnownFlags(), AttrASPath, body.Bytes())
	}
	if pa.NextHop.IsValid() {
		b := pa.NextHop.As4()
		writeAttr(w, wellKnownFlags(), AttrNextHop, b[:])
	}
	if pa.MultiExitDisc != nil {
		body := stream.NewWriter()
		body.WriteUint32(*pa.MultiExitDisc)
		writeAttr(w, optionalNonTransitiveFlags(), AttrMultiExitDisc, body.Bytes())
	}
	if pa.LocalPref != nil {
		body := stream.NewWriter()
		body.WriteUint32(*pa.LocalPref)
		writeAttr(w, wellKnownFlags(), AttrLocalPref, body.Bytes())
	}
	if pa.AtomicAggregate {
		writeAttr(w, wellKnownFlags(), AttrAtomicAggregate, nil)
	}
	if pa.Aggregator != nil {
		body := stream.NewWriter()
		writeAggregator(body, pa.Aggregator, asFour)
		writeAttr(w, optionalTransitiveFlags(), AttrAggregator, body.Bytes())
	}
	if pa.Communities != nil {
		writeAttr(w, optionalTransitiveFlags(), AttrCommunities, WriteCommunities(pa.Communities))
	}
	if pa.OriginatorID != nil {
		body := stream.NewWriter()
		body.WriteUint32(uint32(*pa.OriginatorID))
		writeAttr(w, optionalNonTransitiveFlags(), AttrOriginatorID, body.Bytes())
	}
	if pa.ClusterList != nil {
		body := stream.NewWriter()
		for _, v := range pa.ClusterList {
			body.WriteUint32(v)
		}
		writeAttr(w, optionalNonTransitiveFlags(), AttrClusterList, body.Bytes())
	}
	if pa.MPReach != nil {
		writeAttr(w, optionalNonTransitiveFlags(), AttrMPReachNLRI, writeMPReach(pa.MPReach, addPath))
	}
	if pa.MPUnreach != nil {
		writeAttr(w, optionalNonTransitiveFlags(), AttrMPUnreachNLRI, writeMPUnreach(pa.MPUnreach, addPath))
	}
	if pa.ExtendedCommunities != nil {
		writeAttr(w, optionalTransitiveFlags(), AttrExtendedCommunities, WriteExtendedCommunities(pa.ExtendedCommunities))
	}
	if pa.LargeCommunities != nil {
		writeAttr(w, optionalTransitiveFlags(), AttrLargeCommunities, WriteLargeCommunities(pa.LargeCommunities))
	}
	if pa.AIGP != nil {
		body := stream.NewWriter()
		body.WriteByte(1)
		body.WriteUint16(11)
		body.WriteUint32(uint32(*pa.AIGP >> 32))
		body.WriteUint32(uint32(*pa.AIGP))
		writeAttr(w, optionalNonTransitiveFlags(), AttrAIGP, body.Bytes())
	}
	if pa.PMSITunnel != nil {
		writeAttr(w, optionalTransitiveFlags(), AttrPMSITunnel, pa.PMSITunnel)
	}
	for _, raw := range pa.Unknown {
		writeAttr(w, raw.Flags, raw.Type, raw.Value)
	}
	return w.Bytes()
}
