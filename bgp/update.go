package bgp

import (
	"net/netip"

	"github.com/zeburouter/zeburouter/stream"
)

// Update is a parsed UPDATE message: withdrawn IPv4 unicast routes,
// the path attribute set (which may itself carry MP_REACH_NLRI /
// MP_UNREACH_NLRI for other families), and newly advertised IPv4
// unicast NLRI.
//
// A message with every field empty is the End-of-RIB marker for IPv4
// unicast (RFC 4724 §2) and must be accepted without error.
type Update struct {
	WithdrawnRoutes []IPPrefix
	Attributes      *PathAttributes
	NLRI            []IPPrefix
}

// ReadUpdate parses an UPDATE message body. asFour and addPath carry
// the session's negotiated capabilities, needed to select the AS_PATH
// encoding and whether IPv4 unicast NLRI carries an AddPath
// identifier.
func ReadUpdate(body []byte, asFour bool, addPath map[Family]bool) (*Update, error) {
	r := stream.NewReader(body)

	withdrawnLen, err := r.Uint16()
	if err != nil {
		return nil, err
	}
	withdrawnBody, err := r.Sub(int(withdrawnLen))
	if err != nil {
		return nil, &InvalidLengthError{Container: "withdrawn routes", Declared: int(withdrawnLen), Have: r.Len()}
	}
	withdrawn, err := ReadIPUnicastNLRI(withdrawnBody, 32, addPath[FamilyIPv4Unicast])
	if err != nil {
		return nil, err
	}

	attrLen, err := r.Uint16()
	if err != nil {
		return nil, err
	}
	attrBody, err := r.Bytes(int(attrLen))
	if err != nil {
		return nil, &InvalidLengthError{Container: "path attributes", Declared: int(attrLen), Have: r.Len()}
	}
	attrs, err := ReadPathAttributes(attrBody, asFour, addPath)
	if err != nil {
		return nil, err
	}

	nlriReader := stream.NewReader(r.Rest())
	nlri, err := ReadIPUnicastNLRI(nlriReader, 32, addPath[FamilyIPv4Unicast])
	if err != nil {
		return nil, err
	}

	return &Update{WithdrawnRoutes: withdrawn, Attributes: attrs, NLRI: nlri}, nil
}

// IsEndOfRib reports whether u is the empty End-of-RIB marker.
func (u *Update) IsEndOfRib() bool {
	return len(u.WithdrawnRoutes) == 0 && len(u.NLRI) == 0 &&
		(u.Attributes == nil || isEmptyAttrs(u.Attributes))
}

func isEmptyAttrs(pa *PathAttributes) bool {
	return pa.Origin == nil && pa.ASPath == nil && !pa.NextHop.IsValid() &&
		pa.MultiExitDisc == nil && pa.LocalPref == nil && !pa.AtomicAggregate &&
		pa.Aggregator == nil && pa.Communities == nil && pa.OriginatorID == nil &&
		pa.ClusterList == nil && pa.MPReach == nil && pa.MPUnreach == nil &&
		pa.ExtendedCommunities == nil && pa.LargeCommunities == nil &&
		pa.AIGP == nil && pa.PMSITunnel == nil && len(pa.Unknown) == 0
}

// EndOfRib builds the IPv4 unicast End-of-RIB marker UPDATE.
func EndOfRib() *Update {
	return &Update{Attributes: &PathAttributes{}}
}

// Bytes serializes the UPDATE message body.
func (u *Update) Bytes(asFour bool, addPath map[Family]bool) []byte {
	w := stream.NewWriter()

	withdrawn := stream.NewWriter()
	WriteIPUnicastNLRI(withdrawn, u.WithdrawnRoutes, addPath[FamilyIPv4Unicast])
	w.WriteUint16(uint16(withdrawn.Len()))
	w.WriteBytes(withdrawn.Bytes())

	var attrBytes []byte
	if u.Attributes != nil {
		attrBytes = u.Attributes.Bytes(asFour, addPath)
	}
	w.WriteUint16(uint16(len(attrBytes)))
	w.WriteBytes(attrBytes)

	WriteIPUnicastNLRI(w, u.NLRI, addPath[FamilyIPv4Unicast])
	return w.Bytes()
}

// NextHop returns the UPDATE's effective next hop address, preferring
// MP_REACH_NLRI's family-specific next hop over the legacy NEXT_HOP
// attribute.
func (u *Update) NextHop() (netip.Addr, bool) {
	if u.Attributes == nil {
		return netip.Addr{}, false
	}
	if u.Attributes.MPReach != nil && len(u.Attributes.MPReach.NextHop) >= 4 {
		nh := u.Attributes.MPReach.NextHop
		if len(nh) == 4 {
			return netip.AddrFrom4([4]byte(nh)), true
		}
		if len(nh) >= 16 {
			return netip.AddrFrom16([16]byte(nh[:16])), true
		}
	}
	if u.Attributes.NextHop.IsValid() {
		return u.Attributes.NextHop, true
	}
	return netip.Addr{}, false
}
