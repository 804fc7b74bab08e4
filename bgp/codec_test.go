package bgp

import (
	"net/netip"
	"reflect"
	"testing"
)

func mustPrefix(t *testing.T, s string) netip.Prefix {
	t.Helper()
	p, err := netip.ParsePrefix(s)
	if err != nil {
		t.Fatalf("ParsePrefix(%q): %v", s, err)
	}
	return p
}

func TestHeaderRoundTrip(t *testing.T) {
	frame := Frame(TypeKeepalive, nil)
	if len(frame) != HeaderLen {
		t.Fatalf("KEEPALIVE frame length = %d, want %d", len(frame), HeaderLen)
	}
	frames, consumed := SplitFrames(frame)
	if len(frames) != 1 || consumed != HeaderLen {
		t.Fatalf("SplitFrames = %d frames, consumed %d; want 1, %d", len(frames), consumed, HeaderLen)
	}
}

func TestSplitFramesPartial(t *testing.T) {
	full := Frame(TypeKeepalive, nil)
	partial := full[:HeaderLen-1]
	frames, consumed := SplitFrames(partial)
	if len(frames) != 0 || consumed != 0 {
		t.Fatalf("SplitFrames(partial) = %d frames, consumed %d; want 0, 0", len(frames), consumed)
	}
}

func TestNotificationRoundTrip(t *testing.T) {
	n := NewNotification(ErrOpenMessage, SubBadPeerAS, []byte{1, 2, 3})
	got, err := ReadNotification(n.Bytes())
	if err != nil {
		t.Fatalf("ReadNotification: %v", err)
	}
	if !reflect.DeepEqual(n, got) {
		t.Fatalf("round trip: got %+v, want %+v", got, n)
	}
}

func TestOpenRoundTrip(t *testing.T) {
	caps := NewSet()
	caps.Multiprotocol[FamilyIPv6Unicast] = true
	caps.AS4 = 65550
	caps.RouteRefresh = true
	caps.AddPath[FamilyIPv4Unicast] = AddPathBoth

	o := &Open{
		Version:      Version4,
		MyAS:         ASTrans,
		HoldTime:     180,
		Identifier:   NewIdentifier(10, 0, 0, 1),
		Capabilities: caps,
	}
	got, err := ReadOpen(o.Bytes())
	if err != nil {
		t.Fatalf("ReadOpen: %v", err)
	}
	if got.Version != o.Version || got.MyAS != o.MyAS || got.HoldTime != o.HoldTime || got.Identifier != o.Identifier {
		t.Fatalf("round trip fixed fields: got %+v, want %+v", got, o)
	}
	if got.EffectiveAS() != 65550 {
		t.Fatalf("EffectiveAS() = %d, want 65550", got.EffectiveAS())
	}
	if !got.Capabilities.Multiprotocol[FamilyIPv6Unicast] {
		t.Fatalf("multiprotocol capability lost in round trip")
	}
	if !got.Capabilities.RouteRefresh {
		t.Fatalf("route refresh capability lost in round trip")
	}
	if got.Capabilities.AddPath[FamilyIPv4Unicast] != AddPathBoth {
		t.Fatalf("addpath capability lost in round trip")
	}
}

// S4. BGP FSM OPEN mismatch: a peer advertising an unexpected ASN is
// rejected with NOTIFICATION(OpenMessageError, BadPeerAS).
func TestOpenValidateASMismatch(t *testing.T) {
	o := &Open{Version: Version4, MyAS: 65001, HoldTime: 90, Capabilities: NewSet()}
	notif := o.Validate(65002, 3)
	if notif == nil {
		t.Fatalf("Validate: expected mismatch notification, got nil")
	}
	if notif.Code != ErrOpenMessage || notif.Subcode != SubBadPeerAS {
		t.Fatalf("Validate mismatch = %+v, want OpenMessageError/BadPeerAS", notif)
	}
}

func TestOpenValidateAccepts(t *testing.T) {
	o := &Open{Version: Version4, MyAS: 65001, HoldTime: 90, Capabilities: NewSet()}
	if notif := o.Validate(65001, 3); notif != nil {
		t.Fatalf("Validate: unexpected notification %+v", notif)
	}
}

// S2. Community canonicalization (spec.md §4.2, §8 idempotency
// property): textual parse, sort+dedup, idempotent re-application.
func TestCommunityTextRoundTrip(t *testing.T) {
	cs, err := ParseCommunityText("65000:100 no-export 65000:100 4259839234")
	if err != nil {
		t.Fatalf("ParseCommunityText: %v", err)
	}
	once := Canonicalize(cs)
	twice := Canonicalize(once)
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("Canonicalize not idempotent: once=%v twice=%v", once, twice)
	}
	// 65000:100 appears twice in input and must collapse to one.
	count := 0
	for _, c := range once {
		if c == 0 {
			continue
		}
		if c.String() == "65000:100" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("duplicate community 65000:100 survived canonicalization: %v", once)
	}
	text := Text(cs)
	reparsed, err := ParseCommunityText(text)
	if err != nil {
		t.Fatalf("ParseCommunityText(Text(cs)): %v", err)
	}
	if !reflect.DeepEqual(Canonicalize(reparsed), once) {
		t.Fatalf("Text/ParseCommunityText round trip mismatch: got %v want %v", reparsed, once)
	}
}

// S2, graceful-shutdown well-known community (RFC 8326): textual
// parse of a bare 32-bit value, a well-known name, and an ASN:NN
// pair, rendered back in sorted order.
func TestCommunityTextGracefulShutdown(t *testing.T) {
	cs, err := ParseCommunityText("4294967295 graceful-shutdown 100:10")
	if err != nil {
		t.Fatalf("ParseCommunityText: %v", err)
	}
	got := Text(cs)
	want := "100:10 graceful-shutdown 65535:65535"
	if got != want {
		t.Fatalf("Text(%v) = %q, want %q", cs, got, want)
	}
}

func TestUpdateRoundTripIPv4(t *testing.T) {
	origin := OriginIGP
	localPref := uint32(100)
	u := &Update{
		WithdrawnRoutes: []IPPrefix{{Prefix: mustPrefix(t, "198.51.100.0/24")}},
		Attributes: &PathAttributes{
			Origin:      &origin,
			ASPath:      []ASPathSegment{{Type: ASSequence, ASNs: []ASN{65001, 65002}}},
			NextHop:     netip.MustParseAddr("10.0.0.1"),
			LocalPref:   &localPref,
			Communities: Canonicalize([]Community{CommunityNoExport, 65000<<16 | 100}),
		},
		NLRI: []IPPrefix{{Prefix: mustPrefix(t, "203.0.113.0/24")}},
	}
	body := u.Bytes(true, nil)
	got, err := ReadUpdate(body, true, nil)
	if err != nil {
		t.Fatalf("ReadUpdate: %v", err)
	}
	if len(got.WithdrawnRoutes) != 1 || got.WithdrawnRoutes[0].Prefix != u.WithdrawnRoutes[0].Prefix {
		t.Fatalf("withdrawn routes mismatch: %v", got.WithdrawnRoutes)
	}
	if len(got.NLRI) != 1 || got.NLRI[0].Prefix != u.NLRI[0].Prefix {
		t.Fatalf("NLRI mismatch: %v", got.NLRI)
	}
	if got.Attributes.Origin == nil || *got.Attributes.Origin != OriginIGP {
		t.Fatalf("origin mismatch: %v", got.Attributes.Origin)
	}
	if len(got.Attributes.ASPath) != 1 || len(got.Attributes.ASPath[0].ASNs) != 2 {
		t.Fatalf("as_path mismatch: %v", got.Attributes.ASPath)
	}
	if !reflect.DeepEqual(got.Attributes.Communities, u.Attributes.Communities) {
		t.Fatalf("communities mismatch: got %v want %v", got.Attributes.Communities, u.Attributes.Communities)
	}
}

func TestUpdateEndOfRib(t *testing.T) {
	e := EndOfRib()
	body := e.Bytes(true, nil)
	got, err := ReadUpdate(body, true, nil)
	if err != nil {
		t.Fatalf("ReadUpdate(EndOfRib): %v", err)
	}
	if !got.IsEndOfRib() {
		t.Fatalf("IsEndOfRib() = false for round-tripped end-of-rib marker")
	}
}

func TestMPReachIPv6RoundTrip(t *testing.T) {
	nh := netip.MustParseAddr("2001:db8::1").As16()
	pa := &PathAttributes{
		MPReach: &MPReach{
			Family:      FamilyIPv6Unicast,
			NextHop:     nh[:],
			IPv6Unicast: []IPPrefix{{Prefix: mustPrefix(t, "2001:db8:1::/48")}},
		},
	}
	body := pa.Bytes(true, nil)
	got, err := ReadPathAttributes(body, true, nil)
	if err != nil {
		t.Fatalf("ReadPathAttributes: %v", err)
	}
	if got.MPReach == nil || len(got.MPReach.IPv6Unicast) != 1 {
		t.Fatalf("mp_reach_nlri mismatch: %+v", got.MPReach)
	}
	if got.MPReach.IPv6Unicast[0].Prefix != pa.MPReach.IPv6Unicast[0].Prefix {
		t.Fatalf("mp_reach prefix mismatch: got %v want %v", got.MPReach.IPv6Unicast[0].Prefix, pa.MPReach.IPv6Unicast[0].Prefix)
	}
}

func TestVPNv4RoundTrip(t *testing.T) {
	prefixes := []VPNPrefix{{
		Labels: []uint32{100},
		RD:     RD{0, 1, 0, 100, 0, 0, 0, 1},
		Prefix: mustPrefix(t, "192.0.2.0/24"),
	}}
	pa := &PathAttributes{
		MPReach: &MPReach{
			Family:  FamilyVPNv4,
			NextHop: []byte{10, 0, 0, 1},
			VPN:     prefixes,
		},
	}
	body := pa.Bytes(false, nil)
	got, err := ReadPathAttributes(body, false, nil)
	if err != nil {
		t.Fatalf("ReadPathAttributes: %v", err)
	}
	if got.MPReach == nil || len(got.MPReach.VPN) != 1 {
		t.Fatalf("vpnv4 mismatch: %+v", got.MPReach)
	}
	if got.MPReach.VPN[0].Prefix != prefixes[0].Prefix || got.MPReach.VPN[0].Labels[0] != 100 {
		t.Fatalf("vpnv4 payload mismatch: %+v", got.MPReach.VPN[0])
	}
}

func TestSessionDecodeEncodeRoundTrip(t *testing.T) {
	sess := Session{AS4: true}
	open := &Open{Version: Version4, MyAS: 65001, HoldTime: 90, Identifier: NewIdentifier(1, 2, 3, 4), Capabilities: NewSet()}
	frame, err := sess.Encode(TypeOpen, open)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	typ, msg, err := sess.Decode(frame)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if typ != TypeOpen {
		t.Fatalf("Decode type = %v, want OPEN", typ)
	}
	got, ok := msg.(*Open)
	if !ok || got.MyAS != open.MyAS {
		t.Fatalf("Decode result = %+v, want matching Open", msg)
	}
}

func TestUnknownOptionalTransitiveRetainedPartial(t *testing.T) {
	pa := &PathAttributes{
		Unknown: []RawAttribute{{Flags: optionalTransitiveFlags(), Type: AttrType(200), Value: []byte{9, 9}}},
	}
	body := pa.Bytes(true, nil)
	got, err := ReadPathAttributes(body, true, nil)
	if err != nil {
		t.Fatalf("ReadPathAttributes: %v", err)
	}
	if len(got.Unknown) != 1 || !got.Unknown[0].Flags.Partial() {
		t.Fatalf("unknown optional transitive attribute not retained with partial bit: %+v", got.Unknown)
	}
}
