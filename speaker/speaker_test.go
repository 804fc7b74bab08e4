package speaker

import (
	"net/netip"
	"testing"

	"go.uber.org/zap"

	"github.com/zeburouter/zeburouter/bgp"
)

func TestNewSpeakerHasNoPeers(t *testing.T) {
	s, err := New(65001, bgp.NewIdentifier(10, 0, 0, 1), zap.NewNop(), nil)
	if err != nil {
		t.Skipf("listen unavailable in this environment: %v", err)
	}
	defer s.Close()
	if len(s.peers) != 0 {
		t.Fatalf("expected no peers, found %d", len(s.peers))
	}
}

func TestSpeakerPeerRegistersAndLooksUp(t *testing.T) {
	s, err := New(65001, bgp.NewIdentifier(10, 0, 0, 1), zap.NewNop(), nil)
	if err != nil {
		t.Skipf("listen unavailable in this environment: %v", err)
	}
	defer s.Close()

	addr := netip.MustParseAddr("192.0.2.1")
	p := s.Peer(65002, addr, PassiveOption())
	if p == nil {
		t.Fatal("Peer returned nil")
	}
	got, ok := s.Lookup(addr)
	if !ok || got != p {
		t.Fatalf("Lookup(%v) = %v, %v; want %v, true", addr, got, ok, p)
	}

	s.Remove(addr)
	if _, ok := s.Lookup(addr); ok {
		t.Fatalf("peer still registered after Remove")
	}
}

func TestCommunityDenyPolicy(t *testing.T) {
	policy := CommunityDenyPolicy{Deny: []bgp.Community{bgp.CommunityNoExport}}
	u := &bgp.Update{Attributes: &bgp.PathAttributes{Communities: []bgp.Community{bgp.CommunityNoExport}}}
	if policy.Apply(u) {
		t.Fatalf("expected deny for NO_EXPORT-tagged update")
	}
	clean := &bgp.Update{Attributes: &bgp.PathAttributes{}}
	if !policy.Apply(clean) {
		t.Fatalf("expected permit for update without denied communities")
	}
}
