package rib

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zeburouter/zeburouter/ptree"
)

func newTestRib() (*Rib, *NoopFIB) {
	fib := &NoopFIB{}
	return New(fib, nil, nil), fib
}

// TestStaticAddDeleteResolvesViaConnected is scenario S6: a staged
// static route resolves its Uni nexthop through a directly connected
// /30, becomes selected and fib-installed, and both reverse cleanly on
// delete.
func TestStaticAddDeleteResolvesViaConnected(t *testing.T) {
	r, fib := newTestRib()

	connected := ptree.MustParsePrefix("192.0.2.0/30")
	r.Ipv4Add(connected, NewEntry(RouteTypeConnected, 0, NewLinkNexthop(3)))

	staging := NewStagingMap()
	dest := ptree.MustParsePrefix("10.0.0.0/24")
	nh := netip.MustParseAddr("192.0.2.2")
	staging.Stage(dest, &StagedRoute{Nexthops: []StagedNexthop{{Addr: nh, Metric: 0}}})
	staging.Commit(r)

	entries, ok := r.table4.Get(dest)
	require.True(t, ok)
	require.Len(t, entries, 1)
	e := entries[0]
	require.Equal(t, RouteTypeStatic, e.Type)
	require.True(t, e.Selected)
	require.True(t, e.FIBInstalled)
	require.Equal(t, NexthopKindUni, e.Nexthop.Kind)
	require.Equal(t, uint32(3), e.Nexthop.Ifindex)
	require.Equal(t, 1, fib.RouteAdds)
	require.Equal(t, 1, fib.NexthopAdds)

	staging.StageDelete(dest)
	staging.Commit(r)

	_, ok = r.table4.Get(dest)
	require.False(t, ok)
	require.Equal(t, 1, fib.RouteDels)
	require.Equal(t, 1, fib.NexthopDels)
}

// TestStaticUnresolvedIsInvalidNotSelected covers the case where the
// staged nexthop has no covering route yet: it must resolve to an
// invalid, unselected entry rather than being dropped.
func TestStaticUnresolvedIsInvalidNotSelected(t *testing.T) {
	r, fib := newTestRib()

	staging := NewStagingMap()
	dest := ptree.MustParsePrefix("10.0.0.0/24")
	nh := netip.MustParseAddr("192.0.2.2")
	staging.Stage(dest, &StagedRoute{Nexthops: []StagedNexthop{{Addr: nh}}})
	staging.Commit(r)

	entries, ok := r.table4.Get(dest)
	require.True(t, ok)
	require.Len(t, entries, 1)
	require.False(t, entries[0].Valid)
	require.False(t, entries[0].Selected)
	require.Equal(t, 0, fib.RouteAdds)
}

// TestSelectionPrefersLowerDistance covers property 6: exactly one
// selected entry per prefix, with the minimum (distance, metric) among
// valid entries.
func TestSelectionPrefersLowerDistance(t *testing.T) {
	r, _ := newTestRib()
	prefix := ptree.MustParsePrefix("203.0.113.0/24")

	bgp := NewEntry(RouteTypeBGP, 0, NewLinkNexthop(5))
	bgp.Valid = true
	r.Ipv4Add(prefix, bgp)

	ospf := NewEntry(RouteTypeOSPF, 0, NewLinkNexthop(5))
	ospf.Valid = true
	r.Ipv4Add(prefix, ospf)

	entries, ok := r.table4.Get(prefix)
	require.True(t, ok)
	require.Len(t, entries, 2)

	selectedCount := 0
	var sel *Entry
	for _, e := range entries {
		if e.Selected {
			selectedCount++
			sel = e
		}
	}
	require.Equal(t, 1, selectedCount)
	require.Equal(t, RouteTypeBGP, sel.Type, "BGP's distance 20 beats OSPF's 110")
}

// TestLinkDownWithdrawsConnectedAndInvalidatesStatic is property 5:
// after a link-down sweep, no surviving entry references the downed
// ifindex except an unresolved protocol entry, which must be invalid
// and unselected.
func TestLinkDownWithdrawsConnectedAndInvalidatesStatic(t *testing.T) {
	r, _ := newTestRib()

	connected := ptree.MustParsePrefix("192.0.2.0/30")
	r.Ipv4Add(connected, NewEntry(RouteTypeConnected, 0, NewLinkNexthop(3)))

	staging := NewStagingMap()
	dest := ptree.MustParsePrefix("10.0.0.0/24")
	nh := netip.MustParseAddr("192.0.2.2")
	staging.Stage(dest, &StagedRoute{Nexthops: []StagedNexthop{{Addr: nh}}})
	staging.Commit(r)

	entries, _ := r.table4.Get(dest)
	require.True(t, entries[0].Valid)
	require.True(t, entries[0].Selected)

	r.LinkDown(3)

	_, ok := r.table4.Get(connected)
	require.False(t, ok, "connected route on the downed ifindex must be withdrawn")

	entries, ok = r.table4.Get(dest)
	require.True(t, ok, "static entry survives, marked invalid rather than deleted")
	require.Len(t, entries, 1)
	require.False(t, entries[0].Valid)
	require.False(t, entries[0].Selected)
}

// TestNexthopMapDedupesByAddrAndIfindex covers spec.md §9's dedup key:
// two entries sharing the same (addr, ifindex) Uni nexthop intern to
// the same group id.
func TestNexthopMapDedupesByAddrAndIfindex(t *testing.T) {
	fib := &NoopFIB{}
	m := NewNexthopMap(fib)

	a := &Nexthop{Kind: NexthopKindUni, Addr: netip.MustParseAddr("198.51.100.1"), Ifindex: 2}
	b := &Nexthop{Kind: NexthopKindUni, Addr: netip.MustParseAddr("198.51.100.1"), Ifindex: 2}

	gidA := m.Register(a)
	gidB := m.Register(b)
	require.Equal(t, gidA, gidB)
	require.Equal(t, 1, fib.NexthopAdds, "the second Register must not re-install")

	m.Unregister(gidA)
	require.Equal(t, 0, fib.NexthopDels)
	m.Unregister(gidB)
	require.Equal(t, 1, fib.NexthopDels, "refcount reaching zero uninstalls the group")
}

// TestSystemMergePromotesToList covers the system-sourced insertion
// rule: two Connected-ish system entries for the same prefix with
// distinct metrics promote into a metric-ordered List.
func TestSystemMergePromotesToList(t *testing.T) {
	r, _ := newTestRib()
	prefix := ptree.MustParsePrefix("198.51.100.0/24")

	first := NewEntry(RouteTypeKernel, 10, NewUniNexthop(netip.MustParseAddr("192.0.2.1"), 1))
	r.Ipv4Add(prefix, first)
	second := NewEntry(RouteTypeKernel, 20, NewUniNexthop(netip.MustParseAddr("192.0.2.5"), 1))
	r.Ipv4Add(prefix, second)

	entries, ok := r.table4.Get(prefix)
	require.True(t, ok)
	require.Len(t, entries, 1, "system route types keep a single slot per prefix")
	require.Equal(t, NexthopKindList, entries[0].Nexthop.Kind)
	require.Len(t, entries[0].Nexthop.List, 2)
	require.Equal(t, uint32(10), entries[0].Nexthop.List[0].Metric)
	require.Equal(t, uint32(20), entries[0].Nexthop.List[1].Metric)
}
