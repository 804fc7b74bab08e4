package rib

import (
	"net/netip"
	"sort"
)

// NexthopKind selects which variant of Nexthop is populated, per
// spec.md §3: "Nexthop is one of: Link(ifindex), Uni{addr, ifindex,
// gid, valid, installed, metric, weight}, Multi{gid, members: set of
// (gid, weight), metric, valid}, List(ordered by metric of Uni
// members)."
type NexthopKind int

const (
	NexthopKindLink NexthopKind = iota
	NexthopKindUni
	NexthopKindMulti
	NexthopKindList
)

func (k NexthopKind) String() string {
	switch k {
	case NexthopKindLink:
		return "link"
	case NexthopKindUni:
		return "uni"
	case NexthopKindMulti:
		return "multi"
	case NexthopKindList:
		return "list"
	default:
		return "unknown"
	}
}

// Nexthop is the tagged union spec.md §3 describes. Only the field(s)
// matching Kind are meaningful.
type Nexthop struct {
	Kind NexthopKind

	// Link
	Ifindex uint32

	// Uni
	Addr      netip.Addr
	GID       uint32
	Valid     bool
	Installed bool
	Metric    uint32
	Weight    uint8

	// Multi
	Members []MultiMember

	// List
	List []*Nexthop // each a Uni, ordered ascending by Metric
}

// MultiMember is one (gid, weight) pair inside a Multi nexthop group.
type MultiMember struct {
	GID    uint32
	Weight uint8
}

// NewLinkNexthop builds a Link(ifindex) nexthop: a route that resolves
// directly onto an interface rather than through a next-hop address
// (e.g. a Connected route).
func NewLinkNexthop(ifindex uint32) *Nexthop {
	return &Nexthop{Kind: NexthopKindLink, Ifindex: ifindex}
}

// NewUniNexthop builds an unresolved Uni nexthop awaiting resolution
// against the RIB table.
func NewUniNexthop(addr netip.Addr, weight uint8) *Nexthop {
	return &Nexthop{Kind: NexthopKindUni, Addr: addr, Weight: weight}
}

// dedupKey returns the value-identity key spec.md §9 specifies: for
// Uni the (addr, ifindex) pair; for Multi the sorted multiset of
// (member_gid, weight). Link and List nexthops are never interned in
// the nexthop map (Link has no group, List is a view over already
// interned Uni members), so they return the zero key.
func (n *Nexthop) dedupKey() string {
	switch n.Kind {
	case NexthopKindUni:
		return "u:" + n.Addr.String() + "/" + itoa(n.Ifindex)
	case NexthopKindMulti:
		members := append([]MultiMember(nil), n.Members...)
		sort.Slice(members, func(i, j int) bool {
			if members[i].GID != members[j].GID {
				return members[i].GID < members[j].GID
			}
			return members[i].Weight < members[j].Weight
		})
		key := "m:"
		for _, m := range members {
			key += itoa(m.GID) + ":" + itoa(uint32(m.Weight)) + ","
		}
		return key
	default:
		return ""
	}
}

func itoa(v uint32) string {
	if v == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}

// group is one entry in the nexthop arena: the interned nexthop plus
// its bookkeeping. Index 0 is a reserved dummy/unspecified sentinel.
type group struct {
	nh       *Nexthop
	refcount int
	installed bool
}

// NexthopMap is the arena of deduplicated nexthop groups spec.md §3
// describes, keyed by dedupKey for reuse. Index 0 is never assigned to
// a real group.
type NexthopMap struct {
	byKey  map[string]uint32
	groups []group
	fib    FIB
}

// NewNexthopMap creates an empty map with its reserved sentinel slot.
func NewNexthopMap(fib FIB) *NexthopMap {
	return &NexthopMap{
		byKey:  make(map[string]uint32),
		groups: []group{{}}, // index 0 reserved
		fib:    fib,
	}
}

// Register interns nh, returning its group id. An existing group with
// the same dedup key has its refcount incremented and is returned
// as-is; otherwise a new group is allocated and installed into the
// FIB.
func (m *NexthopMap) Register(nh *Nexthop) uint32 {
	key := nh.dedupKey()
	if key == "" {
		return 0
	}
	if gid, ok := m.byKey[key]; ok {
		m.groups[gid].refcount++
		return gid
	}
	gid := uint32(len(m.groups))
	m.groups = append(m.groups, group{nh: nh, refcount: 1})
	m.byKey[key] = gid
	m.install(gid)
	return gid
}

// Unregister decrements the refcount of gid, removing and
// uninstalling the group from the FIB once it reaches zero.
func (m *NexthopMap) Unregister(gid uint32) {
	if gid == 0 || int(gid) >= len(m.groups) {
		return
	}
	g := &m.groups[gid]
	if g.nh == nil {
		return
	}
	g.refcount--
	if g.refcount > 0 {
		return
	}
	m.uninstall(gid)
	delete(m.byKey, g.nh.dedupKey())
	m.groups[gid] = group{}
}

// Lookup returns the nexthop interned at gid, if any.
func (m *NexthopMap) Lookup(gid uint32) (*Nexthop, bool) {
	if gid == 0 || int(gid) >= len(m.groups) || m.groups[gid].nh == nil {
		return nil, false
	}
	return m.groups[gid].nh, true
}

func (m *NexthopMap) install(gid uint32) {
	g := &m.groups[gid]
	if m.fib == nil {
		g.installed = true
		g.nh.Installed = true
		return
	}
	if err := m.fib.NexthopAdd(gid, g.nh); err == nil {
		g.installed = true
		g.nh.Installed = true
	}
}

func (m *NexthopMap) uninstall(gid uint32) {
	g := &m.groups[gid]
	if !g.installed {
		return
	}
	if m.fib != nil {
		_ = m.fib.NexthopDel(gid, g.nh)
	}
	g.installed = false
	g.nh.Installed = false
}

// Shutdown uninstalls every installed group, for graceful daemon exit
// (spec.md §5: "shutdown drives the RIB to release every installed
// nexthop group and ILM").
func (m *NexthopMap) Shutdown() {
	for gid := range m.groups {
		if gid == 0 {
			continue
		}
		if m.groups[gid].nh != nil {
			m.uninstall(uint32(gid))
		}
	}
}
