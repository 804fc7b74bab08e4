package rib

import "net/netip"

// LinkFlags mirrors the kernel IFF_* bitmask reported on link
// add/update events, per original_source/zebra-rs/src/rib/link.rs.
type LinkFlags uint32

const (
	IFF_UP          LinkFlags = 1 << 0
	IFF_BROADCAST   LinkFlags = 1 << 1
	IFF_LOOPBACK    LinkFlags = 1 << 3
	IFF_POINTOPOINT LinkFlags = 1 << 4
	IFF_RUNNING     LinkFlags = 1 << 6
	IFF_PROMISC     LinkFlags = 1 << 8
	IFF_MULTICAST   LinkFlags = 1 << 12
	IFF_LOWER_UP    LinkFlags = 1 << 16
)

func (f LinkFlags) has(bit LinkFlags) bool { return f&bit != 0 }

// LinkType distinguishes the handful of interface kinds the RIB cares
// about for adjacency and MTU-bounded packing decisions.
type LinkType int

const (
	LinkTypeUnknown LinkType = iota
	LinkTypeLoopback
	LinkTypeEthernet
)

// LinkAddr is one address assigned to a Link.
type LinkAddr struct {
	Prefix netip.Prefix
}

// Link is one interface as tracked by the RIB: its kernel index, name,
// flags, MTU, and assigned addresses. It is the same record IS-IS
// consults when packing PSNPs to an interface's MTU (SPEC_FULL §5).
type Link struct {
	Ifindex uint32
	Name    string
	Type    LinkType
	Flags   LinkFlags
	MTU     uint32

	Addr4 []LinkAddr
	Addr6 []LinkAddr
}

// IsUp reports the administrative IFF_UP flag.
func (l *Link) IsUp() bool { return l.Flags.has(IFF_UP) }

// IsRunning reports the operational IFF_RUNNING flag.
func (l *Link) IsRunning() bool { return l.Flags.has(IFF_RUNNING) }

// IsUpAndRunning reports both administrative and operational state.
func (l *Link) IsUpAndRunning() bool { return l.IsUp() && l.IsRunning() }

// IsLoopback reports whether this is the loopback interface.
func (l *Link) IsLoopback() bool { return l.Type == LinkTypeLoopback || l.Flags.has(IFF_LOOPBACK) }

// addrUpdate appends addr to the link's address list for its family,
// deduplicating on the exact (addr, bits) pair.
func (l *Link) addrUpdate(p netip.Prefix) {
	if p.Addr().Is4() {
		for _, a := range l.Addr4 {
			if a.Prefix == p {
				return
			}
		}
		l.Addr4 = append(l.Addr4, LinkAddr{Prefix: p})
		return
	}
	for _, a := range l.Addr6 {
		if a.Prefix == p {
			return
		}
	}
	l.Addr6 = append(l.Addr6, LinkAddr{Prefix: p})
}

// addrDel removes addr from the link's address list, if present.
func (l *Link) addrDel(p netip.Prefix) {
	if p.Addr().Is4() {
		for i, a := range l.Addr4 {
			if a.Prefix == p {
				l.Addr4 = append(l.Addr4[:i], l.Addr4[i+1:]...)
				return
			}
		}
		return
	}
	for i, a := range l.Addr6 {
		if a.Prefix == p {
			l.Addr6 = append(l.Addr6[:i], l.Addr6[i+1:]...)
			return
		}
	}
}
