package rib

import (
	"net/netip"

	"github.com/zeburouter/zeburouter/ptree"
)

// LinkAdd registers a new link and publishes a LinkAdd subscription
// event.
func (r *Rib) LinkAdd(l *Link) {
	r.mu.Lock()
	r.links[l.Ifindex] = l
	r.mu.Unlock()
	r.publish(Event{Kind: EventLinkAdd, Link: l})
}

// Link returns the link tracked at ifindex, if any.
func (r *Rib) Link(ifindex uint32) (*Link, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.links[ifindex]
	return l, ok
}

// AddrAdd records addr on the link at ifindex and publishes an AddrAdd
// event.
func (r *Rib) AddrAdd(ifindex uint32, addr netip.Prefix) {
	r.mu.Lock()
	l, ok := r.links[ifindex]
	r.mu.Unlock()
	if !ok {
		return
	}
	l.addrUpdate(addr)
	r.publish(Event{Kind: EventAddrAdd, Addr: addr})
}

// AddrDel removes addr from the link at ifindex and publishes an
// AddrDel event.
func (r *Rib) AddrDel(ifindex uint32, addr netip.Prefix) {
	r.mu.Lock()
	l, ok := r.links[ifindex]
	r.mu.Unlock()
	if !ok {
		return
	}
	l.addrDel(addr)
	r.publish(Event{Kind: EventAddrDel, Addr: addr})
}

// LinkUp marks ifindex up/running and schedules a Resolve pass so
// routes depending on it can revalidate.
func (r *Rib) LinkUp(ifindex uint32) {
	r.mu.Lock()
	l, ok := r.links[ifindex]
	r.mu.Unlock()
	if ok {
		l.Flags |= IFF_UP | IFF_RUNNING
	}
	r.Resolve()
}

// LinkDown sweeps the RIB per spec.md §4.6's link-events rule:
// connected routes on ifindex are withdrawn outright; Kernel and DHCP
// routes whose nexthop targets ifindex are withdrawn; every other
// protocol entry whose nexthop targets ifindex is marked invalid
// (never deleted) so a later Resolve pass can bring it back once the
// link returns. This is property 5's enforcement point.
func (r *Rib) LinkDown(ifindex uint32) {
	r.mu.Lock()
	if l, ok := r.links[ifindex]; ok {
		l.Flags &^= IFF_UP | IFF_RUNNING
	}
	r.mu.Unlock()

	r.sweepTable(r.table4, ifindex)
	r.sweepTable(r.table6, ifindex)
	r.Resolve()
}

func (r *Rib) sweepTable(table *ptree.Tree[Entries], ifindex uint32) {
	for _, p := range table.All() {
		kept := make(Entries, 0, len(p.Value))
		touched := false
		for _, e := range p.Value {
			targets := r.nexthopTargetsIfindex(e.Nexthop, ifindex)
			switch {
			case e.Type == RouteTypeConnected && targets:
				r.releaseEntry(p.Prefix, e)
				touched = true
			case (e.Type == RouteTypeKernel || e.Type == RouteTypeDHCP) && targets:
				r.releaseEntry(p.Prefix, e)
				touched = true
			case e.Type.IsProtocol() && targets:
				e.Valid = false
				kept = append(kept, e)
				touched = true
			default:
				kept = append(kept, e)
			}
		}
		if !touched {
			continue
		}
		if len(kept) == 0 {
			table.Remove(p.Prefix)
			continue
		}
		table.Insert(p.Prefix, kept)
		r.runSelection(p.Prefix, kept)
	}
}

// nexthopTargetsIfindex reports whether nh resolves (directly or
// through a member) onto ifindex.
func (r *Rib) nexthopTargetsIfindex(nh *Nexthop, ifindex uint32) bool {
	switch nh.Kind {
	case NexthopKindLink:
		return nh.Ifindex == ifindex
	case NexthopKindUni:
		return nh.Ifindex == ifindex
	case NexthopKindList:
		for _, m := range nh.List {
			if m.Ifindex == ifindex {
				return true
			}
		}
		return false
	case NexthopKindMulti:
		for _, m := range nh.Members {
			if member, ok := r.nmap.Lookup(m.GID); ok && member.Ifindex == ifindex {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// ILMAdd installs label's ingress map entry and records it for
// shutdown release.
func (r *Rib) ILMAdd(label uint32, ilm *ILM) {
	r.ilm[label] = ilm
	if r.fib != nil {
		_ = r.fib.ILMAdd(label, ilm)
	}
}

// ILMDel removes label's ingress map entry.
func (r *Rib) ILMDel(label uint32, ilm *ILM) {
	delete(r.ilm, label)
	if r.fib != nil {
		_ = r.fib.ILMDel(label, ilm)
	}
}
