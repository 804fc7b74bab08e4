package main

import (
	"net"
	"net/netip"

	"go.uber.org/zap"

	"github.com/zeburouter/zeburouter/rib"
)

// syncLinks populates r with the host's current interfaces and
// addresses, the RIB's view of Connected routes and IS-IS/OSPF's
// candidate links, per spec.md §4.6's link/address events.
func syncLinks(r *rib.Rib, log *zap.Logger) {
	ifaces, err := net.Interfaces()
	if err != nil {
		log.Warn("enumerating interfaces", zap.Error(err))
		return
	}
	for _, ifi := range ifaces {
		link := &rib.Link{
			Ifindex: uint32(ifi.Index),
			Name:    ifi.Name,
			MTU:     uint32(ifi.MTU),
			Type:    linkType(ifi),
			Flags:   linkFlags(ifi),
		}
		r.LinkAdd(link)

		addrs, err := ifi.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipnet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			addr, ok := netip.AddrFromSlice(ipnet.IP)
			if !ok {
				continue
			}
			ones, _ := ipnet.Mask.Size()
			prefix := netip.PrefixFrom(addr.Unmap(), ones)
			r.AddrAdd(uint32(ifi.Index), prefix)

			if addr.Is4() {
				r.Ipv4Add(mustTreePrefix(prefix), rib.NewEntry(rib.RouteTypeConnected, 0, rib.NewLinkNexthop(uint32(ifi.Index))))
			}
		}
		if ifi.Flags&net.FlagUp != 0 {
			r.LinkUp(uint32(ifi.Index))
		}
	}
}

func linkType(ifi net.Interface) rib.LinkType {
	switch {
	case ifi.Flags&net.FlagLoopback != 0:
		return rib.LinkTypeLoopback
	case ifi.Flags&net.FlagBroadcast != 0:
		return rib.LinkTypeEthernet
	default:
		return rib.LinkTypeUnknown
	}
}

func linkFlags(ifi net.Interface) rib.LinkFlags {
	var f rib.LinkFlags
	if ifi.Flags&net.FlagUp != 0 {
		f |= rib.IFF_UP | rib.IFF_RUNNING
	}
	if ifi.Flags&net.FlagBroadcast != 0 {
		f |= rib.IFF_BROADCAST
	}
	if ifi.Flags&net.FlagLoopback != 0 {
		f |= rib.IFF_LOOPBACK
	}
	if ifi.Flags&net.FlagPointToPoint != 0 {
		f |= rib.IFF_POINTOPOINT
	}
	if ifi.Flags&net.FlagMulticast != 0 {
		f |= rib.IFF_MULTICAST
	}
	return f
}
