package rib

import "github.com/zeburouter/zeburouter/ptree"

// FIB is the narrow synchronization boundary spec.md §4.6/§6 names:
// "the implementation is platform-specific and not part of this spec;
// the contract is that each call completes or fails, and the caller
// retries on failure during the next resolution pass." The rib package
// depends only on this interface; the fib package supplies concrete
// adapters (netlink on Linux, no-op elsewhere).
type FIB interface {
	NexthopAdd(gid uint32, nh *Nexthop) error
	NexthopDel(gid uint32, nh *Nexthop) error
	RouteIPv4Add(prefix ptree.Prefix, entry *Entry) error
	RouteIPv4Del(prefix ptree.Prefix, entry *Entry) error
	ILMAdd(label uint32, ilm *ILM) error
	ILMDel(label uint32, ilm *ILM) error
}

// ILM is an MPLS ingress-label map entry: a label bound to the
// outgoing nexthop it should be swapped/popped onto (spec.md §4.6).
type ILM struct {
	Label   uint32
	Nexthop *Nexthop
}

// NoopFIB discards every call, recording counts for tests and for
// builds with no platform-specific FIB backend.
type NoopFIB struct {
	NexthopAdds, NexthopDels       int
	RouteAdds, RouteDels           int
	ILMAdds, ILMDels               int
}

func (f *NoopFIB) NexthopAdd(uint32, *Nexthop) error { f.NexthopAdds++; return nil }
func (f *NoopFIB) NexthopDel(uint32, *Nexthop) error { f.NexthopDels++; return nil }
func (f *NoopFIB) RouteIPv4Add(ptree.Prefix, *Entry) error { f.RouteAdds++; return nil }
func (f *NoopFIB) RouteIPv4Del(ptree.Prefix, *Entry) error { f.RouteDels++; return nil }
func (f *NoopFIB) ILMAdd(uint32, *ILM) error { f.ILMAdds++; return nil }
func (f *NoopFIB) ILMDel(uint32, *ILM) error { f.ILMDels++; return nil }
