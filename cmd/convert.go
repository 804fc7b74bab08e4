package main

import (
	"net/netip"

	"github.com/zeburouter/zeburouter/ptree"
)

// mustTreePrefix adapts a stdlib netip.Prefix (the shape bgp's NLRI and
// net.Interface addresses arrive in) to this module's own ptree.Prefix
// (the shape the RIB and its radix tree are keyed on).
func mustTreePrefix(p netip.Prefix) ptree.Prefix {
	return ptree.NewPrefix(p.Addr(), p.Bits())
}
