package rib

import (
	"net/netip"

	"github.com/zeburouter/zeburouter/ptree"
)

// StagedNexthop is one candidate nexthop inside a staged static route,
// per spec.md §4.7: "nexthop set with per-nexthop metric/distance/
// weight".
type StagedNexthop struct {
	Addr     netip.Addr
	Metric   uint32
	Distance uint8
	Weight   uint8
}

// StagedRoute is one entry in the configuration plane's staging map:
// a candidate static route awaiting commit, or a pending delete.
type StagedRoute struct {
	Nexthops []StagedNexthop
	Metric   uint32
	Distance uint8
	Delete   bool
}

// StagingMap is the prefix -> staged route map spec.md §4.7 describes,
// mutated during candidate editing and flushed on Commit. It is owned
// by the configuration plane, not the Rib instance, so editing can
// proceed without touching the live table until commit.
type StagingMap struct {
	staged map[ptree.Prefix]*StagedRoute
}

// NewStagingMap creates an empty staging map.
func NewStagingMap() *StagingMap {
	return &StagingMap{staged: make(map[ptree.Prefix]*StagedRoute)}
}

// Stage records prefix/route as a pending candidate, overwriting any
// prior staged value for the same prefix.
func (s *StagingMap) Stage(prefix ptree.Prefix, route *StagedRoute) {
	s.staged[prefix] = route
}

// StageDelete records prefix as a pending delete.
func (s *StagingMap) StageDelete(prefix ptree.Prefix) {
	s.staged[prefix] = &StagedRoute{Delete: true}
}

// Unstage discards any pending candidate for prefix without affecting
// the live table.
func (s *StagingMap) Unstage(prefix ptree.Prefix) {
	delete(s.staged, prefix)
}

// Pending returns the currently staged route for prefix, if any, for
// candidate-editing callers (e.g. a "show staged config" command).
func (s *StagingMap) Pending(prefix ptree.Prefix) (*StagedRoute, bool) {
	r, ok := s.staged[prefix]
	return r, ok
}

// Commit flushes every staged prefix into rib as a single Ipv4Add or
// Ipv4Del, per spec.md §4.7, and clears the staging map. Scenario S6
// is exactly this path for a single-nexthop static route.
func (s *StagingMap) Commit(rib *Rib) {
	for prefix, route := range s.staged {
		if route.Delete {
			rib.Ipv4Del(prefix, &Entry{Type: RouteTypeStatic})
			continue
		}
		rib.Ipv4Add(prefix, route.toEntry())
	}
	s.staged = make(map[ptree.Prefix]*StagedRoute)
}

// toEntry converts a staged candidate into the RIB entry spec.md §4.6
// expects: a single Uni for one nexthop, or a List ordered by metric
// for several with distinct metrics.
func (sr *StagedRoute) toEntry() *Entry {
	e := NewEntry(RouteTypeStatic, sr.Metric, nil)
	if sr.Distance != 0 {
		e.Distance = sr.Distance
	}
	switch len(sr.Nexthops) {
	case 0:
		e.Nexthop = &Nexthop{Kind: NexthopKindUni}
	case 1:
		nh := sr.Nexthops[0]
		e.Nexthop = NewUniNexthop(nh.Addr, nh.Weight)
		e.Nexthop.Metric = nh.Metric
		if nh.Distance != 0 {
			e.Distance = nh.Distance
		}
	default:
		members := make([]*Nexthop, 0, len(sr.Nexthops))
		for _, nh := range sr.Nexthops {
			u := NewUniNexthop(nh.Addr, nh.Weight)
			u.Metric = nh.Metric
			members = append(members, u)
		}
		e.Nexthop = sortedList(members)
		e.Metric = listEffectiveMetric(e.Nexthop)
	}
	return e
}
