package rib

import (
	"go.uber.org/zap"

	"github.com/zeburouter/zeburouter/ptree"
)

// Ipv4Add applies an IPv4 route add from a protocol or the system, per
// spec.md §4.6's Add flow. prefix must carry an IPv4 address.
func (r *Rib) Ipv4Add(prefix ptree.Prefix, entry *Entry) { r.routeAdd(prefix, entry) }

// Ipv4Del applies an IPv4 route delete, per spec.md §4.6's Delete flow.
func (r *Rib) Ipv4Del(prefix ptree.Prefix, entry *Entry) { r.routeDel(prefix, entry) }

// Ipv6Add mirrors Ipv4Add for IPv6 prefixes.
func (r *Rib) Ipv6Add(prefix ptree.Prefix, entry *Entry) { r.routeAdd(prefix, entry) }

// Ipv6Del mirrors Ipv4Del for IPv6 prefixes.
func (r *Rib) Ipv6Del(prefix ptree.Prefix, entry *Entry) { r.routeDel(prefix, entry) }

func (r *Rib) routeAdd(prefix ptree.Prefix, entry *Entry) {
	r.ops.Increment("add")
	table := r.tableFor(prefix)
	entries, _ := table.Get(prefix)

	if entry.Type.IsProtocol() {
		replaced, rest := replaceByType(entries, entry.Type)
		if replaced != nil {
			r.releaseEntry(prefix, replaced)
		}
		r.resolveNexthop(entry)
		entries = append(rest, entry)
	} else {
		entries = r.mergeSystem(entries, entry)
	}

	table.Insert(prefix, entries)
	r.runSelection(prefix, entries)
}

func (r *Rib) routeDel(prefix ptree.Prefix, entry *Entry) {
	r.ops.Increment("del")
	table := r.tableFor(prefix)
	entries, ok := table.Get(prefix)
	if !ok {
		return
	}
	removed, rest := replaceByType(entries, entry.Type)
	if removed != nil {
		r.releaseEntry(prefix, removed)
	}
	if len(rest) == 0 {
		table.Remove(prefix)
		if removed != nil && removed.Selected {
			r.publish(Event{Kind: EventRouteDel, Prefix: prefix, Entry: removed})
		}
		return
	}
	table.Insert(prefix, rest)
	r.runSelection(prefix, rest)
}

// replaceByType removes the entry of route-type t from entries,
// returning it (held aside) and the remaining slice, per spec.md
// §4.6's "atomically replace the prior entry of the same route-type".
func replaceByType(entries Entries, t RouteType) (*Entry, Entries) {
	e, idx := entries.byType(t)
	if idx < 0 {
		return nil, entries
	}
	rest := make(Entries, 0, len(entries)-1)
	rest = append(rest, entries[:idx]...)
	rest = append(rest, entries[idx+1:]...)
	return e, rest
}

// releaseEntry issues the FIB delete (if the replaced entry was
// fib-installed) and releases its nexthop group reference, per
// spec.md §4.6's delete-flow mirror: "if a replaced protocol entry
// was fib-installed, unsync its nexthop group and issue a FIB delete
// before re-running selection."
func (r *Rib) releaseEntry(prefix ptree.Prefix, e *Entry) {
	if e.FIBInstalled {
		if r.fib != nil {
			_ = r.fib.RouteIPv4Del(prefix, e)
		}
		e.FIBInstalled = false
	}
	if e.Nexthop != nil && e.Nexthop.Kind == NexthopKindList {
		for _, m := range e.Nexthop.List {
			if m.GID != 0 {
				r.nmap.Unregister(m.GID)
				m.GID = 0
			}
		}
		e.gid = 0
		return
	}
	if e.gid != 0 {
		r.nmap.Unregister(e.gid)
		e.gid = 0
	}
}

// mergeSystem implements spec.md §4.6's system-sourced insertion rule:
// "special insertion merges equal-metric variants and promotes to
// List when metrics differ, preserving the metric-ordered invariant."
// System-sourced route types (Connected, Kernel) keep at most one
// Entries slot, but that slot's nexthop may itself become a List when
// more than one system nexthop is live for the same prefix.
func (r *Rib) mergeSystem(entries Entries, entry *Entry) Entries {
	if entry.Nexthop.Kind == NexthopKindUni {
		entry.Nexthop.Metric = entry.Metric
	}
	existing, idx := entries.byType(entry.Type)
	r.resolveNexthop(entry)
	if existing == nil {
		return append(entries, entry)
	}
	merged := mergeSystemNexthop(existing.Nexthop, entry.Nexthop)
	existing.Nexthop = merged
	existing.Metric = listEffectiveMetric(merged)
	existing.Valid = merged.Valid || merged.Kind == NexthopKindLink
	entries[idx] = existing
	return entries
}

// mergeSystemNexthop folds newNH into existing, promoting a bare Uni
// into a metric-ordered List once a second distinct-metric system
// nexthop appears, per the rule above.
func mergeSystemNexthop(existing, newNH *Nexthop) *Nexthop {
	switch existing.Kind {
	case NexthopKindUni:
		if existing.Metric == newNH.Metric {
			return newNH
		}
		return sortedList([]*Nexthop{existing, newNH})
	case NexthopKindList:
		members := append([]*Nexthop(nil), existing.List...)
		replaced := false
		for i, m := range members {
			if m.Metric == newNH.Metric {
				members[i] = newNH
				replaced = true
				break
			}
		}
		if !replaced {
			members = append(members, newNH)
		}
		return sortedList(members)
	default:
		return newNH
	}
}

func sortedList(members []*Nexthop) *Nexthop {
	for i := 1; i < len(members); i++ {
		for j := i; j > 0 && members[j].Metric < members[j-1].Metric; j-- {
			members[j], members[j-1] = members[j-1], members[j]
		}
	}
	return &Nexthop{Kind: NexthopKindList, List: members}
}

// listEffectiveMetric returns nh's metric for Entry-level selection:
// its own Metric for a Uni/Link/Multi, or the first (best) member's
// metric for a List, per spec.md §4.6's "metric is taken from the
// first valid member" resolution rule.
func listEffectiveMetric(nh *Nexthop) uint32 {
	if nh.Kind != NexthopKindList || len(nh.List) == 0 {
		return nh.Metric
	}
	for _, m := range nh.List {
		if m.Valid {
			return m.Metric
		}
	}
	return nh.List[0].Metric
}

// runSelection implements spec.md §4.6's selection rule: compare the
// previously selected entry against the best valid entry; if they
// differ, clear the old FIB image, install the new one, and update the
// selected/fib-installed flags. It is also property 6's enforcement
// point: "exactly one entry is selected and its (distance, metric) is
// the minimum over valid entries."
func (r *Rib) runSelection(prefix ptree.Prefix, entries Entries) {
	prev := entries.selected()
	next := entries.best()
	if prev == next {
		return
	}
	if prev != nil {
		prev.Selected = false
		if prev.FIBInstalled {
			if r.fib != nil {
				_ = r.fib.RouteIPv4Del(prefix, prev)
			}
			prev.FIBInstalled = false
			r.publish(Event{Kind: EventRouteDel, Prefix: prefix, Entry: prev})
		}
	}
	if next != nil {
		next.Selected = true
		if r.fib != nil {
			_ = r.fib.RouteIPv4Add(prefix, next)
		}
		next.FIBInstalled = true
		r.publish(Event{Kind: EventRouteAdd, Prefix: prefix, Entry: next})
	}
}

// resolveNexthop implements spec.md §4.6's nexthop resolution rule for
// entry's nexthop, registering it in the nexthop map regardless of
// whether it resolves validly (so later Resolve passes can revalidate
// it without re-registering).
func (r *Rib) resolveNexthop(entry *Entry) {
	switch entry.Nexthop.Kind {
	case NexthopKindLink:
		entry.Nexthop.Valid = true
		entry.Valid = true
	case NexthopKindUni:
		r.resolveUni(entry.Nexthop)
		entry.gid = r.nmap.Register(entry.Nexthop)
		entry.Valid = entry.Nexthop.Valid
	case NexthopKindMulti:
		any := false
		for _, m := range entry.Nexthop.Members {
			if nh, ok := r.nmap.Lookup(m.GID); ok && nh.Valid {
				any = true
			}
		}
		entry.Nexthop.Valid = any
		entry.gid = r.nmap.Register(entry.Nexthop)
		entry.Valid = any
	case NexthopKindList:
		any := false
		for _, m := range entry.Nexthop.List {
			r.resolveUni(m)
			m.GID = r.nmap.Register(m)
			if m.Valid {
				any = true
				if entry.gid == 0 {
					entry.gid = m.GID
				}
			}
		}
		entry.Valid = any
		entry.Metric = listEffectiveMetric(entry.Nexthop)
	}
}

// resolveUni resolves a single Uni nexthop by longest-prefix match
// against the RIB table holding nh's own address family: "if it
// resolves to an entry whose nexthop yields an ifindex > 0 and is
// valid, the Uni is valid and inherits the ifindex."
func (r *Rib) resolveUni(nh *Nexthop) {
	bits := 32
	if !nh.Addr.Is4() {
		bits = 128
	}
	key := ptree.NewPrefix(nh.Addr, bits)
	var table *ptree.Tree[Entries]
	if nh.Addr.Is4() {
		table = r.table4
	} else {
		table = r.table6
	}
	_, es, ok := table.Lookup(key)
	if !ok {
		nh.Valid = false
		nh.Ifindex = 0
		return
	}
	match := es.selected()
	if match == nil {
		match = es.best()
	}
	if match == nil || !match.Valid {
		nh.Valid = false
		nh.Ifindex = 0
		return
	}
	ifindex := ifindexOf(match.Nexthop)
	if ifindex == 0 {
		nh.Valid = false
		nh.Ifindex = 0
		return
	}
	nh.Valid = true
	nh.Ifindex = ifindex
}

// ifindexOf returns the outgoing interface nh resolves onto, or 0 if
// it does not directly yield one (e.g. an unresolved Uni).
func ifindexOf(nh *Nexthop) uint32 {
	switch nh.Kind {
	case NexthopKindLink:
		return nh.Ifindex
	case NexthopKindUni:
		if nh.Valid {
			return nh.Ifindex
		}
		return 0
	case NexthopKindList:
		for _, m := range nh.List {
			if m.Valid {
				return m.Ifindex
			}
		}
		return 0
	default:
		return 0
	}
}

// Resolve re-validates every registered nexthop group and re-runs
// resolution and selection across the whole table, per spec.md §4.6's
// "a Resolve pass is then scheduled to revalidate dependents" and
// original_source's periodic ipv4_nexthop_sync/ipv4_route_sync
// handlers.
func (r *Rib) Resolve() {
	r.resolveTable(r.table4)
	r.resolveTable(r.table6)
}

func (r *Rib) resolveTable(table *ptree.Tree[Entries]) {
	for _, p := range table.All() {
		for _, e := range p.Value {
			if e.Type.IsProtocol() {
				r.resolveNexthop(e)
			}
		}
		r.runSelection(p.Prefix, p.Value)
	}
}

func (r *Rib) logf(msg string, fields ...zap.Field) {
	if r.log != nil {
		r.log.Debug(msg, fields...)
	}
}
