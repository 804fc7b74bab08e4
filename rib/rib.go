// Package rib implements the multi-source route table of spec.md
// §4.6: per-prefix candidate entries from Connected/Kernel/Static and
// routing protocols, next-hop resolution and deduplication through a
// nexthop map, best-path selection, and synchronization to a FIB
// boundary.
package rib

import (
	"net/netip"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/zeburouter/zeburouter/counter"
	"github.com/zeburouter/zeburouter/ptree"
)

// Rib is the RIB instance: one IPv4 table, one IPv6 table, the link
// set, the nexthop map, and the ILM table, owned by a single task per
// spec.md §5 ("the nexthop map, RIB table, and LSDB are each owned by
// one task; other tasks interact with them solely through their
// owner's inbox"). Its methods are not safe for concurrent use except
// through that single owner; the mutex guards only the link map and
// subscriber list, which introspection handlers may read from another
// goroutine.
type Rib struct {
	log *zap.Logger

	table4 *ptree.Tree[Entries]
	table6 *ptree.Tree[Entries]
	nmap   *NexthopMap
	fib    FIB

	ilm map[uint32]*ILM

	mu    sync.Mutex
	links map[uint32]*Link

	subs []chan Event

	ops *counter.PDUVec
}

// Event is one message delivered to a subscriber, per spec.md §6's
// "RIB subscription (inbound to protocols)": LinkAdd, AddrAdd, AddrDel,
// RouteAdd, RouteDel, terminated by an EoR marker after the initial
// dump.
type Event struct {
	Kind   EventKind
	Link   *Link
	Addr   netip.Prefix
	Prefix ptree.Prefix
	Entry  *Entry
}

// EventKind names one of the subscription message kinds.
type EventKind int

const (
	EventLinkAdd EventKind = iota
	EventAddrAdd
	EventAddrDel
	EventRouteAdd
	EventRouteDel
	EventEoR
)

// New creates an empty RIB instance. fib may be nil, in which case
// nexthop and route installs are recorded as no-ops (useful for tests
// exercising selection logic in isolation). reg may be nil to skip
// Prometheus registration entirely.
func New(fib FIB, reg prometheus.Registerer, log *zap.Logger) *Rib {
	return &Rib{
		log:    log,
		table4: ptree.New[Entries](),
		table6: ptree.New[Entries](),
		nmap:   NewNexthopMap(fib),
		fib:    fib,
		ilm:    make(map[uint32]*ILM),
		links:  make(map[uint32]*Link),
		ops:    counter.NewPDUVec(reg, "rib_ops_total", "instance", "default"),
	}
}

// Subscribe registers a new subscriber and immediately dumps the
// current table and link set into its channel, terminated by an EoR
// marker, per spec.md §6. The channel is buffered for the whole
// initial dump plus 256 live deltas; publish never blocks, and a live
// delta that finds a subscriber's buffer full is dropped for that
// subscriber.
func (r *Rib) Subscribe() <-chan Event {
	size := 1 // EoR marker
	for _, p := range r.table4.All() {
		size += len(p.Value)
	}
	for _, p := range r.table6.All() {
		size += len(p.Value)
	}
	r.mu.Lock()
	ch := make(chan Event, size+len(r.links)+256)
	for _, l := range r.links {
		ch <- Event{Kind: EventLinkAdd, Link: l}
	}
	r.subs = append(r.subs, ch)
	r.mu.Unlock()
	for _, p := range r.table4.All() {
		for _, e := range p.Value {
			ch <- Event{Kind: EventRouteAdd, Prefix: p.Prefix, Entry: e}
		}
	}
	for _, p := range r.table6.All() {
		for _, e := range p.Value {
			ch <- Event{Kind: EventRouteAdd, Prefix: p.Prefix, Entry: e}
		}
	}
	ch <- Event{Kind: EventEoR}
	return ch
}

func (r *Rib) publish(ev Event) {
	r.mu.Lock()
	subs := r.subs
	r.mu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// tableFor returns the table for p's address family.
func (r *Rib) tableFor(p ptree.Prefix) *ptree.Tree[Entries] {
	if p.Is4() {
		return r.table4
	}
	return r.table6
}

// Shutdown drives the RIB to release every installed nexthop group and
// ILM, per spec.md §5's cancellation rule.
func (r *Rib) Shutdown() {
	r.nmap.Shutdown()
	for label, ilm := range r.ilm {
		if r.fib != nil {
			_ = r.fib.ILMDel(label, ilm)
		}
	}
	r.ilm = make(map[uint32]*ILM)
}
