package rib

// RouteType identifies the source of a RIB entry, per spec.md §3's
// enumeration. Order here also fixes the tiebreak priority used when
// two entries share (valid, distance, metric): lower RouteType wins,
// matching the conventional "more specific protocol wins ties" rule.
type RouteType int

const (
	RouteTypeConnected RouteType = iota
	RouteTypeKernel
	RouteTypeStatic
	RouteTypeDHCP
	RouteTypeRIP
	RouteTypeOSPF
	RouteTypeISIS
	RouteTypeBGP
)

func (t RouteType) String() string {
	switch t {
	case RouteTypeConnected:
		return "connected"
	case RouteTypeKernel:
		return "kernel"
	case RouteTypeStatic:
		return "static"
	case RouteTypeDHCP:
		return "dhcp"
	case RouteTypeRIP:
		return "rip"
	case RouteTypeOSPF:
		return "ospf"
	case RouteTypeISIS:
		return "isis"
	case RouteTypeBGP:
		return "bgp"
	default:
		return "unknown"
	}
}

// IsSystem reports whether this route type is sourced by the kernel's
// own view of the world rather than a routing protocol: spec.md §3's
// "at most one entry per route-type per prefix for system-sourced
// types (Connected, Kernel)" rule.
func (t RouteType) IsSystem() bool {
	return t == RouteTypeConnected || t == RouteTypeKernel
}

// IsProtocol is the complement of IsSystem: spec.md §4.6's Add flow
// branches on exactly this distinction.
func (t RouteType) IsProtocol() bool {
	return !t.IsSystem()
}

// defaultDistance returns the conventional administrative distance for
// t, used when a protocol entry doesn't set one explicitly.
func (t RouteType) defaultDistance() uint8 {
	switch t {
	case RouteTypeConnected:
		return 0
	case RouteTypeStatic:
		return 1
	case RouteTypeBGP:
		return 20
	case RouteTypeOSPF:
		return 110
	case RouteTypeISIS:
		return 115
	case RouteTypeRIP:
		return 120
	case RouteTypeKernel:
		return 255
	case RouteTypeDHCP:
		return 254
	default:
		return 255
	}
}

// Entry is one RIB entry, per spec.md §3: a route-type, its
// administrative distance and metric, the valid/selected/fib-installed
// flags, and its nexthop.
type Entry struct {
	Type         RouteType
	Distance     uint8
	Metric       uint32
	Valid        bool
	Selected     bool
	FIBInstalled bool
	Nexthop      *Nexthop

	gid uint32 // nexthop group id this entry resolved to, 0 if unresolved/Link
}

// NewEntry builds an entry with t's default administrative distance.
func NewEntry(t RouteType, metric uint32, nh *Nexthop) *Entry {
	return &Entry{Type: t, Distance: t.defaultDistance(), Metric: metric, Nexthop: nh}
}

// less implements the (valid, distance, metric) comparison spec.md
// §4.6 selection uses, with RouteType as the final tiebreaker: a is
// preferred over b.
func (a *Entry) less(b *Entry) bool {
	if a.Valid != b.Valid {
		return a.Valid // valid beats invalid
	}
	if a.Distance != b.Distance {
		return a.Distance < b.Distance
	}
	if a.Metric != b.Metric {
		return a.Metric < b.Metric
	}
	return a.Type < b.Type
}

// Entries is the ordered collection of candidate entries the RIB table
// stores per prefix (spec.md §3: "Prefix → ordered collection of
// entries").
type Entries []*Entry

// byType returns the entry of route-type t, if present.
func (es Entries) byType(t RouteType) (*Entry, int) {
	for i, e := range es {
		if e.Type == t {
			return e, i
		}
	}
	return nil, -1
}

// selected returns the currently selected entry, if any.
func (es Entries) selected() *Entry {
	for _, e := range es {
		if e.Selected {
			return e
		}
	}
	return nil
}

// best returns the most preferred valid entry, if any, per the less
// ordering.
func (es Entries) best() *Entry {
	var best *Entry
	for _, e := range es {
		if !e.Valid {
			continue
		}
		if best == nil || e.less(best) {
			best = e
		}
	}
	return best
}
