package counter

import "github.com/prometheus/client_golang/prometheus"

// PDUVec tracks one Counter per PDU type name (e.g. "OPEN", "UPDATE",
// "KEEPALIVE", "NOTIFICATION" for BGP; "L1 HELLO", "CSNP", "PSNP" for
// IS-IS; "HELLO", "DBD", "LS_UPDATE" for OSPF) and mirrors each
// increment into a Prometheus counter vector so the exported
// per-peer/per-interface TX/RX counters of spec.md §3 ("BGP peer
// state") are both locally inspectable and scrapeable.
type PDUVec struct {
	local map[string]*Counter
	promo *prometheus.CounterVec
	label string // the const label value identifying the peer/interface
}

// NewPDUVec creates a vector registered under metric name, labeled by
// "peer" or "interface" (whichever owner applies) with value label,
// plus a "pdu_type" label populated on first increment per type.
func NewPDUVec(reg prometheus.Registerer, metric, ownerLabel, label string) *PDUVec {
	cv := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: metric,
		Help: "count of protocol data units processed, by type",
	}, []string{ownerLabel, "pdu_type"})
	if reg != nil {
		reg.MustRegister(cv)
	}
	return &PDUVec{
		local: make(map[string]*Counter),
		promo: cv,
		label: label,
	}
}

// Increment bumps the local and Prometheus counters for pduType.
func (v *PDUVec) Increment(pduType string) {
	c, ok := v.local[pduType]
	if !ok {
		c = New()
		v.local[pduType] = c
	}
	c.Increment()
	if v.promo != nil {
		v.promo.WithLabelValues(v.label, pduType).Inc()
	}
}

// Value returns the local tally for pduType.
func (v *PDUVec) Value(pduType string) uint64 {
	c, ok := v.local[pduType]
	if !ok {
		return 0
	}
	return c.Value()
}

// Snapshot returns a copy of every (pduType -> count) pair observed so
// far, for show/introspection handlers.
func (v *PDUVec) Snapshot() map[string]uint64 {
	out := make(map[string]uint64, len(v.local))
	for k, c := range v.local {
		out[k] = c.Value()
	}
	return out
}
