package ospf

import (
	"time"

	"go.uber.org/zap"

	"github.com/zeburouter/zeburouter/timer"
)

// NFSMState is one of the eight OSPF neighbor states (RFC 2328 §10.1).
type NFSMState int

const (
	NFSMDown NFSMState = iota
	NFSMAttempt
	NFSMInit
	NFSMTwoWay
	NFSMExStart
	NFSMExchange
	NFSMLoading
	NFSMFull
)

func (s NFSMState) String() string {
	switch s {
	case NFSMDown:
		return "Down"
	case NFSMAttempt:
		return "Attempt"
	case NFSMInit:
		return "Init"
	case NFSMTwoWay:
		return "TwoWay"
	case NFSMExStart:
		return "ExStart"
	case NFSMExchange:
		return "Exchange"
	case NFSMLoading:
		return "Loading"
	case NFSMFull:
		return "Full"
	default:
		return "Unknown"
	}
}

// NFSMEvent is one of the events spec.md §4.5 names for the NFSM.
type NFSMEvent int

const (
	NFSMHelloReceived NFSMEvent = iota
	NFSMStart
	NFSMTwoWayReceived
	NFSMNegotiationDone
	NFSMExchangeDone
	NFSMBadLSReq
	NFSMLoadingDone
	NFSMAdjOK
	NFSMSeqNumberMismatch
	NFSMOneWayReceived
	NFSMKillNbr
	NFSMInactivityTimer
)

// defaultDeadInterval is the conventional 40-second RouterDeadInterval.
// A neighbor's inactivity timer runs on the Interface's own
// DeadInterval instead, restarted on every Hello received; expiry
// fires NFSMInactivityTimer.
const defaultDeadInterval = 40 * time.Second

// Neighbor is one OSPF neighbor on an interface: its declared identity
// from the last Hello received, the NFSM state, and the database
// exchange bookkeeping the ExStart/Exchange/Loading states need.
type Neighbor struct {
	RouterID RouterID
	Priority byte
	Address  RouterID // router ID from its Hello header, the key the Interface tracks it by
	DR       RouterID // its declared designated router
	BDR      RouterID // its declared backup designated router

	State  NFSMState
	Master bool // true if we are the DD exchange master

	DDSequenceNumber uint32
	LastDD           *DatabaseDescription

	InactivityTimer *timer.Timer

	log      *zap.Logger
	onChange func(old, new NFSMState)
}

// NewNeighbor creates a neighbor in NFSMDown, keyed by address.
func NewNeighbor(address RouterID, log *zap.Logger, onChange func(old, new NFSMState)) *Neighbor {
	return &Neighbor{Address: address, State: NFSMDown, log: log, onChange: onChange}
}

// Dispatch applies one NFSM event, implementing the exact transition
// table of original_source/zebra/src/ospf/nfsm.rs generalized to
// spec.md §4.5's smaller, renamed event set.
func (n *Neighbor) Dispatch(e NFSMEvent) {
	next, ok := nfsmTransition(n.State, e)
	if !ok {
		return
	}
	old := n.State
	n.State = next
	if old != next && n.onChange != nil {
		n.onChange(old, next)
	}
	if n.log != nil && old != next {
		n.log.Debug("ospf nfsm transition", zap.Stringer("from", old), zap.Stringer("to", next))
	}
}

// nfsmTransition returns the next state for (state, event); an event
// that does not apply in the current state returns that state
// unchanged. The boolean result is always true.
func nfsmTransition(s NFSMState, e NFSMEvent) (NFSMState, bool) {
	switch e {
	case NFSMHelloReceived:
		if s == NFSMDown {
			return NFSMInit, true
		}
		return s, true
	case NFSMStart:
		if s == NFSMDown {
			return NFSMAttempt, true
		}
		return s, true
	case NFSMTwoWayReceived:
		if s == NFSMInit {
			// Interface.ReceiveHello decides TwoWay vs ExStart based
			// on DR/BDR/point-to-point status and moves the neighbor
			// to the resolved target with ForceState.
			return NFSMTwoWay, true
		}
		return s, true
	case NFSMOneWayReceived:
		if s == NFSMTwoWay || s == NFSMExStart || s == NFSMExchange || s == NFSMLoading || s == NFSMFull {
			return NFSMInit, true
		}
		return s, true
	case NFSMNegotiationDone:
		if s == NFSMExStart {
			return NFSMExchange, true
		}
		return s, true
	case NFSMExchangeDone:
		if s == NFSMExchange {
			return NFSMLoading, true
		}
		return s, true
	case NFSMLoadingDone:
		if s == NFSMLoading {
			return NFSMFull, true
		}
		return s, true
	case NFSMBadLSReq, NFSMSeqNumberMismatch:
		if s == NFSMExchange || s == NFSMLoading || s == NFSMFull {
			return NFSMExStart, true
		}
		return s, true
	case NFSMAdjOK:
		// Re-evaluated by Interface.reevaluateAdjOKLocked, which decides
		// whether an adjacency should now form (TwoWay->ExStart) or be
		// torn down (->TwoWay); it calls ForceState directly.
		return s, true
	case NFSMKillNbr, NFSMInactivityTimer:
		return NFSMDown, true
	default:
		return s, true
	}
}

// ForceState transitions the neighbor directly, for the cases the
// plain event table can't resolve on its own (TwoWay-vs-ExStart after
// TwoWayReceived, AdjOK's conditional adjacency formation/teardown).
func (n *Neighbor) ForceState(next NFSMState) {
	old := n.State
	n.State = next
	if old != next && n.onChange != nil {
		n.onChange(old, next)
	}
}

// ShouldFormAdjacency applies spec.md §4.5's TwoWayReceived rule:
// "If interface is point-to-point... If I'm DRouter or BDRouter...
// If Neighbor is DRouter..." any of which moves straight to ExStart
// instead of stopping at TwoWay.
func ShouldFormAdjacency(pointToPoint bool, self, nbr Identity) bool {
	if pointToPoint {
		return true
	}
	if self.RouterID == self.DR || self.RouterID == self.BDR {
		return true
	}
	if nbr.RouterID == self.DR || nbr.RouterID == self.BDR {
		return true
	}
	return false
}

// Identity is one router's election-relevant state as declared in its
// own Hello or Interface: router-id, priority, and its own view of
// the segment's DR/BDR. Used both for DR election candidates and for
// ShouldFormAdjacency's DR/BDR comparison.
type Identity struct {
	RouterID RouterID
	Priority byte
	DR       RouterID
	BDR      RouterID
}

func (id Identity) declaresDR() bool  { return id.DR == id.RouterID }
func (id Identity) declaresBDR() bool { return id.BDR == id.RouterID }
