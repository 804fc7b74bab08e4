package isis

import (
	"time"

	"go.uber.org/zap"

	"github.com/zeburouter/zeburouter/timer"
)

// NFSMState is a LAN/point-to-point adjacency's state (spec.md §4.4).
type NFSMState int

const (
	NFSMDown NFSMState = iota
	NFSMInit
	NFSMUp
)

func (s NFSMState) String() string {
	switch s {
	case NFSMDown:
		return "Down"
	case NFSMInit:
		return "Init"
	case NFSMUp:
		return "Up"
	default:
		return "Unknown"
	}
}

// NFSMEvent is one of the two events spec.md §4.4 names for the NFSM.
type NFSMEvent int

const (
	HelloReceived NFSMEvent = iota
	HoldTimerExpire
)

// Neighbor is one adjacency on an interface: its last-seen Hello
// state and hold timer.
type Neighbor struct {
	SystemID SystemID
	MAC      [6]byte
	Priority byte
	LANID    NeighborID
	State    NFSMState

	HoldTimer *timer.Timer
	onDown    func()
}

// NewNeighbor creates a Down neighbor. onDown is invoked when a Hello
// that drops our MAC moves the neighbor out of Up, and when the hold
// timer expires in any state other than Down (Init included), so the
// owning interface can re-run DIS election and LSP origination.
func NewNeighbor(sysID SystemID, mac [6]byte, onDown func()) *Neighbor {
	return &Neighbor{SystemID: sysID, MAC: mac, State: NFSMDown, onDown: onDown}
}

// ReceiveHello applies spec.md §4.4's NFSM rules:
//
//	Down + Hello containing our MAC in its IS-Neighbors → Up.
//	Down + Hello without our MAC → Init.
//	Init + Hello with our MAC → Up.
//	Up + Hello without our MAC → Init.
//
// holdTime is the duration to (re)arm the neighbor's hold timer to,
// derived from the Hello's advertised hold-time field.
func (n *Neighbor) ReceiveHello(h *Hello, ourMAC [6]byte, holdTime time.Duration, log *zap.Logger) {
	n.Priority = h.Priority
	n.LANID = h.LANID
	sawUs := false
	for _, nb := range h.Neighbors {
		if nb == ISNeighbor(ourMAC) {
			sawUs = true
			break
		}
	}
	prev := n.State
	switch n.State {
	case NFSMDown:
		if sawUs {
			n.State = NFSMUp
		} else {
			n.State = NFSMInit
		}
	case NFSMInit:
		if sawUs {
			n.State = NFSMUp
		}
	case NFSMUp:
		if !sawUs {
			n.State = NFSMInit
		}
	}
	if n.HoldTimer != nil {
		n.HoldTimer.Reset(holdTime)
	}
	if prev != n.State {
		log.Info("isis nfsm transition", zap.Stringer("from", prev), zap.Stringer("to", n.State), zap.Stringer("neighbor", sysIDStringer{n.SystemID}))
		if prev == NFSMUp && n.State != NFSMUp && n.onDown != nil {
			n.onDown()
		}
	}
}

// ExpireHold applies HoldTimerExpire: → Down, per spec.md §4.4.
func (n *Neighbor) ExpireHold() {
	prev := n.State
	n.State = NFSMDown
	if prev != NFSMDown && n.onDown != nil {
		n.onDown()
	}
}

type sysIDStringer struct{ id SystemID }

func (s sysIDStringer) String() string { return s.id.String() }
