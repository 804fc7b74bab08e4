package ospf

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/zeburouter/zeburouter/timer"
)

// IFSMState is one of the seven OSPF interface states (RFC 2328
// §9.1).
type IFSMState int

const (
	IFSMDown IFSMState = iota
	IFSMLoopback
	IFSMWaiting
	IFSMPointToPoint
	IFSMDROther
	IFSMBackup
	IFSMDR
)

func (s IFSMState) String() string {
	switch s {
	case IFSMDown:
		return "Down"
	case IFSMLoopback:
		return "Loopback"
	case IFSMWaiting:
		return "Waiting"
	case IFSMPointToPoint:
		return "PointToPoint"
	case IFSMDROther:
		return "DROther"
	case IFSMBackup:
		return "Backup"
	case IFSMDR:
		return "DR"
	default:
		return "Unknown"
	}
}

// IFSMEvent is one of the events spec.md §4.5 names for the IFSM.
type IFSMEvent int

const (
	IFSMInterfaceUp IFSMEvent = iota
	IFSMWaitTimer
	IFSMBackupSeen
	IFSMNeighborChange
	IFSMLoopInd
	IFSMUnloopInd
	IFSMInterfaceDown
)

// Interface is one OSPF-enabled link, running its IFSM and the NFSMs
// of its neighbors, for a single area.
type Interface struct {
	RouterID      RouterID
	AreaID        RouterID
	Priority      byte
	HelloInterval time.Duration
	DeadInterval  time.Duration
	MTU           int
	IfIndex       int
	PointToPoint  bool

	log  *zap.Logger
	send func(frame []byte)
	join func(joined bool, allDRouters bool)

	mu          sync.Mutex
	state       IFSMState
	neighbors   map[RouterID]*Neighbor
	dRouter     RouterID
	bdRouter    RouterID
	helloSent   bool
	stateChanges int

	helloTimer *timer.Timer
	waitTimer  *timer.Timer
}

// NewInterface creates an Interface in the Down state.
func NewInterface(routerID, areaID RouterID, priority byte, helloInterval, deadInterval time.Duration, mtu, ifIndex int, log *zap.Logger, send func(frame []byte), join func(joined, allDRouters bool)) *Interface {
	return &Interface{
		RouterID:      routerID,
		AreaID:        areaID,
		Priority:      priority,
		HelloInterval: helloInterval,
		DeadInterval:  deadInterval,
		MTU:           mtu,
		IfIndex:       ifIndex,
		log:           log,
		send:          send,
		join:          join,
		neighbors:     make(map[RouterID]*Neighbor),
	}
}

// State returns the interface's current IFSM state.
func (ifc *Interface) State() IFSMState {
	ifc.mu.Lock()
	defer ifc.mu.Unlock()
	return ifc.state
}

// Dispatch handles one IFSM event, implementing the transition table
// of original_source/zebra/src/ospf/ifsm.rs generalized to spec.md
// §4.5's renamed event set.
func (ifc *Interface) Dispatch(e IFSMEvent) {
	ifc.mu.Lock()
	defer ifc.mu.Unlock()

	switch e {
	case IFSMInterfaceUp:
		if ifc.join != nil {
			ifc.join(true, false) // join AllSPFRouters
		}
		if ifc.Priority == 0 {
			ifc.changeStateLocked(IFSMDROther)
		} else {
			ifc.changeStateLocked(IFSMWaiting)
			ifc.waitTimer = timer.New(ifc.DeadInterval, func() { ifc.Dispatch(IFSMWaitTimer) })
		}
		ifc.helloTimer = timer.NewPeriodic(ifc.HelloInterval, func() { ifc.originateHello() })
		ifc.originateHelloLocked()
	case IFSMInterfaceDown:
		ifc.stopTimersLocked()
		ifc.changeStateLocked(IFSMDown)
	case IFSMLoopInd:
		ifc.stopTimersLocked()
		ifc.changeStateLocked(IFSMLoopback)
	case IFSMUnloopInd:
		if ifc.state == IFSMLoopback {
			ifc.changeStateLocked(IFSMDown)
		}
	case IFSMWaitTimer, IFSMBackupSeen, IFSMNeighborChange:
		if ifc.waitTimer != nil {
			ifc.waitTimer.Stop()
			ifc.waitTimer = nil
		}
		ifc.runDRElectionLocked()
	}
}

func (ifc *Interface) stopTimersLocked() {
	if ifc.helloTimer != nil {
		ifc.helloTimer.Stop()
		ifc.helloTimer = nil
	}
	if ifc.waitTimer != nil {
		ifc.waitTimer.Stop()
		ifc.waitTimer = nil
	}
}

func (ifc *Interface) changeStateLocked(next IFSMState) {
	if ifc.state == next {
		return
	}
	old := ifc.state
	ifc.state = next
	ifc.stateChanges++
	if ifc.log != nil {
		ifc.log.Info("ospf ifsm transition", zap.Stringer("from", old), zap.Stringer("to", next))
	}
}

func (ifc *Interface) originateHello() {
	ifc.mu.Lock()
	defer ifc.mu.Unlock()
	ifc.originateHelloLocked()
}

func (ifc *Interface) originateHelloLocked() {
	h := &Hello{
		Netmask:                0xffffff00,
		HelloInterval:          uint16(ifc.HelloInterval / time.Second),
		Options:                OptionE,
		Priority:               ifc.Priority,
		RouterDeadInterval:     uint32(ifc.DeadInterval / time.Second),
		DesignatedRouter:       ifc.dRouter,
		BackupDesignatedRouter: ifc.bdRouter,
	}
	for _, n := range ifc.neighbors {
		if n.State >= NFSMInit {
			h.Neighbors = append(h.Neighbors, n.RouterID)
		}
	}
	ifc.helloSent = true
	if ifc.send != nil {
		ifc.send(h.Bytes(ifc.RouterID, ifc.AreaID))
	}
}

// ReceiveHello feeds an incoming Hello, from the router identified by
// senderRouterID (the sending packet's header RouterID), to that
// neighbor's NFSM, creating it if unseen, restarts its inactivity
// timer, and resolves TwoWay-vs-ExStart per spec.md's
// ShouldFormAdjacency rule.
func (ifc *Interface) ReceiveHello(senderRouterID RouterID, h *Hello) {
	ifc.mu.Lock()
	n, ok := ifc.neighbors[senderRouterID]
	if !ok {
		n = NewNeighbor(senderRouterID, ifc.log, nil)
		n.RouterID = senderRouterID
		ifc.neighbors[senderRouterID] = n
	}
	n.Priority = h.Priority
	n.DR = h.DesignatedRouter
	n.BDR = h.BackupDesignatedRouter
	if n.InactivityTimer != nil {
		n.InactivityTimer.Stop()
	}
	n.InactivityTimer = timer.New(ifc.DeadInterval, func() {
		n.Dispatch(NFSMInactivityTimer)
		ifc.Dispatch(IFSMNeighborChange)
	})
	ifc.mu.Unlock()

	n.Dispatch(NFSMHelloReceived)

	sawSelf := h.HasNeighbor(ifc.RouterID)
	if sawSelf {
		self := Identity{RouterID: ifc.RouterID, Priority: ifc.Priority, DR: ifc.dRouter, BDR: ifc.bdRouter}
		nbr := Identity{RouterID: n.RouterID, Priority: n.Priority, DR: n.DR, BDR: n.BDR}
		if n.State == NFSMInit {
			if ShouldFormAdjacency(ifc.PointToPoint, self, nbr) {
				n.ForceState(NFSMExStart)
			} else {
				n.ForceState(NFSMTwoWay)
			}
		}
	} else if n.State > NFSMInit {
		n.Dispatch(NFSMOneWayReceived)
	}
	ifc.Dispatch(IFSMNeighborChange)
}

// runDRElectionLocked implements spec.md §4.5's DR election: BDR from
// non-DR-declaring candidates (preferring those declaring BDR),
// DR from DR-declaring candidates (falling back to the elected BDR if
// none declare DR), tiebreak by (priority, router-id) in both passes.
// Must be called with ifc.mu held.
func (ifc *Interface) runDRElectionLocked() {
	prevDR, prevBDR, prevState := ifc.dRouter, ifc.bdRouter, ifc.state

	candidates := ifc.electionCandidatesLocked()
	bdr := electBDR(candidates)
	dr := electDR(candidates, bdr)

	ifc.bdRouter = identityAddr(bdr)
	ifc.dRouter = identityAddr(dr)

	newState := ifc.stateFromRoleLocked()
	if newState != prevState && !(newState == IFSMDROther && prevState < IFSMDROther) {
		candidates = ifc.electionCandidatesLocked()
		bdr = electBDR(candidates)
		dr = electDR(candidates, bdr)
		if dr != nil && bdr != nil && dr.RouterID == bdr.RouterID {
			ifc.bdRouter = RouterID(0)
		} else {
			ifc.bdRouter = identityAddr(bdr)
		}
		ifc.dRouter = identityAddr(dr)
		newState = ifc.stateFromRoleLocked()
	}
	ifc.changeStateLocked(newState)

	if prevDR != ifc.dRouter || prevBDR != ifc.bdRouter {
		ifc.reevaluateAdjOKLocked()
	}
	if ifc.join != nil {
		wasDROrBackup := prevState == IFSMDR || prevState == IFSMBackup
		isDROrBackup := newState == IFSMDR || newState == IFSMBackup
		if !wasDROrBackup && isDROrBackup {
			ifc.join(true, true) // join AllDRouters
		} else if wasDROrBackup && !isDROrBackup {
			ifc.join(false, true) // leave AllDRouters
		}
	}
}

func (ifc *Interface) electionCandidatesLocked() []*Identity {
	var out []*Identity
	for _, n := range ifc.neighbors {
		if n.State < NFSMTwoWay || n.RouterID == 0 || n.Priority == 0 {
			continue
		}
		id := Identity{RouterID: n.RouterID, Priority: n.Priority, DR: n.DR, BDR: n.BDR}
		out = append(out, &id)
	}
	if ifc.helloSent && ifc.RouterID != 0 && ifc.Priority != 0 {
		self := Identity{RouterID: ifc.RouterID, Priority: ifc.Priority, DR: ifc.dRouter, BDR: ifc.bdRouter}
		out = append(out, &self)
	}
	return out
}

func electBDR(candidates []*Identity) *Identity {
	var nonDR []*Identity
	for _, c := range candidates {
		if !c.declaresDR() {
			nonDR = append(nonDR, c)
		}
	}
	var declaringBDR []*Identity
	for _, c := range nonDR {
		if c.declaresBDR() {
			declaringBDR = append(declaringBDR, c)
		}
	}
	if len(declaringBDR) > 0 {
		return tiebreak(declaringBDR)
	}
	return tiebreak(nonDR)
}

func electDR(candidates []*Identity, bdr *Identity) *Identity {
	var declaringDR []*Identity
	for _, c := range candidates {
		if c.declaresDR() {
			declaringDR = append(declaringDR, c)
		}
	}
	if dr := tiebreak(declaringDR); dr != nil {
		return dr
	}
	return bdr
}

// tiebreak returns the candidate with the highest priority, ties
// broken by highest router-id, per spec.md's "(priority, router-id)"
// rule.
func tiebreak(candidates []*Identity) *Identity {
	var best *Identity
	for _, c := range candidates {
		if best == nil || c.Priority > best.Priority || (c.Priority == best.Priority && c.RouterID > best.RouterID) {
			best = c
		}
	}
	return best
}

func identityAddr(id *Identity) RouterID {
	if id == nil {
		return RouterID(0)
	}
	return id.RouterID
}

func (ifc *Interface) stateFromRoleLocked() IFSMState {
	switch {
	case ifc.dRouter == ifc.RouterID:
		return IFSMDR
	case ifc.bdRouter == ifc.RouterID:
		return IFSMBackup
	default:
		return IFSMDROther
	}
}

// reevaluateAdjOKLocked re-runs each TwoWay-or-above neighbor's
// adjacency decision after a DR/BDR change, per spec.md: "on any
// DR/BDR change, re-evaluate AdjOK for all neighbors."
func (ifc *Interface) reevaluateAdjOKLocked() {
	self := Identity{RouterID: ifc.RouterID, Priority: ifc.Priority, DR: ifc.dRouter, BDR: ifc.bdRouter}
	for _, n := range ifc.neighbors {
		if n.State < NFSMTwoWay {
			continue
		}
		nbr := Identity{RouterID: n.RouterID, Priority: n.Priority, DR: n.DR, BDR: n.BDR}
		shouldAdj := ShouldFormAdjacency(ifc.PointToPoint, self, nbr)
		switch {
		case shouldAdj && n.State == NFSMTwoWay:
			n.ForceState(NFSMExStart)
		case !shouldAdj && n.State > NFSMTwoWay:
			n.ForceState(NFSMTwoWay)
		}
	}
}

// DesignatedRouter and BackupDesignatedRouter report the interface's
// current elected DR/BDR, for show output.
func (ifc *Interface) DesignatedRouter() RouterID {
	ifc.mu.Lock()
	defer ifc.mu.Unlock()
	return ifc.dRouter
}

func (ifc *Interface) BackupDesignatedRouter() RouterID {
	ifc.mu.Lock()
	defer ifc.mu.Unlock()
	return ifc.bdRouter
}

// Neighbor returns the tracked neighbor keyed by the router ID from
// its Hello header, for tests and show output.
func (ifc *Interface) Neighbor(source RouterID) (*Neighbor, bool) {
	ifc.mu.Lock()
	defer ifc.mu.Unlock()
	n, ok := ifc.neighbors[source]
	return n, ok
}
