package isis

import (
	"bytes"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/zeburouter/zeburouter/timer"
)

// IFSMEvent is one of the events spec.md §4.4 names for the IFSM.
type IFSMEvent int

const (
	Start IFSMEvent = iota
	Stop
	InterfaceUp
	InterfaceDown
	HelloTimerExpire
	CsnpTimerExpire
	HelloOriginate
	DisSelection
)

// disDampen is the minimum interval between two DIS changes on the
// same interface/level, suppressing rapid churn (spec.md §4.4: "A
// dampening window suppresses rapid DIS churn; each change is
// journaled for operator visibility.").
const disDampen = 5 * time.Second

// Interface is one IS-IS-enabled link, running its IFSM and the
// NFSMs of its neighbors for a single level.
type Interface struct {
	Level    Level
	SystemID SystemID
	MAC      [6]byte
	Priority byte
	MTU      int
	IfIndex  int

	log    *zap.Logger
	send   func(frame []byte)

	mu         sync.Mutex
	neighbors  map[SystemID]*Neighbor
	helloTimer *timer.Timer
	csnpTimer  *timer.Timer

	isDIS        bool
	pseudoID     byte
	lanID        NeighborID
	lastDISChange time.Time
	history      []DISChange
}

// DISChange journals one DIS election outcome for operator
// visibility (show output), per spec.md §4.4.
type DISChange struct {
	At      time.Time
	Elected bool
	LANID   NeighborID
}

// NewInterface creates an Interface in the Down state; Start arms its
// timers and begins Hello origination.
func NewInterface(level Level, sysID SystemID, mac [6]byte, priority byte, mtu, ifIndex int, log *zap.Logger, send func(frame []byte)) *Interface {
	return &Interface{
		Level:     level,
		SystemID:  sysID,
		MAC:       mac,
		Priority:  priority,
		MTU:       mtu,
		IfIndex:   ifIndex,
		log:       log,
		send:      send,
		neighbors: make(map[SystemID]*Neighbor),
	}
}

// Dispatch handles one IFSM event.
func (ifc *Interface) Dispatch(e IFSMEvent) {
	switch e {
	case Start, InterfaceUp:
		ifc.helloTimer = timer.NewPeriodic(defaultHelloInterval(), func() { ifc.Dispatch(HelloOriginate) })
		ifc.Dispatch(HelloOriginate)
	case Stop, InterfaceDown:
		if ifc.helloTimer != nil {
			ifc.helloTimer.Stop()
		}
		if ifc.csnpTimer != nil {
			ifc.csnpTimer.Stop()
		}
	case HelloOriginate:
		ifc.originateHello()
	case DisSelection:
		ifc.runDISElection()
	case CsnpTimerExpire:
		// no action: Interface holds no LSDB, so it sends no CSNP;
		// periodic CSNPs are sent by callers through Flooder.SendCSNP.
	case HelloTimerExpire:
		ifc.originateHello()
	}
}

func defaultHelloInterval() time.Duration { return 3333 * time.Millisecond }

func defaultHoldTime() uint16 { return 10 }

func (ifc *Interface) originateHello() {
	ifc.mu.Lock()
	h := &Hello{
		CircuitType:   ifc.Level,
		SourceID:      ifc.SystemID,
		HoldTime:      defaultHoldTime(),
		Priority:      ifc.Priority,
		LANID:         ifc.lanID,
		NLPIDs:        []byte{NLPIDIPv4},
		AreaAddresses: [][]byte{{0x49, 0x00, 0x01}},
	}
	for _, n := range ifc.neighbors {
		if n.State == NFSMUp || n.State == NFSMInit {
			h.Neighbors = append(h.Neighbors, ISNeighbor(n.MAC))
		}
	}
	ifc.mu.Unlock()
	ifc.send(h.Bytes(ifc.MTU))
}

// ReceiveHello feeds an incoming Hello to the originating neighbor's
// NFSM, creating it if unseen, then re-runs DIS election (every Hello
// can change the candidate set).
func (ifc *Interface) ReceiveHello(h *Hello, fromMAC [6]byte) {
	ifc.mu.Lock()
	n, ok := ifc.neighbors[h.SourceID]
	if !ok {
		n = NewNeighbor(h.SourceID, fromMAC, func() { ifc.Dispatch(DisSelection) })
		n.HoldTimer = timer.New(time.Duration(h.HoldTime)*time.Second, func() {
			ifc.mu.Lock()
			n.ExpireHold()
			ifc.mu.Unlock()
			ifc.Dispatch(DisSelection)
		})
		ifc.neighbors[h.SourceID] = n
	}
	ifc.mu.Unlock()
	n.ReceiveHello(h, ifc.MAC, time.Duration(h.HoldTime)*time.Second, ifc.log)
	ifc.Dispatch(DisSelection)
}

// runDISElection implements spec.md §4.4's DIS election: "Winner:
// highest priority; ties broken by highest MAC. Self wins → become
// DIS... Neighbor wins → set LAN-ID from the neighbor's Hello LAN-ID
// when available."
func (ifc *Interface) runDISElection() {
	ifc.mu.Lock()
	defer ifc.mu.Unlock()

	if !ifc.lastDISChange.IsZero() && time.Since(ifc.lastDISChange) < disDampen {
		return
	}

	selfWins := true
	var bestNeighbor *Neighbor
	for _, n := range ifc.neighbors {
		if n.State != NFSMUp {
			continue
		}
		if bestNeighbor == nil || betterCandidate(n.Priority, n.MAC, bestNeighbor.Priority, bestNeighbor.MAC) {
			bestNeighbor = n
		}
	}
	if bestNeighbor != nil && betterCandidate(bestNeighbor.Priority, bestNeighbor.MAC, ifc.Priority, ifc.MAC) {
		selfWins = false
	}

	wasDIS := ifc.isDIS
	ifc.isDIS = selfWins
	var newLANID NeighborID
	if selfWins {
		ifc.pseudoID = byte(ifc.IfIndex)
		newLANID = NeighborID{SystemID: ifc.SystemID, PseudoID: ifc.pseudoID}
	} else if bestNeighbor != nil {
		newLANID = bestNeighbor.LANID
	}
	if newLANID != ifc.lanID || wasDIS != ifc.isDIS {
		ifc.lanID = newLANID
		ifc.lastDISChange = time.Now()
		ifc.history = append(ifc.history, DISChange{At: ifc.lastDISChange, Elected: ifc.isDIS, LANID: newLANID})
		ifc.log.Info("isis dis election", zap.Bool("self_dis", ifc.isDIS), zap.Stringer("lan_id", newLANID))
		if ifc.isDIS {
			ifc.csnpTimer = timer.NewPeriodic(10*time.Second, func() { ifc.Dispatch(CsnpTimerExpire) })
		} else if ifc.csnpTimer != nil {
			ifc.csnpTimer.Stop()
		}
	}
}

// betterCandidate reports whether (priority,mac) beats (otherPriority,
// otherMAC) under spec.md's "highest priority; ties broken by highest
// MAC" rule.
func betterCandidate(priority byte, mac [6]byte, otherPriority byte, otherMAC [6]byte) bool {
	if priority != otherPriority {
		return priority > otherPriority
	}
	return bytes.Compare(mac[:], otherMAC[:]) > 0
}

// IsDIS reports whether this interface currently holds the DIS role.
func (ifc *Interface) IsDIS() bool {
	ifc.mu.Lock()
	defer ifc.mu.Unlock()
	return ifc.isDIS
}

// LANID returns the interface's current LAN-ID.
func (ifc *Interface) LANID() NeighborID {
	ifc.mu.Lock()
	defer ifc.mu.Unlock()
	return ifc.lanID
}

// UpNeighbors returns the SystemID of every neighbor currently in the
// Up state, for the daemon wiring layer to keep an LSDB's adjacency
// set (AddAdjacency/RemoveAdjacency) in sync with the NFSM.
func (ifc *Interface) UpNeighbors() []SystemID {
	ifc.mu.Lock()
	defer ifc.mu.Unlock()
	out := make([]SystemID, 0, len(ifc.neighbors))
	for id, n := range ifc.neighbors {
		if n.State == NFSMUp {
			out = append(out, id)
		}
	}
	return out
}

// History returns the DIS election journal, for show output.
func (ifc *Interface) History() []DISChange {
	ifc.mu.Lock()
	defer ifc.mu.Unlock()
	out := make([]DISChange, len(ifc.history))
	copy(out, ifc.history)
	return out
}
