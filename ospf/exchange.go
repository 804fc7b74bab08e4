package ospf

// ReceiveDatabaseDescription applies spec.md §4.5's negotiation and
// exchange rule to an incoming DD packet from neighbor n.
//
// In ExStart: "if we are in ExStart and the peer sends a DD with
// I,M,MS all set and an empty LSA list and its router-id is greater
// than ours, we become slave (adopt its sequence and clear MS); if
// the peer has I=M=0, MS=0 and matching sequence with its router-id
// less, we become master."
//
// In Exchange/Loading/Full: a DD whose sequence number does not match
// the expected next value, or whose master bit flips mid-exchange, is
// a protocol violation (spec.md §7 FsmProtocolViolation: "for OSPF
// emit SeqNumberMismatch into the NFSM"); the last page with More
// clear ends the exchange.
func (ifc *Interface) ReceiveDatabaseDescription(n *Neighbor, dd *DatabaseDescription) {
	switch n.State {
	case NFSMExStart:
		switch {
		case dd.Flags.AllSet() && len(dd.LSAHeaders) == 0 && n.RouterID > ifc.RouterID:
			n.Master = false // peer is master, we are slave
			n.DDSequenceNumber = dd.SequenceNumber
			n.LastDD = dd
			n.Dispatch(NFSMNegotiationDone)
		case !dd.Flags.Init() && !dd.Flags.More() && !dd.Flags.Master() && dd.SequenceNumber == n.DDSequenceNumber && n.RouterID < ifc.RouterID:
			n.Master = true
			n.LastDD = dd
			n.Dispatch(NFSMNegotiationDone)
		}
		// any other combination leaves the neighbor in ExStart; this
		// function sends no DD of its own.
	case NFSMExchange:
		if !ddSequenceValid(n, dd) {
			n.Dispatch(NFSMSeqNumberMismatch)
			return
		}
		n.LastDD = dd
		if n.Master {
			n.DDSequenceNumber++
		} else {
			n.DDSequenceNumber = dd.SequenceNumber
		}
		if !dd.Flags.More() {
			n.Dispatch(NFSMExchangeDone)
		}
	case NFSMLoading, NFSMFull:
		if !ddSequenceValid(n, dd) {
			n.Dispatch(NFSMSeqNumberMismatch)
		}
	}
}

// ddSequenceValid reports whether dd's MS bit agrees with the
// negotiated roles and its sequence number is the one the exchange
// expects next, given which side is master.
func ddSequenceValid(n *Neighbor, dd *DatabaseDescription) bool {
	if dd.Flags.Master() == n.Master {
		return false
	}
	if n.Master {
		return dd.SequenceNumber == n.DDSequenceNumber
	}
	return dd.SequenceNumber == n.DDSequenceNumber+1 || dd.SequenceNumber == n.DDSequenceNumber
}
