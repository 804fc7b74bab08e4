package bgpfsm

import "github.com/zeburouter/zeburouter/bgp"

// Kind is one of the FSM events spec.md §4.3 names: "Start, Stop,
// ConnRetryTimerExpires, HoldTimerExpires, KeepaliveTimerExpires,
// IdleHoldTimerExpires, Connected(stream), ConnFail, BGPOpen(pdu),
// NotifMsg(pdu), KeepAliveMsg, UpdateMsg(pdu)" (non-exhaustive in the
// spec; this package implements exactly that set).
type Kind int

const (
	Start Kind = iota
	Stop
	ConnRetryTimerExpires
	HoldTimerExpires
	KeepaliveTimerExpires
	IdleHoldTimerExpires
	Connected
	ConnFail
	BGPOpen
	NotifMsg
	KeepAliveMsg
	UpdateMsg
)

var eventName = map[Kind]string{
	Start:                 "Start",
	Stop:                  "Stop",
	ConnRetryTimerExpires: "ConnRetryTimerExpires",
	HoldTimerExpires:      "HoldTimerExpires",
	KeepaliveTimerExpires: "KeepaliveTimerExpires",
	IdleHoldTimerExpires:  "IdleHoldTimerExpires",
	Connected:             "Connected",
	ConnFail:              "ConnFail",
	BGPOpen:               "BGPOpen",
	NotifMsg:              "NotifMsg",
	KeepAliveMsg:          "KeepAliveMsg",
	UpdateMsg:             "UpdateMsg",
}

func (k Kind) String() string {
	if n, ok := eventName[k]; ok {
		return n
	}
	return "Unknown"
}

// Event is a single posting to the FSM's inbox. Only the field that
// matches Kind is meaningful.
type Event struct {
	Kind         Kind
	Open         *bgp.Open
	Notification *bgp.Notification
	Update       *bgp.Update
}
