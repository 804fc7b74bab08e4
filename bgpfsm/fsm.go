package bgpfsm

import (
	"time"

	"go.uber.org/zap"

	"github.com/zeburouter/zeburouter/bgp"
	"github.com/zeburouter/zeburouter/counter"
	"github.com/zeburouter/zeburouter/timer"
)

// Default timer values (RFC 4271 §8.2.2, §10), overridable per peer
// config.
const (
	DefaultConnectRetryTime = 120 * time.Second
	DefaultHoldTime         = 180 * time.Second
	DefaultKeepaliveTime    = DefaultHoldTime / 3
	DefaultIdleHoldTime     = 5 * time.Second
)

// Transport is the FSM's one dependency on the outside world: dialing
// the peer, sending a framed PDU, and tearing the connection down. The
// speaker package's per-peer reader/writer tasks implement this over a
// real net.Conn and the per-peer frame queue; tests use a fake.
type Transport interface {
	Dial() error
	Send(frame []byte) error
	Close() error
}

// Config is a peer's static configuration: everything the FSM needs
// to validate an incoming OPEN and compute its own outgoing one.
type Config struct {
	LocalAS    bgp.ASN
	PeerAS     bgp.ASN // 0 accepts any remote AS (dynamic/unconfigured peers)
	RouterID   bgp.Identifier
	HoldTime   time.Duration
	Capabilities *bgp.Set
	PassiveOnly bool // never dial, only accept
}

// FSM is one peer's BGP state machine. All state transitions happen
// on the goroutine running Run; everything else posts events through
// Post.
type FSM struct {
	cfg       Config
	transport Transport
	log       *zap.Logger
	counters  *counter.PDUVec

	state               State
	connectRetryCounter int

	connectRetryTimer *timer.Timer
	holdTimer         *timer.Timer
	keepaliveTimer    *timer.Timer
	idleHoldTimer     *timer.Timer

	negotiatedHoldTime time.Duration
	session            bgp.Session
	peerCaps           *bgp.Set

	inbox chan Event
	done  chan struct{}
}

// New creates an FSM in the Idle state. The caller starts its event
// loop with Run.
func New(cfg Config, transport Transport, log *zap.Logger, counters *counter.PDUVec) *FSM {
	if cfg.HoldTime == 0 {
		cfg.HoldTime = DefaultHoldTime
	}
	if cfg.Capabilities == nil {
		cfg.Capabilities = bgp.NewSet()
	}
	return &FSM{
		cfg:       cfg,
		transport: transport,
		log:       log,
		counters:  counters,
		state:     Idle,
		inbox:     make(chan Event, 64),
		done:      make(chan struct{}),
	}
}

// State returns the FSM's current state. Safe to call from any
// goroutine; it is a best-effort snapshot for introspection, not a
// synchronization point.
func (f *FSM) State() State { return f.state }

// Post enqueues an event for the FSM's Run loop. It never blocks
// indefinitely: a full inbox indicates a stuck peer loop and the send
// is dropped rather than stalling the caller (the reader/writer
// tasks).
func (f *FSM) Post(e Event) {
	select {
	case f.inbox <- e:
	case <-f.done:
	default:
		f.log.Warn("fsm inbox full, dropping event", zap.Stringer("event", e.Kind), zap.Stringer("state", f.state))
	}
}

// Run drives the FSM's event loop until a Stop event leaves the FSM in
// Idle or Close closes the inbox; Run closes done when it returns.
func (f *FSM) Run() {
	defer close(f.done)
	for e := range f.inbox {
		f.dispatch(e)
		if f.state == Idle && e.Kind == Stop {
			return
		}
	}
}

// Close stops accepting new events and unblocks any pending Post.
func (f *FSM) Close() {
	close(f.inbox)
}

func (f *FSM) dispatch(e Event) {
	f.log.Debug("fsm event", zap.Stringer("event", e.Kind), zap.Stringer("state", f.state))
	switch f.state {
	case Idle:
		f.idle(e)
	case Connect:
		f.connect(e)
	case Active:
		f.active(e)
	case OpenSent:
		f.openSent(e)
	case OpenConfirm:
		f.openConfirm(e)
	case Established:
		f.established(e)
	}
}

func (f *FSM) transition(to State) {
	f.log.Info("fsm transition", zap.Stringer("from", f.state), zap.Stringer("to", to))
	f.state = to
}

// idle handles spec.md §4.3's Idle state: only Start initiates a
// connection attempt.
func (f *FSM) idle(e Event) {
	switch e.Kind {
	case Start:
		f.connectRetryCounter = 0
		f.connectRetryTimer = timer.New(DefaultConnectRetryTime, func() { f.Post(Event{Kind: ConnRetryTimerExpires}) })
		if !f.cfg.PassiveOnly {
			go func() {
				if err := f.transport.Dial(); err != nil {
					f.Post(Event{Kind: ConnFail})
					return
				}
				f.Post(Event{Kind: Connected})
			}()
		}
		f.transition(Connect)
	}
}

// connect handles the Connect state: waiting for the TCP connection
// to complete.
func (f *FSM) connect(e Event) {
	switch e.Kind {
	case Connected:
		f.stopTimer(f.connectRetryTimer)
		f.sendOpen()
		f.transition(OpenSent)
	case ConnFail:
		f.stopTimer(f.connectRetryTimer)
		f.transition(Active)
	case ConnRetryTimerExpires:
		f.connectRetryCounter++
		f.connectRetryTimer = timer.New(DefaultConnectRetryTime, func() { f.Post(Event{Kind: ConnRetryTimerExpires}) })
	case Stop:
		f.dropToIdle()
	}
}

// active handles the Active state: waiting for a connection, ours or
// the peer's.
func (f *FSM) active(e Event) {
	switch e.Kind {
	case Connected:
		f.stopTimer(f.connectRetryTimer)
		f.sendOpen()
		f.transition(OpenSent)
	case ConnRetryTimerExpires:
		f.connectRetryTimer = timer.New(DefaultConnectRetryTime, func() { f.Post(Event{Kind: ConnRetryTimerExpires}) })
		if !f.cfg.PassiveOnly {
			go func() {
				if err := f.transport.Dial(); err != nil {
					f.Post(Event{Kind: ConnFail})
					return
				}
				f.Post(Event{Kind: Connected})
			}()
		}
		f.transition(Connect)
	case Stop:
		f.dropToIdle()
	}
}

// openSent handles the OpenSent state: waiting for the peer's OPEN.
// The OPEN is validated by Open.Validate (version 4, AS equal to the
// configured peer AS, acceptable hold time); on a failure a
// NOTIFICATION is sent and the FSM drops to Idle, otherwise the hold
// and keepalive timers start and the FSM moves straight to
// Established without entering OpenConfirm. The peer's BGP Identifier
// is not compared against any configured address.
func (f *FSM) openSent(e Event) {
	switch e.Kind {
	case BGPOpen:
		minHold := uint16(3)
		if notif := e.Open.Validate(f.cfg.PeerAS, minHold); notif != nil {
			f.sendNotification(notif)
			f.dropToIdle()
			return
		}
		f.peerCaps = e.Open.Capabilities
		f.negotiatedHoldTime = negotiateHoldTime(f.cfg.HoldTime, e.Open.HoldTime)
		f.session = bgp.Session{AS4: f.peerCaps.AS4 != 0 && f.cfg.Capabilities.AS4 != 0}
		f.sendKeepalive()
		f.startSessionTimers()
		f.transition(Established)
	case NotifMsg:
		f.dropToIdle()
	case HoldTimerExpires:
		f.sendNotification(bgp.NewNotification(bgp.ErrHoldTimerExpired, 0, nil))
		f.dropToIdle()
	case ConnFail:
		f.dropToIdle()
	case Stop:
		f.sendNotification(bgp.NewNotification(bgp.ErrCease, bgp.SubAdministrativeShutdown, nil))
		f.dropToIdle()
	}
}

// openConfirm exists for the peers/tests that choose not to collapse
// it into the OpenSent→Established transition (e.g. a future
// keepalive-before-established policy); spec.md's default path never
// reaches it, so it only needs to forward the events that would
// legitimately arrive here.
func (f *FSM) openConfirm(e Event) {
	switch e.Kind {
	case KeepAliveMsg:
		f.transition(Established)
	case NotifMsg, HoldTimerExpires, ConnFail:
		f.dropToIdle()
	case Stop:
		f.sendNotification(bgp.NewNotification(bgp.ErrCease, bgp.SubAdministrativeShutdown, nil))
		f.dropToIdle()
	}
}

// established handles spec.md §4.3's Established state: the session
// is up; KEEPALIVE and UPDATE refresh the hold timer, UPDATE is
// forwarded to Adj-RIB-In processing.
func (f *FSM) established(e Event) {
	switch e.Kind {
	case KeepaliveTimerExpires:
		f.sendKeepalive()
		f.keepaliveTimer.Reset(f.negotiatedHoldTime / 3)
	case KeepAliveMsg:
		f.holdTimer.Reset(f.negotiatedHoldTime)
	case UpdateMsg:
		f.holdTimer.Reset(f.negotiatedHoldTime)
		// Adj-RIB-In processing is invoked by the owning peer task via
		// its own subscription to this FSM's UpdateMsg events; the FSM
		// itself only guards the hold timer and state.
	case HoldTimerExpires:
		f.sendNotification(bgp.NewNotification(bgp.ErrHoldTimerExpired, 0, nil))
		f.dropToIdle()
	case NotifMsg:
		f.dropToIdle()
	case ConnFail:
		f.dropToIdle()
	case BGPOpen:
		// A second OPEN in Established is a collision or protocol
		// violation; RFC 4271 §6.6 calls for FSM error notification.
		f.sendNotification(bgp.NewNotification(bgp.ErrFiniteStateMachine, bgp.SubUnexpectedMessageInEstablished, nil))
		f.dropToIdle()
	case Stop:
		f.sendNotification(bgp.NewNotification(bgp.ErrCease, bgp.SubAdministrativeShutdown, nil))
		f.dropToIdle()
	}
}

func (f *FSM) dropToIdle() {
	f.stopTimer(f.connectRetryTimer)
	f.stopTimer(f.holdTimer)
	f.stopTimer(f.keepaliveTimer)
	f.stopTimer(f.idleHoldTimer)
	_ = f.transport.Close()
	f.transition(Idle)
}

func (f *FSM) stopTimer(t *timer.Timer) {
	if t != nil {
		t.Stop()
	}
}

func (f *FSM) startSessionTimers() {
	f.holdTimer = timer.New(f.negotiatedHoldTime, func() { f.Post(Event{Kind: HoldTimerExpires}) })
	if f.negotiatedHoldTime > 0 {
		f.keepaliveTimer = timer.New(f.negotiatedHoldTime/3, func() { f.Post(Event{Kind: KeepaliveTimerExpires}) })
	}
}

func (f *FSM) sendOpen() {
	open := &bgp.Open{
		Version:      bgp.Version4,
		MyAS:         localASField(f.cfg.LocalAS),
		HoldTime:     uint16(f.cfg.HoldTime / time.Second),
		Identifier:   f.cfg.RouterID,
		Capabilities: f.cfg.Capabilities,
	}
	frame := bgp.Frame(bgp.TypeOpen, open.Bytes())
	if err := f.transport.Send(frame); err != nil {
		f.Post(Event{Kind: ConnFail})
		return
	}
	if f.counters != nil {
		f.counters.Increment("OPEN")
	}
}

func (f *FSM) sendKeepalive() {
	frame := bgp.Frame(bgp.TypeKeepalive, nil)
	if err := f.transport.Send(frame); err != nil {
		f.Post(Event{Kind: ConnFail})
		return
	}
	if f.counters != nil {
		f.counters.Increment("KEEPALIVE")
	}
}

func (f *FSM) sendNotification(n *bgp.Notification) {
	frame := bgp.Frame(bgp.TypeNotification, n.Bytes())
	_ = f.transport.Send(frame)
	if f.counters != nil {
		f.counters.Increment("NOTIFICATION")
	}
}

// localASField picks the 2-octet OPEN AS field: the real ASN if it
// fits, AS_TRANS otherwise (the AS4 capability carries the real
// value).
func localASField(asn bgp.ASN) bgp.ASN {
	if asn > 0xffff {
		return bgp.ASTrans
	}
	return asn
}

// negotiateHoldTime applies RFC 4271 §4.2: the smaller of the locally
// configured and peer-proposed hold times, or zero (KEEPALIVE
// disabled) when either side is zero. No minimum is applied here; the
// peer's hold time has already passed Open.Validate.
func negotiateHoldTime(local time.Duration, peerSeconds uint16) time.Duration {
	peer := time.Duration(peerSeconds) * time.Second
	if peer == 0 || local == 0 {
		return 0
	}
	if peer < local {
		return peer
	}
	return local
}
