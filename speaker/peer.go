package speaker

import (
	"fmt"
	"net"
	"net/netip"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/zeburouter/zeburouter/bgp"
	"github.com/zeburouter/zeburouter/bgpfsm"
	"github.com/zeburouter/zeburouter/counter"
	"github.com/zeburouter/zeburouter/queue"
)

const bgpPort = 179

// Policer is implemented by clients to apply policy to an individual
// advertisement. Returning false denies the route from advertisement
// (out) or injection into Adj-RIB-In (in). Policies may modify the
// update in place.
type Policer interface {
	Apply(*bgp.Update) bool
}

// DefaultPolicy permits everything; a peer with no configured policy
// behaves as an open BGP speaker.
type DefaultPolicy struct{}

func (DefaultPolicy) Apply(*bgp.Update) bool { return true }

// PeerOption configures a Peer at construction time.
type PeerOption func(*Peer) error

func PolicyInOption(p Policer) PeerOption {
	return func(peer *Peer) error { peer.in = p; return nil }
}

func PolicyOutOption(p Policer) PeerOption {
	return func(peer *Peer) error { peer.out = p; return nil }
}

func PassiveOption() PeerOption {
	return func(peer *Peer) error { peer.passive = true; return nil }
}

func HoldTimeOption(d time.Duration) PeerOption {
	return func(peer *Peer) error { peer.holdTime = d; return nil }
}

// Peer is one configured remote BGP speaker: its FSM, its connection
// (dialed by us or handed in from the listener's accept loop), and
// the reader/writer tasks spec.md §5 splits out from the FSM itself.
type Peer struct {
	asn     bgp.ASN
	addr    netip.Addr
	passive bool

	holdTime     time.Duration
	capabilities *bgp.Set
	in, out      Policer

	fsm   *bgpfsm.FSM
	log   *zap.Logger
	count *counter.PDUVec

	mu      sync.Mutex
	conn    net.Conn
	writeQ  *queue.Queue
	wake    chan struct{}
	session bgp.Session
	updates chan *bgp.Update
}

// CapabilitiesOption sets the capability set this peer advertises in
// its OPEN message (AS4, multiprotocol families, AddPath, etc).
func CapabilitiesOption(caps *bgp.Set) PeerOption {
	return func(peer *Peer) error { peer.capabilities = caps; return nil }
}

// newPeer builds a Peer and its FSM but does not start either; the
// owning Speaker starts the FSM's Run loop and, for active peers,
// posts Start.
func newPeer(localAS, peerAS bgp.ASN, routerID bgp.Identifier, addr netip.Addr, log *zap.Logger, count *counter.PDUVec, opts ...PeerOption) *Peer {
	p := &Peer{
		asn:          peerAS,
		addr:         addr,
		holdTime:     bgpfsm.DefaultHoldTime,
		capabilities: bgp.NewSet(),
		in:           DefaultPolicy{},
		out:          DefaultPolicy{},
		log:          log.With(zap.String("peer", addr.String())),
		count:        count,
		writeQ:       queue.New(),
		wake:         make(chan struct{}, 1),
		updates:      make(chan *bgp.Update, 256),
	}
	for _, opt := range opts {
		_ = opt(p)
	}
	cfg := bgpfsm.Config{
		LocalAS:      localAS,
		PeerAS:       peerAS,
		RouterID:     routerID,
		HoldTime:     p.holdTime,
		Capabilities: p.capabilities,
		PassiveOnly:  p.passive,
	}
	p.fsm = bgpfsm.New(cfg, p, log, count)
	return p
}

// Enable starts this peer's FSM and, unless it is passive, its
// connection attempts.
func (p *Peer) Enable() {
	go p.fsm.Run()
	p.fsm.Post(bgpfsm.Event{Kind: bgpfsm.Start})
}

// Disable tears the peer's session down and parks its FSM in Idle.
func (p *Peer) Disable() {
	p.fsm.Post(bgpfsm.Event{Kind: bgpfsm.Stop})
}

// State reports the peer's current FSM state, for show output.
func (p *Peer) State() bgpfsm.State { return p.fsm.State() }

// Updates is the channel the owning Speaker (or, in the full system,
// the BGP protocol instance task) drains to feed Adj-RIB-In.
func (p *Peer) Updates() <-chan *bgp.Update { return p.updates }

// --- bgpfsm.Transport ---

// Dial opens the TCP connection to the peer and starts its reader and
// writer tasks. Passive peers never dial; they wait for Accept.
func (p *Peer) Dial() error {
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(p.addr.String(), fmt.Sprint(bgpPort)), 10*time.Second)
	if err != nil {
		return err
	}
	p.attach(conn)
	return nil
}

// Accept hands the peer a connection the Speaker's listener accepted
// on its behalf (the peer was Idle or Active and this is the
// resolving side of a collision).
func (p *Peer) Accept(conn net.Conn) {
	p.attach(conn)
	p.fsm.Post(bgpfsm.Event{Kind: bgpfsm.Connected})
}

func (p *Peer) attach(conn net.Conn) {
	p.mu.Lock()
	p.conn = conn
	p.mu.Unlock()
	go p.readLoop(conn)
	go p.writeLoop(conn)
}

// Send queues a frame for the writer task and wakes it.
func (p *Peer) Send(frame []byte) error {
	p.mu.Lock()
	conn := p.conn
	p.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("speaker: peer %s has no connection", p.addr)
	}
	p.writeQ.Push(frame)
	select {
	case p.wake <- struct{}{}:
	default:
	}
	return nil
}

// Close tears down the peer's connection; the reader and writer tasks
// exit on the resulting I/O error.
func (p *Peer) Close() error {
	p.mu.Lock()
	conn := p.conn
	p.conn = nil
	p.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

// readLoop accumulates bytes off the wire and extracts complete
// frames by reading the 16-bit length at header offset 16..18 (spec.md
// §5); each frame is decoded and dispatched as an FSM event.
func (p *Peer) readLoop(conn net.Conn) {
	buf := make([]byte, 0, 4*bgp.MaxLen)
	tmp := make([]byte, 65536)
	for {
		n, err := conn.Read(tmp)
		if n > 0 {
			buf = append(buf, tmp[:n]...)
			frames, consumed := bgp.SplitFrames(buf)
			buf = buf[consumed:]
			for _, frame := range frames {
				p.dispatchFrame(frame)
			}
		}
		if err != nil {
			p.fsm.Post(bgpfsm.Event{Kind: bgpfsm.ConnFail})
			return
		}
	}
}

// negotiateSession derives the session's wire-codec parameters from
// the two sides' advertised capabilities: AS4 requires both sides to
// advertise it, and AddPath is per-family, receive-capable on our
// side and send-capable (or both) on the peer's.
func (p *Peer) negotiateSession(peerOpen *bgp.Open) {
	addPath := make(map[bgp.Family]bool)
	for family, mode := range p.capabilities.AddPath {
		if mode == bgp.AddPathReceive || mode == bgp.AddPathBoth {
			if peerMode, ok := peerOpen.Capabilities.AddPath[family]; ok && (peerMode == bgp.AddPathSend || peerMode == bgp.AddPathBoth) {
				addPath[family] = true
			}
		}
	}
	p.session = bgp.Session{
		AS4:     p.capabilities.AS4 != 0 && peerOpen.Capabilities.AS4 != 0,
		AddPath: addPath,
	}
}

func (p *Peer) dispatchFrame(frame []byte) {
	typ, msg, err := p.session.Decode(frame)
	if err != nil {
		p.log.Warn("malformed BGP frame", zap.Error(err))
		p.fsm.Post(bgpfsm.Event{Kind: bgpfsm.ConnFail})
		return
	}
	if p.count != nil {
		p.count.Increment(typ.String())
	}
	switch typ {
	case bgp.TypeOpen:
		peerOpen := msg.(*bgp.Open)
		p.negotiateSession(peerOpen)
		p.fsm.Post(bgpfsm.Event{Kind: bgpfsm.BGPOpen, Open: peerOpen})
	case bgp.TypeUpdate:
		u := msg.(*bgp.Update)
		p.fsm.Post(bgpfsm.Event{Kind: bgpfsm.UpdateMsg, Update: u})
		if p.in.Apply(u) {
			select {
			case p.updates <- u:
			default:
				p.log.Warn("update channel full, dropping update")
			}
		}
	case bgp.TypeNotification:
		p.fsm.Post(bgpfsm.Event{Kind: bgpfsm.NotifMsg, Notification: msg.(*bgp.Notification)})
	case bgp.TypeKeepalive:
		p.fsm.Post(bgpfsm.Event{Kind: bgpfsm.KeepAliveMsg})
	}
}

// writeLoop drains the per-peer write queue whenever Send wakes it,
// writing each frame to the socket in order.
func (p *Peer) writeLoop(conn net.Conn) {
	for range p.wake {
		for {
			frame, ok := p.writeQ.TryPop()
			if !ok {
				break
			}
			if _, err := conn.Write(frame); err != nil {
				p.fsm.Post(bgpfsm.Event{Kind: bgpfsm.ConnFail})
				return
			}
		}
	}
}
