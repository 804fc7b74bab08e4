// Package speaker implements the BGP speaker of spec.md §4.3/§5: a
// dual-stack listener that accepts inbound connections and matches
// them to configured peers, plus the per-peer reader/writer tasks
// that drive each peer's bgpfsm.FSM.
package speaker

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"sync"

	"go.uber.org/zap"

	"github.com/zeburouter/zeburouter/bgp"
	"github.com/zeburouter/zeburouter/bgpfsm"
	"github.com/zeburouter/zeburouter/counter"
)

// Speaker is a router speaking BGP to a set of configured peers.
type Speaker struct {
	asn      bgp.ASN
	routerID bgp.Identifier
	log      *zap.Logger
	count    *counter.PDUVec

	mu    sync.Mutex
	peers map[netip.Addr]*Peer

	listener net.Listener
}

// New creates a Speaker and binds its dual-stack listener. spec.md
// §4.3: "bind IPv4 0.0.0.0:179 and IPv6 [::]:179 using an IPv6-only
// socket (to prevent dual-bind conflict)". Go's "tcp" network on a
// dual-stack host already binds a single IPv6 socket that also
// accepts IPv4-mapped connections, so one Listen call covers both.
func New(asn bgp.ASN, routerID bgp.Identifier, log *zap.Logger, count *counter.PDUVec) (*Speaker, error) {
	l, err := net.Listen("tcp", fmt.Sprintf(":%d", bgpPort))
	if err != nil {
		return nil, fmt.Errorf("speaker: listen: %w", err)
	}
	s := &Speaker{
		asn:      asn,
		routerID: routerID,
		log:      log,
		count:    count,
		peers:    make(map[netip.Addr]*Peer),
		listener: l,
	}
	return s, nil
}

// Peer adds a new configured peer and returns it disabled; the caller
// calls Enable once its policy options are all applied.
func (s *Speaker) Peer(peerAS bgp.ASN, addr netip.Addr, opts ...PeerOption) *Peer {
	p := newPeer(s.asn, peerAS, s.routerID, addr, s.log, s.count, opts...)
	s.mu.Lock()
	s.peers[addr] = p
	s.mu.Unlock()
	return p
}

// Remove disables and forgets a configured peer.
func (s *Speaker) Remove(addr netip.Addr) {
	s.mu.Lock()
	p, ok := s.peers[addr]
	delete(s.peers, addr)
	s.mu.Unlock()
	if ok {
		p.Disable()
	}
}

// Lookup returns the configured peer for addr, if any.
func (s *Speaker) Lookup(addr netip.Addr) (*Peer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.peers[addr]
	return p, ok
}

// Serve runs the accept loop: spec.md §4.3's "accept either; on
// accept, either associate with an existing Idle peer or reject." It
// returns when ctx is cancelled or the listener is closed.
func (s *Speaker) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = s.listener.Close()
	}()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		s.handleAccept(conn)
	}
}

func (s *Speaker) handleAccept(conn net.Conn) {
	remote, err := remoteAddr(conn)
	if err != nil {
		s.log.Warn("rejecting inbound connection with unparsable remote address", zap.Error(err))
		_ = conn.Close()
		return
	}
	p, ok := s.Lookup(remote)
	if !ok {
		s.log.Info("rejecting inbound connection from unconfigured peer", zap.Stringer("remote", remote))
		_ = conn.Close()
		return
	}
	if p.State() != bgpfsm.Idle && p.State() != bgpfsm.Active {
		s.log.Info("rejecting inbound connection, peer not Idle/Active", zap.Stringer("remote", remote), zap.Stringer("state", p.State()))
		_ = conn.Close()
		return
	}
	p.Accept(conn)
}

func remoteAddr(conn net.Conn) (netip.Addr, error) {
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return netip.Addr{}, err
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}, err
	}
	return addr.Unmap(), nil
}

// Close shuts down the listener. Configured peers keep running until
// individually Disabled.
func (s *Speaker) Close() error {
	return s.listener.Close()
}
