package main

import (
	"context"
	"fmt"
	"net/netip"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/zeburouter/zeburouter/bgp"
	"github.com/zeburouter/zeburouter/config"
	"github.com/zeburouter/zeburouter/counter"
	"github.com/zeburouter/zeburouter/rib"
	"github.com/zeburouter/zeburouter/speaker"
)

// startBGP builds a speaker.Speaker from cfg's peer list, starts its
// listener, and forwards every peer's Adj-RIB-In updates into r as
// RouteTypeBGP entries, per spec.md §4.6's "protocol-sourced entries"
// add flow.
func startBGP(ctx context.Context, cfg *config.Config, r *rib.Rib, reg prometheus.Registerer, log *zap.Logger) (*speaker.Speaker, error) {
	routerID, err := identifierFromString(cfg.RouterID)
	if err != nil {
		return nil, fmt.Errorf("bgp: router-id: %w", err)
	}
	count := counter.NewPDUVec(reg, "bgp_pdu_total", "router", "default")
	sp, err := speaker.New(bgp.ASN(cfg.ASN), routerID, log.Named("bgp"), count)
	if err != nil {
		return nil, fmt.Errorf("bgp: %w", err)
	}

	for _, p := range cfg.Peers {
		addr, err := netip.ParseAddr(p.Address)
		if err != nil {
			return nil, fmt.Errorf("bgp: peer %s: %w", p.Address, err)
		}
		opts := []speaker.PeerOption{speaker.HoldTimeOption(time.Duration(p.HoldTime) * time.Second)}
		if p.Passive {
			opts = append(opts, speaker.PassiveOption())
		}
		peer := sp.Peer(bgp.ASN(p.RemoteAS), addr, opts...)
		peer.Enable()
		go pumpPeerUpdates(ctx, peer, r, log)
	}

	go func() {
		if err := sp.Serve(ctx); err != nil && ctx.Err() == nil {
			log.Error("bgp speaker exited", zap.Error(err))
		}
	}()
	return sp, nil
}

// pumpPeerUpdates drains one peer's parsed UPDATE messages into the
// RIB, translating withdrawals to Ipv4Del and advertisements to
// Ipv4Add with a BGP-sourced entry, per spec.md §4.6.
func pumpPeerUpdates(ctx context.Context, peer *speaker.Peer, r *rib.Rib, log *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-peer.Updates():
			if !ok {
				return
			}
			applyBGPUpdate(u, r, log)
		}
	}
}

func applyBGPUpdate(u *bgp.Update, r *rib.Rib, log *zap.Logger) {
	for _, w := range u.WithdrawnRoutes {
		r.Ipv4Del(mustTreePrefix(w.Prefix), &rib.Entry{Type: rib.RouteTypeBGP})
	}
	if len(u.NLRI) == 0 {
		return
	}
	nh, ok := u.NextHop()
	if !ok {
		log.Warn("bgp update with NLRI but no usable next hop, dropping")
		return
	}
	var metric uint32
	if u.Attributes != nil && u.Attributes.MultiExitDisc != nil {
		metric = *u.Attributes.MultiExitDisc
	}
	for _, n := range u.NLRI {
		entry := rib.NewEntry(rib.RouteTypeBGP, metric, rib.NewUniNexthop(nh, 1))
		r.Ipv4Add(mustTreePrefix(n.Prefix), entry)
	}
}

func identifierFromString(s string) (bgp.Identifier, error) {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return 0, err
	}
	if !addr.Is4() {
		return 0, fmt.Errorf("router-id %q is not an IPv4 address", s)
	}
	b := addr.As4()
	return bgp.NewIdentifier(b[0], b[1], b[2], b[3]), nil
}
