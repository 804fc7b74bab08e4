package main

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/zeburouter/zeburouter/config"
	"github.com/zeburouter/zeburouter/isis"
	"github.com/zeburouter/zeburouter/transport"
)

// csnpInterval is how often a DIS originates a full-database CSNP,
// independent of the per-interface csnpTimer isis.Interface arms for
// its own internal bookkeeping (spec.md §4.4 leaves the cadence
// unspecified; 10s matches the constant already chosen inside ifsm.go).
const csnpInterval = 10 * time.Second

// floodSyncInterval bounds how often the daemon drains pending
// SRM/SSN flags and reconciles each interface's NFSM-Up neighbor set
// against its LSDB's adjacency set.
const floodSyncInterval = 1 * time.Second

// isisRunner wires one configured IS-IS interface: its IFSM, its
// level's shared LSDB, a Flooder scoped to this link, and the raw
// 802.3 socket carrying its PDUs.
type isisRunner struct {
	ifc     *isis.Interface
	db      *isis.LSDB
	flooder *isis.Flooder
	link    transport.ISISLink
	ifIndex int
	level   isis.Level
	log     *zap.Logger
}

// startISIS brings up one isisRunner per configured IS-IS interface,
// sharing one LSDB per level across all of them (spec.md §4.4: the
// LSDB is per-level, not per-interface).
func startISIS(ctx context.Context, cfg *config.Config, systemID isis.SystemID, log *zap.Logger) ([]*isisRunner, error) {
	dbs := map[isis.Level]*isis.LSDB{}
	levelOf := func(s string) isis.Level {
		if s == "level-1" {
			return isis.Level1
		}
		return isis.Level2
	}

	var runners []*isisRunner
	for _, i := range cfg.Interfaces {
		if i.ISIS == nil {
			continue
		}
		level := levelOf(i.ISIS.Level)
		db, ok := dbs[level]
		if !ok {
			db = isis.NewLSDB(level, log.Named("isis.lsdb"))
			dbs[level] = db
		}

		ifi, err := net.InterfaceByName(i.Name)
		if err != nil {
			return nil, err
		}
		link, err := transport.NewISISLink(i.Name)
		if err != nil {
			return nil, err
		}
		var mac [6]byte
		copy(mac[:], ifi.HardwareAddr)

		dst := transport.AllL2IS
		if level == isis.Level1 {
			dst = transport.AllL1IS
		}
		send := func(frame []byte) {
			if err := link.Send(frame, dst); err != nil {
				log.Warn("isis send", zap.String("iface", i.Name), zap.Error(err))
			}
		}

		ifc := isis.NewInterface(level, systemID, mac, i.ISIS.Priority, ifi.MTU, ifi.Index, log.Named("isis.ifsm"), send)
		flooder := isis.NewFlooder(db, systemID, ifi.MTU, send)

		r := &isisRunner{ifc: ifc, db: db, flooder: flooder, link: link, ifIndex: ifi.Index, level: level, log: log}
		runners = append(runners, r)

		ifc.Dispatch(isis.Start)
		go r.readLoop(ctx)
		go r.syncLoop(ctx)
	}
	return runners, nil
}

// readLoop decodes inbound frames and dispatches them to the IFSM or
// LSDB depending on PDU type.
func (r *isisRunner) readLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		body, fromMAC, err := r.link.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			r.log.Warn("isis recv", zap.Error(err))
			continue
		}
		header, rest, err := isis.ReadHeader(body)
		if err != nil {
			r.log.Debug("isis malformed header", zap.Error(err))
			continue
		}
		r.dispatch(header, rest, fromMAC)
	}
}

func (r *isisRunner) dispatch(h isis.Header, body []byte, fromMAC [6]byte) {
	switch h.Type {
	case isis.PDUL1Hello, isis.PDUL2Hello, isis.PDUP2PHello:
		hello, err := isis.ReadHello(r.level, body)
		if err != nil {
			r.log.Debug("isis malformed hello", zap.Error(err))
			return
		}
		r.ifc.ReceiveHello(hello, fromMAC)
	case isis.PDUL1LSP, isis.PDUL2LSP:
		lsp, err := isis.ReadLSP(r.level, body)
		if err != nil {
			r.log.Debug("isis malformed lsp", zap.Error(err))
			return
		}
		r.db.Receive(lsp, isis.NeighborID{SystemID: lsp.LSPID.SystemID})
	case isis.PDUL1CSNP, isis.PDUL2CSNP:
		csnp, err := isis.ReadCSNP(r.level, body)
		if err != nil {
			r.log.Debug("isis malformed csnp", zap.Error(err))
			return
		}
		r.db.ReceiveCSNP(csnp, isis.NeighborID{SystemID: csnp.SourceID})
	case isis.PDUL1PSNP, isis.PDUL2PSNP:
		psnp, err := isis.ReadPSNP(r.level, body)
		if err != nil {
			r.log.Debug("isis malformed psnp", zap.Error(err))
			return
		}
		r.db.ReceivePSNP(psnp, isis.NeighborID{SystemID: psnp.SourceID})
	}
}

// syncLoop reconciles the IFSM's NFSM-Up neighbor set onto the LSDB's
// adjacency set, drains pending SRM/SSN flags, and originates a
// periodic CSNP while this interface holds the DIS role.
func (r *isisRunner) syncLoop(ctx context.Context) {
	ticker := time.NewTicker(floodSyncInterval)
	defer ticker.Stop()
	lastCSNP := time.Time{}
	known := map[isis.SystemID]bool{}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		up := map[isis.SystemID]bool{}
		for _, id := range r.ifc.UpNeighbors() {
			up[id] = true
			if !known[id] {
				r.db.AddAdjacency(isis.NeighborID{SystemID: id}, r.ifIndex)
			}
		}
		for id := range known {
			if !up[id] {
				r.db.RemoveAdjacency(isis.NeighborID{SystemID: id})
			}
		}
		known = up

		for _, adj := range r.db.Adjacencies() {
			if adj.IfIndex != r.ifIndex {
				continue
			}
			r.flooder.DrainSRM(adj)
			r.flooder.DrainSSN(adj)
		}

		if r.ifc.IsDIS() && time.Since(lastCSNP) >= csnpInterval {
			r.flooder.SendCSNP()
			lastCSNP = time.Now()
		}
	}
}
