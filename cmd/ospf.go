package main

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/zeburouter/zeburouter/config"
	"github.com/zeburouter/zeburouter/ospf"
	"github.com/zeburouter/zeburouter/transport"
)

// ospfRunner wires one configured OSPFv2 interface: its IFSM and the
// raw IP-protocol-89 socket carrying its PDUs.
type ospfRunner struct {
	ifc  *ospf.Interface
	link transport.OSPFLink
	log  *zap.Logger
}

// startOSPF brings up one ospfRunner per configured OSPF interface.
// The package currently implements Hello exchange and Database
// Description negotiation only (no LSDB/flooding); LSRequest,
// LSUpdate and LSAck PDUs are decoded far enough to log and dropped,
// since there is no handler to route them to.
func startOSPF(ctx context.Context, cfg *config.Config, routerID ospf.RouterID, log *zap.Logger) ([]*ospfRunner, error) {
	var runners []*ospfRunner
	for _, i := range cfg.Interfaces {
		if i.OSPF == nil {
			continue
		}
		ifi, err := net.InterfaceByName(i.Name)
		if err != nil {
			return nil, err
		}
		areaID, err := identifierFromIPString(i.OSPF.Area)
		if err != nil {
			return nil, err
		}

		link, err := transport.NewOSPFLink(i.Name)
		if err != nil {
			return nil, err
		}

		send := func(frame []byte) {
			if err := link.Send(frame, transport.AllSPFRouters); err != nil {
				log.Warn("ospf send", zap.String("iface", i.Name), zap.Error(err))
			}
		}
		// Group membership is established once at socket setup
		// (transport.NewOSPFLink joins both AllSPFRouters and
		// AllDRouters up front); the IFSM's join callback has
		// nothing left to toggle.
		join := func(joined, allDRouters bool) {}

		ifc := ospf.NewInterface(
			ospf.RouterID(routerID), ospf.RouterID(areaID), i.OSPF.Priority,
			time.Duration(i.OSPF.HelloInterval)*time.Second,
			time.Duration(i.OSPF.DeadInterval)*time.Second,
			ifi.MTU, ifi.Index, log.Named("ospf.ifsm"), send, join,
		)

		r := &ospfRunner{ifc: ifc, link: link, log: log}
		runners = append(runners, r)

		ifc.Dispatch(ospf.IFSMInterfaceUp)
		go r.readLoop(ctx)
	}
	return runners, nil
}

func (r *ospfRunner) readLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		frame, _, err := r.link.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			r.log.Warn("ospf recv", zap.Error(err))
			continue
		}
		if err := ospf.VerifyChecksum(frame); err != nil {
			r.log.Debug("ospf checksum", zap.Error(err))
			continue
		}
		header, body, err := ospf.ReadHeader(frame)
		if err != nil {
			r.log.Debug("ospf malformed header", zap.Error(err))
			continue
		}
		r.dispatch(header, body)
	}
}

func (r *ospfRunner) dispatch(h ospf.Header, body []byte) {
	switch h.Type {
	case ospf.PacketHello:
		hello, err := ospf.ReadHello(body)
		if err != nil {
			r.log.Debug("ospf malformed hello", zap.Error(err))
			return
		}
		r.ifc.ReceiveHello(h.RouterID, hello)
	case ospf.PacketDatabaseDescription:
		n, ok := r.ifc.Neighbor(h.RouterID)
		if !ok {
			r.log.Debug("ospf dd from unknown neighbor, dropping", zap.Uint32("router-id", uint32(h.RouterID)))
			return
		}
		dd, err := ospf.ReadDatabaseDescription(body)
		if err != nil {
			r.log.Debug("ospf malformed dd", zap.Error(err))
			return
		}
		r.ifc.ReceiveDatabaseDescription(n, dd)
	case ospf.PacketLSRequest, ospf.PacketLSUpdate, ospf.PacketLSAck:
		r.log.Debug("ospf lsdb pdu received, no lsdb wired, dropping", zap.Stringer("type", h.Type))
	}
}

func identifierFromIPString(s string) (ospf.RouterID, error) {
	id, err := identifierFromString(s)
	return ospf.RouterID(id), err
}
