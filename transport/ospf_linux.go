//go:build linux

package transport

import (
	"fmt"
	"net"

	"golang.org/x/net/ipv4"
)

// ospfSocket is a raw IP-protocol-89 socket bound to one interface,
// joined to OSPF's well-known multicast groups.
type ospfSocket struct {
	raw *ipv4.RawConn
	ifi *net.Interface
}

// NewOSPFLink opens a raw IP socket for protocol 89 on ifaceName and
// joins the AllSPFRouters/AllDRouters multicast groups.
func NewOSPFLink(ifaceName string) (OSPFLink, error) {
	ifi, err := net.InterfaceByName(ifaceName)
	if err != nil {
		return nil, fmt.Errorf("transport: %s: %w", ifaceName, err)
	}
	pc, err := net.ListenPacket("ip4:89", "0.0.0.0")
	if err != nil {
		return nil, fmt.Errorf("transport: listen ospf: %w", err)
	}
	raw, err := ipv4.NewRawConn(pc)
	if err != nil {
		_ = pc.Close()
		return nil, fmt.Errorf("transport: raw conn: %w", err)
	}
	for _, group := range []net.IP{AllSPFRouters, AllDRouters} {
		if err := raw.JoinGroup(ifi, &net.IPAddr{IP: group}); err != nil {
			_ = raw.Close()
			return nil, fmt.Errorf("transport: join %s on %s: %w", group, ifaceName, err)
		}
	}
	if err := raw.SetMulticastInterface(ifi); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("transport: set multicast interface: %w", err)
	}
	return &ospfSocket{raw: raw, ifi: ifi}, nil
}

func (s *ospfSocket) Send(payload []byte, dst net.IP) error {
	h := &ipv4.Header{
		Version:  ipv4.Version,
		Len:      ipv4.HeaderLen,
		TotalLen: ipv4.HeaderLen + len(payload),
		TTL:      1,
		Protocol: 89,
		Dst:      dst,
	}
	return s.raw.WriteTo(h, payload, nil)
}

func (s *ospfSocket) Recv() ([]byte, net.IP, error) {
	buf := make([]byte, 65535)
	for {
		h, payload, _, err := s.raw.ReadFrom(buf)
		if err != nil {
			return nil, nil, fmt.Errorf("transport: ospf read: %w", err)
		}
		if h == nil {
			continue
		}
		return append([]byte(nil), payload...), h.Src, nil
	}
}

func (s *ospfSocket) Close() error {
	return s.raw.Close()
}
