//go:build linux

package transport

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// llcHeader is the fixed 802.2 LLC header IS-IS PDUs carry over
// 802.3: DSAP=SSAP=0xFE (the ISO-assigned SAP for ISO network-layer
// protocols), control=0x03 (unnumbered information, UI).
var llcHeader = [3]byte{0xfe, 0xfe, 0x03}

// isisSocket is an AF_PACKET/SOCK_RAW socket bound to one interface,
// carrying raw 802.3 frames.
type isisSocket struct {
	fd      int
	ifindex int
	srcMAC  [6]byte
}

// NewISISLink opens and binds a raw 802.3 socket on ifaceName.
func NewISISLink(ifaceName string) (ISISLink, error) {
	ifi, err := net.InterfaceByName(ifaceName)
	if err != nil {
		return nil, fmt.Errorf("transport: %s: %w", ifaceName, err)
	}
	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, int(htons(unix.ETH_P_ALL)))
	if err != nil {
		return nil, fmt.Errorf("transport: socket: %w", err)
	}
	addr := &unix.SockaddrLinklayer{
		Protocol: htons(unix.ETH_P_ALL),
		Ifindex:  ifi.Index,
	}
	if err := unix.Bind(fd, addr); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("transport: bind %s: %w", ifaceName, err)
	}
	var mac [6]byte
	copy(mac[:], ifi.HardwareAddr)
	return &isisSocket{fd: fd, ifindex: ifi.Index, srcMAC: mac}, nil
}

func htons(v int) uint16 {
	return uint16(v>>8) | uint16(v<<8)&0xff00
}

func (s *isisSocket) Send(payload []byte, dst [6]byte) error {
	frame := make([]byte, 0, 14+len(llcHeader)+len(payload))
	frame = append(frame, dst[:]...)
	frame = append(frame, s.srcMAC[:]...)
	length := len(llcHeader) + len(payload)
	frame = append(frame, byte(length>>8), byte(length))
	frame = append(frame, llcHeader[:]...)
	frame = append(frame, payload...)

	addr := &unix.SockaddrLinklayer{
		Protocol: htons(unix.ETH_P_ALL),
		Ifindex:  s.ifindex,
		Halen:    6,
	}
	copy(addr.Addr[:], dst[:])
	return unix.Sendto(s.fd, frame, 0, addr)
}

func (s *isisSocket) Recv() ([]byte, [6]byte, error) {
	var src [6]byte
	buf := make([]byte, 9000)
	for {
		n, from, err := unix.Recvfrom(s.fd, buf, 0)
		if err != nil {
			return nil, src, fmt.Errorf("transport: recvfrom: %w", err)
		}
		if n < 17 {
			continue
		}
		frame := buf[:n]
		if frame[14] != llcHeader[0] || frame[15] != llcHeader[1] {
			continue // not an LLC/IS-IS frame (plain Ethernet-II traffic on the same tap)
		}
		copy(src[:], frame[6:12])
		if ll, ok := from.(*unix.SockaddrLinklayer); ok && ll.Pkttype == unix.PACKET_OUTGOING {
			continue // our own transmitted frame looped back by the socket
		}
		return append([]byte(nil), frame[17:n]...), src, nil
	}
}

func (s *isisSocket) Close() error {
	return unix.Close(s.fd)
}
