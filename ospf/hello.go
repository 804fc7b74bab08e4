package ospf

import (
	"github.com/zeburouter/zeburouter/stream"
)

// Options is the OSPF options octet carried in Hello, Database
// Description and every LSA header (RFC 2328 §A.2).
type Options byte

const (
	OptionE  Options = 1 << 1 // external routing capability
	OptionMC Options = 1 << 2 // multicast
	OptionNP Options = 1 << 3 // NSSA (type-7 LSAs)
	OptionDC Options = 1 << 7 // demand circuits
)

// Hello is the OSPFv2 Hello packet (RFC 2328 §A.3.2): network mask,
// timers, priority and the declared DR/BDR, followed by a variable
// list of neighbor router-ids seen on this segment.
type Hello struct {
	Netmask                uint32
	HelloInterval          uint16
	Options                Options
	Priority                byte
	RouterDeadInterval     uint32
	DesignatedRouter       RouterID
	BackupDesignatedRouter RouterID
	Neighbors              []RouterID
}

// ReadHello parses a Hello body (the bytes after the 24-byte header).
func ReadHello(body []byte) (*Hello, error) {
	r := stream.NewReader(body)
	netmask, err := r.Uint32()
	if err != nil {
		return nil, err
	}
	helloInterval, err := r.Uint16()
	if err != nil {
		return nil, err
	}
	options, err := r.Byte()
	if err != nil {
		return nil, err
	}
	priority, err := r.Byte()
	if err != nil {
		return nil, err
	}
	deadInterval, err := r.Uint32()
	if err != nil {
		return nil, err
	}
	dr, err := r.Uint32()
	if err != nil {
		return nil, err
	}
	bdr, err := r.Uint32()
	if err != nil {
		return nil, err
	}
	h := &Hello{
		Netmask:                netmask,
		HelloInterval:          helloInterval,
		Options:                Options(options),
		Priority:               priority,
		RouterDeadInterval:     deadInterval,
		DesignatedRouter:       RouterID(dr),
		BackupDesignatedRouter: RouterID(bdr),
	}
	for r.Len() >= 4 {
		addr, err := r.Uint32()
		if err != nil {
			return nil, err
		}
		h.Neighbors = append(h.Neighbors, RouterID(addr))
	}
	return h, nil
}

// Bytes serializes the full packet (header + Hello body), including
// the length and checksum patchback.
func (h *Hello) Bytes(routerID, areaID RouterID) []byte {
	w := stream.NewWriter()
	lenOff, cksOff := WriteHeader(w, PacketHello, routerID, areaID)
	w.WriteUint32(h.Netmask)
	w.WriteUint16(h.HelloInterval)
	w.WriteByte(byte(h.Options))
	w.WriteByte(h.Priority)
	w.WriteUint32(h.RouterDeadInterval)
	w.WriteUint32(uint32(h.DesignatedRouter))
	w.WriteUint32(uint32(h.BackupDesignatedRouter))
	for _, n := range h.Neighbors {
		w.WriteUint32(uint32(n))
	}
	PatchLengthAndChecksum(w, lenOff, cksOff)
	return w.Bytes()
}

// HasNeighbor reports whether id appears in the Hello's neighbor list,
// the input to the NFSM's two-way-received test (spec.md §4.5's
// TwoWayReceived is driven by seeing our own router-id here).
func (h *Hello) HasNeighbor(id RouterID) bool {
	for _, n := range h.Neighbors {
		if n == id {
			return true
		}
	}
	return false
}
