package ospf

import (
	"github.com/zeburouter/zeburouter/stream"
)

// DBDescFlags is the Database Description flags octet (RFC 2328
// §A.3.3): I (init), M (more), MS (master/slave).
type DBDescFlags byte

const (
	FlagMS DBDescFlags = 1 << 0 // this router is master
	FlagM  DBDescFlags = 1 << 1 // more DD packets follow
	FlagI  DBDescFlags = 1 << 2 // init: first in sequence
)

func (f DBDescFlags) Init() bool   { return f&FlagI != 0 }
func (f DBDescFlags) More() bool   { return f&FlagM != 0 }
func (f DBDescFlags) Master() bool { return f&FlagMS != 0 }

// AllSet reports whether I, M and MS are all set, the "I|M|MS all
// set" shape spec.md §4.5's NegotiationDone rule checks for.
func (f DBDescFlags) AllSet() bool { return f.Init() && f.More() && f.Master() }

// DatabaseDescription is the OSPFv2 Database Description packet: the
// interface MTU, options, DD flags and sequence number used to
// negotiate exchange master/slave roles, followed by a summary list
// of LSA headers present in the sender's database.
type DatabaseDescription struct {
	InterfaceMTU  uint16
	Options       Options
	Flags         DBDescFlags
	SequenceNumber uint32
	LSAHeaders    []LSAHeader
}

// ReadDatabaseDescription parses a Database Description body.
func ReadDatabaseDescription(body []byte) (*DatabaseDescription, error) {
	r := stream.NewReader(body)
	mtu, err := r.Uint16()
	if err != nil {
		return nil, err
	}
	options, err := r.Byte()
	if err != nil {
		return nil, err
	}
	flags, err := r.Byte()
	if err != nil {
		return nil, err
	}
	seq, err := r.Uint32()
	if err != nil {
		return nil, err
	}
	dd := &DatabaseDescription{
		InterfaceMTU:   mtu,
		Options:        Options(options),
		Flags:          DBDescFlags(flags),
		SequenceNumber: seq,
	}
	for r.Len() >= lsaHeaderLen {
		h, err := readLSAHeader(r)
		if err != nil {
			return nil, err
		}
		dd.LSAHeaders = append(dd.LSAHeaders, h)
	}
	return dd, nil
}

// Bytes serializes the full packet (header + Database Description
// body).
func (d *DatabaseDescription) Bytes(routerID, areaID RouterID) []byte {
	w := stream.NewWriter()
	lenOff, cksOff := WriteHeader(w, PacketDatabaseDescription, routerID, areaID)
	w.WriteUint16(d.InterfaceMTU)
	w.WriteByte(byte(d.Options))
	w.WriteByte(byte(d.Flags))
	w.WriteUint32(d.SequenceNumber)
	for _, h := range d.LSAHeaders {
		writeLSAHeader(w, h)
	}
	PatchLengthAndChecksum(w, lenOff, cksOff)
	return w.Bytes()
}
