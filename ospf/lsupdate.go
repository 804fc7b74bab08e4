package ospf

import (
	"github.com/zeburouter/zeburouter/stream"
)

// LSUpdate is the OSPFv2 LS Update packet: a packed sequence of full
// LSAs, each self-bounding via its header's declared length. Per
// spec.md §4.5/§6: "LS Update's body is a packed sequence of LSAs
// whose per-LSA length (from the 20-byte LSA header) bounds the
// payload parser; if inner parsing fails within those bytes, the LSA
// is preserved as Unknown{bytes} so outer parsing proceeds."
type LSUpdate struct {
	LSAs []LSA
}

// ReadLSUpdate parses an LS Update body.
func ReadLSUpdate(body []byte) (*LSUpdate, error) {
	r := stream.NewReader(body)
	count, err := r.Uint32()
	if err != nil {
		return nil, err
	}
	upd := &LSUpdate{}
	for i := 0; i < int(count); i++ {
		lsa, err := readLSA(r)
		if err != nil {
			return nil, err
		}
		upd.LSAs = append(upd.LSAs, lsa)
	}
	return upd, nil
}

// Bytes serializes the full packet (header + LS Update body).
func (u *LSUpdate) Bytes(routerID, areaID RouterID) []byte {
	w := stream.NewWriter()
	lenOff, cksOff := WriteHeader(w, PacketLSUpdate, routerID, areaID)
	w.WriteUint32(uint32(len(u.LSAs)))
	for _, lsa := range u.LSAs {
		writeLSA(w, lsa)
	}
	PatchLengthAndChecksum(w, lenOff, cksOff)
	return w.Bytes()
}

// LSAck is the OSPFv2 LS Acknowledge packet: a list of LSA headers
// confirming receipt, with no separate count field (it runs to the
// end of the packet, per the declared total length).
type LSAck struct {
	LSAHeaders []LSAHeader
}

// ReadLSAck parses an LS Acknowledge body.
func ReadLSAck(body []byte) (*LSAck, error) {
	r := stream.NewReader(body)
	ack := &LSAck{}
	for r.Len() >= lsaHeaderLen {
		h, err := readLSAHeader(r)
		if err != nil {
			return nil, err
		}
		ack.LSAHeaders = append(ack.LSAHeaders, h)
	}
	return ack, nil
}

// Bytes serializes the full packet (header + LS Acknowledge body).
func (a *LSAck) Bytes(routerID, areaID RouterID) []byte {
	w := stream.NewWriter()
	lenOff, cksOff := WriteHeader(w, PacketLSAck, routerID, areaID)
	for _, h := range a.LSAHeaders {
		writeLSAHeader(w, h)
	}
	PatchLengthAndChecksum(w, lenOff, cksOff)
	return w.Bytes()
}
