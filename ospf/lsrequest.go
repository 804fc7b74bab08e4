package ospf

import (
	"github.com/zeburouter/zeburouter/stream"
)

// lsRequestEntryLen is the fixed 12-byte LS Request entry: a 4-byte
// LS type (unlike the 1-byte type in an LSA header), link-state-id,
// advertising-router.
const lsRequestEntryLen = 12

// LSRequestEntry identifies one LSA a neighbor is missing or holds an
// outdated copy of.
type LSRequestEntry struct {
	Type        LSType
	LinkStateID RouterID
	AdvRouter   RouterID
}

// LSRequest is the OSPFv2 LS Request packet: a list of LSA identities
// the sender wants the full body for.
type LSRequest struct {
	Entries []LSRequestEntry
}

// ReadLSRequest parses an LS Request body.
func ReadLSRequest(body []byte) (*LSRequest, error) {
	if len(body)%lsRequestEntryLen != 0 {
		return nil, &InvalidLengthError{Container: "ls request", Declared: len(body), Have: len(body)}
	}
	r := stream.NewReader(body)
	req := &LSRequest{}
	for r.Len() > 0 {
		typ, err := r.Uint32()
		if err != nil {
			return nil, err
		}
		linkStateID, err := r.Uint32()
		if err != nil {
			return nil, err
		}
		advRouter, err := r.Uint32()
		if err != nil {
			return nil, err
		}
		req.Entries = append(req.Entries, LSRequestEntry{
			Type:        LSType(typ),
			LinkStateID: RouterID(linkStateID),
			AdvRouter:   RouterID(advRouter),
		})
	}
	return req, nil
}

// Bytes serializes the full packet (header + LS Request body).
func (req *LSRequest) Bytes(routerID, areaID RouterID) []byte {
	w := stream.NewWriter()
	lenOff, cksOff := WriteHeader(w, PacketLSRequest, routerID, areaID)
	for _, e := range req.Entries {
		w.WriteUint32(uint32(e.Type))
		w.WriteUint32(uint32(e.LinkStateID))
		w.WriteUint32(uint32(e.AdvRouter))
	}
	PatchLengthAndChecksum(w, lenOff, cksOff)
	return w.Bytes()
}
