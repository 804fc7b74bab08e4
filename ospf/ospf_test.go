package ospf

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/zeburouter/zeburouter/stream"
)

// S3. OSPFv2 Hello round-trip, using a real captured packet.
func TestHelloRoundTrip(t *testing.T) {
	frame := []byte{
		0x02, 0x01, 0x00, 0x2c, 0xc0, 0xa8, 0xaa, 0x08, 0x00, 0x00, 0x00, 0x01, 0x27, 0x3b, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xff, 0xff, 0xff, 0x00, 0x00, 0x0a, 0x02, 0x01,
		0x00, 0x00, 0x00, 0x28, 0xc0, 0xa8, 0xaa, 0x08, 0x00, 0x00, 0x00, 0x00,
	}
	if err := VerifyChecksum(frame); err != nil {
		t.Fatalf("VerifyChecksum: %v", err)
	}
	hdr, body, err := ReadHeader(frame)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if hdr.Type != PacketHello {
		t.Fatalf("type = %v, want Hello", hdr.Type)
	}
	if hdr.RouterID != NewRouterID(192, 168, 170, 8) {
		t.Fatalf("router-id = %v, want 192.168.170.8", hdr.RouterID)
	}
	if hdr.AreaID != RouterID(1) {
		t.Fatalf("area-id = %v, want 1", hdr.AreaID)
	}
	h, err := ReadHello(body)
	if err != nil {
		t.Fatalf("ReadHello: %v", err)
	}
	if h.Netmask != 0xffffff00 {
		t.Fatalf("netmask = %#x, want /24", h.Netmask)
	}
	if h.HelloInterval != 10 || h.Priority != 1 || h.RouterDeadInterval != 40 {
		t.Fatalf("hello fixed fields: %+v", h)
	}
	if h.DesignatedRouter != NewRouterID(192, 168, 170, 8) {
		t.Fatalf("DR = %v, want 192.168.170.8", h.DesignatedRouter)
	}
	if len(h.Neighbors) != 0 {
		t.Fatalf("neighbors = %v, want none", h.Neighbors)
	}

	reencoded := h.Bytes(hdr.RouterID, hdr.AreaID)
	if err := VerifyChecksum(reencoded); err != nil {
		t.Fatalf("VerifyChecksum(reencoded): %v", err)
	}
	hdr2, body2, err := ReadHeader(reencoded)
	if err != nil {
		t.Fatalf("ReadHeader(reencoded): %v", err)
	}
	h2, err := ReadHello(body2)
	if err != nil {
		t.Fatalf("ReadHello(reencoded): %v", err)
	}
	if hdr2.RouterID != hdr.RouterID || h2.HelloInterval != h.HelloInterval {
		t.Fatalf("round trip mismatch: %+v vs %+v", h2, h)
	}
}

func TestHelloWithNeighbor(t *testing.T) {
	h := &Hello{
		Netmask:                0xffffff00,
		HelloInterval:          10,
		Priority:                1,
		RouterDeadInterval:     40,
		DesignatedRouter:       NewRouterID(11, 0, 0, 1),
		BackupDesignatedRouter: NewRouterID(11, 0, 0, 3),
		Neighbors:              []RouterID{NewRouterID(1, 1, 1, 1)},
	}
	frame := h.Bytes(NewRouterID(11, 0, 0, 3), RouterID(0))
	hdr, body, err := ReadHeader(frame)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if hdr.Length != uint16(len(frame)) {
		t.Fatalf("declared length = %d, want %d", hdr.Length, len(frame))
	}
	got, err := ReadHello(body)
	if err != nil {
		t.Fatalf("ReadHello: %v", err)
	}
	if !got.HasNeighbor(NewRouterID(1, 1, 1, 1)) {
		t.Fatalf("expected neighbor list to round-trip: %v", got.Neighbors)
	}
}

func TestDatabaseDescriptionRoundTrip(t *testing.T) {
	dd := &DatabaseDescription{
		InterfaceMTU:   1500,
		Options:        OptionE,
		Flags:          FlagI | FlagM | FlagMS,
		SequenceNumber: 0x4177a97e,
		LSAHeaders: []LSAHeader{
			{Age: 1, Options: 2, Type: LSTypeRouter, LinkStateID: NewRouterID(192, 168, 170, 3), AdvRouter: NewRouterID(192, 168, 170, 3), Sequence: 0x80000001, Checksum: 0x3a9c, Length: 0x30},
		},
	}
	frame := dd.Bytes(NewRouterID(192, 168, 170, 3), RouterID(1))
	_, body, err := ReadHeader(frame)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	got, err := ReadDatabaseDescription(body)
	if err != nil {
		t.Fatalf("ReadDatabaseDescription: %v", err)
	}
	if !got.Flags.AllSet() {
		t.Fatalf("flags = %v, want I|M|MS all set", got.Flags)
	}
	if len(got.LSAHeaders) != 1 || got.LSAHeaders[0].ID() != dd.LSAHeaders[0].ID() {
		t.Fatalf("lsa headers mismatch: %+v", got.LSAHeaders)
	}
}

func TestLSRequestRoundTrip(t *testing.T) {
	req := &LSRequest{Entries: []LSRequestEntry{
		{Type: LSTypeRouter, LinkStateID: NewRouterID(192, 168, 170, 8), AdvRouter: NewRouterID(192, 168, 170, 8)},
	}}
	frame := req.Bytes(NewRouterID(192, 168, 170, 3), RouterID(1))
	_, body, err := ReadHeader(frame)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	got, err := ReadLSRequest(body)
	if err != nil {
		t.Fatalf("ReadLSRequest: %v", err)
	}
	if len(got.Entries) != 1 || got.Entries[0] != req.Entries[0] {
		t.Fatalf("entries mismatch: %+v", got.Entries)
	}
}

func TestLSUpdateRouterLSARoundTrip(t *testing.T) {
	upd := &LSUpdate{LSAs: []LSA{
		{
			Header: LSAHeader{Age: 0x3e2, Options: 2, Type: LSTypeRouter, LinkStateID: NewRouterID(192, 168, 170, 8), AdvRouter: NewRouterID(192, 168, 170, 8), Sequence: 0x80000dc3, Checksum: 0x2506},
			Body: RouterLSA{
				Links: []RouterLink{
					{LinkID: NewRouterID(192, 168, 170, 0), LinkData: NewRouterID(255, 255, 255, 0), Type: LinkStub, Metric: 10},
				},
			},
		},
	}}
	frame := upd.Bytes(NewRouterID(192, 168, 170, 8), RouterID(1))
	_, body, err := ReadHeader(frame)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	got, err := ReadLSUpdate(body)
	if err != nil {
		t.Fatalf("ReadLSUpdate: %v", err)
	}
	if len(got.LSAs) != 1 {
		t.Fatalf("lsa count = %d, want 1", len(got.LSAs))
	}
	router, ok := got.LSAs[0].Body.(RouterLSA)
	if !ok {
		t.Fatalf("body type = %T, want RouterLSA", got.LSAs[0].Body)
	}
	if len(router.Links) != 1 || router.Links[0].Metric != 10 {
		t.Fatalf("router lsa links: %+v", router.Links)
	}
}

func TestLSUpdateUnknownTypePreserved(t *testing.T) {
	w := stream.NewWriter()
	writeLSA(w, LSA{
		Header: LSAHeader{Type: LSType(99), Sequence: 1},
		Body:   UnknownLSA{Bytes: []byte{0xde, 0xad}},
	})
	r := stream.NewReader(w.Bytes())
	got, err := readLSA(r)
	if err != nil {
		t.Fatalf("readLSA: %v", err)
	}
	unk, ok := got.Body.(UnknownLSA)
	if !ok {
		t.Fatalf("body type = %T, want UnknownLSA", got.Body)
	}
	if len(unk.Bytes) != 2 {
		t.Fatalf("unknown lsa bytes = %v, want 2 bytes preserved", unk.Bytes)
	}
}

func TestLSAckRoundTrip(t *testing.T) {
	ack := &LSAck{LSAHeaders: []LSAHeader{
		{Age: 1, Type: LSTypeRouter, LinkStateID: NewRouterID(192, 168, 170, 3), AdvRouter: NewRouterID(192, 168, 170, 3), Sequence: 2, Checksum: 0x389d, Length: 0x30},
	}}
	frame := ack.Bytes(NewRouterID(192, 168, 170, 8), RouterID(1))
	_, body, err := ReadHeader(frame)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	got, err := ReadLSAck(body)
	if err != nil {
		t.Fatalf("ReadLSAck: %v", err)
	}
	if len(got.LSAHeaders) != 1 || got.LSAHeaders[0].ID() != ack.LSAHeaders[0].ID() {
		t.Fatalf("lsa headers mismatch: %+v", got.LSAHeaders)
	}
}

// DR election: on an empty segment a priority>0 router elects itself
// DR once it has sent a Hello.
func TestDRElectionSelfOnEmptySegment(t *testing.T) {
	var sent [][]byte
	ifc := NewInterface(NewRouterID(1, 1, 1, 1), RouterID(0), 1, 10*time.Second, 40*time.Second, 1500, 3, zap.NewNop(),
		func(f []byte) { sent = append(sent, f) }, func(bool, bool) {})
	ifc.Dispatch(IFSMInterfaceUp)
	ifc.Dispatch(IFSMWaitTimer)
	if ifc.State() != IFSMDR {
		t.Fatalf("state = %v, want DR", ifc.State())
	}
	if ifc.DesignatedRouter() != NewRouterID(1, 1, 1, 1) {
		t.Fatalf("DR = %v, want self", ifc.DesignatedRouter())
	}
	if len(sent) == 0 {
		t.Fatalf("expected at least one Hello to have been sent")
	}
}

// DR election: with two higher-priority neighbors already declaring
// themselves DR and BDR, we lose both races and settle on DROther.
func TestDRElectionLosesToHigherPriorityDeclaredDR(t *testing.T) {
	self := NewRouterID(1, 1, 1, 1)
	ifc := NewInterface(self, RouterID(0), 1, 10*time.Second, 40*time.Second, 1500, 3, zap.NewNop(),
		func([]byte) {}, func(bool, bool) {})
	ifc.Dispatch(IFSMInterfaceUp)

	ifc.ReceiveHello(NewRouterID(2, 2, 2, 2), &Hello{
		Priority:               200,
		DesignatedRouter:       NewRouterID(2, 2, 2, 2),
		BackupDesignatedRouter: RouterID(0),
		Neighbors:              []RouterID{self},
	})
	ifc.ReceiveHello(NewRouterID(3, 3, 3, 3), &Hello{
		Priority:               200,
		DesignatedRouter:       NewRouterID(2, 2, 2, 2),
		BackupDesignatedRouter: NewRouterID(3, 3, 3, 3),
		Neighbors:              []RouterID{self},
	})

	if ifc.DesignatedRouter() != NewRouterID(2, 2, 2, 2) {
		t.Fatalf("DR = %v, want higher-priority neighbor", ifc.DesignatedRouter())
	}
	if ifc.State() != IFSMDROther {
		t.Fatalf("state = %v, want DROther", ifc.State())
	}
}

// NFSM: seeing our own router-id in a neighbor's Hello on a segment
// where neither of us is DR/BDR moves Init->TwoWay, not ExStart.
func TestNFSMTwoWayWithoutAdjacency(t *testing.T) {
	ifc := NewInterface(NewRouterID(1, 1, 1, 1), RouterID(0), 0, 10*time.Second, 40*time.Second, 1500, 3, zap.NewNop(),
		func([]byte) {}, func(bool, bool) {})
	// Priority 0 keeps the neighbor out of DR election entirely, so the
	// DR/BDR don't change and AdjOK is never re-evaluated for it.
	h := &Hello{Priority: 0, Neighbors: []RouterID{NewRouterID(1, 1, 1, 1)}}
	ifc.ReceiveHello(NewRouterID(2, 2, 2, 2), h)
	n, ok := ifc.Neighbor(NewRouterID(2, 2, 2, 2))
	if !ok {
		t.Fatalf("expected neighbor to be tracked")
	}
	if n.State != NFSMTwoWay {
		t.Fatalf("state = %v, want TwoWay", n.State)
	}
}

// NFSM: NegotiationDone's slave rule (peer declares I,M,MS all set,
// empty LSA list, higher router-id) makes us slave and adopts the
// peer's sequence number.
func TestNFSMNegotiationDoneSlave(t *testing.T) {
	ifc := NewInterface(NewRouterID(1, 1, 1, 1), RouterID(0), 1, 10*time.Second, 40*time.Second, 1500, 3, zap.NewNop(),
		func([]byte) {}, func(bool, bool) {})
	n := NewNeighbor(NewRouterID(2, 2, 2, 2), zap.NewNop(), nil)
	n.RouterID = NewRouterID(2, 2, 2, 2)
	n.State = NFSMExStart

	dd := &DatabaseDescription{Flags: FlagI | FlagM | FlagMS, SequenceNumber: 0xabc}
	ifc.ReceiveDatabaseDescription(n, dd)

	if n.State != NFSMExchange {
		t.Fatalf("state = %v, want Exchange", n.State)
	}
	if n.Master {
		t.Fatalf("expected slave role (peer is master)")
	}
	if n.DDSequenceNumber != 0xabc {
		t.Fatalf("sequence = %#x, want adopted 0xabc", n.DDSequenceNumber)
	}
}

func TestNFSMNegotiationDoneMaster(t *testing.T) {
	ifc := NewInterface(NewRouterID(9, 9, 9, 9), RouterID(0), 1, 10*time.Second, 40*time.Second, 1500, 3, zap.NewNop(),
		func([]byte) {}, func(bool, bool) {})
	n := NewNeighbor(NewRouterID(2, 2, 2, 2), zap.NewNop(), nil)
	n.RouterID = NewRouterID(2, 2, 2, 2)
	n.State = NFSMExStart
	n.DDSequenceNumber = 0x10

	dd := &DatabaseDescription{Flags: 0, SequenceNumber: 0x10}
	ifc.ReceiveDatabaseDescription(n, dd)

	if n.State != NFSMExchange {
		t.Fatalf("state = %v, want Exchange", n.State)
	}
	if !n.Master {
		t.Fatalf("expected master role (our router-id is higher)")
	}
}
