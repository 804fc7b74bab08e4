package isis

import (
	"errors"
	"net/netip"
	"reflect"
	"testing"

	"go.uber.org/zap"
)

func TestHelloRoundTrip(t *testing.T) {
	h := &Hello{
		CircuitType:   Level2,
		SourceID:      SystemID{1, 2, 3, 4, 5, 6},
		HoldTime:      30,
		Priority:      64,
		LANID:         NeighborID{SystemID: SystemID{1, 2, 3, 4, 5, 6}, PseudoID: 1},
		NLPIDs:        []byte{NLPIDIPv4, NLPIDIPv6},
		AreaAddresses: [][]byte{{0x49, 0x00, 0x01}},
		IPv4Addrs:     []netip.Addr{netip.MustParseAddr("198.51.100.1")},
		Neighbors:     []ISNeighbor{{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff}},
	}
	frame := h.Bytes(0)
	hdr, body, err := ReadHeader(frame)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if hdr.Type != PDUL2Hello {
		t.Fatalf("header type = %v, want L2 Hello", hdr.Type)
	}
	got, err := ReadHello(Level2, body)
	if err != nil {
		t.Fatalf("ReadHello: %v", err)
	}
	if got.SourceID != h.SourceID || got.HoldTime != h.HoldTime || got.Priority != h.Priority {
		t.Fatalf("hello round trip fixed fields: got %+v, want %+v", got, h)
	}
	if !reflect.DeepEqual(got.Neighbors, h.Neighbors) {
		t.Fatalf("neighbors mismatch: got %v want %v", got.Neighbors, h.Neighbors)
	}
	if len(got.IPv4Addrs) != 1 || got.IPv4Addrs[0] != h.IPv4Addrs[0] {
		t.Fatalf("ipv4 addrs mismatch: %v", got.IPv4Addrs)
	}
}

func TestHelloPadding(t *testing.T) {
	h := &Hello{CircuitType: Level1, SourceID: SystemID{1, 1, 1, 1, 1, 1}, HoldTime: 10}
	frame := h.Bytes(200)
	if len(frame) < 200 {
		t.Fatalf("padded frame length = %d, want >= 200", len(frame))
	}
}

func TestLSPRoundTrip(t *testing.T) {
	lsp := &LSP{
		Level:         Level1,
		RemainingLife: 1200,
		LSPID:         LSPID{SystemID: SystemID{1, 2, 3, 4, 5, 6}, Fragment: 0},
		Sequence:      5,
		Checksum:      0,
		AreaAddresses: [][]byte{{0x49, 0x00, 0x01}},
		NLPIDs:        []byte{NLPIDIPv4},
		Reachability: []Reachability{
			{Prefix: netip.MustParsePrefix("203.0.113.0/24"), Metric: 10},
		},
	}
	frame := lsp.Bytes()
	hdr, body, err := ReadHeader(frame)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if hdr.Type != PDUL1LSP {
		t.Fatalf("header type = %v, want L1 LSP", hdr.Type)
	}
	got, err := ReadLSP(Level1, body)
	if err != nil {
		t.Fatalf("ReadLSP: %v", err)
	}
	if got.LSPID != lsp.LSPID || got.Sequence != lsp.Sequence {
		t.Fatalf("lsp round trip: got %+v, want %+v", got, lsp)
	}
	if len(got.Reachability) != 1 || got.Reachability[0].Prefix != lsp.Reachability[0].Prefix {
		t.Fatalf("reachability mismatch: %v", got.Reachability)
	}
}

func TestLSPPatchedForFlood(t *testing.T) {
	lsp := &LSP{Level: Level2, RemainingLife: 1200, LSPID: LSPID{SystemID: SystemID{9, 9, 9, 9, 9, 9}}, Sequence: 1}
	lsp.Bytes()
	patched := lsp.PatchedForFlood(42)
	_, body, err := ReadHeader(patched)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	got, err := ReadLSP(Level2, body)
	if err != nil {
		t.Fatalf("ReadLSP: %v", err)
	}
	if got.RemainingLife != 42 {
		t.Fatalf("patched remaining life = %d, want 42", got.RemainingLife)
	}
	if got.Sequence != 1 {
		t.Fatalf("checksum/sequence disturbed by patchback: %+v", got)
	}
}

func TestCSNPPSNPRoundTrip(t *testing.T) {
	entries := []LSPEntry{
		{HoldTime: 100, LSPID: LSPID{SystemID: SystemID{1, 1, 1, 1, 1, 1}}, Sequence: 1, Checksum: 0x1234},
		{HoldTime: 200, LSPID: LSPID{SystemID: SystemID{2, 2, 2, 2, 2, 2}}, Sequence: 2, Checksum: 0x5678},
	}
	c := &CSNP{Level: Level2, SourceID: SystemID{1, 1, 1, 1, 1, 1}, Entries: entries}
	_, body, err := ReadHeader(c.Bytes())
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	gotC, err := ReadCSNP(Level2, body)
	if err != nil {
		t.Fatalf("ReadCSNP: %v", err)
	}
	if !reflect.DeepEqual(gotC.Entries, c.Entries) {
		t.Fatalf("csnp entries mismatch: got %v want %v", gotC.Entries, c.Entries)
	}

	p := &PSNP{Level: Level1, SourceID: SystemID{3, 3, 3, 3, 3, 3}, Entries: entries}
	_, pbody, err := ReadHeader(p.Bytes())
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	gotP, err := ReadPSNP(Level1, pbody)
	if err != nil {
		t.Fatalf("ReadPSNP: %v", err)
	}
	if !reflect.DeepEqual(gotP.Entries, p.Entries) {
		t.Fatalf("psnp entries mismatch: got %v want %v", gotP.Entries, p.Entries)
	}
}

// S5. IS-IS DIS self-election: on an otherwise empty LAN, the
// interface elects itself DIS.
func TestDISSelfElectionOnEmptyLAN(t *testing.T) {
	ifc := NewInterface(Level2, SystemID{1, 1, 1, 1, 1, 1}, [6]byte{1, 1, 1, 1, 1, 1}, 64, 1500, 3, zap.NewNop(), func([]byte) {})
	ifc.Dispatch(DisSelection)
	if !ifc.IsDIS() {
		t.Fatalf("expected self-election as DIS on empty LAN")
	}
	if ifc.LANID().PseudoID != byte(ifc.IfIndex) {
		t.Fatalf("LAN-ID pseudo-id = %d, want ifindex %d", ifc.LANID().PseudoID, ifc.IfIndex)
	}
}

func TestDISElectionLosesToHigherPriority(t *testing.T) {
	ifc := NewInterface(Level2, SystemID{1, 1, 1, 1, 1, 1}, [6]byte{1, 1, 1, 1, 1, 1}, 64, 1500, 3, zap.NewNop(), func([]byte) {})
	h := &Hello{
		CircuitType: Level2,
		SourceID:    SystemID{2, 2, 2, 2, 2, 2},
		HoldTime:    30,
		Priority:    200,
		LANID:       NeighborID{SystemID: SystemID{2, 2, 2, 2, 2, 2}, PseudoID: 7},
		Neighbors:   []ISNeighbor{{1, 1, 1, 1, 1, 1}}, // our own MAC: Down + Hello containing it -> Up
	}
	ifc.ReceiveHello(h, [6]byte{2, 2, 2, 2, 2, 2})
	if ifc.IsDIS() {
		t.Fatalf("expected to lose DIS election to higher-priority neighbor")
	}
	if ifc.LANID() != h.LANID {
		t.Fatalf("LAN-ID = %+v, want neighbor's %+v", ifc.LANID(), h.LANID)
	}
}

func TestLSDBNewerLSPFloodsAndAcksSSN(t *testing.T) {
	db := NewLSDB(Level2, zap.NewNop())
	peerA := NeighborID{SystemID: SystemID{1, 1, 1, 1, 1, 1}}
	peerB := NeighborID{SystemID: SystemID{2, 2, 2, 2, 2, 2}}
	db.AddAdjacency(peerA, 1)
	db.AddAdjacency(peerB, 2)

	lsp := &LSP{Level: Level2, RemainingLife: 1200, LSPID: LSPID{SystemID: SystemID{9, 9, 9, 9, 9, 9}}, Sequence: 1}
	lsp.Bytes()
	db.Receive(lsp, peerA)

	if !db.adjs[peerA].ssn[lsp.LSPID] {
		t.Fatalf("expected SSN set on receiving adjacency")
	}
	if !db.adjs[peerB].srm[lsp.LSPID] {
		t.Fatalf("expected SRM set on every other adjacency")
	}
	if db.adjs[peerA].srm[lsp.LSPID] {
		t.Fatalf("receiving adjacency should not get SRM for the LSP it just delivered")
	}
}

func TestReadLSPRejectsSequenceZero(t *testing.T) {
	lsp := &LSP{Level: Level2, RemainingLife: 1200, LSPID: LSPID{SystemID: SystemID{9, 9, 9, 9, 9, 9}}, Sequence: 0}
	frame := lsp.Bytes()
	_, body, err := ReadHeader(frame)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	_, err = ReadLSP(Level2, body)
	if err == nil {
		t.Fatalf("ReadLSP: expected error for sequence 0, got nil")
	}
	var seqErr *InvalidSequenceError
	if !errors.As(err, &seqErr) {
		t.Fatalf("ReadLSP: error = %v, want *InvalidSequenceError", err)
	}
}

func TestLSDBReceiveDropsSequenceZero(t *testing.T) {
	db := NewLSDB(Level2, zap.NewNop())
	peerA := NeighborID{SystemID: SystemID{1, 1, 1, 1, 1, 1}}
	db.AddAdjacency(peerA, 1)

	lsp := &LSP{Level: Level2, RemainingLife: 1200, LSPID: LSPID{SystemID: SystemID{9, 9, 9, 9, 9, 9}}, Sequence: 0}
	db.Receive(lsp, peerA)

	if _, ok := db.entries[lsp.LSPID]; ok {
		t.Fatalf("expected sequence-0 LSP not to be installed")
	}
	if db.adjs[peerA].ssn[lsp.LSPID] || db.adjs[peerA].srm[lsp.LSPID] {
		t.Fatalf("expected sequence-0 LSP not to trigger SRM/SSN")
	}
}
