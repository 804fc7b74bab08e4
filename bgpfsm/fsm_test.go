package bgpfsm

import (
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/zeburouter/zeburouter/bgp"
)

// fakeTransport is a Transport that never touches the network: Dial
// succeeds immediately, Send records frames, Close is a no-op.
type fakeTransport struct {
	mu      sync.Mutex
	dialErr error
	sent    [][]byte
}

func (f *fakeTransport) Dial() error { return f.dialErr }

func (f *fakeTransport) Send(frame []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, frame)
	return nil
}

func (f *fakeTransport) Close() error { return nil }

func (f *fakeTransport) frames() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.sent))
	copy(out, f.sent)
	return out
}

func waitForState(t *testing.T, f *FSM, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if f.State() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("state = %v, want %v", f.State(), want)
}

func newTestFSM(t *testing.T, transport Transport) *FSM {
	t.Helper()
	cfg := Config{
		LocalAS:  65001,
		PeerAS:   65002,
		RouterID: bgp.NewIdentifier(10, 0, 0, 1),
		HoldTime: 90 * time.Second,
	}
	f := New(cfg, transport, zap.NewNop(), nil)
	go f.Run()
	t.Cleanup(f.Close)
	return f
}

func TestFSMStartReachesOpenSent(t *testing.T) {
	tr := &fakeTransport{}
	f := newTestFSM(t, tr)
	f.Post(Event{Kind: Start})
	waitForState(t, f, OpenSent)
	if len(tr.frames()) != 1 {
		t.Fatalf("expected one OPEN frame sent, got %d", len(tr.frames()))
	}
}

// S4. BGP FSM OPEN mismatch: a peer advertising an unexpected ASN is
// rejected with NOTIFICATION(OpenMessageError, BadPeerAS) and the FSM
// drops to Idle.
func TestFSMOpenASMismatchDropsToIdle(t *testing.T) {
	tr := &fakeTransport{}
	f := newTestFSM(t, tr)
	f.Post(Event{Kind: Start})
	waitForState(t, f, OpenSent)

	badOpen := &bgp.Open{Version: bgp.Version4, MyAS: 65099, HoldTime: 90, Capabilities: bgp.NewSet()}
	f.Post(Event{Kind: BGPOpen, Open: badOpen})
	waitForState(t, f, Idle)

	frames := tr.frames()
	if len(frames) != 2 {
		t.Fatalf("expected OPEN then NOTIFICATION sent, got %d frames", len(frames))
	}
	sess := bgp.Session{}
	typ, msg, err := sess.Decode(frames[1])
	if err != nil {
		t.Fatalf("Decode notification: %v", err)
	}
	if typ != bgp.TypeNotification {
		t.Fatalf("second frame type = %v, want NOTIFICATION", typ)
	}
	notif := msg.(*bgp.Notification)
	if notif.Code != bgp.ErrOpenMessage || notif.Subcode != bgp.SubBadPeerAS {
		t.Fatalf("notification = %+v, want OpenMessageError/BadPeerAS", notif)
	}
}

func TestFSMOpenAcceptedReachesEstablished(t *testing.T) {
	tr := &fakeTransport{}
	f := newTestFSM(t, tr)
	f.Post(Event{Kind: Start})
	waitForState(t, f, OpenSent)

	goodOpen := &bgp.Open{Version: bgp.Version4, MyAS: 65002, HoldTime: 90, Capabilities: bgp.NewSet()}
	f.Post(Event{Kind: BGPOpen, Open: goodOpen})
	waitForState(t, f, Established)

	f.Post(Event{Kind: KeepAliveMsg})
	if f.State() != Established {
		t.Fatalf("state after KeepAliveMsg = %v, want Established", f.State())
	}
}

func TestFSMStopFromEstablishedSendsCeaseAndDropsToIdle(t *testing.T) {
	tr := &fakeTransport{}
	f := newTestFSM(t, tr)
	f.Post(Event{Kind: Start})
	waitForState(t, f, OpenSent)
	f.Post(Event{Kind: BGPOpen, Open: &bgp.Open{Version: bgp.Version4, MyAS: 65002, HoldTime: 90, Capabilities: bgp.NewSet()}})
	waitForState(t, f, Established)

	f.Post(Event{Kind: Stop})
	waitForState(t, f, Idle)

	frames := tr.frames()
	last := frames[len(frames)-1]
	sess := bgp.Session{}
	_, msg, err := sess.Decode(last)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	notif, ok := msg.(*bgp.Notification)
	if !ok || notif.Code != bgp.ErrCease || notif.Subcode != bgp.SubAdministrativeShutdown {
		t.Fatalf("final frame = %+v, want Cease/AdministrativeShutdown", msg)
	}
}
