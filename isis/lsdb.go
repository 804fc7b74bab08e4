package isis

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/zeburouter/zeburouter/timer"
)

// ZeroAgeLifetime and MinLspTransInterval bound a self-originated
// LSP's refresh timer, per spec.md §4.4: "a refresh timer set below
// hold-time minus a safety margin (ZeroAgeLifetime=60s +
// MinLspTransInterval=5s)".
const (
	ZeroAgeLifetime     = 60 * time.Second
	MinLspTransInterval = 5 * time.Second
	MaxLSPLifetime      = 1200 * time.Second
)

// lsdbEntry is one LSDB-resident LSP plus its hold and refresh
// timers; the per-adjacency flooding flags live in Adjacency.
type lsdbEntry struct {
	lsp        *LSP
	holdTimer  *timer.Timer
	refresh    *timer.Timer
	selfOrigin bool
}

// Adjacency is the flooding-relevant view of one IS-IS adjacency: its
// identity and the per-link SRM/SSN sets the LSDB maintains for it.
type Adjacency struct {
	ID      NeighborID
	IfIndex int
	srm     map[LSPID]bool
	ssn     map[LSPID]bool
}

func newAdjacency(id NeighborID, ifIndex int) *Adjacency {
	return &Adjacency{ID: id, IfIndex: ifIndex, srm: make(map[LSPID]bool), ssn: make(map[LSPID]bool)}
}

// LSDB is the per-level link state database. Its methods, and the
// Flooders that drain it, take db.mu, so one LSDB can be shared by
// every interface of its level.
type LSDB struct {
	level Level
	log   *zap.Logger

	mu      sync.Mutex
	entries map[LSPID]*lsdbEntry
	adjs    map[NeighborID]*Adjacency
}

// NewLSDB creates an empty LSDB for level.
func NewLSDB(level Level, log *zap.Logger) *LSDB {
	return &LSDB{
		level:   level,
		log:     log,
		entries: make(map[LSPID]*lsdbEntry),
		adjs:    make(map[NeighborID]*Adjacency),
	}
}

// AddAdjacency registers a flooding peer (another IS-IS neighbor) the
// LSDB must advertise SRM/SSN to.
func (db *LSDB) AddAdjacency(id NeighborID, ifIndex int) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.adjs[id] = newAdjacency(id, ifIndex)
}

// RemoveAdjacency forgets a flooding peer.
func (db *LSDB) RemoveAdjacency(id NeighborID) {
	db.mu.Lock()
	defer db.mu.Unlock()
	delete(db.adjs, id)
}

// Adjacencies returns a snapshot of every flooding peer currently
// registered, for the daemon wiring layer's periodic SRM/SSN drain
// loop (each Adjacency is itself mutated under db.mu by DrainSRM/
// DrainSSN, so the snapshot only needs to be stable enough to iterate).
func (db *LSDB) Adjacencies() []*Adjacency {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := make([]*Adjacency, 0, len(db.adjs))
	for _, adj := range db.adjs {
		out = append(out, adj)
	}
	return out
}

// Receive applies spec.md §4.4's LSDB rule for an LSP arriving on
// receivedFrom: "On receiving a newer LSP... install, restart its
// hold timer, and mark SRM on all adjacencies except the one it came
// in on; mark SSN on the receiving adjacency. On receiving an older
// LSP: mark SRM on the receiving adjacency so we resend our newer
// copy."
func (db *LSDB) Receive(lsp *LSP, receivedFrom NeighborID) {
	if lsp.Sequence == 0 {
		return // sequence 0 is reserved and always invalid, per spec.md §8
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	existing, ok := db.entries[lsp.LSPID]
	if !ok || newerLSP(lsp, existing.lsp) {
		db.installLocked(lsp, false)
		for id, adj := range db.adjs {
			if id == receivedFrom {
				adj.ssn[lsp.LSPID] = true
			} else {
				adj.srm[lsp.LSPID] = true
			}
		}
		return
	}
	if newerLSP(existing.lsp, lsp) {
		if adj, ok := db.adjs[receivedFrom]; ok {
			adj.srm[lsp.LSPID] = true
		}
	}
}

// newerLSP reports whether a is strictly newer than b by sequence
// number, or — same sequence — non-expired while b is expired.
func newerLSP(a, b *LSP) bool {
	if a.Sequence != b.Sequence {
		return a.Sequence > b.Sequence
	}
	return a.RemainingLife > 0 && b.RemainingLife == 0
}

// installLocked inserts or replaces lsp, arming its hold timer. Must
// be called with db.mu held.
func (db *LSDB) installLocked(lsp *LSP, selfOrigin bool) {
	if old, ok := db.entries[lsp.LSPID]; ok && old.holdTimer != nil {
		old.holdTimer.Stop()
	}
	entry := &lsdbEntry{lsp: lsp, selfOrigin: selfOrigin}
	entry.holdTimer = timer.New(time.Duration(lsp.RemainingLife)*time.Second, func() {
		db.expire(lsp.LSPID)
	})
	db.entries[lsp.LSPID] = entry
}

func (db *LSDB) expire(id LSPID) {
	db.mu.Lock()
	defer db.mu.Unlock()
	entry, ok := db.entries[id]
	if !ok {
		return
	}
	entry.lsp.RemainingLife = 0
	for _, adj := range db.adjs {
		adj.srm[id] = true
	}
}

// InstallSelfOriginated installs an LSP this instance originated,
// arming both its hold timer and its refresh timer.
func (db *LSDB) InstallSelfOriginated(lsp *LSP, onRefresh func(old *LSP) *LSP) {
	db.mu.Lock()
	db.installLocked(lsp, true)
	entry := db.entries[lsp.LSPID]
	refreshIn := time.Duration(lsp.RemainingLife)*time.Second - ZeroAgeLifetime - MinLspTransInterval
	if refreshIn < MinLspTransInterval {
		refreshIn = MinLspTransInterval
	}
	entry.refresh = timer.New(refreshIn, func() {
		db.mu.Lock()
		current := db.entries[lsp.LSPID]
		db.mu.Unlock()
		if current == nil {
			return
		}
		next := onRefresh(current.lsp)
		db.mu.Lock()
		db.installLocked(next, true)
		for _, adj := range db.adjs {
			adj.srm[next.LSPID] = true
		}
		db.mu.Unlock()
	})
	db.mu.Unlock()
}

// Get returns the installed LSP for id, if any.
func (db *LSDB) Get(id LSPID) (*LSP, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	e, ok := db.entries[id]
	if !ok {
		return nil, false
	}
	return e.lsp, true
}

// Entries returns every installed LSP-entries summary, for building a
// CSNP.
func (db *LSDB) Entries() []LSPEntry {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := make([]LSPEntry, 0, len(db.entries))
	for _, e := range db.entries {
		out = append(out, LSPEntry{
			HoldTime: e.lsp.RemainingLife,
			LSPID:    e.lsp.LSPID,
			Sequence: e.lsp.Sequence,
			Checksum: e.lsp.Checksum,
		})
	}
	return out
}

// ReceiveCSNP applies spec.md §4.4's CSNP comparison rule: "Receiving
// a CSNP whose entries differ from the local LSDB causes SSN on the
// receiving adjacency for missing/outdated entries and SRM on the
// same adjacency for LSPs we hold that are newer than the CSNP's
// version."
func (db *LSDB) ReceiveCSNP(c *CSNP, from NeighborID) {
	db.mu.Lock()
	defer db.mu.Unlock()
	adj, ok := db.adjs[from]
	if !ok {
		return
	}
	seen := make(map[LSPID]bool, len(c.Entries))
	for _, remote := range c.Entries {
		seen[remote.LSPID] = true
		local, have := db.entries[remote.LSPID]
		switch {
		case !have:
			adj.ssn[remote.LSPID] = true
		case local.lsp.Sequence < remote.Sequence:
			adj.ssn[remote.LSPID] = true
		case local.lsp.Sequence > remote.Sequence:
			adj.srm[remote.LSPID] = true
		}
	}
	for id := range db.entries {
		if !seen[id] {
			adj.srm[id] = true
		}
	}
}

// ReceivePSNP acknowledges entries the peer confirmed, clearing our
// SRM flags for them (they no longer need resending).
func (db *LSDB) ReceivePSNP(p *PSNP, from NeighborID) {
	db.mu.Lock()
	defer db.mu.Unlock()
	adj, ok := db.adjs[from]
	if !ok {
		return
	}
	for _, e := range p.Entries {
		delete(adj.srm, e.LSPID)
	}
}
