package isis

// Flooder drains one adjacency's SRM and SSN sets on its per-link
// timer: spec.md §4.4 "SRM advertise on a per-link one-shot timer:
// for each LSP-ID in SRM, fetch the cached image, patch its hold-time
// with the current remaining-lifetime, emit, and clear the flag. SSN
// advertise on a per-link timer: pack LSP-entries TLVs into PSNPs
// sized to fit `interface_mtu - PSNP_header - TLV_header`... emit
// PSNPs until the SSN set is drained."
type Flooder struct {
	db     *LSDB
	source SystemID
	mtu    int
	send   func(frame []byte)
}

// NewFlooder builds a Flooder that drains db's adjacency SRM/SSN sets
// onto send, advertising PDUs as if originated by source.
func NewFlooder(db *LSDB, source SystemID, mtu int, send func(frame []byte)) *Flooder {
	return &Flooder{db: db, source: source, mtu: mtu, send: send}
}

// DrainSRM emits one patched LSP per pending SRM flag on adj, clearing
// each flag as it is sent.
func (f *Flooder) DrainSRM(adj *Adjacency) {
	f.db.mu.Lock()
	pending := make([]LSPID, 0, len(adj.srm))
	for id := range adj.srm {
		pending = append(pending, id)
	}
	f.db.mu.Unlock()

	for _, id := range pending {
		f.db.mu.Lock()
		entry, ok := f.db.entries[id]
		f.db.mu.Unlock()
		if !ok {
			continue
		}
		f.send(entry.lsp.PatchedForFlood(entry.lsp.RemainingLife))
		f.db.mu.Lock()
		delete(adj.srm, id)
		f.db.mu.Unlock()
	}
}

// DrainSSN packs adj's pending SSN entries into as many PSNPs as
// needed to fit the interface MTU, emitting all of them and clearing
// the SSN set.
func (f *Flooder) DrainSSN(adj *Adjacency) {
	f.db.mu.Lock()
	entries := make([]LSPEntry, 0, len(adj.ssn))
	for id := range adj.ssn {
		if e, ok := f.db.entries[id]; ok {
			entries = append(entries, LSPEntry{
				HoldTime: e.lsp.RemainingLife,
				LSPID:    e.lsp.LSPID,
				Sequence: e.lsp.Sequence,
				Checksum: e.lsp.Checksum,
			})
		}
	}
	adj.ssn = make(map[LSPID]bool)
	f.db.mu.Unlock()

	if len(entries) == 0 {
		return
	}
	for _, psnp := range PacksPSNPs(f.db.level, f.source, entries, f.mtu) {
		f.send(psnp.Bytes())
	}
}

// SendCSNP builds and emits a full-database CSNP for this adjacency's
// link, per spec.md's DIS-only periodic CSNP.
func (f *Flooder) SendCSNP() {
	entries := f.db.Entries()
	if len(entries) == 0 {
		return
	}
	c := &CSNP{
		Level:      f.db.level,
		SourceID:   f.source,
		StartLSPID: LSPID{},
		EndLSPID:   LSPID{SystemID: SystemID{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, PseudoID: 0xff, Fragment: 0xff},
		Entries:    entries,
	}
	f.send(c.Bytes())
}
