package isis

import "github.com/zeburouter/zeburouter/stream"

// CSNP is a Complete Sequence Numbers PDU: spec.md §4.4 "Periodic
// (DIS only) full-database summary: for each LSP in the LSDB emit an
// LSP-entry; the PDU declares the start and end LSP-ID range it
// covers."
type CSNP struct {
	Level     Level
	SourceID  SystemID
	StartLSPID LSPID
	EndLSPID   LSPID
	Entries    []LSPEntry
}

func ReadCSNP(level Level, body []byte) (*CSNP, error) {
	r := stream.NewReader(body)
	if _, err := r.Uint16(); err != nil { // pdu length
		return nil, err
	}
	sysID, err := r.Bytes(6)
	if err != nil {
		return nil, &InvalidLengthError{Container: "csnp source id", Declared: 6, Have: r.Len()}
	}
	startBytes, err := r.Bytes(8)
	if err != nil {
		return nil, &InvalidLengthError{Container: "csnp start lsp id", Declared: 8, Have: r.Len()}
	}
	endBytes, err := r.Bytes(8)
	if err != nil {
		return nil, &InvalidLengthError{Container: "csnp end lsp id", Declared: 8, Have: r.Len()}
	}

	c := &CSNP{Level: level}
	copy(c.SourceID[:], sysID)
	c.StartLSPID = lspIDFromBytes(startBytes)
	c.EndLSPID = lspIDFromBytes(endBytes)

	tlvs, err := ReadTLVs(r.Rest())
	if err != nil {
		return nil, err
	}
	for _, t := range tlvs {
		if t.Type != TLVLSPEntries {
			continue
		}
		entries, err := ReadLSPEntries(t.Value)
		if err != nil {
			return nil, err
		}
		c.Entries = append(c.Entries, entries...)
	}
	return c, nil
}

func (c *CSNP) Bytes() []byte {
	w := stream.NewWriter()
	typ := PDUL2CSNP
	if c.Level == Level1 {
		typ = PDUL1CSNP
	}
	WriteHeader(w, typ)
	pduLenOff := w.WriteUint16(0)
	w.WriteBytes(c.SourceID[:])
	writeLSPID(w, c.StartLSPID)
	writeLSPID(w, c.EndLSPID)

	// An LSP-entries TLV value holds at most 255 bytes, so entries are
	// written as consecutive TLVs of up to 15 (240 bytes) each, all in
	// this one CSNP; the CSNP itself is not split to fit an MTU.
	const maxPerTLV = 15
	for i := 0; i < len(c.Entries); i += maxPerTLV {
		end := i + maxPerTLV
		if end > len(c.Entries) {
			end = len(c.Entries)
		}
		WriteTLV(w, TLVLSPEntries, WriteLSPEntries(c.Entries[i:end]))
	}
	w.PatchUint16(pduLenOff, uint16(w.Len()))
	return w.Bytes()
}

// PSNP is a Partial Sequence Numbers PDU: spec.md §4.4 "pack
// LSP-entries TLVs into PSNPs sized to fit `interface_mtu -
// PSNP_header - TLV_header`; each entry is 16 bytes; emit PSNPs
// until the SSN set is drained."
type PSNP struct {
	Level    Level
	SourceID SystemID
	Entries  []LSPEntry
}

func ReadPSNP(level Level, body []byte) (*PSNP, error) {
	r := stream.NewReader(body)
	if _, err := r.Uint16(); err != nil {
		return nil, err
	}
	sysID, err := r.Bytes(6)
	if err != nil {
		return nil, &InvalidLengthError{Container: "psnp source id", Declared: 6, Have: r.Len()}
	}
	p := &PSNP{Level: level}
	copy(p.SourceID[:], sysID)

	tlvs, err := ReadTLVs(r.Rest())
	if err != nil {
		return nil, err
	}
	for _, t := range tlvs {
		if t.Type != TLVLSPEntries {
			continue
		}
		entries, err := ReadLSPEntries(t.Value)
		if err != nil {
			return nil, err
		}
		p.Entries = append(p.Entries, entries...)
	}
	return p, nil
}

func (p *PSNP) Bytes() []byte {
	w := stream.NewWriter()
	typ := PDUL2PSNP
	if p.Level == Level1 {
		typ = PDUL1PSNP
	}
	WriteHeader(w, typ)
	pduLenOff := w.WriteUint16(0)
	w.WriteBytes(p.SourceID[:])
	if len(p.Entries) > 0 {
		WriteTLV(w, TLVLSPEntries, WriteLSPEntries(p.Entries))
	}
	w.PatchUint16(pduLenOff, uint16(w.Len()))
	return w.Bytes()
}

// PacksPSNPs splits entries into PSNPs whose TLV-entries payload fits
// within mtu bytes, per spec.md's PSNP sizing rule.
func PacksPSNPs(level Level, source SystemID, entries []LSPEntry, mtu int) []*PSNP {
	const pduFixedLen = headerLen + 2 + 6 // header + pdu-len + source-id
	const tlvHeaderLen = 2
	perPDU := (mtu - pduFixedLen - tlvHeaderLen) / 16
	if perPDU <= 0 {
		perPDU = 1
	}
	var out []*PSNP
	for i := 0; i < len(entries); i += perPDU {
		end := i + perPDU
		if end > len(entries) {
			end = len(entries)
		}
		out = append(out, &PSNP{Level: level, SourceID: source, Entries: entries[i:end]})
	}
	return out
}

func lspIDFromBytes(b []byte) LSPID {
	var id LSPID
	copy(id.SystemID[:], b[:6])
	id.PseudoID = b[6]
	id.Fragment = b[7]
	return id
}

func writeLSPID(w *stream.Writer, id LSPID) {
	w.WriteBytes(id.SystemID[:])
	w.WriteByte(id.PseudoID)
	w.WriteByte(id.Fragment)
}
