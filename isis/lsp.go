package isis

import (
	"net/netip"

	"github.com/zeburouter/zeburouter/stream"
)

// LSP flags byte (ISO 10589 §9.9): P (partition repair), ATT
// (attached, 4 bits for the 4 metric types), overload, and IS-type.
const (
	lspFlagPartition byte = 0x80
	lspFlagOverload  byte = 0x04
	lspFlagAttMask   byte = 0x78
)

// TLVExtIPReachability (RFC 5305 §4.1) carries wide-metric IPv4
// reachability: a 4-byte metric, an up/down bit, a prefix-length
// octet, and the minimal prefix bytes.
const TLVExtIPReachability TLVType = 135

// Reachability is one IPv4 prefix this LSP originates reachability
// for, with its RFC 5305 wide metric.
type Reachability struct {
	Prefix netip.Prefix
	Metric uint32
	Down   bool
}

// LSP is a Link State PDU. spec.md's LSDB keys on LSPID and tracks
// sequence/checksum/remaining-lifetime for flooding and refresh.
type LSP struct {
	Level         Level
	RemainingLife uint16
	LSPID         LSPID
	Sequence      uint32
	Checksum      uint16
	Partition     bool
	Attached      byte
	Overload      bool

	AreaAddresses [][]byte
	NLPIDs        []byte
	Reachability  []Reachability
	Unknown       []RawTLV

	// raw is this LSP's full PDU image, common header included: the
	// parsed body behind a freshly written header, or the image Bytes
	// last produced; flooding re-emits raw with only the hold-time
	// field patched back, per spec.md's "LSP hold-time patchback"
	// contract — the checksum is not recomputed for re-flood.
	raw []byte
}

// ReadLSP parses an LSP PDU body (after the common header).
func ReadLSP(level Level, body []byte) (*LSP, error) {
	r := stream.NewReader(body)
	if _, err := r.Uint16(); err != nil { // pdu length, recomputed on write
		return nil, err
	}
	remainingLife, err := r.Uint16()
	if err != nil {
		return nil, err
	}
	idBytes, err := r.Bytes(8)
	if err != nil {
		return nil, &InvalidLengthError{Container: "LSP id", Declared: 8, Have: r.Len()}
	}
	seq, err := r.Uint32()
	if err != nil {
		return nil, err
	}
	checksum, err := r.Uint16()
	if err != nil {
		return nil, err
	}
	flags, err := r.Byte()
	if err != nil {
		return nil, err
	}

	hw := stream.NewWriter()
	typ := PDUL2LSP
	if level == Level1 {
		typ = PDUL1LSP
	}
	WriteHeader(hw, typ)
	l := &LSP{
		Level:         level,
		RemainingLife: remainingLife,
		Sequence:      seq,
		Checksum:      checksum,
		Partition:     flags&lspFlagPartition != 0,
		Attached:      (flags & lspFlagAttMask) >> 3,
		Overload:      flags&lspFlagOverload != 0,
		raw:           append(hw.Bytes(), body...),
	}
	copy(l.LSPID.SystemID[:], idBytes[:6])
	l.LSPID.PseudoID = idBytes[6]
	l.LSPID.Fragment = idBytes[7]

	if seq == 0 {
		return nil, &InvalidSequenceError{LSPID: l.LSPID}
	}

	tlvs, err := ReadTLVs(r.Rest())
	if err != nil {
		return nil, err
	}
	for _, t := range tlvs {
		switch t.Type {
		case TLVAreaAddresses:
			areas, err := AreaAddresses(t.Value)
			if err != nil {
				return nil, err
			}
			l.AreaAddresses = areas
		case TLVProtocolsSupported:
			l.NLPIDs = append([]byte(nil), t.Value...)
		case TLVExtIPReachability:
			reach, err := readExtIPReachability(t.Value)
			if err != nil {
				return nil, err
			}
			l.Reachability = append(l.Reachability, reach...)
		default:
			l.Unknown = append(l.Unknown, t)
		}
	}
	return l, nil
}

func readExtIPReachability(value []byte) ([]Reachability, error) {
	r := stream.NewReader(value)
	var out []Reachability
	for r.Len() > 0 {
		metricAndFlags, err := r.Uint32()
		if err != nil {
			return nil, err
		}
		control, err := r.Byte()
		if err != nil {
			return nil, err
		}
		prefixLen := int(control & 0x3f)
		down := control&0x80 != 0
		hasSubTLVs := control&0x40 != 0
		nbytes := (prefixLen + 7) / 8
		raw, err := r.Bytes(nbytes)
		if err != nil {
			return nil, &InvalidLengthError{Container: "ext IP reachability prefix", Declared: nbytes, Have: r.Len()}
		}
		var b [4]byte
		copy(b[:], raw)
		out = append(out, Reachability{
			Prefix: netip.PrefixFrom(netip.AddrFrom4(b), prefixLen),
			Metric: metricAndFlags,
			Down:   down,
		})
		if hasSubTLVs {
			subLen, err := r.Byte()
			if err != nil {
				return nil, err
			}
			if _, err := r.Bytes(int(subLen)); err != nil {
				return nil, &InvalidLengthError{Container: "ext IP reachability sub-TLVs", Declared: int(subLen), Have: r.Len()}
			}
		}
	}
	return out, nil
}

func writeExtIPReachability(reach []Reachability) []byte {
	w := stream.NewWriter()
	for _, rc := range reach {
		w.WriteUint32(rc.Metric)
		control := byte(rc.Prefix.Bits())
		if rc.Down {
			control |= 0x80
		}
		w.WriteByte(control)
		nbytes := (rc.Prefix.Bits() + 7) / 8
		addr := rc.Prefix.Addr().As4()
		w.WriteBytes(addr[:nbytes])
	}
	return w.Bytes()
}

// Bytes re-serializes the LSP from its decoded fields, recomputing
// the PDU length but not the checksum (callers that mutate content
// must recompute Checksum themselves; flooding an unmodified LSP uses
// PatchedForFlood on the cached raw image instead).
func (l *LSP) Bytes() []byte {
	w := stream.NewWriter()
	typ := PDUL2LSP
	if l.Level == Level1 {
		typ = PDUL1LSP
	}
	WriteHeader(w, typ)

	pduLenOff := w.WriteUint16(0)
	w.WriteUint16(l.RemainingLife)
	w.WriteBytes(l.LSPID.SystemID[:])
	w.WriteByte(l.LSPID.PseudoID)
	w.WriteByte(l.LSPID.Fragment)
	w.WriteUint32(l.Sequence)
	w.WriteUint16(l.Checksum)

	flags := (l.Attached << 3) & lspFlagAttMask
	if l.Partition {
		flags |= lspFlagPartition
	}
	if l.Overload {
		flags |= lspFlagOverload
	}
	w.WriteByte(flags)

	if len(l.AreaAddresses) > 0 {
		WriteTLV(w, TLVAreaAddresses, WriteAreaAddresses(l.AreaAddresses))
	}
	if len(l.NLPIDs) > 0 {
		WriteTLV(w, TLVProtocolsSupported, l.NLPIDs)
	}
	if len(l.Reachability) > 0 {
		WriteTLV(w, TLVExtIPReachability, writeExtIPReachability(l.Reachability))
	}
	for _, u := range l.Unknown {
		WriteTLV(w, u.Type, u.Value)
	}

	w.PatchUint16(pduLenOff, uint16(w.Len()))
	l.raw = w.Bytes()
	return l.raw
}

// PatchedForFlood returns this LSP's cached byte image with the
// remaining-lifetime field overwritten to life — spec.md's "LSP
// hold-time patchback: when a cached LSP byte image is re-flooded,
// its in-image hold-time field is overwritten with the current
// remaining lifetime before transmission. The checksum is not
// recomputed for re-flood."
func (l *LSP) PatchedForFlood(life uint16) []byte {
	image := append([]byte(nil), l.raw...)
	// remaining-lifetime sits at header(8) + pdu-length(2) = offset 10.
	const remainingLifeOffset = headerLen + 2
	if len(image) < remainingLifeOffset+2 {
		return image
	}
	image[remainingLifeOffset] = byte(life >> 8)
	image[remainingLifeOffset+1] = byte(life)
	return image
}
