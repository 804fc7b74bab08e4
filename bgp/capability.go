package bgp

import (
	"github.com/zeburouter/zeburouter/stream"
)

// CapabilityCode is the 1-octet capability code of RFC 5492's
// capability optional parameter (parameter type 2).
type CapabilityCode byte

const (
	CapMultiprotocol      CapabilityCode = 1  // RFC 4760
	CapRouteRefresh       CapabilityCode = 2  // RFC 2918
	CapExtendedMessage    CapabilityCode = 6  // RFC 8654
	CapGracefulRestart    CapabilityCode = 64 // RFC 4724
	CapAS4                CapabilityCode = 65 // RFC 6793
	CapDynamicCapability  CapabilityCode = 67
	CapAddPath            CapabilityCode = 69 // RFC 7911
	CapEnhancedRouteRefresh CapabilityCode = 70
	CapLongLivedGracefulRestart CapabilityCode = 71 // RFC draft / widely deployed
	CapFQDN               CapabilityCode = 73
	CapSoftwareVersion    CapabilityCode = 75
	CapRouteRefreshCisco  CapabilityCode = 128 // pre-standard Cisco code point
)

// AddPathMode is the per-(AFI,SAFI) send/receive mode negotiated by
// the AddPath capability.
type AddPathMode byte

const (
	AddPathReceive AddPathMode = 1
	AddPathSend    AddPathMode = 2
	AddPathBoth    AddPathMode = 3
)

// GracefulRestartFamily is one (AFI,SAFI,flags) triplet inside the
// Graceful Restart capability's per-family list.
type GracefulRestartFamily struct {
	Family    Family
	Preserved bool // forwarding-state preserved flag
}

// Set is the merged view of every capability a peer advertised,
// keyed by capability code with per-family detail nested for the
// families that carry one (spec.md §4.2 "BGP capability set").
type Set struct {
	Multiprotocol      map[Family]bool
	AddPath            map[Family]AddPathMode
	GracefulRestart    *GracefulRestartSet
	LongLivedGR        map[Family]uint32 // stale time per family
	RouteRefresh       bool
	EnhancedRefresh    bool
	ExtendedMessage    bool
	AS4                ASN // 0 if not advertised
	Dynamic            bool
	FQDN               string
	SoftwareVersion    string
	PathLimit          map[Family]uint16
}

// GracefulRestartSet is the negotiated Graceful Restart capability
// (RFC 4724): a restart-time advertisement plus per-family
// forwarding-state-preserved flags.
type GracefulRestartSet struct {
	RestartFlag bool
	RestartTime uint16 // seconds, 12 bits on the wire
	Families    []GracefulRestartFamily
}

// NewSet returns an empty capability set ready for merging.
func NewSet() *Set {
	return &Set{
		Multiprotocol: make(map[Family]bool),
		AddPath:       make(map[Family]AddPathMode),
		LongLivedGR:   make(map[Family]uint32),
		PathLimit:     make(map[Family]uint16),
	}
}

// capability is a single decoded (code, value) pair, the unit the
// OPEN message's optional parameters carry before merging into a Set.
type capability struct {
	code  CapabilityCode
	value []byte
}

// readCapabilities decodes a sequence of capability TLVs from an
// OPEN message's optional parameter value (parameter type 2).
func readCapabilities(body []byte) ([]capability, error) {
	r := stream.NewReader(body)
	var caps []capability
	for r.Len() > 0 {
		code, err := r.Byte()
		if err != nil {
			return nil, err
		}
		length, err := r.Byte()
		if err != nil {
			return nil, err
		}
		value, err := r.Bytes(int(length))
		if err != nil {
			return nil, &InvalidLengthError{Container: "capability", Declared: int(length), Have: r.Len()}
		}
		caps = append(caps, capability{code: CapabilityCode(code), value: value})
	}
	return caps, nil
}

// merge folds a decoded capability into the set.
func (s *Set) merge(c capability) error {
	switch c.code {
	case CapMultiprotocol:
		r := stream.NewReader(c.value)
		afi, err := r.Uint16()
		if err != nil {
			return err
		}
		if _, err := r.Byte(); err != nil { // reserved
			return err
		}
		safi, err := r.Byte()
		if err != nil {
			return err
		}
		s.Multiprotocol[Family{AFI(afi), SAFI(safi)}] = true
	case CapRouteRefresh, CapRouteRefreshCisco:
		s.RouteRefresh = true
	case CapEnhancedRouteRefresh:
		s.EnhancedRefresh = true
	case CapExtendedMessage:
		s.ExtendedMessage = true
	case CapDynamicCapability:
		s.Dynamic = true
	case CapAS4:
		r := stream.NewReader(c.value)
		asn, err := r.Uint32()
		if err != nil {
			return err
		}
		s.AS4 = ASN(asn)
	case CapAddPath:
		r := stream.NewReader(c.value)
		for r.Len() >= 4 {
			afi, err := r.Uint16()
			if err != nil {
				return err
			}
			safi, err := r.Byte()
			if err != nil {
				return err
			}
			mode, err := r.Byte()
			if err != nil {
				return err
			}
			s.AddPath[Family{AFI(afi), SAFI(safi)}] = AddPathMode(mode)
		}
	case CapGracefulRestart:
		r := stream.NewReader(c.value)
		flags, err := r.Uint16()
		if err != nil {
			return err
		}
		gr := &GracefulRestartSet{
			RestartFlag: flags&0x8000 != 0,
			RestartTime: flags & 0x0fff,
		}
		for r.Len() >= 4 {
			afi, err := r.Uint16()
			if err != nil {
				return err
			}
			safi, err := r.Byte()
			if err != nil {
				return err
			}
			famFlags, err := r.Byte()
			if err != nil {
				return err
			}
			gr.Families = append(gr.Families, GracefulRestartFamily{
				Family:    Family{AFI(afi), SAFI(safi)},
				Preserved: famFlags&0x80 != 0,
			})
		}
		s.GracefulRestart = gr
	case CapLongLivedGracefulRestart:
		r := stream.NewReader(c.value)
		for r.Len() >= 7 {
			afi, err := r.Uint16()
			if err != nil {
				return err
			}
			safi, err := r.Byte()
			if err != nil {
				return err
			}
			_, err = r.Byte() // flags
			if err != nil {
				return err
			}
			staleHi, err := r.Byte()
			if err != nil {
				return err
			}
			staleLo, err := r.Uint16()
			if err != nil {
				return err
			}
			stale := uint32(staleHi)<<16 | uint32(staleLo)
			s.LongLivedGR[Family{AFI(afi), SAFI(safi)}] = stale
		}
	case CapFQDN:
		r := stream.NewReader(c.value)
		hostLen, err := r.Byte()
		if err != nil {
			return err
		}
		host, err := r.Bytes(int(hostLen))
		if err != nil {
			return err
		}
		s.FQDN = string(host)
	case CapSoftwareVersion:
		r := stream.NewReader(c.value)
		verLen, err := r.Byte()
		if err != nil {
			return err
		}
		ver, err := r.Bytes(int(verLen))
		if err != nil {
			return err
		}
		s.SoftwareVersion = string(ver)
	}
	return nil
}

// Bytes encodes the set back into a bare sequence of capability TLVs;
// Open.Bytes wraps them in a single optional parameter (type 2) for
// emission in an outgoing OPEN message.
func (s *Set) Bytes() []byte {
	w := stream.NewWriter()
	for fam := range s.Multiprotocol {
		writeCapability(w, CapMultiprotocol, func(b *stream.Writer) {
			b.WriteUint16(uint16(fam.AFI))
			b.WriteByte(0)
			b.WriteByte(byte(fam.SAFI))
		})
	}
	if s.RouteRefresh {
		writeCapability(w, CapRouteRefresh, func(*stream.Writer) {})
	}
	if s.EnhancedRefresh {
		writeCapability(w, CapEnhancedRouteRefresh, func(*stream.Writer) {})
	}
	if s.ExtendedMessage {
		writeCapability(w, CapExtendedMessage, func(*stream.Writer) {})
	}
	if s.Dynamic {
		writeCapability(w, CapDynamicCapability, func(*stream.Writer) {})
	}
	if s.AS4 != 0 {
		writeCapability(w, CapAS4, func(b *stream.Writer) {
			b.WriteUint32(uint32(s.AS4))
		})
	}
	if len(s.AddPath) > 0 {
		writeCapability(w, CapAddPath, func(b *stream.Writer) {
			for fam, mode := range s.AddPath {
				b.WriteUint16(uint16(fam.AFI))
				b.WriteByte(byte(fam.SAFI))
				b.WriteByte(byte(mode))
			}
		})
	}
	if s.GracefulRestart != nil {
		writeCapability(w, CapGracefulRestart, func(b *stream.Writer) {
			flags := s.GracefulRestart.RestartTime & 0x0fff
			if s.GracefulRestart.RestartFlag {
				flags |= 0x8000
			}
			b.WriteUint16(flags)
			for _, f := range s.GracefulRestart.Families {
				b.WriteUint16(uint16(f.Family.AFI))
				b.WriteByte(byte(f.Family.SAFI))
				famFlags := byte(0)
				if f.Preserved {
					famFlags |= 0x80
				}
				b.WriteByte(famFlags)
			}
		})
	}
	if s.FQDN != "" {
		writeCapability(w, CapFQDN, func(b *stream.Writer) {
			b.WriteByte(byte(len(s.FQDN)))
			b.WriteBytes([]byte(s.FQDN))
			b.WriteByte(0) // domain name length, unused
		})
	}
	return w.Bytes()
}

func writeCapability(w *stream.Writer, code CapabilityCode, body func(*stream.Writer)) {
	w.WriteByte(byte(code))
	lenOff := w.Len()
	w.WriteByte(0)
	start := w.Len()
	body(w)
	w.PatchByte(lenOff, byte(w.Len()-start))
}
