package bgp

import (
	"github.com/zeburouter/zeburouter/stream"
)

// After a TCP connection is established, the first message sent by
// each side is an OPEN message. If the OPEN message is acceptable, a
// KEEPALIVE message confirming the OPEN is sent back.
type Open struct {
	Version    Version
	MyAS       ASN // the 2-octet field; AS4 capability carries the real ASN when this is ASTrans
	HoldTime   uint16
	Identifier Identifier
	Params     []byte // raw optional parameters, re-parsed into Capabilities
	Capabilities *Set
}

// minOpenLen is the minimum length of the OPEN message, header
// included, with no optional parameters.
const minOpenLen = 29

// optParamCapabilities is the Optional Parameter Type for the
// capabilities parameter (RFC 5492 §4).
const optParamCapabilities byte = 2

// ReadOpen parses an OPEN message body.
func ReadOpen(body []byte) (*Open, error) {
	r := stream.NewReader(body)
	version, err := r.Byte()
	if err != nil {
		return nil, err
	}
	myAS, err := r.Uint16()
	if err != nil {
		return nil, err
	}
	holdTime, err := r.Uint16()
	if err != nil {
		return nil, err
	}
	ident, err := r.Uint32()
	if err != nil {
		return nil, err
	}
	paramLen, err := r.Byte()
	if err != nil {
		return nil, err
	}
	params, err := r.Bytes(int(paramLen))
	if err != nil {
		return nil, &InvalidLengthError{Container: "OPEN optional parameters", Declared: int(paramLen), Have: r.Len()}
	}

	o := &Open{
		Version:      Version(version),
		MyAS:         ASN(myAS),
		HoldTime:     holdTime,
		Identifier:   Identifier(ident),
		Params:       params,
		Capabilities: NewSet(),
	}
	if err := o.parseParams(); err != nil {
		return nil, err
	}
	return o, nil
}

// parseParams walks the optional parameter TLVs, merging every
// capabilities parameter's capability TLVs into o.Capabilities.
func (o *Open) parseParams() error {
	r := stream.NewReader(o.Params)
	for r.Len() > 0 {
		typ, err := r.Byte()
		if err != nil {
			return err
		}
		length, err := r.Byte()
		if err != nil {
			return err
		}
		value, err := r.Bytes(int(length))
		if err != nil {
			return &InvalidLengthError{Container: "optional parameter", Declared: int(length), Have: r.Len()}
		}
		if typ != optParamCapabilities {
			continue
		}
		caps, err := readCapabilities(value)
		if err != nil {
			return err
		}
		for _, c := range caps {
			if err := o.Capabilities.merge(c); err != nil {
				return err
			}
		}
	}
	return nil
}

// Bytes serializes the OPEN message body, emitting a single
// capabilities optional parameter built from o.Capabilities (the
// source of truth; o.Params is only populated by ReadOpen).
func (o *Open) Bytes() []byte {
	capBytes := o.Capabilities.Bytes()

	w := stream.NewWriter()
	w.WriteByte(byte(o.Version))
	w.WriteUint16(uint16(o.MyAS))
	w.WriteUint16(o.HoldTime)
	w.WriteUint32(uint32(o.Identifier))

	if len(capBytes) == 0 {
		w.WriteByte(0)
		return w.Bytes()
	}
	paramLenOff := w.Len()
	w.WriteByte(0)
	w.WriteByte(optParamCapabilities)
	w.WriteByte(byte(len(capBytes)))
	w.WriteBytes(capBytes)
	w.PatchByte(paramLenOff, byte(2+len(capBytes)))
	return w.Bytes()
}

// Validate checks the OPEN message against the locally configured
// peer expectations (spec.md §4.3's OpenSent transition: "verify
// version=4, ASN matches configured peer_as"). On mismatch it returns
// the NOTIFICATION to send before the FSM drops to Idle.
func (o *Open) Validate(expectAS ASN, expectHoldMin uint16) *Notification {
	if o.Version != Version4 {
		return NewNotification(ErrOpenMessage, SubUnsupportedVersionNumber, []byte{0, byte(Version4)})
	}
	effectiveAS := o.MyAS
	if o.MyAS == ASTrans {
		if asn := o.Capabilities.AS4; asn != 0 {
			effectiveAS = asn
		}
	}
	if expectAS != 0 && ASN(effectiveAS) != expectAS {
		return NewNotification(ErrOpenMessage, SubBadPeerAS, nil)
	}
	if o.HoldTime != 0 && o.HoldTime < expectHoldMin {
		return NewNotification(ErrOpenMessage, SubUnacceptableHoldTime, nil)
	}
	return nil
}

// EffectiveAS returns the peer's real ASN, resolving AS_TRANS through
// the negotiated AS4 capability when present.
func (o *Open) EffectiveAS() ASN {
	if o.MyAS == ASTrans && o.Capabilities.AS4 != 0 {
		return o.Capabilities.AS4
	}
	return o.MyAS
}
