package isis

import (
	"github.com/zeburouter/zeburouter/stream"
)

// headerLen is the fixed common header length (ISO 10589 §9.9): IRPD,
// length-indicator, id-extension, id-length, PDU type, version,
// reserved, max-area-addresses.
const headerLen = 8

// ReadHeader parses the common header and returns the remaining bytes
// (the PDU-type-specific fixed fields plus TLVs).
func ReadHeader(buf []byte) (Header, []byte, error) {
	r := stream.NewReader(buf)
	irpd, err := r.Byte()
	if err != nil {
		return Header{}, nil, err
	}
	if irpd != IRPD {
		return Header{}, nil, &InvalidLengthError{Container: "IRPD", Declared: int(irpd), Have: IRPD}
	}
	lenInd, _ := r.Byte()
	idExt, _ := r.Byte()
	idLen, _ := r.Byte()
	typ, _ := r.Byte()
	version, _ := r.Byte()
	_, _ = r.Byte() // reserved
	maxArea, err := r.Byte()
	if err != nil {
		return Header{}, nil, err
	}
	h := Header{
		LengthIndicator: lenInd,
		IDExtension:     idExt,
		IDLength:        idLen,
		Type:            PDUType(typ),
		Version:         version,
		MaxAreaAddr:     maxArea,
	}
	return h, r.Rest(), nil
}

// WriteHeader appends the common header for typ; the PDU-specific
// fixed fields and TLVs follow.
func WriteHeader(w *stream.Writer, typ PDUType) {
	w.WriteByte(IRPD)
	w.WriteByte(headerLen)
	w.WriteByte(0) // id-extension
	w.WriteByte(0) // id-length: 0 => 6
	w.WriteByte(byte(typ))
	w.WriteByte(1) // version
	w.WriteByte(0) // reserved
	w.WriteByte(0) // max-area-addresses: 0 => 3
}
