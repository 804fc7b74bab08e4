package bgp

import "github.com/zeburouter/zeburouter/stream"

// marker is the 16-octet all-ones field every BGP message header
// begins with. RFC 4271 reserves it for an authentication mechanism
// this implementation, like the vast majority of deployed speakers,
// does not use.
var marker = [16]byte{
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
}

// Header is the fixed portion of every BGP message.
type Header struct {
	Length uint16 // total PDU length, header included
	Type   Type
}

// ReadHeader parses the 19-octet header from the front of r. Callers
// of the per-peer reader task use this once enough bytes have
// accumulated to frame a full PDU (spec.md §5: "the reader accumulates
// bytes and extracts frames by reading the 16-bit length at header
// offset 16..18").
func ReadHeader(r *stream.Reader) (Header, error) {
	if _, err := r.Bytes(16); err != nil {
		return Header{}, err
	}
	length, err := r.Uint16()
	if err != nil {
		return Header{}, err
	}
	typByte, err := r.Byte()
	if err != nil {
		return Header{}, err
	}
	if int(length) < HeaderLen {
		return Header{}, &InvalidLengthError{Container: "header", Declared: int(length), Have: HeaderLen}
	}
	return Header{Length: length, Type: Type(typByte)}, nil
}

// WriteHeader writes a placeholder header (marker, type, zero length)
// and returns the byte offset of the length field so the caller can
// patch it once the body has been written.
func WriteHeader(w *stream.Writer, typ Type) (lengthOffset int) {
	w.WriteBytes(marker[:])
	off := w.WriteUint16(0)
	w.WriteByte(byte(typ))
	return off
}

// FrameLength computes the total PDU length for a body of bodyLen
// octets following the header.
func FrameLength(bodyLen int) uint16 {
	return uint16(HeaderLen + bodyLen)
}

// Frame assembles a complete PDU: header followed by body.
func Frame(typ Type, body []byte) []byte {
	w := stream.NewWriter()
	off := WriteHeader(w, typ)
	w.WriteBytes(body)
	w.PatchUint16(off, FrameLength(len(body)))
	return w.Bytes()
}

// SplitFrames extracts every complete PDU from buf, returning the
// frames found and the number of leading bytes consumed. The reader
// task calls this after each socket read; bytes beyond the last
// complete frame are left in the connection's accumulation buffer.
func SplitFrames(buf []byte) (frames [][]byte, consumed int) {
	for {
		if len(buf)-consumed < HeaderLen {
			return frames, consumed
		}
		r := stream.NewReader(buf[consumed:])
		hdr, err := ReadHeader(r)
		if err != nil {
			return frames, consumed
		}
		if len(buf)-consumed < int(hdr.Length) {
			return frames, consumed
		}
		frames = append(frames, buf[consumed:consumed+int(hdr.Length)])
		consumed += int(hdr.Length)
	}
}
