// Package stream provides the big-endian cursor primitives every wire
// codec in this module (bgp, isis, ospf) builds on: a Reader that
// reports short buffers as a typed error instead of panicking or
// silently truncating, and a Writer that supports patchbacks — writing
// a placeholder length or checksum field and overwriting it in place
// once the body has been fully emitted.
package stream

import (
	"encoding/binary"
	"fmt"
)

// ErrShortBuffer is returned whenever a Reader is asked for more bytes
// than remain. Codec parse functions either return it to their
// callers or replace it with a protocol-specific length error (for
// example isis.InvalidLengthError).
type ErrShortBuffer struct {
	Needed int
	Have   int
}

func (e ErrShortBuffer) Error() string {
	return fmt.Sprintf("stream: need %d bytes, have %d", e.Needed, e.Have)
}

// Reader is a forward-only cursor over an in-memory PDU.
type Reader struct {
	buf []byte
	off int
}

// NewReader wraps b for sequential reads starting at offset 0.
func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

// Len returns the number of unread bytes remaining.
func (r *Reader) Len() int { return len(r.buf) - r.off }

// Offset returns the current read position, used by containers that
// must verify their declared length matches the bytes their children
// actually consumed.
func (r *Reader) Offset() int { return r.off }

// Bytes consumes and returns the next n bytes.
func (r *Reader) Bytes(n int) ([]byte, error) {
	if n < 0 || r.Len() < n {
		return nil, ErrShortBuffer{Needed: n, Have: r.Len()}
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

// Byte consumes and returns the next byte.
func (r *Reader) Byte() (byte, error) {
	b, err := r.Bytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// Uint16 consumes and returns the next 2 bytes, big-endian.
func (r *Reader) Uint16() (uint16, error) {
	b, err := r.Bytes(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

// Uint32 consumes and returns the next 4 bytes, big-endian.
func (r *Reader) Uint32() (uint32, error) {
	b, err := r.Bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// Peek returns the next n bytes without advancing the cursor.
func (r *Reader) Peek(n int) ([]byte, error) {
	if n < 0 || r.Len() < n {
		return nil, ErrShortBuffer{Needed: n, Have: r.Len()}
	}
	return r.buf[r.off : r.off+n], nil
}

// Rest consumes and returns every remaining byte.
func (r *Reader) Rest() []byte {
	b := r.buf[r.off:]
	r.off = len(r.buf)
	return b
}

// Sub carves out a bounded sub-Reader over the next n bytes, for
// parsing a container whose declared length must exactly bound its
// children (TLV containers, LSA bodies, attribute payloads).
func (r *Reader) Sub(n int) (*Reader, error) {
	b, err := r.Bytes(n)
	if err != nil {
		return nil, err
	}
	return NewReader(b), nil
}

// Writer accumulates a serialized PDU. Fixed-size placeholder fields
// (length, checksum) are written as zero and patched once known.
type Writer struct {
	buf []byte
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer { return &Writer{} }

// WriteByte appends a single byte.
func (w *Writer) WriteByte(b byte) { w.buf = append(w.buf, b) }

// WriteBytes appends b verbatim.
func (w *Writer) WriteBytes(b []byte) { w.buf = append(w.buf, b...) }

// WriteUint16 appends v, big-endian, and returns the offset it was
// written at so callers can patch it later.
func (w *Writer) WriteUint16(v uint16) int {
	off := len(w.buf)
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	w.buf = append(w.buf, b[:]...)
	return off
}

// WriteUint32 appends v, big-endian, and returns the offset it was
// written at.
func (w *Writer) WriteUint32(v uint32) int {
	off := len(w.buf)
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
	return off
}

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return len(w.buf) }

// Bytes returns the accumulated buffer. The slice aliases the
// Writer's storage; callers must not retain it across further writes.
func (w *Writer) Bytes() []byte { return w.buf }

// PatchByte overwrites the byte at offset.
func (w *Writer) PatchByte(offset int, v byte) { w.buf[offset] = v }

// PatchUint16 overwrites the 2 bytes at offset, big-endian.
func (w *Writer) PatchUint16(offset int, v uint16) {
	binary.BigEndian.PutUint16(w.buf[offset:offset+2], v)
}

// PatchUint32 overwrites the 4 bytes at offset, big-endian.
func (w *Writer) PatchUint32(offset int, v uint32) {
	binary.BigEndian.PutUint32(w.buf[offset:offset+4], v)
}
