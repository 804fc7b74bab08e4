package bgp

import (
	"fmt"

	"github.com/zeburouter/zeburouter/stream"
)

// Session carries the negotiated capabilities a peer's reader/writer
// tasks need to pick the right UPDATE codec: AS4 encoding selects the
// AS_PATH/AGGREGATOR width, and AddPath selects whether a family's
// NLRI entries carry a path identifier.
type Session struct {
	AS4     bool
	AddPath map[Family]bool
}

// Decode parses a complete framed PDU (the bytes SplitFrames handed
// back, including the 19-octet header) into its typed body: *Open,
// *Update, *Notification, or *Keepalive.
func (s Session) Decode(frame []byte) (Type, any, error) {
	hdr, body, err := headerAndBody(frame)
	if err != nil {
		return 0, nil, err
	}
	switch hdr.Type {
	case TypeOpen:
		m, err := ReadOpen(body)
		return hdr.Type, m, err
	case TypeUpdate:
		m, err := ReadUpdate(body, s.AS4, s.AddPath)
		return hdr.Type, m, err
	case TypeNotification:
		m, err := ReadNotification(body)
		return hdr.Type, m, err
	case TypeKeepalive:
		m, err := ReadKeepalive(body)
		return hdr.Type, m, err
	default:
		return hdr.Type, nil, fmt.Errorf("unknown message type %d", hdr.Type)
	}
}

// Encode frames m for transmission, dispatching on its concrete type
// to pick the right serializer (*Update needs the session's
// negotiated capabilities; the others don't).
func (s Session) Encode(typ Type, m any) ([]byte, error) {
	switch v := m.(type) {
	case *Open:
		return Frame(typ, v.Bytes()), nil
	case *Update:
		return Frame(typ, v.Bytes(s.AS4, s.AddPath)), nil
	case *Notification:
		return Frame(typ, v.Bytes()), nil
	case *Keepalive:
		return Frame(typ, v.Bytes()), nil
	default:
		return nil, fmt.Errorf("bgp: unencodable message type %T", m)
	}
}

func headerAndBody(frame []byte) (Header, []byte, error) {
	if len(frame) < HeaderLen {
		return Header{}, nil, &InvalidLengthError{Container: "header", Declared: len(frame), Have: HeaderLen}
	}
	hdr, err := ReadHeader(stream.NewReader(frame))
	if err != nil {
		return Header{}, nil, err
	}
	if len(frame) < int(hdr.Length) {
		return Header{}, nil, &InvalidLengthError{Container: "frame", Declared: int(hdr.Length), Have: len(frame)}
	}
	return hdr, frame[HeaderLen:hdr.Length], nil
}
