package bgp

import (
	"fmt"

	"github.com/zeburouter/zeburouter/stream"
)

// 4.5.  NOTIFICATION Message Format
//    A NOTIFICATION message is sent when an error condition is
//    detected. The BGP connection is closed immediately after it is
//    sent.

// ErrorCode is the 1-octet NOTIFICATION Error Code.
type ErrorCode byte

const (
	ErrMessageHeader      ErrorCode = 1
	ErrOpenMessage        ErrorCode = 2
	ErrUpdateMessage      ErrorCode = 3
	ErrHoldTimerExpired   ErrorCode = 4
	ErrFiniteStateMachine ErrorCode = 5
	ErrCease              ErrorCode = 6
)

var errorCodeName = map[ErrorCode]string{
	ErrMessageHeader:      "Message Header Error",
	ErrOpenMessage:        "OPEN Message Error",
	ErrUpdateMessage:      "UPDATE Message Error",
	ErrHoldTimerExpired:   "Hold Timer Expired",
	ErrFiniteStateMachine: "Finite State Machine Error",
	ErrCease:              "Cease",
}

func (c ErrorCode) String() string {
	if n, ok := errorCodeName[c]; ok {
		return n
	}
	return fmt.Sprintf("error-code(%d)", byte(c))
}

// Message Header Error subcodes.
const (
	SubConnectionNotSynchronized byte = 1
	SubBadMessageLength          byte = 2
	SubBadMessageType            byte = 3
)

// OPEN Message Error subcodes.
const (
	SubUnsupportedVersionNumber     byte = 1
	SubBadPeerAS                    byte = 2
	SubBadBGPIdentifier             byte = 3
	SubUnsupportedOptionalParameter byte = 4
	SubUnacceptableHoldTime         byte = 6
)

// UPDATE Message Error subcodes.
const (
	SubMalformedAttributeList         byte = 1
	SubUnrecognizedWellKnownAttribute byte = 2
	SubMissingWellKnownAttribute      byte = 3
	SubAttributeFlagsError            byte = 4
	SubAttributeLengthError           byte = 5
	SubInvalidOriginAttribute         byte = 6
	SubInvalidNextHopAttribute        byte = 8
	SubOptionalAttributeError         byte = 9
	SubInvalidNetworkField            byte = 10
	SubMalformedASPath                byte = 11
)

// Finite State Machine Error subcodes (RFC 6608).
const (
	SubUnexpectedMessageInOpenSent    byte = 1
	SubUnexpectedMessageInOpenConfirm byte = 2
	SubUnexpectedMessageInEstablished byte = 3
)

// Cease subcodes (RFC 4486).
const (
	SubMaxPrefixesReached    byte = 1
	SubAdministrativeShutdown byte = 2
	SubPeerDeconfigured      byte = 3
	SubAdministrativeReset   byte = 4
	SubConnectionRejected    byte = 5
	SubOtherConfigurationChange byte = 6
	SubConnectionCollisionResolution byte = 7
	SubOutOfResources        byte = 8
)

// minNotificationLen is the minimum length of the NOTIFICATION message, including
// the 19-octet header, with an empty Data field.
const minNotificationLen = 21

// Notification is the NOTIFICATION message body.
type Notification struct {
	Code    ErrorCode
	Subcode byte
	Data    []byte
}

// NewNotification builds a Notification from a code/subcode pair and
// optional diagnostic data.
func NewNotification(code ErrorCode, subcode byte, data []byte) *Notification {
	return &Notification{Code: code, Subcode: subcode, Data: data}
}

func (n *Notification) Error() string {
	return fmt.Sprintf("NOTIFICATION: %s, subcode %d", n.Code, n.Subcode)
}

// ReadNotification parses a NOTIFICATION message body (everything
// after the 19-octet header).
func ReadNotification(body []byte) (*Notification, error) {
	r := stream.NewReader(body)
	code, err := r.Byte()
	if err != nil {
		return nil, err
	}
	subcode, err := r.Byte()
	if err != nil {
		return nil, err
	}
	return &Notification{Code: ErrorCode(code), Subcode: subcode, Data: r.Rest()}, nil
}

// Bytes serializes the NOTIFICATION message body.
func (n *Notification) Bytes() []byte {
	w := stream.NewWriter()
	w.WriteByte(byte(n.Code))
	w.WriteByte(n.Subcode)
	w.WriteBytes(n.Data)
	return w.Bytes()
}
