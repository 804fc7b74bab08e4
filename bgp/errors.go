package bgp

import "fmt"

// InvalidLengthError reports a declared length that disagrees with
// the enclosing container (spec.md's InvalidLength error family): an
// attribute, capability, or NLRI whose header claims more or fewer
// octets than remain in the PDU.
type InvalidLengthError struct {
	Container string
	Declared  int
	Have      int
}

func (e *InvalidLengthError) Error() string {
	return fmt.Sprintf("%s: declared length %d exceeds %d remaining octets", e.Container, e.Declared, e.Have)
}

// AttributeParseError wraps a codec failure with the offending
// attribute's type code, so NOTIFICATION(UpdateMsgError,
// AttributeLengthError) and diagnostics can cite it without the
// caller re-deriving it from a generic error chain.
type AttributeParseError struct {
	AttrType AttrType
	Source   error
}

func (e *AttributeParseError) Error() string {
	return fmt.Sprintf("attribute %s: %v", e.AttrType, e.Source)
}

func (e *AttributeParseError) Unwrap() error { return e.Source }

// ErrUnsupportedAttribute is returned by the MP_REACH_NLRI and
// MP_UNREACH_NLRI decoders for an address family they do not handle,
// and by the EVPN NLRI decoder for a route type it does not handle.
// Attribute type codes the decoder does not recognize, AS4_PATH and
// AS4_AGGREGATOR included, never produce it: they are kept as Unknown
// attributes.
var ErrUnsupportedAttribute = fmt.Errorf("unsupported attribute")

// FSMProtocolViolation reports a PDU that arrived in a state the BGP
// FSM does not accept it in (e.g. a second OPEN outside OpenSent).
type FSMProtocolViolation struct {
	State   string
	Message string
}

func (e *FSMProtocolViolation) Error() string {
	return fmt.Sprintf("protocol violation in state %s: %s", e.State, e.Message)
}
