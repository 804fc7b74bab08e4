// Package isis implements the IS-IS engine of spec.md §4.4: packet
// codec, per-interface IFSM/NFSM, DIS election, and LSDB flooding.
//
// The teacher repo is BGP-only; this package has no teacher coverage
// to generalize from and is grounded directly on spec.md §4.4 and
// original_source/zebra-rs/src/isis/{ifsm,nfsm,lsdb,flood,neigh}.rs
// for event/state names, reusing the `stream` package's big-endian
// cursor idiom the way `bgp` does for its own wire codec.
package isis

import "fmt"

// IRPD is the Intra-Domain Routing Protocol Discriminator that begins
// every IS-IS PDU.
const IRPD = 0x83

// SystemID is a 6-octet NSAP-derived system identifier.
type SystemID [6]byte

func (s SystemID) String() string {
	return fmt.Sprintf("%02x%02x.%02x%02x.%02x%02x", s[0], s[1], s[2], s[3], s[4], s[5])
}

// LSPID identifies an LSP: originating SystemID, a pseudo-node ID
// (non-zero only for a LAN's DIS-originated pseudo-node LSP), and a
// fragment number.
type LSPID struct {
	SystemID SystemID
	PseudoID byte
	Fragment byte
}

func (l LSPID) String() string {
	return fmt.Sprintf("%s.%02x-%02x", l.SystemID, l.PseudoID, l.Fragment)
}

// NeighborID is a SystemID plus pseudo-node ID, used as a LAN-ID: the
// DIS's SystemID plus its allocated pseudo-node ID (zero if unknown).
type NeighborID struct {
	SystemID SystemID
	PseudoID byte
}

func (n NeighborID) String() string {
	return fmt.Sprintf("%s.%02x", n.SystemID, n.PseudoID)
}

// Level is an IS-IS routing level.
type Level int

const (
	Level1 Level = 1
	Level2 Level = 2
)

func (l Level) String() string {
	switch l {
	case Level1:
		return "L1"
	case Level2:
		return "L2"
	default:
		return "L1L2"
	}
}

// PDUType is the common-header PDU type byte (ISO 10589 §9.13/RFC
// 1195).
type PDUType byte

const (
	PDUL1Hello PDUType = 15
	PDUL2Hello PDUType = 16
	PDUP2PHello PDUType = 17
	PDUL1LSP   PDUType = 18
	PDUL2LSP   PDUType = 20
	PDUL1CSNP  PDUType = 24
	PDUL2CSNP  PDUType = 25
	PDUL1PSNP  PDUType = 26
	PDUL2PSNP  PDUType = 27
)

var pduTypeName = map[PDUType]string{
	PDUL1Hello:  "L1 Hello",
	PDUL2Hello:  "L2 Hello",
	PDUP2PHello: "P2P Hello",
	PDUL1LSP:    "L1 LSP",
	PDUL2LSP:    "L2 LSP",
	PDUL1CSNP:   "L1 CSNP",
	PDUL2CSNP:   "L2 CSNP",
	PDUL1PSNP:   "L1 PSNP",
	PDUL2PSNP:   "L2 PSNP",
}

func (t PDUType) String() string {
	if n, ok := pduTypeName[t]; ok {
		return n
	}
	return fmt.Sprintf("pdu-type(%d)", byte(t))
}

func (t PDUType) Level() Level {
	switch t {
	case PDUL1Hello, PDUL1LSP, PDUL1CSNP, PDUL1PSNP:
		return Level1
	default:
		return Level2
	}
}

// Header is the IS-IS common header (ISO 10589 §9.9): IRPD,
// length-indicator, id-extension, id-length (0 ⇒ 6), PDU type,
// version, reserved, max-area-addresses (0 ⇒ 3).
type Header struct {
	LengthIndicator byte
	IDExtension     byte
	IDLength        byte // 0 means 6, per ISO 10589
	Type            PDUType
	Version         byte
	MaxAreaAddr     byte // 0 means 3
}

// IDLen returns the effective system-id length this header encodes.
func (h Header) IDLen() int {
	if h.IDLength == 0 {
		return 6
	}
	return int(h.IDLength)
}

// MaxAreaAddresses returns the effective max-area-addresses value.
func (h Header) MaxAreaAddresses() int {
	if h.MaxAreaAddr == 0 {
		return 3
	}
	return int(h.MaxAreaAddr)
}

// InvalidLengthError mirrors bgp.InvalidLengthError for the IS-IS
// codec: a declared TLV or PDU length disagreeing with the bytes
// actually available.
type InvalidLengthError struct {
	Container        string
	Declared, Have int
}

func (e *InvalidLengthError) Error() string {
	return fmt.Sprintf("isis: %s: declared length %d, have %d", e.Container, e.Declared, e.Have)
}

// InvalidSequenceError reports an LSP whose sequence number is the
// reserved value 0, invalid per spec.md §8 and always dropped.
type InvalidSequenceError struct {
	LSPID LSPID
}

func (e *InvalidSequenceError) Error() string {
	return fmt.Sprintf("isis: %s: sequence number 0 is invalid", e.LSPID)
}
