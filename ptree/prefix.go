// Package ptree implements the radix prefix tree of spec.md §4.1: an
// ordered map from IP prefix to value supporting insertion, removal,
// longest-prefix lookup, ancestor iteration, and subtree iteration.
// It backs the RIB's per-address-family route tables (rib package).
//
// The teacher repo's own radix/radix.go built an edge-list trie keyed
// on net.IPNet equality, which works but re-walks the tree from the
// root on every Insert and never reuses freed storage. gaissmai/bart
// (the pack's production-grade radix library) stores nodes in flat
// slices rather than pointer graphs; this package borrows that arena
// idea but implements the exact Found/Next/NewLeaf/NewChild/NewBranch
// decision table spec.md §4.1 specifies, which neither pack library
// implements verbatim.
package ptree

import (
	"fmt"
	"net/netip"
)

// Prefix is a normalized IPv4 or IPv6 network: an address together
// with a prefix length, with every bit beyond the prefix length
// forced to zero.
type Prefix struct {
	addr netip.Addr
	bits int
}

// NewPrefix normalizes addr/bits into a Prefix with host bits masked
// off.
func NewPrefix(addr netip.Addr, bits int) Prefix {
	p := netip.PrefixFrom(addr, bits)
	m := p.Masked()
	return Prefix{addr: m.Addr(), bits: m.Bits()}
}

// ParsePrefix parses a CIDR string such as "10.0.0.0/8" or "2001:db8::/32".
func ParsePrefix(s string) (Prefix, error) {
	p, err := netip.ParsePrefix(s)
	if err != nil {
		return Prefix{}, err
	}
	return NewPrefix(p.Addr(), p.Bits()), nil
}

// MustParsePrefix is ParsePrefix but panics on error; useful in tests
// and constant tables.
func MustParsePrefix(s string) Prefix {
	p, err := ParsePrefix(s)
	if err != nil {
		panic(err)
	}
	return p
}

// Zero4 is the IPv4 default prefix 0.0.0.0/0.
var Zero4 = NewPrefix(netip.IPv4Unspecified(), 0)

// Zero6 is the IPv6 default prefix ::/0.
var Zero6 = NewPrefix(netip.IPv6Unspecified(), 0)

// Addr returns the prefix's masked base address.
func (p Prefix) Addr() netip.Addr { return p.addr }

// Bits returns the prefix length.
func (p Prefix) Bits() int { return p.bits }

// Is4 reports whether this is an IPv4 prefix.
func (p Prefix) Is4() bool { return p.addr.Is4() }

// IsValid reports whether the prefix carries a real address (the
// tree's internal zero-value sentinel for branch nodes does not).
func (p Prefix) IsValid() bool { return p.addr.IsValid() || p.bits == 0 }

func (p Prefix) String() string {
	if !p.addr.IsValid() {
		return fmt.Sprintf("<zero>/%d", p.bits)
	}
	return netip.PrefixFrom(p.addr, p.bits).String()
}

// Equal reports whether p and o denote the same network. Two /0
// prefixes are always equal regardless of address family or whether
// either carries the tree's internal zero-value sentinel address,
// since a /0 prefix has no meaningful address bits.
func (p Prefix) Equal(o Prefix) bool {
	if p.bits == 0 && o.bits == 0 {
		return true
	}
	return p.bits == o.bits && p.addr == o.addr
}

// Bit returns the value (0 or 1) of the bit at position pos, counted
// from the most significant bit of the address (position 0).
// Positions at or beyond the address width return 0.
func (p Prefix) Bit(pos int) int {
	if pos < 0 {
		return 0
	}
	b := p.addr.AsSlice()
	byteIdx := pos / 8
	if byteIdx >= len(b) {
		return 0
	}
	shift := 7 - uint(pos%8)
	return int((b[byteIdx] >> shift) & 1)
}

// Contains reports whether p's network fully contains o's: p is no
// more specific than o, and they agree on p's leading bits.bits.
func (p Prefix) Contains(o Prefix) bool {
	if p.bits == 0 {
		return true
	}
	if p.bits > o.bits {
		return false
	}
	return commonBits(p.addr, o.addr) >= p.bits
}

// CommonPrefix returns the longest prefix both p and o agree on,
// truncated to at most the shorter of the two prefix lengths.
func (p Prefix) CommonPrefix(o Prefix) Prefix {
	if p.bits == 0 || o.bits == 0 {
		return Prefix{addr: addrFamilyZero(p, o), bits: 0}
	}
	n := commonBits(p.addr, o.addr)
	if n > p.bits {
		n = p.bits
	}
	if n > o.bits {
		n = o.bits
	}
	return NewPrefix(p.addr, n)
}

func addrFamilyZero(p, o Prefix) netip.Addr {
	if p.addr.IsValid() {
		if p.addr.Is4() {
			return netip.IPv4Unspecified()
		}
		return netip.IPv6Unspecified()
	}
	if o.addr.IsValid() && o.addr.Is4() {
		return netip.IPv4Unspecified()
	}
	return netip.IPv6Unspecified()
}

// commonBits returns the number of leading bits a and b agree on.
// Addresses of differing families are defined to share zero bits.
func commonBits(a, b netip.Addr) int {
	ab, bb := a.AsSlice(), b.AsSlice()
	if len(ab) != len(bb) {
		return 0
	}
	n := 0
	for i := range ab {
		if ab[i] == bb[i] {
			n += 8
			continue
		}
		x := ab[i] ^ bb[i]
		for shift := 7; shift >= 0; shift-- {
			if x&(1<<uint(shift)) != 0 {
				return n
			}
			n++
		}
		return n
	}
	return n
}
