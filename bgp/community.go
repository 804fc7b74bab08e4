package bgp

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/zeburouter/zeburouter/stream"
)

// Community is a 4-octet COMMUNITIES attribute value (RFC 1997): the
// high 2 octets are conventionally an ASN, the low 2 octets a locally
// significant value, but the attribute is opaque 32 bits on the wire.
type Community uint32

// Well-known communities (RFC 1997 §4, RFC 7999, RFC 8326).
const (
	CommunityNoExport        Community = 0xFFFFFF01
	CommunityNoAdvertise     Community = 0xFFFFFF02
	CommunityNoExportSubconfed Community = 0xFFFFFF03
	CommunityNoPeer          Community = 0xFFFFFF04
	CommunityBlackhole       Community = 0xFFFF029A
	CommunityGracefulShutdown Community = 0xFFFF0000
)

var wellKnownName = map[Community]string{
	CommunityNoExport:         "no-export",
	CommunityNoAdvertise:      "no-advertise",
	CommunityNoExportSubconfed: "no-export-subconfed",
	CommunityNoPeer:           "no-peer",
	CommunityBlackhole:        "blackhole",
	CommunityGracefulShutdown: "graceful-shutdown",
}

var wellKnownValue = func() map[string]Community {
	m := make(map[string]Community, len(wellKnownName))
	for v, n := range wellKnownName {
		m[n] = v
	}
	return m
}()

func (c Community) String() string {
	if n, ok := wellKnownName[c]; ok {
		return n
	}
	return fmt.Sprintf("%d:%d", uint32(c)>>16, uint32(c)&0xffff)
}

// ReadCommunities decodes a COMMUNITIES attribute value (a flat
// sequence of 4-octet values).
func ReadCommunities(value []byte) ([]Community, error) {
	if len(value)%4 != 0 {
		return nil, &InvalidLengthError{Container: "COMMUNITIES", Declared: len(value), Have: len(value) - len(value)%4}
	}
	r := stream.NewReader(value)
	var out []Community
	for r.Len() > 0 {
		v, err := r.Uint32()
		if err != nil {
			return nil, err
		}
		out = append(out, Community(v))
	}
	return out, nil
}

// WriteCommunities serializes a COMMUNITIES attribute value. Callers
// are expected to have already canonicalized (sorted, deduplicated)
// the list via Canonicalize, matching the ingest-time normalization
// spec.md §4.2 requires ("de-duplicated on ingest").
func WriteCommunities(cs []Community) []byte {
	w := stream.NewWriter()
	for _, c := range cs {
		w.WriteUint32(uint32(c))
	}
	return w.Bytes()
}

// Canonicalize sorts and deduplicates a community list. Applying it
// twice yields the same result as applying it once (spec.md §8's
// community canonicalization idempotency property).
func Canonicalize(cs []Community) []Community {
	if len(cs) == 0 {
		return cs
	}
	out := append([]Community(nil), cs...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	dedup := out[:1]
	for _, c := range out[1:] {
		if c != dedup[len(dedup)-1] {
			dedup = append(dedup, c)
		}
	}
	return dedup
}

// ParseCommunityText parses BGP community textual form (spec.md
// §4.2): whitespace-separated tokens, each either a well-known name,
// an "ASN:NN" pair, or a bare 32-bit integer.
func ParseCommunityText(s string) ([]Community, error) {
	fields := strings.Fields(s)
	out := make([]Community, 0, len(fields))
	for _, f := range fields {
		c, err := parseCommunityToken(f)
		if err != nil {
			return nil, fmt.Errorf("community token %q: %w", f, err)
		}
		out = append(out, c)
	}
	return out, nil
}

func parseCommunityToken(tok string) (Community, error) {
	if v, ok := wellKnownValue[tok]; ok {
		return v, nil
	}
	if hi, lo, ok := strings.Cut(tok, ":"); ok {
		hiN, err := strconv.ParseUint(hi, 10, 16)
		if err != nil {
			return 0, err
		}
		loN, err := strconv.ParseUint(lo, 10, 16)
		if err != nil {
			return 0, err
		}
		return Community(hiN<<16 | loN), nil
	}
	v, err := strconv.ParseUint(tok, 10, 32)
	if err != nil {
		return 0, err
	}
	return Community(v), nil
}

// Text renders a canonicalized community list in the textual form
// ParseCommunityText accepts: well-known values by name, others as
// "hi:lo", sorted and deduplicated, space-separated.
func Text(cs []Community) string {
	canon := Canonicalize(cs)
	parts := make([]string, len(canon))
	for i, c := range canon {
		parts[i] = c.String()
	}
	return strings.Join(parts, " ")
}

// ExtendedCommunity is an 8-octet EXTENDED_COMMUNITIES value (RFC
// 4360): a 1-octet type (plus optional sub-type for type 0x03/0x04
// generic transitive/non-transitive use), and 6 octets of
// type-specific value.
type ExtendedCommunity [8]byte

func ReadExtendedCommunities(value []byte) ([]ExtendedCommunity, error) {
	if len(value)%8 != 0 {
		return nil, &InvalidLengthError{Container: "EXTENDED_COMMUNITIES", Declared: len(value), Have: len(value)}
	}
	out := make([]ExtendedCommunity, 0, len(value)/8)
	for i := 0; i < len(value); i += 8 {
		var ec ExtendedCommunity
		copy(ec[:], value[i:i+8])
		out = append(out, ec)
	}
	return out, nil
}

func WriteExtendedCommunities(ecs []ExtendedCommunity) []byte {
	out := make([]byte, 0, len(ecs)*8)
	for _, ec := range ecs {
		out = append(out, ec[:]...)
	}
	return out
}

// LargeCommunity is a 12-octet LARGE_COMMUNITIES value (RFC 8092):
// global administrator, local data part 1, local data part 2.
type LargeCommunity struct {
	GlobalAdmin uint32
	LocalData1  uint32
	LocalData2  uint32
}

func (l LargeCommunity) String() string {
	return fmt.Sprintf("%d:%d:%d", l.GlobalAdmin, l.LocalData1, l.LocalData2)
}

func ReadLargeCommunities(value []byte) ([]LargeCommunity, error) {
	if len(value)%12 != 0 {
		return nil, &InvalidLengthError{Container: "LARGE_COMMUNITIES", Declared: len(value), Have: len(value)}
	}
	r := stream.NewReader(value)
	var out []LargeCommunity
	for r.Len() > 0 {
		ga, err := r.Uint32()
		if err != nil {
			return nil, err
		}
		l1, err := r.Uint32()
		if err != nil {
			return nil, err
		}
		l2, err := r.Uint32()
		if err != nil {
			return nil, err
		}
		out = append(out, LargeCommunity{ga, l1, l2})
	}
	return out, nil
}

func WriteLargeCommunities(lcs []LargeCommunity) []byte {
	w := stream.NewWriter()
	for _, l := range lcs {
		w.WriteUint32(l.GlobalAdmin)
		w.WriteUint32(l.LocalData1)
		w.WriteUint32(l.LocalData2)
	}
	return w.Bytes()
}
