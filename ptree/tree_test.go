package ptree

import (
	"net/netip"
	"reflect"
	"testing"
)

func p(s string) Prefix { return MustParsePrefix(s) }

// S1. IPv4 prefix insert/get/remove (spec.md §8).
func TestInsertGetRemove(t *testing.T) {
	tr := New[int]()
	tr.Insert(p("192.168.1.0/24"), 1)

	if v, ok := tr.Get(p("192.168.1.0/24")); !ok || v != 1 {
		t.Fatalf("Get(192.168.1.0/24) = %v, %v; want 1, true", v, ok)
	}
	if _, ok := tr.Get(p("192.168.2.0/24")); ok {
		t.Fatalf("Get(192.168.2.0/24) found a value, want none")
	}
	v, ok := tr.Remove(p("192.168.1.0/24"))
	if !ok || v != 1 {
		t.Fatalf("Remove(192.168.1.0/24) = %v, %v; want 1, true", v, ok)
	}
	if _, ok := tr.Get(p("192.168.1.0/24")); ok {
		t.Fatalf("Get after Remove found a value, want none")
	}
	if tr.Count() != 0 {
		t.Fatalf("Count() = %d, want 0", tr.Count())
	}
}

// Property 3: insert(k,v); remove(k) restores the tree's (prefix,
// value) set and iteration order.
func TestInsertRemoveRoundTrip(t *testing.T) {
	tr := New[int]()
	seed := []string{"10.0.0.0/8", "10.1.0.0/16", "10.2.0.0/16", "172.16.0.0/12", "0.0.0.0/0"}
	for i, s := range seed {
		tr.Insert(p(s), i)
	}
	before := tr.All()

	tr.Insert(p("10.1.2.0/24"), 99)
	tr.Remove(p("10.1.2.0/24"))

	after := tr.All()
	if !reflect.DeepEqual(before, after) {
		t.Fatalf("round trip changed tree:\nbefore=%v\nafter=%v", before, after)
	}
	if tr.Count() != len(seed) {
		t.Fatalf("Count() = %d, want %d", tr.Count(), len(seed))
	}
}

// Property 4: iteration order is lexicographic on address bits, then
// ascending prefix length.
func TestIterationOrder(t *testing.T) {
	tr := New[string]()
	in := []string{
		"10.128.0.0/9",
		"10.0.0.0/8",
		"10.0.0.0/16",
		"192.0.2.0/24",
		"0.0.0.0/0",
	}
	for _, s := range in {
		tr.Insert(p(s), s)
	}
	want := []string{
		"0.0.0.0/0",
		"10.0.0.0/8",
		"10.0.0.0/16",
		"10.128.0.0/9",
		"192.0.2.0/24",
	}
	var got []string
	for _, pair := range tr.All() {
		got = append(got, pair.Value)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("iteration order = %v, want %v", got, want)
	}
}

func TestLookupLongestPrefixMatch(t *testing.T) {
	tr := New[string]()
	tr.Insert(p("10.0.0.0/8"), "a")
	tr.Insert(p("10.1.0.0/16"), "b")
	tr.Insert(p("10.1.2.0/24"), "c")

	addr := netip.MustParseAddr("10.1.2.5")
	host := NewPrefix(addr, 32)
	pfx, v, ok := tr.Lookup(host)
	if !ok || v != "c" || pfx.String() != "10.1.2.0/24" {
		t.Fatalf("Lookup = %v, %v, %v; want 10.1.2.0/24, c, true", pfx, v, ok)
	}

	pfx, v, ok = tr.Lookup(p("10.1.0.0/24"))
	if !ok || v != "b" {
		t.Fatalf("Lookup(10.1.0.0/24) = %v, %v; want b, true (via 10.1.0.0/16)", pfx, ok)
	}
}

func TestSubtreeAndAscend(t *testing.T) {
	tr := New[string]()
	tr.Insert(p("10.0.0.0/8"), "root8")
	tr.Insert(p("10.1.0.0/16"), "mid16")
	tr.Insert(p("10.1.2.0/24"), "leaf24")
	tr.Insert(p("10.2.0.0/16"), "sibling16")

	sub := tr.Subtree(p("10.1.0.0/16"))
	if len(sub) != 2 {
		t.Fatalf("Subtree(10.1.0.0/16) = %v, want 2 entries", sub)
	}

	asc := tr.Ascend(p("10.1.2.128/25"))
	var vals []string
	for _, pair := range asc {
		vals = append(vals, pair.Value)
	}
	want := []string{"root8", "mid16", "leaf24"}
	if !reflect.DeepEqual(vals, want) {
		t.Fatalf("Ascend = %v, want %v", vals, want)
	}
}

func TestEntry(t *testing.T) {
	tr := New[int]()
	got := tr.Entry(p("10.0.0.0/24")).OrInsert(7)
	if got != 7 {
		t.Fatalf("OrInsert = %d, want 7", got)
	}
	got2 := tr.Entry(p("10.0.0.0/24")).OrInsert(9)
	if got2 != 7 {
		t.Fatalf("OrInsert on occupied entry = %d, want 7 (existing value)", got2)
	}
}

func TestFreeListReuse(t *testing.T) {
	tr := New[int]()
	tr.Insert(p("10.0.0.0/8"), 1)
	tr.Insert(p("10.1.0.0/16"), 2)
	before := len(tr.nodes)
	tr.Remove(p("10.1.0.0/16"))
	tr.Insert(p("10.2.0.0/16"), 3)
	after := len(tr.nodes)
	if after != before {
		t.Fatalf("expected freed node to be reused: nodes before=%d after=%d", before, after)
	}
}
