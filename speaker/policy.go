package speaker

import "github.com/zeburouter/zeburouter/bgp"

// CommunityDenyPolicy denies any update carrying one of the given
// communities, e.g. a locally significant NO_EXPORT-like tag used to
// keep a route from crossing this peering.
type CommunityDenyPolicy struct {
	Deny []bgp.Community
}

func (c CommunityDenyPolicy) Apply(u *bgp.Update) bool {
	if u.Attributes == nil {
		return true
	}
	for _, have := range u.Attributes.Communities {
		for _, deny := range c.Deny {
			if have == deny {
				return false
			}
		}
	}
	return true
}

// ChainPolicy applies each Policer in order, denying as soon as one
// of them does.
type ChainPolicy []Policer

func (chain ChainPolicy) Apply(u *bgp.Update) bool {
	for _, p := range chain {
		if !p.Apply(u) {
			return false
		}
	}
	return true
}
