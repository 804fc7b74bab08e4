// Package config is the YAML configuration boundary spec.md names but
// explicitly keeps out of scope for the core: "it does not specify a
// management plane persistence format beyond a line-oriented command
// dump." This package is that thin boundary — load, default, and
// validate a YAML file into plain Go structs — not the YANG datastore
// spec.md's Non-goals exclude.
package config

import (
	"fmt"
	"net/netip"

	"github.com/creasty/defaults"
	validatorpkg "github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v2"

	"github.com/zeburouter/zeburouter/ptree"
	"github.com/zeburouter/zeburouter/rib"
)

// StaticNexthop is one candidate nexthop of a configured static route.
type StaticNexthop struct {
	Address  string `yaml:"address" validate:"required,ip"`
	Metric   uint32 `yaml:"metric" default:"0"`
	Distance uint8  `yaml:"distance" default:"0"`
	Weight   uint8  `yaml:"weight" default:"1"`
}

// StaticRoute is one configured static route, mirroring spec.md §4.7's
// staged route shape (nexthop set with per-nexthop metric/distance/
// weight, plus a top-level metric/distance).
type StaticRoute struct {
	Prefix   string          `yaml:"prefix" validate:"required,cidr"`
	Nexthops []StaticNexthop `yaml:"nexthops" validate:"required,min=1,dive"`
	Metric   uint32          `yaml:"metric" default:"0"`
	Distance uint8           `yaml:"distance" default:"1"`
}

// Peer is one configured BGP neighbor.
type Peer struct {
	Address  string `yaml:"address" validate:"required,ip"`
	RemoteAS uint32 `yaml:"remote-as" validate:"required"`
	LocalAS  uint32 `yaml:"local-as"`
	HoldTime uint16 `yaml:"hold-time" default:"180"`
	Passive  bool   `yaml:"passive" default:"false"`
}

// ISISInterface configures IS-IS on one interface.
type ISISInterface struct {
	Level         string `yaml:"level" default:"level-2" validate:"oneof=level-1 level-2 level-1-2"`
	HelloInterval uint16 `yaml:"hello-interval" default:"10"`
	Metric        uint32 `yaml:"metric" default:"10"`
	Priority      byte   `yaml:"priority" default:"64"`
}

// OSPFInterface configures OSPFv2 on one interface.
type OSPFInterface struct {
	Area          string `yaml:"area" default:"0.0.0.0" validate:"ip"`
	HelloInterval uint16 `yaml:"hello-interval" default:"10"`
	DeadInterval  uint16 `yaml:"dead-interval" default:"40"`
	Priority      uint8  `yaml:"priority" default:"1"`
}

// Interface is the bootstrap configuration for one network interface:
// the protocols to enable on it and their per-interface parameters.
type Interface struct {
	Name string         `yaml:"name" validate:"required"`
	ISIS *ISISInterface `yaml:"isis"`
	OSPF *OSPFInterface `yaml:"ospf"`
}

// Config is the daemon's full configuration document.
type Config struct {
	RouterID     string        `yaml:"router-id" validate:"required,ip"`
	ASN          uint32        `yaml:"asn" validate:"required"`
	Peers        []Peer        `yaml:"peers" validate:"dive"`
	Interfaces   []Interface   `yaml:"interfaces" validate:"dive"`
	StaticRoutes []StaticRoute `yaml:"static-routes" validate:"dive"`
}

var validate = validatorpkg.New()

// Load parses, defaults, and validates a YAML configuration document.
// Unknown keys are rejected (UnmarshalStrict) so a typo in a config
// file fails loudly at startup rather than silently doing nothing.
func Load(blob []byte) (*Config, error) {
	var c Config
	if err := yaml.UnmarshalStrict(blob, &c); err != nil {
		return nil, fmt.Errorf("config: parsing yaml: %w", err)
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config: applying defaults: %w", err)
	}
	if err := validate.Struct(&c); err != nil {
		return nil, fmt.Errorf("config: validation: %w", err)
	}
	return &c, nil
}

// StagingMap converts the configured static routes into a
// rib.StagingMap ready for Commit, per spec.md §4.7's "staging map
// ... is mutated by the configuration plane during candidate editing
// and flushed on commit."
func (c *Config) StagingMap() (*rib.StagingMap, error) {
	staging := rib.NewStagingMap()
	for _, sr := range c.StaticRoutes {
		prefix, err := ptree.ParsePrefix(sr.Prefix)
		if err != nil {
			return nil, fmt.Errorf("config: static route prefix %q: %w", sr.Prefix, err)
		}
		staged := &rib.StagedRoute{Metric: sr.Metric, Distance: sr.Distance}
		for _, nh := range sr.Nexthops {
			addr, err := netip.ParseAddr(nh.Address)
			if err != nil {
				return nil, fmt.Errorf("config: static nexthop %q: %w", nh.Address, err)
			}
			weight := nh.Weight
			if weight == 0 {
				weight = 1
			}
			staged.Nexthops = append(staged.Nexthops, rib.StagedNexthop{
				Addr:     addr,
				Metric:   nh.Metric,
				Distance: nh.Distance,
				Weight:   weight,
			})
		}
		staging.Stage(prefix, staged)
	}
	return staging, nil
}
