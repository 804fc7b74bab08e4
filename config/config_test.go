package config

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zeburouter/zeburouter/ptree"
)

func mustPrefix(t *testing.T, s string) ptree.Prefix {
	t.Helper()
	p, err := ptree.ParsePrefix(s)
	require.NoError(t, err)
	return p
}

const sampleYAML = `
router-id: 192.0.2.1
asn: 65001
peers:
  - address: 192.0.2.2
    remote-as: 65002
interfaces:
  - name: eth0
    isis:
      level: level-2
static-routes:
  - prefix: 10.0.0.0/24
    nexthops:
      - address: 192.0.2.2
`

func TestLoadAppliesDefaultsAndValidates(t *testing.T) {
	c, err := Load([]byte(sampleYAML))
	require.NoError(t, err)
	require.Equal(t, uint32(65001), c.ASN)
	require.Len(t, c.Peers, 1)
	require.Equal(t, uint16(180), c.Peers[0].HoldTime, "hold-time default should apply")
	require.Equal(t, uint16(10), c.Interfaces[0].ISIS.HelloInterval)
	require.Len(t, c.StaticRoutes, 1)
	require.Equal(t, uint8(1), c.StaticRoutes[0].Nexthops[0].Weight, "weight default should apply")
}

func TestLoadRejectsMissingRequiredFields(t *testing.T) {
	_, err := Load([]byte("asn: 65001\n"))
	require.Error(t, err)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	_, err := Load([]byte("router-id: 192.0.2.1\nasn: 1\nbogus-key: true\n"))
	require.Error(t, err)
}

func TestStagingMapBuildsFromStaticRoutes(t *testing.T) {
	c, err := Load([]byte(sampleYAML))
	require.NoError(t, err)

	staging, err := c.StagingMap()
	require.NoError(t, err)

	pending, ok := staging.Pending(mustPrefix(t, "10.0.0.0/24"))
	require.True(t, ok)
	require.Len(t, pending.Nexthops, 1)
	require.Equal(t, uint8(1), pending.Nexthops[0].Weight)
}
