package speaker

import (
	"encoding/binary"
	"fmt"
	"net"

	"github.com/zeburouter/zeburouter/bgp"
)

// FindBGPIdentifier tries to find the best possible BGP Identifier
// from the interfaces configured on the host, for the common case
// where a router-id is not explicitly configured.
func FindBGPIdentifier() (bgp.Identifier, error) {
	ifs, err := net.Interfaces()
	if err != nil {
		return 0, err
	}
	// Note: this selection process is arbitrary; an explicitly
	// configured router-id always wins over this probe.
	for _, v := range ifs {
		addrs, err := v.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ip, _, err := net.ParseCIDR(addr.String())
			if err != nil {
				continue
			}
			if ip.To4() == nil {
				continue
			}
			if ip.IsGlobalUnicast() {
				return ipToIdentifier(ip), nil
			}
		}
	}
	return 0, fmt.Errorf("speaker: no valid BGP identifier found on any interface")
}

func ipToIdentifier(ip net.IP) bgp.Identifier {
	ip4 := ip.To4()
	return bgp.Identifier(binary.BigEndian.Uint32(ip4))
}

// IdentifierToIP converts a BGP Identifier back to its dotted-quad
// form, e.g. for display in show output.
func IdentifierToIP(id bgp.Identifier) net.IP {
	ip := make(net.IP, 4)
	binary.BigEndian.PutUint32(ip, uint32(id))
	return ip
}
