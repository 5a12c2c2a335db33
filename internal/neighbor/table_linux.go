package neighbor

import (
	"fmt"
	"net"

	"github.com/vishvananda/netlink"
)

// readNeighborTable reads the kernel's ARP (IPv4) and NDP (IPv6) neighbor
// cache for one interface via netlink.LinkByName followed by a
// per-family netlink.NeighList query.
func readNeighborTable(ifaceName string) (map[string]net.HardwareAddr, error) {
	link, err := netlink.LinkByName(ifaceName)
	if err != nil {
		return nil, fmt.Errorf("link by name %q: %w", ifaceName, err)
	}

	out := make(map[string]net.HardwareAddr)
	for _, family := range []int{netlink.FAMILY_V4, netlink.FAMILY_V6} {
		neighs, err := netlink.NeighList(link.Attrs().Index, family)
		if err != nil {
			continue
		}
		for _, n := range neighs {
			if n.IP == nil || len(n.HardwareAddr) == 0 {
				continue
			}
			out[n.IP.String()] = n.HardwareAddr
		}
	}
	return out, nil
}

// defaultGateways reads the kernel's default (Dst==nil) IPv4/IPv6 routes
// for ifaceName via netlink.RouteList, filtering to the default-route
// entries the same way a RouteByProtocol lookup would.
func defaultGateways(ifaceName string) (v4, v6 []net.IP, err error) {
	link, err := netlink.LinkByName(ifaceName)
	if err != nil {
		return nil, nil, fmt.Errorf("link by name %q: %w", ifaceName, err)
	}

	for _, family := range []int{netlink.FAMILY_V4, netlink.FAMILY_V6} {
		routes, rerr := netlink.RouteList(link, family)
		if rerr != nil {
			continue
		}
		for _, r := range routes {
			if r.Dst != nil || r.Gw == nil {
				continue
			}
			if family == netlink.FAMILY_V4 {
				v4 = append(v4, r.Gw)
			} else {
				v6 = append(v6, r.Gw)
			}
		}
	}
	return v4, v6, nil
}
