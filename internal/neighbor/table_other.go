//go:build !linux

package neighbor

import (
	"errors"
	"net"
)

// readNeighborTable and defaultGateways have no portable non-Linux
// implementation: netlink is Linux-only, so non-Linux builds report an
// unsupported error instead.

func readNeighborTable(ifaceName string) (map[string]net.HardwareAddr, error) {
	return nil, errors.New("neighbor table reads are unimplemented on this platform")
}

func defaultGateways(ifaceName string) (v4, v6 []net.IP, err error) {
	return nil, nil, errors.New("default gateway reads are unimplemented on this platform")
}
