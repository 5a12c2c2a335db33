package neighbor

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/foctal/netprobe/internal/model"
)

// maxSubnetHosts bounds the neighbor scan's implied host-scan target list
// (§5 "Bounded memory" applies here too): anything looser than a /22
// would make a single neighbor scan enumerate tens of thousands of
// addresses.
const maxSubnetHosts = 1024

// gatherDescriptor assembles an model.InterfaceDescriptor for ifaceName by
// fanning out three independent, fail-together OS lookups — addresses,
// default gateways, and DNS servers — concurrently via errgroup.WithContext.
func gatherDescriptor(ctx context.Context, ifaceName string) (model.InterfaceDescriptor, error) {
	var v4Addrs, v6Addrs, gwV4, gwV6, dns []net.IP

	g, _ := errgroup.WithContext(ctx)

	g.Go(func() error {
		v4, v6, err := interfaceAddrs(ifaceName)
		if err != nil {
			return fmt.Errorf("interface addrs: %w", err)
		}
		v4Addrs, v6Addrs = v4, v6
		return nil
	})
	g.Go(func() error {
		v4, v6, err := defaultGateways(ifaceName)
		if err != nil {
			return fmt.Errorf("default gateways: %w", err)
		}
		gwV4, gwV6 = v4, v6
		return nil
	})
	g.Go(func() error {
		servers, err := systemDNSServers()
		if err != nil {
			return fmt.Errorf("dns servers: %w", err)
		}
		dns = servers
		return nil
	})

	if err := g.Wait(); err != nil {
		return model.InterfaceDescriptor{}, err
	}

	return model.InterfaceDescriptor{
		Name:       ifaceName,
		IPv4Addrs:  v4Addrs,
		IPv6Addrs:  v6Addrs,
		GatewayV4:  gwV4,
		GatewayV6:  gwV6,
		DNSServers: dns,
	}, nil
}

// interfaceAddrs splits ifaceName's configured addresses by family.
func interfaceAddrs(ifaceName string) (v4, v6 []net.IP, err error) {
	iface, err := net.InterfaceByName(ifaceName)
	if err != nil {
		return nil, nil, err
	}
	addrs, err := iface.Addrs()
	if err != nil {
		return nil, nil, err
	}
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		if ip4 := ipnet.IP.To4(); ip4 != nil {
			v4 = append(v4, ip4)
		} else {
			v6 = append(v6, ipnet.IP)
		}
	}
	return v4, v6, nil
}

// systemDNSServers parses the nameserver lines of /etc/resolv.conf. No
// example repo resolves DNS servers (every probe in this module takes an
// already-resolved IP), so this is this module's own stdlib-only reading
// of the conventional resolver config file.
func systemDNSServers() ([]net.IP, error) {
	f, err := os.Open("/etc/resolv.conf")
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var servers []net.IP
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 || fields[0] != "nameserver" {
			continue
		}
		if ip := net.ParseIP(fields[1]); ip != nil {
			servers = append(servers, ip)
		}
	}
	return servers, scanner.Err()
}

// primaryIPv4Net returns ifaceName's first configured IPv4 address and its
// subnet mask, the basis for the neighbor scan's implied host-scan target
// range.
func primaryIPv4Net(ifaceName string) (net.IP, net.IPMask, error) {
	iface, err := net.InterfaceByName(ifaceName)
	if err != nil {
		return nil, nil, err
	}
	addrs, err := iface.Addrs()
	if err != nil {
		return nil, nil, err
	}
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		if ip4 := ipnet.IP.To4(); ip4 != nil {
			return ip4, ipnet.Mask, nil
		}
	}
	return nil, nil, fmt.Errorf("%s: no IPv4 address configured", ifaceName)
}

// localSubnetTargets enumerates every host address (excluding network and
// broadcast) in addr's IPv4 subnet, for use as a host-scan target list.
func localSubnetTargets(addr net.IP, mask net.IPMask) ([]net.IP, error) {
	ip4 := addr.To4()
	if ip4 == nil {
		return nil, fmt.Errorf("localSubnetTargets: %s is not an IPv4 address", addr)
	}
	ones, bits := mask.Size()
	if bits != 32 {
		return nil, fmt.Errorf("localSubnetTargets: not an IPv4 mask")
	}
	hostBits := bits - ones
	if hostBits > 10 {
		return nil, fmt.Errorf("%w: /%d subnet exceeds the %d-host neighbor scan limit", model.ErrConfig, ones, maxSubnetHosts)
	}

	network := ip4.Mask(mask)
	count := 1 << uint(hostBits)

	base := uint32(network[0])<<24 | uint32(network[1])<<16 | uint32(network[2])<<8 | uint32(network[3])

	targets := make([]net.IP, 0, count)
	for i := 1; i < count-1; i++ {
		v := base + uint32(i)
		targets = append(targets, net.IPv4(byte(v>>24), byte(v>>16), byte(v>>8), byte(v)).To4())
	}
	return targets, nil
}
