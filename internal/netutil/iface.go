// Package netutil resolves the local source address/interface a probe
// should bind from when the caller didn't supply one explicitly.
package netutil

import (
	"fmt"
	"net"
)

// probeAddr4/probeAddr6 are never actually reached — net.Dial on a UDP
// socket only triggers a routing-table lookup, no packet leaves the host.
const (
	probeAddr4 = "8.8.8.8:53"
	probeAddr6 = "[2001:4860:4860::8888]:53"
)

// DefaultSourceIPv4 returns the IPv4 address the OS would route a packet
// to the public Internet from, resolved per §4.6/§4.7's "source IP
// selection via default interface" behavior.
func DefaultSourceIPv4() (net.IP, error) {
	return dialLocalIP("udp4", probeAddr4)
}

// DefaultSourceIPv6 is DefaultSourceIPv4's IPv6 counterpart.
func DefaultSourceIPv6() (net.IP, error) {
	return dialLocalIP("udp6", probeAddr6)
}

func dialLocalIP(network, addr string) (net.IP, error) {
	conn, err := net.Dial(network, addr)
	if err != nil {
		return nil, fmt.Errorf("resolve default source for %s: %w", network, err)
	}
	defer conn.Close()

	udpAddr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return nil, fmt.Errorf("resolve default source for %s: unexpected local addr type", network)
	}
	return udpAddr.IP, nil
}

// ResolveInterface looks up iface by name and returns its preferred
// (IPv4-first) non-loopback address.
func ResolveInterface(name string) (*net.Interface, net.IP, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return nil, nil, fmt.Errorf("interface %s not found: %w", name, err)
	}

	addrs, err := iface.Addrs()
	if err != nil {
		return nil, nil, fmt.Errorf("list addrs for interface %s: %w", name, err)
	}

	var v6 net.IP
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok || ipNet.IP == nil || ipNet.IP.IsLoopback() {
			continue
		}
		if v4 := ipNet.IP.To4(); v4 != nil {
			return iface, v4, nil
		}
		if v6 == nil {
			v6 = ipNet.IP
		}
	}
	if v6 != nil {
		return iface, v6, nil
	}
	return nil, nil, fmt.Errorf("interface %s: no non-loopback address found", name)
}

// DefaultInterface returns the interface the OS would route a packet to
// the public Internet through.
func DefaultInterface() (*net.Interface, error) {
	conn, err := net.Dial("udp", probeAddr4)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	for _, iface := range ifaces {
		addrs, _ := iface.Addrs()
		for _, a := range addrs {
			ipNet, _ := a.(*net.IPNet)
			if ipNet != nil && ipNet.IP.Equal(localAddr.IP) {
				return &iface, nil
			}
		}
	}
	return nil, fmt.Errorf("default interface not found")
}
