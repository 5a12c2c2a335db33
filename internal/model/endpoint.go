package model

import "net"

// Endpoint is immutable once constructed: NewEndpoint copies the IP so later
// mutation of the caller's net.IP can't leak into a probe already underway.
type Endpoint struct {
	ip       net.IP
	hostname string
}

func NewEndpoint(ip net.IP, hostname string) Endpoint {
	cp := make(net.IP, len(ip))
	copy(cp, ip)
	return Endpoint{ip: cp, hostname: hostname}
}

func (e Endpoint) IP() net.IP { return e.ip }

func (e Endpoint) Hostname() string { return e.hostname }

func (e Endpoint) IsV6() bool { return e.ip.To4() == nil }

func (e Endpoint) String() string {
	if e.hostname != "" {
		return e.hostname + " (" + e.ip.String() + ")"
	}
	return e.ip.String()
}
