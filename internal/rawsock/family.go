package rawsock

import "net"

// Family is the IP family a socket or echo packet belongs to (§4.2).
type Family int

const (
	FamilyV4 Family = iota
	FamilyV6
)

// FamilyOf classifies an IP by its 4-byte/16-byte form.
func FamilyOf(ip net.IP) Family {
	if ip.To4() != nil {
		return FamilyV4
	}
	return FamilyV6
}

func (f Family) String() string {
	if f == FamilyV4 {
		return "v4"
	}
	return "v6"
}
