package rawsock

import (
	"fmt"
	"net"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

// Config configures a Conn (§4.2): TTL applies to v4 sockets, HopLimit to
// v6. SendTimeout, if set, bounds SendTo via the underlying deadline.
type Config struct {
	Family      Family
	TTL         int // IPv4 only
	HopLimit    int // IPv6 only
	SendTimeout time.Duration
}

// network returns the golang.org/x/net/icmp endpoint network string. The
// "ip4:icmp"/"ip6:ipv6-icmp" raw endpoints require CAP_NET_RAW/admin on most
// platforms; callers needing unprivileged echo (not used by this module's
// host-scan/traceroute, which rely on raw TTL control) would instead use
// "udp4"/"udp6".
func (f Family) network() string {
	if f == FamilyV4 {
		return "ip4:icmp"
	}
	return "ip6:ipv6-icmp"
}

func (f Family) bindAddr() string {
	if f == FamilyV4 {
		return "0.0.0.0"
	}
	return "::"
}

// Conn is an async-friendly wrapper over a datagram socket in family IPv4 or
// IPv6, ICMP kind (§4.2). Socket creation may fail for lack of privilege;
// that failure is surfaced to the caller as an *model.ErrSetup-wrapped error
// by higher layers.
type Conn struct {
	family Family
	raw    *icmp.PacketConn
	pc4    *ipv4.PacketConn
	pc6    *ipv6.PacketConn
	cfg    Config
}

// New opens a raw ICMP socket for cfg.Family and applies TTL/hop-limit
// (minimum 1, per §4.5 step 3).
func New(cfg Config) (*Conn, error) {
	raw, err := icmp.ListenPacket(cfg.Family.network(), cfg.Family.bindAddr())
	if err != nil {
		return nil, fmt.Errorf("open icmp socket (%s): %w", cfg.Family, err)
	}

	c := &Conn{family: cfg.Family, raw: raw, cfg: cfg}

	switch cfg.Family {
	case FamilyV4:
		ttl := cfg.TTL
		if ttl < 1 {
			ttl = 1
		}
		c.pc4 = raw.IPv4PacketConn()
		if err := c.pc4.SetTTL(ttl); err != nil {
			_ = raw.Close()
			return nil, fmt.Errorf("set ttl: %w", err)
		}
	case FamilyV6:
		hl := cfg.HopLimit
		if hl < 1 {
			hl = 1
		}
		c.pc6 = raw.IPv6PacketConn()
		if err := c.pc6.SetHopLimit(hl); err != nil {
			_ = raw.Close()
			return nil, fmt.Errorf("set hop limit: %w", err)
		}
		// ICMPv6 mandates a checksum; offset 2 is the checksum field in the
		// ICMPv6 header. With this set the kernel fills it in on send and
		// validates it on receive, so callers don't need the src/dst pair
		// that the pseudo-header checksum would otherwise require at
		// receive time (the wildcard bind means the local address used for
		// a given reply isn't known precisely).
		if err := c.pc6.SetChecksum(true, 2); err != nil {
			_ = raw.Close()
			return nil, fmt.Errorf("set icmpv6 checksum offset: %w", err)
		}
	}
	return c, nil
}

// SendTo writes b to addr, honoring SendTimeout if configured.
func (c *Conn) SendTo(b []byte, addr net.Addr) error {
	if c.cfg.SendTimeout > 0 {
		_ = c.raw.SetWriteDeadline(time.Now().Add(c.cfg.SendTimeout))
	}
	_, err := c.raw.WriteTo(b, addr)
	return err
}

// RecvFrom reads one datagram into buf. Callers should set a read deadline
// via SetReadDeadline before calling when a per-call timeout is needed; the
// host-scan receiver loop instead relies on socket Close to unblock it.
func (c *Conn) RecvFrom(buf []byte) (int, net.Addr, error) {
	return c.raw.ReadFrom(buf)
}

func (c *Conn) SetReadDeadline(t time.Time) error { return c.raw.SetReadDeadline(t) }

// SetTTLOrHopLimit changes the outgoing TTL (v4) or hop limit (v6) for
// subsequent sends, clamped to a minimum of 1. Traceroute uses this to
// step the limit per hop on a single long-lived Conn rather than opening
// one socket per TTL.
func (c *Conn) SetTTLOrHopLimit(n int) error {
	if n < 1 {
		n = 1
	}
	if c.family == FamilyV4 {
		return c.pc4.SetTTL(n)
	}
	return c.pc6.SetHopLimit(n)
}

// Close drops the socket; the host-scan engine relies on this to force its
// shared receiver task to exit (§4.5 step 7).
func (c *Conn) Close() error { return c.raw.Close() }

func (c *Conn) Family() Family { return c.family }
