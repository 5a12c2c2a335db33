package traceroute

import (
	"context"
	"net"
	"strconv"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"

	"github.com/foctal/netprobe/internal/model"
	"github.com/foctal/netprobe/internal/rawsock"
	"github.com/foctal/netprobe/internal/registry"
)

// probeHop runs setting.TriesPerHop attempts at one TTL, returning on the
// first reply (§4.7); a hop that times out on every try is reported as
// HopTimeout.
func probeHop(ctx context.Context, tok registry.Token, conn *rawsock.Conn, id uint16, ttl int, setting model.TracerouteSetting, family rawsock.Family) model.HopResult {
	for try := 1; try <= setting.TriesPerHop; try++ {
		select {
		case <-tok.Cancelled():
			return model.HopResult{TTL: ttl, State: model.HopTimeout}
		case <-ctx.Done():
			return model.HopResult{TTL: ttl, State: model.HopTimeout}
		default:
		}

		seq := uint16(ttl*1000 + try)
		port := setting.PortBase + ttl

		if err := sendProbe(conn, setting, id, seq, ttl, port, family); err != nil {
			continue
		}

		from, rtt, state, ok := awaitHopReply(conn, id, seq, port, setting.Timeout, family, setting.Protocol)
		if ok {
			return model.HopResult{TTL: ttl, FromIP: from, RTT: &rtt, State: state}
		}
	}
	return model.HopResult{TTL: ttl, State: model.HopTimeout}
}

// sendProbe sends one traceroute probe at ttl: an ICMP echo on conn (whose
// TTL/hop-limit the caller already stepped), or a UDP datagram to
// port_base+ttl on its own ephemeral socket, whose own TTL/hop-limit must
// be set independently since it isn't conn.
func sendProbe(conn *rawsock.Conn, setting model.TracerouteSetting, id, seq uint16, ttl, udpPort int, family rawsock.Family) error {
	if setting.Protocol == model.TraceProtocolICMP {
		var pkt []byte
		if family == rawsock.FamilyV4 {
			pkt = rawsock.BuildICMPEchoV4(nil, setting.IP, id, seq, []byte("netprobe"))
		} else {
			pkt = rawsock.BuildICMPEchoV6(nil, setting.IP, id, seq, []byte("netprobe"))
		}
		return conn.SendTo(pkt, &net.IPAddr{IP: setting.IP})
	}
	return sendUDPProbe(setting.IP, udpPort, ttl, family)
}

func sendUDPProbe(dst net.IP, port, ttl int, family rawsock.Family) error {
	network := "udp4"
	if family == rawsock.FamilyV6 {
		network = "udp6"
	}
	udpConn, err := net.Dial(network, net.JoinHostPort(dst.String(), strconv.Itoa(port)))
	if err != nil {
		return err
	}
	defer udpConn.Close()

	if family == rawsock.FamilyV4 {
		_ = ipv4.NewConn(udpConn).SetTTL(ttl)
	} else {
		_ = ipv6.NewConn(udpConn).SetHopLimit(ttl)
	}

	_, err = udpConn.Write([]byte("netprobe"))
	return err
}

// awaitHopReply reads from conn until it sees a reply correlated to our
// probe (by ICMP id/seq, or by the UDP destination port) or the timeout
// elapses. ok is false on timeout; state distinguishes an intermediate
// Time Exceeded (HopReplied) from a terminal Destination Unreachable
// (HopUnreachableFinal, the UDP-mode signal that the target was reached)
// or a terminal Echo Reply (HopReplied; the caller checks FromIP==target
// to decide whether it was terminal).
func awaitHopReply(conn *rawsock.Conn, id, seq uint16, udpPort int, timeout time.Duration, family rawsock.Family, proto model.TraceProtocol) (from net.IP, rtt time.Duration, state model.HopState, ok bool) {
	sentAt := time.Now()
	deadline := sentAt.Add(timeout)
	buf := make([]byte, 1500)
	icmpProto := 1
	if family == rawsock.FamilyV6 {
		icmpProto = 58
	}

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, 0, model.HopTimeout, false
		}
		_ = conn.SetReadDeadline(time.Now().Add(remaining))

		n, addr, err := conn.RecvFrom(buf)
		if err != nil {
			return nil, 0, model.HopTimeout, false
		}
		ipAddr, isIPAddr := addr.(*net.IPAddr)
		if !isIPAddr {
			continue
		}

		msg, err := icmp.ParseMessage(icmpProto, buf[:n])
		if err != nil {
			continue
		}

		switch body := msg.Body.(type) {
		case *icmp.TimeExceeded:
			if matchesProbe(proto, body.Data, id, seq, udpPort) {
				return ipAddr.IP, time.Since(sentAt), model.HopReplied, true
			}
		case *icmp.DstUnreach:
			if matchesProbe(proto, body.Data, id, seq, udpPort) {
				return ipAddr.IP, time.Since(sentAt), model.HopUnreachableFinal, true
			}
		case *icmp.Echo:
			if proto == model.TraceProtocolICMP && msg.Type == typeEchoReply(family) &&
				uint16(body.ID) == id && uint16(body.Seq) == seq {
				return ipAddr.IP, time.Since(sentAt), model.HopReplied, true
			}
		}
	}
}

func typeEchoReply(family rawsock.Family) icmp.Type {
	if family == rawsock.FamilyV4 {
		return ipv4.ICMPTypeEchoReply
	}
	return ipv6.ICMPTypeEchoReply
}

// matchesProbe extracts the embedded original datagram from a Time
// Exceeded/Destination Unreachable payload and checks it against the
// probe we sent: the ICMP id/seq for icmp mode, or the UDP destination
// port for udp mode.
func matchesProbe(proto model.TraceProtocol, embedded []byte, id, seq uint16, udpPort int) bool {
	isV4Header := len(embedded) > 0 && embedded[0]>>4 == 4
	ihl := 40 // IPv6 fixed header
	if isV4Header {
		ihl = int(embedded[0]&0x0F) * 4
	}
	if len(embedded) < ihl+8 {
		return false
	}
	orig := embedded[ihl:]

	if proto == model.TraceProtocolUDP {
		dstPort := int(orig[2])<<8 | int(orig[3])
		return dstPort == udpPort
	}

	// ICMP echo header layout: type/code/checksum (4 bytes), then id (2),
	// seq (2) — the same layout this module's own echo codec builds.
	origID := uint16(orig[4])<<8 | uint16(orig[5])
	origSeq := uint16(orig[6])<<8 | uint16(orig[7])
	return origID == id && origSeq == seq
}
