package ping

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"runtime"
	"time"

	"golang.org/x/net/icmp"

	"github.com/foctal/netprobe/internal/events"
	"github.com/foctal/netprobe/internal/model"
	"github.com/foctal/netprobe/internal/registry"
)

const defaultUDPProbePayload = "netprobe"

// runUDP sends a UDP datagram to a likely-closed port and measures time to
// the ICMP Destination Unreachable (Port Unreachable) it provokes,
// correlating replies to the probe that caused them by the embedded
// original datagram's source/destination ports (§4.6). Not reachable here
// at all on Windows — the caller rejects this protocol before dispatch.
func runUDP(ctx context.Context, tok registry.Token, sink events.Sink, runID string, setting model.PingSetting) {
	if runtime.GOOS == "windows" {
		sink.Emit(events.TopicPingError, events.ErrorPayload{RunID: runID, Message: model.ErrUnsupported.Error()})
		return
	}

	isV4 := setting.IP.To4() != nil
	network := "ip4:icmp"
	bind := "0.0.0.0"
	if !isV4 {
		network = "ip6:ipv6-icmp"
		bind = "::"
	}

	raw, err := icmp.ListenPacket(network, bind)
	if err != nil {
		sink.Emit(events.TopicPingError, events.ErrorPayload{
			RunID: runID, Message: fmt.Sprintf("open icmp listener: %v", err),
		})
		return
	}
	defer raw.Close()

	samples := make([]model.PingStat, 0, setting.Count)
	for seq := 0; seq < setting.Count; seq++ {
		if tok.IsCancelled() {
			break
		}
		stat := probeUDPOnce(raw, setting, seq, isV4)
		samples = append(samples, stat)
		sink.Emit(events.TopicPingUpdate, stat)

		if seq < setting.Count-1 {
			sleepInterval(ctx, tok, setting.Interval)
		}
	}

	sink.Emit(events.TopicPingDone, model.Aggregate(runID, samples))
}

func probeUDPOnce(raw *icmp.PacketConn, setting model.PingSetting, seq int, isV4 bool) model.PingStat {
	network := "udp4"
	if !isV4 {
		network = "udp6"
	}
	conn, err := net.DialUDP(network, nil, &net.UDPAddr{IP: setting.IP, Port: setting.Port})
	if err != nil {
		return model.PingStat{Seq: seq, Result: model.PingSampleError, Message: err.Error()}
	}
	defer conn.Close()

	localPort := conn.LocalAddr().(*net.UDPAddr).Port

	payload := setting.Payload
	if len(payload) == 0 {
		payload = []byte(defaultUDPProbePayload)
	}

	sentAt := time.Now()
	if _, err := conn.Write(payload); err != nil {
		return model.PingStat{Seq: seq, Result: model.PingSampleError, Message: err.Error()}
	}

	deadline := sentAt.Add(setting.Timeout)
	buf := make([]byte, 1500)
	proto := 1 // ICMPv4
	if !isV4 {
		proto = 58 // ICMPv6
	}

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return model.PingStat{Seq: seq, Result: model.PingSampleTimeout, Message: "no unreachable received"}
		}
		_ = raw.SetReadDeadline(time.Now().Add(remaining))

		n, peer, err := raw.ReadFrom(buf)
		if err != nil {
			return model.PingStat{Seq: seq, Result: model.PingSampleTimeout, Message: "no unreachable received"}
		}

		msg, err := icmp.ParseMessage(proto, buf[:n])
		if err != nil {
			continue
		}
		unreach, ok := msg.Body.(*icmp.DstUnreach)
		if !ok {
			continue
		}
		srcPort, dstPort, ok := embeddedUDPPorts(isV4, unreach.Data)
		if !ok || srcPort != localPort || dstPort != setting.Port {
			continue
		}

		rtt := time.Since(sentAt)
		_ = peer
		return model.PingStat{Seq: seq, RTT: &rtt, Result: model.PingSampleUnreachable, Message: "port unreachable"}
	}
}

// embeddedUDPPorts extracts the original UDP datagram's src/dst ports from
// the ICMP error payload: a v4 Destination Unreachable embeds the original
// IPv4 header (variable length) followed by the first 8 bytes of the UDP
// header; v6 embeds a fixed 40-byte IPv6 header then the same UDP header.
func embeddedUDPPorts(isV4 bool, data []byte) (srcPort, dstPort int, ok bool) {
	if isV4 {
		if len(data) < 1 {
			return 0, 0, false
		}
		ihl := int(data[0]&0x0F) * 4
		if ihl < 20 || len(data) < ihl+4 {
			return 0, 0, false
		}
		udp := data[ihl:]
		return int(binary.BigEndian.Uint16(udp[0:2])), int(binary.BigEndian.Uint16(udp[2:4])), true
	}
	if len(data) < 40+4 {
		return 0, 0, false
	}
	udp := data[40:]
	return int(binary.BigEndian.Uint16(udp[0:2])), int(binary.BigEndian.Uint16(udp[2:4])), true
}
