package ping

import (
	"context"
	"crypto/tls"
	"net"
	"strconv"
	"time"

	"github.com/quic-go/quic-go"

	"github.com/foctal/netprobe/internal/events"
	"github.com/foctal/netprobe/internal/model"
	"github.com/foctal/netprobe/internal/registry"
)

// quicProbeALPN is only used to complete a generic handshake-RTT probe; it
// doesn't need to match anything the target actually speaks.
const quicProbeALPN = "netprobe-ping"

// runQUIC times count QUIC handshakes: RTT is time from Initial send to
// handshake completion, dialing with a client TLS config that skips
// certificate verification since the target's certificate is never
// validated for a handshake-RTT probe.
func runQUIC(ctx context.Context, tok registry.Token, sink events.Sink, runID string, setting model.PingSetting) {
	addr := net.JoinHostPort(setting.IP.String(), strconv.Itoa(setting.Port))

	samples := make([]model.PingStat, 0, setting.Count)
	for seq := 0; seq < setting.Count; seq++ {
		if tok.IsCancelled() {
			break
		}
		stat := dialQUICOnce(ctx, addr, setting.Timeout, seq)
		samples = append(samples, stat)
		sink.Emit(events.TopicPingUpdate, stat)

		if seq < setting.Count-1 {
			sleepInterval(ctx, tok, setting.Interval)
		}
	}

	sink.Emit(events.TopicPingDone, model.Aggregate(runID, samples))
}

func dialQUICOnce(ctx context.Context, addr string, timeout time.Duration, seq int) model.PingStat {
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tlsConf := &tls.Config{InsecureSkipVerify: true, NextProtos: []string{quicProbeALPN}}
	quicConf := &quic.Config{HandshakeIdleTimeout: timeout}

	start := time.Now()
	conn, err := quic.DialAddr(dialCtx, addr, tlsConf, quicConf)
	if err != nil {
		if dialCtx.Err() != nil {
			return model.PingStat{Seq: seq, Result: model.PingSampleTimeout, Message: "handshake timed out"}
		}
		return model.PingStat{Seq: seq, Result: model.PingSampleError, Message: err.Error()}
	}
	rtt := time.Since(start)
	_ = conn.CloseWithError(0, "probe done")

	return model.PingStat{Seq: seq, RTT: &rtt, Result: model.PingSampleReply}
}
