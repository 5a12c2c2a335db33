package ping

import (
	"context"
	"errors"
	"net"
	"strconv"
	"syscall"
	"time"

	"github.com/foctal/netprobe/internal/events"
	"github.com/foctal/netprobe/internal/model"
	"github.com/foctal/netprobe/internal/registry"
)

// runTCP times count TCP connect attempts spaced by setting.Interval
// (§4.6): RTT is connect-completion time; a refused connection or timeout
// is classified and the attempt counts toward sent, while only completed
// connects count toward recv.
func runTCP(ctx context.Context, tok registry.Token, sink events.Sink, runID string, setting model.PingSetting) {
	addr := net.JoinHostPort(setting.IP.String(), strconv.Itoa(setting.Port))

	samples := make([]model.PingStat, 0, setting.Count)
	for seq := 0; seq < setting.Count; seq++ {
		if tok.IsCancelled() {
			break
		}
		stat := dialTCPOnce(ctx, addr, setting.Timeout, seq)
		samples = append(samples, stat)
		sink.Emit(events.TopicPingUpdate, stat)

		if seq < setting.Count-1 {
			sleepInterval(ctx, tok, setting.Interval)
		}
	}

	sink.Emit(events.TopicPingDone, model.Aggregate(runID, samples))
}

func dialTCPOnce(ctx context.Context, addr string, timeout time.Duration, seq int) model.PingStat {
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var d net.Dialer
	start := time.Now()
	conn, err := d.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return model.PingStat{Seq: seq, Result: model.PingSampleTimeout, Message: "connect timed out"}
		}
		if errors.Is(err, syscall.ECONNREFUSED) {
			return model.PingStat{Seq: seq, Result: model.PingSampleUnreachable, Message: "connection refused"}
		}
		return model.PingStat{Seq: seq, Result: model.PingSampleError, Message: err.Error()}
	}
	defer conn.Close()

	rtt := time.Since(start)
	return model.PingStat{Seq: seq, RTT: &rtt, Result: model.PingSampleReply}
}
