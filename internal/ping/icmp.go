package ping

import (
	"context"
	"log/slog"
	"sync"
	"time"

	probing "github.com/prometheus-community/pro-bing"

	"github.com/foctal/netprobe/internal/events"
	"github.com/foctal/netprobe/internal/model"
	"github.com/foctal/netprobe/internal/registry"
)

// runICMP samples RTT via pro-bing's single-target echo path. Unlike an
// aggregate-only use, OnRecv streams a ping:update per reply as it
// arrives; replies never received by the time the session ends are reported
// as timeouts
// once RunWithContext returns.
func runICMP(ctx context.Context, tok registry.Token, sink events.Sink, runID string, setting model.PingSetting, log *slog.Logger) {
	pinger, err := probing.NewPinger(setting.IP.String())
	if err != nil {
		sink.Emit(events.TopicPingError, events.ErrorPayload{RunID: runID, Message: err.Error()})
		return
	}
	defer pinger.Stop()
	pinger.SetPrivileged(true)
	pinger.Count = setting.Count
	pinger.Interval = setting.Interval
	pinger.Timeout = setting.Timeout*time.Duration(setting.Count) + setting.Interval*time.Duration(setting.Count)
	if len(setting.Payload) > 0 {
		pinger.Size = len(setting.Payload)
	}

	var mu sync.Mutex
	recvd := make(map[int]model.PingStat, setting.Count)

	pinger.OnRecv = func(p *probing.Packet) {
		rtt := p.Rtt
		stat := model.PingStat{Seq: p.Seq, RTT: &rtt, Result: model.PingSampleReply}
		mu.Lock()
		recvd[p.Seq] = stat
		mu.Unlock()
		sink.Emit(events.TopicPingUpdate, stat)
	}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-tok.Cancelled():
			pinger.Stop()
		case <-ctx.Done():
			pinger.Stop()
		case <-stop:
		}
	}()

	if err := pinger.RunWithContext(ctx); err != nil && !tok.IsCancelled() {
		log.Debug("ping: icmp session ended with error", "run_id", runID, "error", err)
	}

	samples := make([]model.PingStat, 0, setting.Count)
	mu.Lock()
	for seq := 0; seq < setting.Count; seq++ {
		if s, ok := recvd[seq]; ok {
			samples = append(samples, s)
			continue
		}
		stat := model.PingStat{Seq: seq, Result: model.PingSampleTimeout, Message: "no reply"}
		samples = append(samples, stat)
		sink.Emit(events.TopicPingUpdate, stat)
	}
	mu.Unlock()

	sink.Emit(events.TopicPingDone, model.Aggregate(runID, samples))
}
