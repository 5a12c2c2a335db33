// Package hostscan implements the ICMP host-scan engine (§4.5): a parallel
// sweep over a target set with a shared per-socket receiver demuxing
// replies by source IP, bounded fanout, and per-target retry-with-timeout.
package hostscan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/foctal/netprobe/internal/events"
	"github.com/foctal/netprobe/internal/model"
	"github.com/foctal/netprobe/internal/rawsock"
	"github.com/foctal/netprobe/internal/registry"
	"github.com/foctal/netprobe/internal/throttle"
	"github.com/foctal/netprobe/internal/tuner"
)

var errReplyTimeout = errors.New("hostscan: timed out waiting for echo reply")

// Config wires the ambient dependencies every run needs: a logger and an
// injectable clock.
type Config struct {
	Log   *slog.Logger
	Clock clockwork.Clock
}

func (c *Config) setDefaults() {
	if c.Log == nil {
		c.Log = slog.Default()
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
}

// Engine runs host-scan jobs (§4.5). An Engine is stateless between runs and
// safe to reuse across them.
type Engine struct {
	cfg Config
}

func New(cfg Config) *Engine {
	cfg.setDefaults()
	return &Engine{cfg: cfg}
}

// Run executes one host-scan job to completion or cancellation. tok is the
// token the caller already installed in the operation registry for class
// hostscan; sink receives every event this run emits.
func (e *Engine) Run(ctx context.Context, tok registry.Token, sink events.Sink, runID string, setting model.HostScanSetting) (model.HostScanReport, error) {
	log := e.cfg.Log
	clock := e.cfg.Clock

	sink.Emit(events.TopicHostscanStart, events.StartPayload{RunID: runID})

	targets := uniqueTargetIPs(setting.Targets)
	if !setting.Ordered {
		rand.Shuffle(len(targets), func(i, j int) { targets[i], targets[j] = targets[j], targets[i] })
	}

	if len(targets) == 0 {
		report := model.HostScanReport{RunID: runID}
		sink.Emit(events.TopicHostscanDone, report)
		return report, nil
	}

	var needV4, needV6 bool
	for _, ip := range targets {
		if rawsock.FamilyOf(ip) == rawsock.FamilyV4 {
			needV4 = true
		} else {
			needV6 = true
		}
	}

	conn4, conn6, err := openSockets(needV4, needV6, setting.HopLimit)
	if err != nil {
		sink.Emit(events.TopicHostscanError, events.ErrorPayload{RunID: runID, Message: err.Error()})
		return model.HostScanReport{}, fmt.Errorf("%w: %s", model.ErrSetup, err)
	}

	pending4 := newPendingTable()
	pending6 := newPendingTable()

	var recvWG sync.WaitGroup
	if conn4 != nil {
		recvWG.Add(1)
		go func() { defer recvWG.Done(); receiveLoop(conn4, pending4, clock, log) }()
	}
	if conn6 != nil {
		recvWG.Add(1)
		go func() { defer recvWG.Done(); receiveLoop(conn6, pending6, clock, log) }()
	}

	concurrency := setting.Concurrency
	if concurrency <= 0 {
		concurrency = tuner.HostsConcurrency()
	}

	th := throttle.New(len(targets), clock)

	var mu sync.Mutex
	alive := make([]model.AliveHost, 0, len(targets))
	unreachable := make([]net.IP, 0)

	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrency)
	for _, ip := range targets {
		wg.Add(1)
		sem <- struct{}{}
		go func(ip net.IP) {
			defer wg.Done()
			defer func() { <-sem }()

			conn, pending := conn4, pending4
			if rawsock.FamilyOf(ip) == rawsock.FamilyV6 {
				conn, pending = conn6, pending6
			}

			result, ok := probeOne(ctx, tok, clock, conn, pending, ip, setting)
			if !ok {
				return // worker discarded on cancellation (§4.5 step 5b)
			}

			mu.Lock()
			if result.alive {
				alive = append(alive, model.AliveHost{IP: ip, RTT: result.rtt})
			} else {
				unreachable = append(unreachable, ip)
			}
			mu.Unlock()

			if result.alive {
				rtt := result.rtt
				sink.Emit(events.TopicHostscanAlive, model.HostScanProgress{
					RunID: runID, IP: ip, State: model.HostAlive, RTT: &rtt,
				})
			}
			if done, shouldEmit := th.OnAdvance(); shouldEmit {
				sink.Emit(events.TopicHostscanProgress, model.HostScanProgress{
					RunID: runID, Done: done, Total: len(targets),
				})
			}
		}(ip)
	}
	wg.Wait()
	close(sem)

	// Drop the task stream, then both sockets to force the receiver loops
	// to exit, then join them defensively (§4.5 step 7).
	if conn4 != nil {
		_ = conn4.Close()
	}
	if conn6 != nil {
		_ = conn6.Close()
	}
	recvWG.Wait()

	if tok.IsCancelled() {
		sink.Emit(events.TopicHostscanCancelled, events.CancelledPayload{RunID: runID})
		return model.HostScanReport{}, fmt.Errorf("hostscan: %w", model.ErrCancelled)
	}

	report := model.HostScanReport{
		RunID:       runID,
		Total:       len(targets),
		Alive:       alive,
		Unreachable: unreachable,
	}
	sink.Emit(events.TopicHostscanDone, report)
	return report, nil
}

func openSockets(needV4, needV6 bool, hopLimit int) (conn4, conn6 *rawsock.Conn, err error) {
	if needV4 {
		conn4, err = rawsock.New(rawsock.Config{Family: rawsock.FamilyV4, TTL: hopLimit})
		if err != nil {
			return nil, nil, fmt.Errorf("open ipv4 socket: %w", err)
		}
	}
	if needV6 {
		conn6, err = rawsock.New(rawsock.Config{Family: rawsock.FamilyV6, HopLimit: hopLimit})
		if err != nil {
			if conn4 != nil {
				_ = conn4.Close()
			}
			return nil, nil, fmt.Errorf("open ipv6 socket: %w", err)
		}
	}
	return conn4, conn6, nil
}

type probeOutcome struct {
	alive bool
	rtt   time.Duration
}

// probeOne runs the seq loop for a single target (§4.5 step 5). The bool
// return is false only when the worker was discarded due to cancellation;
// a target that simply never replied is a normal (false, true) outcome.
func probeOne(ctx context.Context, tok registry.Token, clock clockwork.Clock, conn *rawsock.Conn, pending *pendingTable, ip net.IP, setting model.HostScanSetting) (probeOutcome, bool) {
	if tok.IsCancelled() {
		return probeOutcome{}, false
	}

	family := rawsock.FamilyOf(ip)
	var best time.Duration
	haveBest := false
	var lastErr error

	for seq := 1; seq <= setting.Count; seq++ {
		select {
		case <-tok.Cancelled():
			return probeOutcome{}, false
		default:
		}

		sentAt := clock.Now()
		entry := pending.insert(ip, sentAt)

		id := uint16(rand.Intn(1 << 16))
		var pkt []byte
		if family == rawsock.FamilyV4 {
			pkt = rawsock.BuildICMPEchoV4(nil, ip, id, uint16(seq), setting.Payload)
		} else {
			pkt = rawsock.BuildICMPEchoV6(nil, ip, id, uint16(seq), setting.Payload)
		}

		if err := conn.SendTo(pkt, &net.IPAddr{IP: ip}); err != nil {
			pending.remove(ip)
			lastErr = err
			continue
		}

		timer := time.NewTimer(setting.Timeout)
		select {
		case rtt := <-entry.replyC:
			timer.Stop()
			if !haveBest || rtt < best {
				best, haveBest = rtt, true
			}
		case <-timer.C:
			pending.remove(ip)
			lastErr = errReplyTimeout
		case <-tok.Cancelled():
			timer.Stop()
			pending.remove(ip)
			return probeOutcome{}, false
		case <-ctx.Done():
			timer.Stop()
			pending.remove(ip)
			return probeOutcome{}, false
		}

		if haveBest {
			break // early-exit on first success (§4.5 step 5b)
		}
	}

	if haveBest {
		return probeOutcome{alive: true, rtt: best}, true
	}
	_ = lastErr // the outcome carries no error detail for unreachable targets
	return probeOutcome{alive: false}, true
}

func uniqueTargetIPs(eps []model.Endpoint) []net.IP {
	seen := make(map[string]struct{}, len(eps))
	out := make([]net.IP, 0, len(eps))
	for _, ep := range eps {
		key := ep.IP().String()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, ep.IP())
	}
	return out
}
