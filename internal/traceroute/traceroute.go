// Package traceroute implements the TTL-incrementing traceroute engine
// (§4.7): an ICMP or UDP probe per hop, with intermediate Time Exceeded
// replies and a terminal reply (or unreachable) from the target itself.
package traceroute

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"runtime"

	"github.com/foctal/netprobe/internal/events"
	"github.com/foctal/netprobe/internal/model"
	"github.com/foctal/netprobe/internal/rawsock"
	"github.com/foctal/netprobe/internal/registry"
)

type Config struct {
	Log *slog.Logger
}

func (c *Config) setDefaults() {
	if c.Log == nil {
		c.Log = slog.Default()
	}
}

type Engine struct {
	cfg Config
}

func New(cfg Config) *Engine {
	cfg.setDefaults()
	return &Engine{cfg: cfg}
}

// Run walks TTLs 1..MaxHops, emitting traceroute:hop for each, and stops
// early once a reply attributable to the target itself arrives (§4.7).
// UDP mode is unsupported on Windows for the same ICMP-correlation reason
// as the ping dispatcher's UDP protocol.
func (e *Engine) Run(ctx context.Context, tok registry.Token, sink events.Sink, runID string, setting model.TracerouteSetting) (model.TracerouteDone, error) {
	if setting.Protocol == model.TraceProtocolUDP && runtime.GOOS == "windows" {
		return model.TracerouteDone{}, fmt.Errorf("traceroute udp protocol: %w", model.ErrUnsupported)
	}

	sink.Emit(events.TopicTracerouteStart, events.StartPayload{RunID: runID})

	family := rawsock.FamilyOf(setting.IP)
	conn, err := rawsock.New(rawsock.Config{Family: family, TTL: 1, HopLimit: 1})
	if err != nil {
		msg := fmt.Sprintf("open icmp socket: %v", err)
		sink.Emit(events.TopicTracerouteError, events.ErrorPayload{RunID: runID, Message: msg})
		return model.TracerouteDone{}, fmt.Errorf("%w: %s", model.ErrSetup, msg)
	}
	defer conn.Close()

	id := uint16(rand.Intn(1 << 16))

	reached := false
	hopsUsed := 0
	for ttl := 1; ttl <= setting.MaxHops; ttl++ {
		if tok.IsCancelled() {
			break
		}
		if err := conn.SetTTLOrHopLimit(ttl); err != nil {
			e.cfg.Log.Debug("traceroute: set ttl failed", "run_id", runID, "ttl", ttl, "error", err)
		}

		hop := probeHop(ctx, tok, conn, id, ttl, setting, family)
		hopsUsed = ttl
		sink.Emit(events.TopicTracerouteHop, hop)

		if hop.FromIP != nil && hop.FromIP.Equal(setting.IP) {
			reached = true
			break
		}
	}

	done := model.TracerouteDone{
		Reached:  reached,
		Hops:     hopsUsed,
		IP:       setting.IP,
		Hostname: setting.Hostname,
		Protocol: setting.Protocol,
	}
	sink.Emit(events.TopicTracerouteDone, done)
	return done, nil
}
