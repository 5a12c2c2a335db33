// Package ping implements the multi-protocol ping dispatcher (§4.6): one
// entry point that registers a job, emits ping:start, and hands off to the
// protocol-specific sequential sampler.
package ping

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/foctal/netprobe/internal/events"
	"github.com/foctal/netprobe/internal/model"
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

// Engine dispatches a validated PingSetting to its protocol handler.
type Engine struct {
	cfg Config
}

func New(cfg Config) *Engine {
	cfg.setDefaults()
	return &Engine{cfg: cfg}
}

// Run registers and executes one ping job. UDP is unsupported on Windows
// (the ICMP-unreachable correlation this protocol relies on isn't
// observable there) and is rejected before ping:start is ever emitted, per
// the "typed unsupported-platform error at registration" rule.
func (e *Engine) Run(ctx context.Context, tok registry.Token, sink events.Sink, runID string, setting model.PingSetting) error {
	if setting.Protocol == model.PingProtocolUDP && runtime.GOOS == "windows" {
		return fmt.Errorf("ping udp protocol: %w", model.ErrUnsupported)
	}

	sink.Emit(events.TopicPingStart, events.StartPayload{RunID: runID})

	switch setting.Protocol {
	case model.PingProtocolICMP:
		runICMP(ctx, tok, sink, runID, setting, e.cfg.Log)
	case model.PingProtocolTCP:
		runTCP(ctx, tok, sink, runID, setting)
	case model.PingProtocolUDP:
		runUDP(ctx, tok, sink, runID, setting)
	case model.PingProtocolQUIC:
		runQUIC(ctx, tok, sink, runID, setting)
	case model.PingProtocolHTTP:
		runHTTP(ctx, tok, sink, runID, setting)
	default:
		sink.Emit(events.TopicPingError, events.ErrorPayload{
			RunID: runID, Message: fmt.Sprintf("unknown ping protocol %q", setting.Protocol),
		})
	}
	return nil
}
