// Package probeapi is the thin adapter boundary a front-end embeds: it
// wires the operation registry, the event sink, and every probe family
// behind one Core with one method per operation. It contains no probing
// logic of its own (§1 places this layer "outside" core scope) — every
// method here is registration, validation-before-start, and a handoff to
// the package that actually drives the probe.
package probeapi

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/foctal/netprobe/internal/events"
	"github.com/foctal/netprobe/internal/hostscan"
	"github.com/foctal/netprobe/internal/latency"
	"github.com/foctal/netprobe/internal/metrics"
	"github.com/foctal/netprobe/internal/model"
	"github.com/foctal/netprobe/internal/neighbor"
	"github.com/foctal/netprobe/internal/netutil"
	"github.com/foctal/netprobe/internal/ping"
	"github.com/foctal/netprobe/internal/registry"
	"github.com/foctal/netprobe/internal/speedtest"
	"github.com/foctal/netprobe/internal/traceroute"
)

// Config wires the ambient Log/Sink plus each probe family's own Config.
// Per-family Log fields left zero are filled in from Log before the
// engines are constructed.
type Config struct {
	Log  *slog.Logger
	Sink events.Sink

	Ping       ping.Config
	Traceroute traceroute.Config
	HostScan   hostscan.Config
	Neighbor   neighbor.Config
	Speedtest  speedtest.Config
	Latency    latency.Config
}

// Core is the embeddable facade: one registry, one sink, six probe
// families.
type Core struct {
	log  *slog.Logger
	sink events.Sink
	reg  *registry.Registry

	ping       *ping.Engine
	traceroute *traceroute.Engine
	hostscan   *hostscan.Engine
	neighbor   *neighbor.Engine
	speedtest  *speedtest.Engine
	latency    *latency.Engine
}

// New constructs a Core, wiring the host-scan engine into the neighbor
// engine's hostScanner dependency (the neighbor scan composition runs a
// real host scan internally, per SPEC_FULL's neighbor-scan design note).
func New(cfg Config) *Core {
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	if cfg.Sink == nil {
		cfg.Sink = events.NewChanSink(cfg.Log, 0)
	}

	if cfg.Ping.Log == nil {
		cfg.Ping.Log = cfg.Log
	}
	if cfg.Traceroute.Log == nil {
		cfg.Traceroute.Log = cfg.Log
	}
	if cfg.HostScan.Log == nil {
		cfg.HostScan.Log = cfg.Log
	}
	if cfg.Neighbor.Log == nil {
		cfg.Neighbor.Log = cfg.Log
	}
	if cfg.Speedtest.Log == nil {
		cfg.Speedtest.Log = cfg.Log
	}
	if cfg.Latency.Log == nil {
		cfg.Latency.Log = cfg.Log
	}

	hs := hostscan.New(cfg.HostScan)
	cfg.Neighbor.HostScan = hs

	return &Core{
		log:        cfg.Log,
		sink:       cfg.Sink,
		reg:        registry.New(),
		ping:       ping.New(cfg.Ping),
		traceroute: traceroute.New(cfg.Traceroute),
		hostscan:   hs,
		neighbor:   neighbor.New(cfg.Neighbor),
		speedtest:  speedtest.New(cfg.Speedtest),
		latency:    latency.New(cfg.Latency),
	}
}

// Sink returns the event sink a front-end should drain for progress and
// terminal events.
func (c *Core) Sink() events.Sink { return c.sink }

// Ping validates setting, confirms the host can route to setting.IP's
// address family, registers the job, and launches it in the background.
// The source-IP preflight runs before the job is registered, so a source
// address lookup failure (returned wrapped in ErrSetup) never emits
// ping:start (the per-protocol ping command routing design note).
func (c *Core) Ping(ctx context.Context, setting model.PingSetting) (string, error) {
	if err := setting.Validate(); err != nil {
		return "", err
	}
	if err := preflightSourceIP(setting.IP); err != nil {
		return "", fmt.Errorf("%w: %s", model.ErrSetup, err)
	}

	runID := model.NewRunID()
	tok := c.reg.Start(model.OpPing)
	c.runInBackground(model.OpPing, runID, func() {
		_ = c.ping.Run(ctx, tok, c.sink, runID, setting)
	})
	return runID, nil
}

// Traceroute mirrors Ping's preflight-then-register-then-launch ordering.
func (c *Core) Traceroute(ctx context.Context, setting model.TracerouteSetting) (string, error) {
	if err := setting.Validate(); err != nil {
		return "", err
	}
	if err := preflightSourceIP(setting.IP); err != nil {
		return "", fmt.Errorf("%w: %s", model.ErrSetup, err)
	}

	runID := model.NewRunID()
	tok := c.reg.Start(model.OpTraceroute)
	c.runInBackground(model.OpTraceroute, runID, func() {
		_, _ = c.traceroute.Run(ctx, tok, c.sink, runID, setting)
	})
	return runID, nil
}

// HostScan validates setting, registers the job, and launches the sweep
// in the background.
func (c *Core) HostScan(ctx context.Context, setting model.HostScanSetting) (string, error) {
	if err := setting.Validate(); err != nil {
		return "", err
	}

	runID := model.NewRunID()
	tok := c.reg.Start(model.OpHostscan)
	c.runInBackground(model.OpHostscan, runID, func() {
		_, _ = c.hostscan.Run(ctx, tok, c.sink, runID, setting)
	})
	return runID, nil
}

// NeighborScan validates setting, registers the job, and launches the
// host-scan-then-enrich composition in the background.
func (c *Core) NeighborScan(ctx context.Context, setting model.NeighborScanSetting) (string, error) {
	if err := setting.Validate(); err != nil {
		return "", err
	}

	runID := model.NewRunID()
	tok := c.reg.Start(model.OpNeighborscan)
	c.runInBackground(model.OpNeighborscan, runID, func() {
		_, _ = c.neighbor.Run(ctx, tok, c.sink, runID, setting)
	})
	return runID, nil
}

// Speedtest starts a throughput run. Unlike the other four families,
// speedtest holds no registry operation class (§4.8) — the engine tracks
// its own single in-flight run and Start itself aborts any predecessor.
func (c *Core) Speedtest(setting model.SpeedtestSetting) (string, error) {
	if err := setting.Validate(); err != nil {
		return "", err
	}
	runID := model.NewRunID()
	if err := c.speedtest.Start(c.sink, runID, setting); err != nil {
		return "", err
	}
	metrics.ProbesTotal.WithLabelValues("speedtest").Inc()
	return runID, nil
}

// StopSpeedtest aborts the in-flight speedtest run, if any.
func (c *Core) StopSpeedtest() {
	c.speedtest.Stop(c.sink)
}

// Latency runs the N-sample RTT measurement in the background. Latency
// has no registry operation class either (§4.9), so it takes a plain
// context.Context.
func (c *Core) Latency(ctx context.Context, setting model.LatencySetting) (string, error) {
	if err := setting.Validate(); err != nil {
		return "", err
	}
	runID := model.NewRunID()
	c.runInBackground("latency", runID, func() {
		_, _ = c.latency.Run(ctx, c.sink, runID, setting)
	})
	return runID, nil
}

// runInBackground launches fn on its own goroutine, wrapping it with the
// probes-inflight/probes-total/duration metrics every operation class
// shares.
func (c *Core) runInBackground(op model.OperationClass, runID string, fn func()) {
	metrics.ProbesTotal.WithLabelValues(string(op)).Inc()
	metrics.ProbesInflight.WithLabelValues(string(op)).Inc()
	start := time.Now()
	go func() {
		defer func() {
			metrics.ProbesInflight.WithLabelValues(string(op)).Dec()
			metrics.ProbeDurations.WithLabelValues(string(op), "done").Observe(time.Since(start).Seconds())
		}()
		fn()
	}()
}

// preflightSourceIP confirms the host can currently route to ip's address
// family, the "resolves the source IP... before spawning the background
// task" step of the per-protocol ping/traceroute command routing design
// note — so an interface/routing failure surfaces synchronously instead
// of after a start event has already gone out.
func preflightSourceIP(ip net.IP) error {
	if ip.To4() != nil {
		_, err := netutil.DefaultSourceIPv4()
		return err
	}
	_, err := netutil.DefaultSourceIPv6()
	return err
}
