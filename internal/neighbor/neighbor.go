// Package neighbor implements the neighbor-scan composition: a host scan
// over the local subnet of a network interface, followed by joining the
// alive set against the OS neighbor cache and an OUI vendor table
// (SPEC_FULL's "Neighbor scan composition": absent from the distilled
// spec's component list, which only described NeighborHost's shape).
package neighbor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/foctal/netprobe/internal/events"
	"github.com/foctal/netprobe/internal/model"
	"github.com/foctal/netprobe/internal/netutil"
	"github.com/foctal/netprobe/internal/registry"
)

// hostScanner is the subset of internal/hostscan.Engine this package
// depends on; a narrow interface so tests can substitute a fake instead of
// exercising real raw sockets.
type hostScanner interface {
	Run(ctx context.Context, tok registry.Token, sink events.Sink, runID string, setting model.HostScanSetting) (model.HostScanReport, error)
}

type Config struct {
	Log      *slog.Logger
	HostScan hostScanner
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

// Run resolves setting.Interface (defaulting to the platform's default
// interface), host-scans its local subnet, and enriches every alive host
// with its neighbor-table MAC, OUI vendor, and Self/Gateway/DNS tags.
func (e *Engine) Run(ctx context.Context, tok registry.Token, sink events.Sink, runID string, setting model.NeighborScanSetting) (model.NeighborScanReport, error) {
	sink.Emit(events.TopicNeighborscanStart, events.StartPayload{RunID: runID})

	ifaceName := setting.Interface
	if ifaceName == "" {
		iface, err := netutil.DefaultInterface()
		if err != nil {
			msg := fmt.Sprintf("resolve default interface: %v", err)
			sink.Emit(events.TopicNeighborscanError, events.ErrorPayload{RunID: runID, Message: msg})
			return model.NeighborScanReport{}, fmt.Errorf("%w: %s", model.ErrSetup, msg)
		}
		ifaceName = iface.Name
	}

	addr, mask, err := primaryIPv4Net(ifaceName)
	if err != nil {
		msg := fmt.Sprintf("resolve subnet for %s: %v", ifaceName, err)
		sink.Emit(events.TopicNeighborscanError, events.ErrorPayload{RunID: runID, Message: msg})
		return model.NeighborScanReport{}, fmt.Errorf("%w: %s", model.ErrSetup, msg)
	}

	targets, err := localSubnetTargets(addr, mask)
	if err != nil {
		msg := err.Error()
		sink.Emit(events.TopicNeighborscanError, events.ErrorPayload{RunID: runID, Message: msg})
		return model.NeighborScanReport{}, fmt.Errorf("%w: %s", model.ErrSetup, msg)
	}

	descriptor := setting.Descriptor
	if descriptor == nil {
		d, err := gatherDescriptor(ctx, ifaceName)
		if err != nil {
			msg := fmt.Sprintf("gather interface descriptor: %v", err)
			sink.Emit(events.TopicNeighborscanError, events.ErrorPayload{RunID: runID, Message: msg})
			return model.NeighborScanReport{}, fmt.Errorf("%w: %s", model.ErrSetup, msg)
		}
		descriptor = &d
	}

	hostScanSetting := model.HostScanSetting{
		Targets:     endpointsFor(targets),
		Count:       setting.Count,
		Timeout:     setting.Timeout,
		Concurrency: setting.Concurrency,
	}
	if err := hostScanSetting.Validate(); err != nil {
		msg := err.Error()
		sink.Emit(events.TopicNeighborscanError, events.ErrorPayload{RunID: runID, Message: msg})
		return model.NeighborScanReport{}, fmt.Errorf("%w: %s", model.ErrSetup, msg)
	}

	report, err := e.cfg.HostScan.Run(ctx, tok, sink, runID, hostScanSetting)
	if err != nil && !errors.Is(err, model.ErrCancelled) {
		msg := fmt.Sprintf("host scan: %v", err)
		sink.Emit(events.TopicNeighborscanError, events.ErrorPayload{RunID: runID, Message: msg})
		return model.NeighborScanReport{}, fmt.Errorf("%w: %s", model.ErrSetup, msg)
	}

	if err != nil || tok.IsCancelled() {
		sink.Emit(events.TopicNeighborscanCancelled, events.CancelledPayload{RunID: runID})
		return model.NeighborScanReport{}, nil
	}

	neighborTable, err := readNeighborTable(ifaceName)
	if err != nil {
		e.cfg.Log.Warn("neighborscan: neighbor table unavailable, enriching with IPs only", "interface", ifaceName, "error", err)
		neighborTable = map[string]net.HardwareAddr{}
	}

	neighbors := make([]model.NeighborHost, 0, len(report.Alive))
	for _, alive := range report.Alive {
		rtt := alive.RTT
		host := model.NeighborHost{
			IP:   alive.IP,
			RTT:  &rtt,
			Tags: descriptor.TagsFor(alive.IP),
		}
		if mac, ok := neighborTable[alive.IP.String()]; ok {
			host.MAC = mac
			host.Vendor = VendorForMAC(mac)
		}
		neighbors = append(neighbors, host)
	}

	out := model.NeighborScanReport{
		RunID:     runID,
		Neighbors: neighbors,
		Total:     len(neighbors),
	}
	sink.Emit(events.TopicNeighborscanDone, out)
	return out, nil
}

func endpointsFor(ips []net.IP) []model.Endpoint {
	out := make([]model.Endpoint, len(ips))
	for i, ip := range ips {
		out[i] = model.NewEndpoint(ip, "")
	}
	return out
}
