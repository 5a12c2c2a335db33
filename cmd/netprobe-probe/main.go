// Command netprobe-probe is a manual smoke-test harness for pkg/probeapi,
// not a CLI surface in its own right (§1 places the CLI out of scope) —
// it exists to exercise the core end-to-end against loopback/localhost,
// following the same flag+slog wiring idiom used throughout this module.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/foctal/netprobe/internal/applog"
	"github.com/foctal/netprobe/internal/config"
	"github.com/foctal/netprobe/internal/events"
	"github.com/foctal/netprobe/internal/model"
	"github.com/foctal/netprobe/pkg/probeapi"
)

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	opFlag := flag.String("op", "ping", "operation to run: ping, traceroute, hostscan, neighborscan, speedtest, latency")
	targetFlag := flag.String("target", "127.0.0.1", "target IP for ping/traceroute")
	protocolFlag := flag.String("protocol", "icmp", "ping protocol: icmp, tcp, udp, quic, http")
	portFlag := flag.Int("port", 0, "port for tcp/udp/quic ping")
	countFlag := flag.Int("count", 4, "ping sample count")
	baseURLFlag := flag.String("base-url", "http://127.0.0.1:8080", "base URL for speedtest/latency")
	verboseFlag := flag.Bool("verbose", false, "enable debug logging")
	metricsAddrFlag := flag.String("metrics-addr", "", "address to serve /metrics on (empty disables)")
	flag.Parse()

	log := applog.New(applog.Options{Verbose: *verboseFlag})
	defaults := config.FromEnv()
	defaults.Verbose = *verboseFlag
	if err := defaults.Validate(); err != nil {
		log.Error("invalid defaults", "error", err)
		return err
	}

	if *metricsAddrFlag != "" {
		go func() {
			log.Info("metrics server listening", "address", *metricsAddrFlag)
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(*metricsAddrFlag, mux); err != nil {
				log.Error("metrics server stopped", "error", err)
			}
		}()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	core := probeapi.New(probeapi.Config{Log: log})
	sink, ok := core.Sink().(*events.ChanSink)
	if !ok {
		return fmt.Errorf("expected a *events.ChanSink, got %T", core.Sink())
	}

	go func() {
		for ev := range sink.Events() {
			log.Info("event", "topic", string(ev.Topic), "payload", fmt.Sprintf("%+v", ev.Payload))
		}
	}()

	runID, err := dispatch(ctx, core, *opFlag, *targetFlag, *protocolFlag, *portFlag, *countFlag, *baseURLFlag)
	if err != nil {
		log.Error("dispatch failed", "op", *opFlag, "error", err)
		return err
	}
	log.Info("started run", "op", *opFlag, "run_id", runID)

	<-ctx.Done()
	log.Info("shutting down")
	return nil
}

func dispatch(ctx context.Context, core *probeapi.Core, op, target, protocol string, port, count int, baseURL string) (string, error) {
	switch op {
	case "ping":
		ip := net.ParseIP(target)
		if ip == nil {
			return "", fmt.Errorf("invalid target IP %q", target)
		}
		return core.Ping(ctx, model.PingSetting{
			IP:       ip,
			Protocol: model.PingProtocol(protocol),
			Port:     port,
			Count:    count,
			Timeout:  time.Second,
			Interval: time.Second,
		})
	case "traceroute":
		ip := net.ParseIP(target)
		if ip == nil {
			return "", fmt.Errorf("invalid target IP %q", target)
		}
		return core.Traceroute(ctx, model.TracerouteSetting{
			IP:       ip,
			Protocol: model.TraceProtocolICMP,
		})
	case "hostscan":
		ip := net.ParseIP(target)
		if ip == nil {
			return "", fmt.Errorf("invalid target IP %q", target)
		}
		return core.HostScan(ctx, model.HostScanSetting{
			Targets: []model.Endpoint{model.NewEndpoint(ip, "")},
			Count:   count,
			Timeout: time.Second,
		})
	case "neighborscan":
		return core.NeighborScan(ctx, model.NeighborScanSetting{
			Timeout: time.Second,
		})
	case "speedtest":
		return core.Speedtest(model.SpeedtestSetting{
			BaseURL:     baseURL,
			Direction:   model.SpeedtestDownload,
			TargetBytes: 10 * 1024 * 1024,
		})
	case "latency":
		return core.Latency(ctx, model.LatencySetting{BaseURL: baseURL})
	default:
		return "", fmt.Errorf("unknown operation %q", op)
	}
}
