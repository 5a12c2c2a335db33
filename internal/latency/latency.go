// Package latency implements the round-trip latency engine (§4.9): N
// sequential GETs against a stub /ping endpoint, reporting the median RTT
// and its population standard deviation ("jitter").
package latency

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/foctal/netprobe/internal/events"
	"github.com/foctal/netprobe/internal/model"
)

type Config struct {
	Log    *slog.Logger
	Clock  clockwork.Clock
	Client *http.Client
}

func (c *Config) setDefaults() {
	if c.Log == nil {
		c.Log = slog.Default()
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.Client == nil {
		c.Client = &http.Client{Timeout: 5 * time.Second}
	}
}

type Engine struct {
	cfg Config
}

func New(cfg Config) *Engine {
	cfg.setDefaults()
	return &Engine{cfg: cfg}
}

type pingResponse struct {
	Colo string `json:"colo"`
}

// Run issues setting.Samples sequential GETs against {base}/ping, sleeping
// LatencySampleInterval between each, then emits latency:done with the
// median RTT and population-stddev jitter (§4.9). Latency has no registry
// operation class of its own (§3) — it's short and bounded by
// samples*interval, so plain ctx cancellation is enough.
func (e *Engine) Run(ctx context.Context, sink events.Sink, runID string, setting model.LatencySetting) (model.LatencyDone, error) {
	samples := make([]float64, 0, setting.Samples)
	var colo string

	for i := 1; i <= setting.Samples; i++ {
		if ctx.Err() != nil {
			break
		}

		rtt, gotColo, ok := e.pingOnce(ctx, setting.BaseURL, colo == "")
		samples = append(samples, rtt)
		if ok && colo == "" {
			colo = gotColo
		}

		sink.Emit(events.TopicLatencyUpdate, model.LatencyUpdate{
			Sample: i,
			Total:  setting.Samples,
			RTTMs:  rtt,
		})

		if i < setting.Samples {
			select {
			case <-ctx.Done():
			case <-e.cfg.Clock.After(model.LatencySampleInterval):
			}
		}
	}

	done := model.LatencyDone{
		LatencyMs: median(samples),
		JitterMs:  populationStddev(samples),
		Samples:   samples,
		Colo:      colo,
	}
	sink.Emit(events.TopicLatencyDone, done)
	return done, nil
}

// pingOnce issues one GET {base}/ping and returns the wall-clock RTT in ms
// regardless of outcome (§4.9 records RTT unconditionally); captureColo
// additionally parses the optional JSON body when true, the colo value is
// returned with ok=true only on a successful, well-formed 2xx response.
func (e *Engine) pingOnce(ctx context.Context, baseURL string, captureColo bool) (rttMs float64, colo string, ok bool) {
	start := e.cfg.Clock.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/ping", nil)
	if err != nil {
		return float64(e.cfg.Clock.Since(start).Microseconds()) / 1000, "", false
	}

	resp, err := e.cfg.Client.Do(req)
	if err != nil {
		e.cfg.Log.Debug("latency: ping failed", "error", err)
		return float64(e.cfg.Clock.Since(start).Microseconds()) / 1000, "", false
	}
	defer resp.Body.Close()

	var parsed pingResponse
	if captureColo && resp.StatusCode/100 == 2 {
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err == nil {
			colo = parsed.Colo
			ok = parsed.Colo != ""
		}
	}
	rttMs = float64(e.cfg.Clock.Since(start).Microseconds()) / 1000
	return rttMs, colo, ok
}

// median follows §4.9's tie-break rule: the middle element for odd N, the
// mean of the two middle elements for even N.
func median(samples []float64) float64 {
	n := len(samples)
	if n == 0 {
		return 0
	}
	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// populationStddev is the square root of the population variance (divide by
// N, not N-1), per §4.9.
func populationStddev(samples []float64) float64 {
	n := len(samples)
	if n == 0 {
		return 0
	}
	mean := 0.0
	for _, s := range samples {
		mean += s
	}
	mean /= float64(n)

	variance := 0.0
	for _, s := range samples {
		d := s - mean
		variance += d * d
	}
	variance /= float64(n)

	return math.Sqrt(variance)
}
