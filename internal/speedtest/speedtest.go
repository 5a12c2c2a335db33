// Package speedtest implements the throughput engine (§4.8): a
// single-instance download/upload measurement against a token-gated HTTP
// endpoint, reporting periodic progress and one of Full/Timeout/Canceled/
// Error as its terminal result.
package speedtest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/foctal/netprobe/internal/events"
	"github.com/foctal/netprobe/internal/model"
)

// tickInterval is the progress-emission cadence for both directions (§4.8).
const tickInterval = 250 * time.Millisecond

// chunkSize is the fixed upload buffer size (§5 "Bounded memory").
const chunkSize = 64 * 1024

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

// runState is the single held task handle (§4.8: "the engine is
// single-instance... the caller preserves the in-flight task handle in
// shared state"). doneOnce ensures the terminal speedtest:done for a given
// run is emitted exactly once whether it's the run's own goroutine or an
// explicit Stop that gets there first.
type runState struct {
	cancel    context.CancelFunc
	doneOnce  *sync.Once
	direction model.SpeedtestDirection
	target    uint64
}

// Engine runs at most one speed test at a time; it holds no registry class
// of its own (§4.8), instead tracking the in-flight run directly.
type Engine struct {
	cfg Config

	mu  sync.Mutex
	cur *runState
}

func New(cfg Config) *Engine {
	cfg.setDefaults()
	return &Engine{cfg: cfg}
}

// Start aborts any in-flight run and launches a new one in the background,
// holding the new run's direction+target so a follow-on Stop reports the
// run it actually aborts. It returns once the new run has been registered,
// not once it completes — completion is reported via events.
func (e *Engine) Start(sink events.Sink, runID string, setting model.SpeedtestSetting) error {
	if err := setting.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	next := &runState{
		cancel:    cancel,
		doneOnce:  &sync.Once{},
		direction: setting.Direction,
		target:    setting.TargetBytes,
	}

	e.mu.Lock()
	prev := e.cur
	e.cur = next
	e.mu.Unlock()

	if prev != nil {
		prev.cancel()
	}

	go e.run(ctx, sink, runID, setting, next)
	return nil
}

// Stop implements the explicit stop_speedtest command (§4.8): abort the
// held task handle and, if one was in fact running, synthesize its
// speedtest:done{Canceled} immediately rather than waiting for the aborted
// goroutine to notice.
func (e *Engine) Stop(sink events.Sink) {
	e.mu.Lock()
	cur := e.cur
	e.mu.Unlock()
	if cur == nil {
		return
	}
	cur.cancel()
	cur.doneOnce.Do(func() {
		sink.Emit(events.TopicSpeedtestDone, model.SpeedtestDone{
			Direction:   cur.direction,
			Result:      model.SpeedtestCanceled,
			TargetBytes: cur.target,
		})
	})
}

func (e *Engine) run(ctx context.Context, sink events.Sink, runID string, setting model.SpeedtestSetting, rs *runState) {
	client := &http.Client{Timeout: setting.MaxDuration + 5*time.Second}

	token, err := fetchToken(ctx, client, setting.BaseURL)
	if err != nil {
		rs.doneOnce.Do(func() {
			sink.Emit(events.TopicSpeedtestDone, model.SpeedtestDone{
				Direction: setting.Direction,
				Result:    model.SpeedtestError,
				Message:   fmt.Sprintf("fetch token: %v", err),
			})
		})
		return
	}

	var done model.SpeedtestDone
	switch setting.Direction {
	case model.SpeedtestDownload:
		done = runDownload(ctx, sink, client, token, setting, e.cfg.Clock, e.cfg.Log)
	case model.SpeedtestUpload:
		done = runUpload(ctx, sink, client, token, setting, e.cfg.Clock, e.cfg.Log)
	default:
		done = model.SpeedtestDone{Direction: setting.Direction, Result: model.SpeedtestError, Message: "unknown direction"}
	}

	rs.doneOnce.Do(func() {
		sink.Emit(events.TopicSpeedtestDone, done)
	})
}

// isCancellation reports whether err is (or wraps) a context cancellation,
// distinguishing an aborted run (Canceled) from a genuine transport failure
// (Error).
func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled)
}
