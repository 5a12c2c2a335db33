package speedtest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/jonboulle/clockwork"

	"github.com/foctal/netprobe/internal/events"
	"github.com/foctal/netprobe/internal/model"
)

// runUpload implements §4.8's upload path: a generator goroutine writes
// fixed chunkSize zero-filled buffers into an io.Pipe feeding the POST
// body, incrementing an atomic "sent" counter as chunks are yielded (not
// when acknowledged); a second goroutine owns the request itself so the
// tick loop can keep reporting progress (and, once sent reaches target,
// keep waiting for the server's response) independently of the body
// generator's own pace.
func runUpload(ctx context.Context, sink events.Sink, client *http.Client, token string, setting model.SpeedtestSetting, clock clockwork.Clock, log *slog.Logger) model.SpeedtestDone {
	uploadCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var sent uint64
	remaining := int64(setting.TargetBytes)

	pr, pw := io.Pipe()
	go func() {
		buf := make([]byte, chunkSize)
		for atomic.LoadInt64(&remaining) > 0 {
			n := chunkSize
			if r := atomic.LoadInt64(&remaining); int64(n) > r {
				n = int(r)
			}
			if _, err := pw.Write(buf[:n]); err != nil {
				return
			}
			atomic.AddUint64(&sent, uint64(n))
			atomic.AddInt64(&remaining, -int64(n))
		}
		pw.Close()
	}()

	req, err := http.NewRequestWithContext(uploadCtx, http.MethodPost, setting.BaseURL+"/upload", pr)
	if err != nil {
		return model.SpeedtestDone{Direction: setting.Direction, Result: model.SpeedtestError, TargetBytes: setting.TargetBytes, Message: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.ContentLength = int64(setting.TargetBytes)

	bodyDone := make(chan error, 1)
	go func() {
		resp, err := client.Do(req)
		if err != nil {
			bodyDone <- err
			return
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)
		if resp.StatusCode/100 != 2 {
			bodyDone <- fmt.Errorf("status %d", resp.StatusCode)
			return
		}
		bodyDone <- nil
	}()

	ticker := clock.NewTicker(tickInterval)
	defer ticker.Stop()

	start := clock.Now()
	lastTotal, lastTick := uint64(0), start
	result := model.SpeedtestFull
	message := ""
	timedOut := false

loop:
	for {
		select {
		case <-ctx.Done():
			result = model.SpeedtestCanceled
			break loop
		case err := <-bodyDone:
			switch {
			case err == nil:
				if timedOut {
					result = model.SpeedtestTimeout
				}
			case isCancellation(err):
				result = model.SpeedtestCanceled
			default:
				result = model.SpeedtestError
				message = err.Error()
			}
			break loop
		case <-ticker.Chan():
			total := atomic.LoadUint64(&sent)
			elapsed := clock.Since(start)
			emitUpdate(sink, setting.Direction, elapsed, total-lastTotal, clock.Since(lastTick), total, setting.TargetBytes)
			lastTotal, lastTick = total, clock.Now()

			if elapsed >= setting.MaxDuration {
				timedOut = true
				cancel()
				result = model.SpeedtestTimeout
				break loop
			}
			// total >= target: keep ticking, wait for the server's response.
		}
	}

	total := atomic.LoadUint64(&sent)
	elapsed := clock.Since(start)
	log.Debug("speedtest: upload finished", "result", result, "sent_bytes", total, "elapsed", elapsed)
	return model.SpeedtestDone{
		Direction:        setting.Direction,
		Result:           result,
		ElapsedMs:        uint64(elapsed.Milliseconds()),
		TransferredBytes: total,
		TargetBytes:      setting.TargetBytes,
		AvgMbps:          model.Mbps(total, elapsed.Seconds()),
		Message:          message,
	}
}
