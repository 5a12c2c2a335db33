package speedtest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/jonboulle/clockwork"

	"github.com/foctal/netprobe/internal/events"
	"github.com/foctal/netprobe/internal/model"
)

type chunkMsg struct {
	n   int
	err error
}

// runDownload implements §4.8's download path: GET the payload with bearer
// auth, accumulate bytes off a reader goroutine, and tick progress/
// termination checks on a 250ms clock ticker.
func runDownload(ctx context.Context, sink events.Sink, client *http.Client, token string, setting model.SpeedtestSetting, clock clockwork.Clock, log *slog.Logger) model.SpeedtestDone {
	url := fmt.Sprintf("%s/download?bytes=%d", setting.BaseURL, setting.TargetBytes)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return model.SpeedtestDone{Direction: setting.Direction, Result: model.SpeedtestError, TargetBytes: setting.TargetBytes, Message: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(req)
	if err != nil {
		if isCancellation(err) {
			return model.SpeedtestDone{Direction: setting.Direction, Result: model.SpeedtestCanceled, TargetBytes: setting.TargetBytes}
		}
		return model.SpeedtestDone{Direction: setting.Direction, Result: model.SpeedtestError, TargetBytes: setting.TargetBytes, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return model.SpeedtestDone{
			Direction:   setting.Direction,
			Result:      model.SpeedtestError,
			TargetBytes: setting.TargetBytes,
			Message:     fmt.Sprintf("download: status %d", resp.StatusCode),
		}
	}

	chunks := make(chan chunkMsg, 1)
	go func() {
		buf := make([]byte, 32*1024)
		for {
			n, err := resp.Body.Read(buf)
			if n > 0 {
				chunks <- chunkMsg{n: n}
			}
			if err != nil {
				chunks <- chunkMsg{err: err}
				return
			}
		}
	}()

	ticker := clock.NewTicker(tickInterval)
	defer ticker.Stop()

	start := clock.Now()
	lastTotal, lastTick := uint64(0), start
	var total uint64
	result := model.SpeedtestFull
	message := ""

loop:
	for {
		select {
		case <-ctx.Done():
			result = model.SpeedtestCanceled
			break loop
		case msg := <-chunks:
			if msg.err != nil {
				if msg.err != io.EOF {
					if isCancellation(msg.err) {
						result = model.SpeedtestCanceled
					} else {
						result = model.SpeedtestError
						message = msg.err.Error()
					}
				}
				break loop
			}
			total += uint64(msg.n)
			if r, stop := checkTermination(total, setting, start, clock); stop {
				result = r
				break loop
			}
		case <-ticker.Chan():
			elapsed := clock.Since(start)
			emitUpdate(sink, setting.Direction, elapsed, total-lastTotal, clock.Since(lastTick), total, setting.TargetBytes)
			lastTotal, lastTick = total, clock.Now()
			if r, stop := checkTermination(total, setting, start, clock); stop {
				result = r
				break loop
			}
		}
	}

	elapsed := clock.Since(start)
	log.Debug("speedtest: download finished", "result", result, "transferred_bytes", total, "elapsed", elapsed)
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
